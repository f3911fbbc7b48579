package ui

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/agenda/internal/runtime"
)

// MockUI implements UI interface for testing
type MockUI struct {
	StatusUpdates  []string
	PendingUpdates []int
	LogMessages    []string
}

func (m *MockUI) UpdateStatus(status string) {
	m.StatusUpdates = append(m.StatusUpdates, status)
}

func (m *MockUI) UpdatePending(count int) {
	m.PendingUpdates = append(m.PendingUpdates, count)
}

func (m *MockUI) Log(msg string) {
	m.LogMessages = append(m.LogMessages, msg)
}

func TestUI_InterfaceMethods(t *testing.T) {
	uis := []UI{
		SilentUI{},
		&MockUI{},
	}
	for _, ui := range uis {
		ui.UpdateStatus("test")
		ui.UpdatePending(1)
		ui.Log("test")
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		pending bool
		want    Command
		wantErr bool
	}{
		{
			name: "bare operation",
			line: "get_lists",
			want: Command{Operation: "get_lists", Args: map[string]any{}},
		},
		{
			name: "json arguments",
			line: `get_items {"listId": "L1", "completed": false}`,
			want: Command{Operation: "get_items", Args: map[string]any{"listId": "L1", "completed": false}},
		},
		{
			name: "key value pairs",
			line: `create_item content="Oat milk, 2L" listId=L1 completed=true`,
			want: Command{Operation: "create_item", Args: map[string]any{
				"content": "Oat milk, 2L", "listId": "L1", "completed": true,
			}},
		},
		{
			name: "numeric text stays a string",
			line: `create_item content=42 listId=7`,
			want: Command{Operation: "create_item", Args: map[string]any{"content": "42", "listId": "7"}},
		},
		{
			name: "boolean text stays a string",
			line: `create_list name=true`,
			want: Command{Operation: "create_list", Args: map[string]any{"name": "true"}},
		},
		{
			name: "special float words stay strings",
			line: `create_item content=inf listId=NaN`,
			want: Command{Operation: "create_item", Args: map[string]any{"content": "inf", "listId": "NaN"}},
		},
		{
			name: "number parameter",
			line: `get_events limit=5`,
			want: Command{Operation: "get_events", Args: map[string]any{"limit": float64(5)}},
		},
		{
			name: "number parameter rejects infinity",
			line: `get_events limit=inf`,
			want: Command{Operation: "get_events", Args: map[string]any{"limit": "inf"}},
		},
		{
			name: "boolean parameter keeps other words",
			line: `create_item content=x completed=1`,
			want: Command{Operation: "create_item", Args: map[string]any{"content": "x", "completed": "1"}},
		},
		{
			name: "unknown key stays a string",
			line: `create_item content=x priority=2`,
			want: Command{Operation: "create_item", Args: map[string]any{"content": "x", "priority": "2"}},
		},
		{
			name:    "answer while pending",
			line:    "Yes please",
			pending: true,
			want:    Command{Operation: "confirm_operation", Args: map[string]any{"response": "Yes please"}},
		},
		{
			name:    "free text while pending",
			line:    "Hmm, what?",
			pending: true,
			want:    Command{Operation: "confirm_operation", Args: map[string]any{"response": "Hmm, what?"}},
		},
		{
			name:    "operation while pending",
			line:    "get_events",
			pending: true,
			want:    Command{Operation: "get_events", Args: map[string]any{}},
		},
		{name: "empty", line: "   ", wantErr: true},
		{name: "not an operation", line: "Hello there", wantErr: true},
		{name: "bad json", line: "get_items {oops", wantErr: true},
		{name: "bad pair", line: "get_items listId", wantErr: true},
		{name: "open quote", line: `create_list name="Groceries`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line, tt.pending, runtime.DefaultRegistry())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseLine mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLine_NoSchema(t *testing.T) {
	got, err := ParseLine(`get_events limit=5 all=true`, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"limit": "5", "all": "true"}
	if diff := cmp.Diff(want, got.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestAttach(t *testing.T) {
	bus := runtime.NewEventBus()
	u := &MockUI{}
	count := 0
	Attach(bus, u, func() int { return count })

	count = 1
	bus.PublishWithData(runtime.EventOperationPending, "s1", map[string]any{"operation": "create_list", "operationID": "op_1_1"})
	bus.PublishWithData(runtime.EventInteraction, "s1", map[string]any{"operation": "get_lists"})
	count = 0
	bus.PublishWithData(runtime.EventOperationCancelled, "s1", map[string]any{"operation": "create_list", "operationID": "op_1_1"})

	if diff := cmp.Diff([]int{1, 0}, u.PendingUpdates); diff != "" {
		t.Errorf("pending updates mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		"· operation pending: create_list (op_1_1)",
		"· operation cancelled: create_list (op_1_1)",
	}
	if diff := cmp.Diff(want, u.LogMessages); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe(t *testing.T) {
	expired := runtime.Event{Type: runtime.EventOperationsExpired, Data: map[string]any{"operationIDs": []string{"a", "b"}}}
	if got := Describe(expired); !strings.Contains(got, "2 pending") {
		t.Errorf("unexpected expiry line %q", got)
	}
	failed := runtime.Event{Type: runtime.EventOperationFailed, Data: map[string]any{"operation": "delete_item", "error": "not found"}}
	if got := Describe(failed); got != "· operation failed: delete_item: not found" {
		t.Errorf("unexpected failure line %q", got)
	}
}
