package runtime

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/agenda/internal/apperr"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if r.defs == nil {
		t.Fatal("expected non-nil definitions map")
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	def := Definition{Name: "archive_event", Description: "Archive an event"}
	if err := r.Register(def); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Error("expected error when registering duplicate operation")
	}
	if err := r.Register(Definition{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	readOnly := []string{"get_events", "get_lists", "get_items", "get_event_with_list_and_items", "get_context"}
	writes := []string{
		"create_event", "update_event", "delete_event",
		"create_list", "update_list", "delete_list",
		"create_item", "update_item", "delete_item",
		"assign_list_to_event", "unassign_list_from_event",
	}

	if got, want := r.Count(), len(readOnly)+len(writes)+1; got != want {
		t.Errorf("expected %d operations, got %d", want, got)
	}
	for _, name := range readOnly {
		if !r.IsReadOnly(name) {
			t.Errorf("%s should be read-only", name)
		}
	}
	for _, name := range writes {
		if r.IsReadOnly(name) {
			t.Errorf("%s should be a write", name)
		}
		def, _ := r.Get(name)
		if def.Summary == nil {
			t.Errorf("%s has no confirmation template", name)
		}
	}
	if r.IsReadOnly("confirm_operation") || r.IsReadOnly("unknown") {
		t.Error("confirm_operation and unknown names are not read-only")
	}

	list := r.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("List not sorted: %s before %s", list[i-1].Name, list[i].Name)
		}
	}
}

func TestRegistry_Summarize(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name string
		op   string
		args map[string]any
		want string
	}{
		{
			name: "create event",
			op:   "create_event",
			args: map[string]any{"title": "Standup", "startTime": "09:00", "endTime": "09:30", "location": "Room 4"},
			want: `Create event "Standup" from 09:00 to 09:30 at Room 4`,
		},
		{
			name: "delete list with items",
			op:   "delete_list",
			args: map[string]any{"listId": "L1", "deleteItems": true},
			want: "Delete list L1 and all of its items",
		},
		{
			name: "update lists changed fields",
			op:   "update_item",
			args: map[string]any{"itemId": "I1", "content": "Oat milk", "completed": true},
			want: "Update item I1 (completed=true, content=Oat milk)",
		},
		{
			name: "fallback",
			op:   "archive_event",
			args: map[string]any{"eventId": "E1"},
			want: `archive_event {"eventId":"E1"}`,
		},
		{
			name: "fallback without args",
			op:   "archive_event",
			want: "archive_event {}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Summarize(tt.op, tt.args); got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name string
		op   string
		args map[string]any
		code apperr.Code
		msg  string
	}{
		{"ok", "create_list", map[string]any{"name": "Groceries"}, "", ""},
		{"missing", "create_event", map[string]any{"title": "x"}, apperr.CodeInvalidRequest, "startTime, endTime"},
		{"blank required", "delete_item", map[string]any{"itemId": "  "}, apperr.CodeInvalidRequest, "itemId"},
		{"wrong kind", "delete_list", map[string]any{"listId": "L1", "deleteItems": "yes"}, apperr.CodeInvalidRequest, "boolean"},
		{"number", "get_events", map[string]any{"limit": float64(5)}, "", ""},
		{"unknown", "drop_all", nil, apperr.CodeMethodNotFound, "drop_all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.op, tt.args)
			if tt.code == "" {
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
				return
			}
			if !apperr.Is(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected %q in %q", tt.msg, err.Error())
			}
		})
	}
}
