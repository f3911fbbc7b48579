package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/agenda/internal/runtime"
	"github.com/felixgeelhaar/agenda/internal/ui"
)

type call struct {
	Session   string
	Operation string
	Args      map[string]any
}

type fakeCaller struct {
	calls []call
	resp  runtime.Response
	err   error
}

func (f *fakeCaller) Call(ctx context.Context, sessionID, operation string, args map[string]any) (runtime.Response, error) {
	f.calls = append(f.calls, call{sessionID, operation, args})
	return f.resp, f.err
}

func (f *fakeCaller) Registry() *runtime.Registry { return runtime.DefaultRegistry() }

func ready(t *testing.T, c Caller) Model {
	t.Helper()
	m := NewModel(context.Background(), "agenda", "s1", c)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

// enter types line and presses enter, running the returned command.
func enter(t *testing.T, m Model, line string) (Model, tea.Msg) {
	t.Helper()
	m.Input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestModel_SubmitRead(t *testing.T) {
	f := &fakeCaller{resp: runtime.Response{Text: "No items found."}}
	m := ready(t, f)

	m, msg := enter(t, m, `get_items listId=L1`)
	if m.Input.Value() != "" {
		t.Error("input should be cleared after submit")
	}
	res, ok := msg.(ResultMsg)
	if !ok {
		t.Fatalf("expected ResultMsg, got %T", msg)
	}
	want := []call{{"s1", "get_items", map[string]any{"listId": "L1"}}}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	next, _ := m.Update(res)
	m = next.(Model)
	if m.Status != "Ready" {
		t.Errorf("expected Ready, got %q", m.Status)
	}
	if last := m.Log[len(m.Log)-1]; last != "No items found." {
		t.Errorf("expected response in log, got %q", last)
	}
}

func TestModel_AnswerAfterPending(t *testing.T) {
	f := &fakeCaller{resp: runtime.Response{Text: "Confirmation required", OperationID: "op_1_1"}}
	m := ready(t, f)

	m, msg := enter(t, m, `create_list name="Groceries"`)
	next, _ := m.Update(msg)
	m = next.(Model)
	if m.Status != "Awaiting confirmation" {
		t.Fatalf("expected awaiting status, got %q", m.Status)
	}

	f.resp = runtime.Response{Text: "Operation confirmed and executed"}
	m, msg = enter(t, m, "yes")
	if msg == nil {
		t.Fatal("expected a command for the answer")
	}
	got := f.calls[len(f.calls)-1]
	if got.Operation != "confirm_operation" || got.Args["response"] != "yes" {
		t.Errorf("expected confirm_operation with response, got %+v", got)
	}
	next, _ = m.Update(msg)
	if next.(Model).Status != "Ready" {
		t.Errorf("expected Ready after confirmation, got %q", next.(Model).Status)
	}
}

func TestModel_Errors(t *testing.T) {
	f := &fakeCaller{err: errors.New("Invalid request: boom")}
	m := ready(t, f)

	m, msg := enter(t, m, "hello")
	if msg != nil {
		t.Fatalf("unparseable input should not run, got %T", msg)
	}
	if len(f.calls) != 0 {
		t.Error("caller should not be reached")
	}

	m, msg = enter(t, m, "get_lists")
	next, _ := m.Update(msg)
	m = next.(Model)
	if m.Status != "Error" {
		t.Errorf("expected Error status, got %q", m.Status)
	}
	if !strings.Contains(m.Log[len(m.Log)-1], "boom") {
		t.Errorf("expected error in log, got %q", m.Log[len(m.Log)-1])
	}
}

func TestModel_Messages(t *testing.T) {
	m := ready(t, &fakeCaller{})

	next, _ := m.Update(PendingMsg(2))
	next, _ = next.Update(StatusMsg("Syncing"))
	next, _ = next.Update(LogMsg("· operation pending: create_list"))
	m = next.(Model)

	if m.Pending != 2 || m.Status != "Syncing" {
		t.Errorf("unexpected state pending=%d status=%q", m.Pending, m.Status)
	}
	view := m.View()
	for _, want := range []string{"Pending: 2", "Session: s1", "Syncing"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_Quit(t *testing.T) {
	m := ready(t, &fakeCaller{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !next.(Model).Quitting || cmd == nil {
		t.Error("ctrl+c should quit")
	}

	m, _ = enter(t, ready(t, &fakeCaller{}), "quit")
	if !m.Quitting {
		t.Error("quit should quit")
	}
}

func TestTUI_ImplementsUI(t *testing.T) {
	var _ ui.UI = &TUI{}
}
