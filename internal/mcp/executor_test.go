package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/felixgeelhaar/agenda/internal/apperr"
	"github.com/felixgeelhaar/agenda/internal/memory"
	"github.com/felixgeelhaar/agenda/internal/store"
)

func newTestExecutor(t *testing.T) (*Executor, *store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	return NewExecutor(s, nil), s
}

func mustExec(t *testing.T, e *Executor, op string, args map[string]any) string {
	t.Helper()
	text, err := e.Execute(context.Background(), op, args)
	if err != nil {
		t.Fatalf("%s failed: %v", op, err)
	}
	return text
}

func createEvent(t *testing.T, e *Executor, title string) string {
	t.Helper()
	text := mustExec(t, e, "create_event", map[string]any{
		"title":     title,
		"startTime": "2025-03-11T09:00:00Z",
		"endTime":   "2025-03-11T09:30:00Z",
	})
	id := memory.ExtractID(text)
	if id == "" {
		t.Fatalf("no id in %q", text)
	}
	return id
}

func createList(t *testing.T, e *Executor, name string) string {
	t.Helper()
	id := memory.ExtractID(mustExec(t, e, "create_list", map[string]any{"name": name}))
	if id == "" {
		t.Fatal("no list id")
	}
	return id
}

func TestExecutor_EventLifecycle(t *testing.T) {
	e, s := newTestExecutor(t)
	ctx := context.Background()

	id := createEvent(t, e, "Standup")

	t.Run("no list assigned", func(t *testing.T) {
		text := mustExec(t, e, "get_event_with_list_and_items", map[string]any{"eventId": id})
		if !strings.Contains(text, "No list assigned") {
			t.Errorf("expected no list message, got %q", text)
		}
	})

	t.Run("search", func(t *testing.T) {
		text := mustExec(t, e, "get_events", map[string]any{"title": "stand"})
		if !strings.Contains(text, "Found 1 event(s)") || !strings.Contains(text, id) {
			t.Errorf("unexpected search result %q", text)
		}
		text = mustExec(t, e, "get_events", map[string]any{"startAfter": "2025-03-12T00:00:00Z"})
		if text != "No events found." {
			t.Errorf("expected no events after range, got %q", text)
		}
	})

	t.Run("update", func(t *testing.T) {
		mustExec(t, e, "update_event", map[string]any{"eventId": id, "location": "Room 4"})
		ev, err := s.Events.FindByID(ctx, id)
		if err != nil || ev.Location != "Room 4" {
			t.Errorf("expected location updated, got %+v, %v", ev, err)
		}
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := e.Execute(ctx, "update_event", map[string]any{"eventId": id, "endTime": "2025-03-11T08:00:00Z"})
		if !apperr.Is(err, apperr.CodeInvalidRequest) {
			t.Errorf("expected InvalidRequest, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		mustExec(t, e, "delete_event", map[string]any{"eventId": id})
		_, err := e.Execute(ctx, "delete_event", map[string]any{"eventId": id})
		if !apperr.Is(err, apperr.CodeInvalidRequest) {
			t.Errorf("expected InvalidRequest for missing event, got %v", err)
		}
	})
}

func TestExecutor_CreateEventValidation(t *testing.T) {
	e, _ := newTestExecutor(t)
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing title", map[string]any{"startTime": "2025-03-11T09:00:00Z", "endTime": "2025-03-11T10:00:00Z"}},
		{"bad time", map[string]any{"title": "x", "startTime": "tomorrow", "endTime": "2025-03-11T10:00:00Z"}},
		{"end before start", map[string]any{"title": "x", "startTime": "2025-03-11T10:00:00Z", "endTime": "2025-03-11T09:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Execute(context.Background(), "create_event", tt.args)
			if !apperr.Is(err, apperr.CodeInvalidRequest) {
				t.Errorf("expected InvalidRequest, got %v", err)
			}
		})
	}
}

func TestExecutor_AssignAndListView(t *testing.T) {
	e, s := newTestExecutor(t)
	ctx := context.Background()

	eventID := createEvent(t, e, "Offsite")
	listID := createList(t, e, "Packing")
	mustExec(t, e, "create_item", map[string]any{"content": "Passport", "listId": listID})

	mustExec(t, e, "assign_list_to_event", map[string]any{"eventId": eventID, "listId": listID})

	text := mustExec(t, e, "get_event_with_list_and_items", map[string]any{"eventId": eventID})
	if !strings.Contains(text, "List: Packing") || !strings.Contains(text, "Passport") {
		t.Errorf("expected list and items in %q", text)
	}

	list, _ := s.Lists.FindByID(ctx, listID)
	if list.EventID != eventID {
		t.Errorf("expected list linked to event, got %q", list.EventID)
	}

	t.Run("reassign releases previous list", func(t *testing.T) {
		other := createList(t, e, "Snacks")
		mustExec(t, e, "assign_list_to_event", map[string]any{"eventId": eventID, "listId": other})
		old, _ := s.Lists.FindByID(ctx, listID)
		if old.EventID != "" {
			t.Errorf("expected previous list released, got %q", old.EventID)
		}
		mustExec(t, e, "unassign_list_from_event", map[string]any{"eventId": eventID})
		ev, _ := s.Events.FindByID(ctx, eventID)
		l, _ := s.Lists.FindByID(ctx, other)
		if ev.ListID != "" || l.EventID != "" {
			t.Errorf("expected both sides cleared, got event=%q list=%q", ev.ListID, l.EventID)
		}
	})

	t.Run("missing list", func(t *testing.T) {
		_, err := e.Execute(ctx, "assign_list_to_event", map[string]any{"eventId": eventID, "listId": store.NewID()})
		if !apperr.Is(err, apperr.CodeInvalidRequest) {
			t.Errorf("expected InvalidRequest, got %v", err)
		}
	})
}

func TestExecutor_DeleteList(t *testing.T) {
	for _, deleteItems := range []bool{true, false} {
		name := "keep items"
		if deleteItems {
			name = "delete items"
		}
		t.Run(name, func(t *testing.T) {
			e, s := newTestExecutor(t)
			ctx := context.Background()

			eventID := createEvent(t, e, "Trip")
			listID := createList(t, e, "Groceries")
			for _, c := range []string{"Milk", "Eggs"} {
				mustExec(t, e, "create_item", map[string]any{"content": c, "listId": listID})
			}
			mustExec(t, e, "create_item", map[string]any{"content": "Loose"})
			mustExec(t, e, "assign_list_to_event", map[string]any{"eventId": eventID, "listId": listID})

			mustExec(t, e, "delete_list", map[string]any{"listId": listID, "deleteItems": deleteItems})

			if _, err := s.Lists.FindByID(ctx, listID); err == nil {
				t.Error("expected list deleted")
			}
			ev, _ := s.Events.FindByID(ctx, eventID)
			if ev.ListID != "" {
				t.Errorf("expected event unassigned, got %q", ev.ListID)
			}
			left, _ := s.Items.Find(ctx, store.Where().Eq("listId", listID))
			want := 2
			if deleteItems {
				want = 0
			}
			if len(left) != want {
				t.Errorf("expected %d items left in list, got %d", want, len(left))
			}
			all, _ := s.Items.Find(ctx, store.Where())
			if len(all) != want+1 {
				t.Errorf("unrelated items must survive, got %d total", len(all))
			}
		})
	}
}

func TestExecutor_Items(t *testing.T) {
	e, _ := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.Execute(ctx, "create_item", map[string]any{"content": "x", "listId": store.NewID()})
	if !apperr.Is(err, apperr.CodeInvalidRequest) {
		t.Errorf("expected InvalidRequest for unknown list, got %v", err)
	}

	listID := createList(t, e, "Chores")
	itemID := memory.ExtractID(mustExec(t, e, "create_item", map[string]any{"content": "Laundry", "listId": listID}))
	mustExec(t, e, "update_item", map[string]any{"itemId": itemID, "completed": true})

	text := mustExec(t, e, "get_items", map[string]any{"listId": listID, "completed": true})
	if !strings.Contains(text, "[x] Laundry") {
		t.Errorf("expected completed item, got %q", text)
	}
	if text := mustExec(t, e, "get_items", map[string]any{"completed": false}); text != "No items found." {
		t.Errorf("expected no open items, got %q", text)
	}

	mustExec(t, e, "delete_item", map[string]any{"itemId": itemID})
	if _, err := e.Execute(ctx, "update_item", map[string]any{"itemId": itemID, "content": "y"}); !apperr.Is(err, apperr.CodeInvalidRequest) {
		t.Errorf("expected InvalidRequest for deleted item, got %v", err)
	}
}

func TestExecutor_UnknownOperation(t *testing.T) {
	e, _ := newTestExecutor(t)
	_, err := e.Execute(context.Background(), "drop_database", nil)
	if !apperr.Is(err, apperr.CodeMethodNotFound) {
		t.Errorf("expected MethodNotFound, got %v", err)
	}
	if e.Supports("confirm_operation") {
		t.Error("confirm_operation is handled by the runtime, not the executor")
	}
}
