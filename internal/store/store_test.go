package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
)

var hexID = regexp.MustCompile(`^[a-f0-9]{24}$`)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime(%q): %v", s, err)
	}
	return tm
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) *Store{
		"memory": func(t *testing.T) *Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) *Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "agenda.db"))
			if err != nil {
				t.Fatalf("Failed to create store: %v", err)
			}
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			runContract(t, s)
		})
	}
}

func runContract(t *testing.T, s *Store) {
	ctx := context.Background()

	standup, err := s.Events.Create(ctx, &Event{
		Title:      "Standup",
		StartTime:  mustTime(t, "2026-03-02T09:00:00Z"),
		EndTime:    mustTime(t, "2026-03-02T09:30:00Z"),
		CalendarID: "work",
	})
	if err != nil {
		t.Fatalf("Create event failed: %v", err)
	}
	review, _ := s.Events.Create(ctx, &Event{
		Title:      "Design Review",
		StartTime:  mustTime(t, "2026-03-03T14:00:00Z"),
		EndTime:    mustTime(t, "2026-03-03T15:00:00Z"),
		CalendarID: "work",
	})
	_, _ = s.Events.Create(ctx, &Event{
		Title:      "Dentist",
		StartTime:  mustTime(t, "2026-03-05T08:00:00Z"),
		EndTime:    mustTime(t, "2026-03-05T09:00:00Z"),
		CalendarID: "personal",
	})

	t.Run("Create assigns hex ids and timestamps", func(t *testing.T) {
		if !hexID.MatchString(standup.ID) {
			t.Errorf("expected 24-hex id, got %q", standup.ID)
		}
		if standup.CreatedAt.IsZero() || standup.UpdatedAt.IsZero() {
			t.Error("expected timestamps to be set")
		}
	})

	t.Run("FindByID", func(t *testing.T) {
		got, err := s.Events.FindByID(ctx, standup.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Title != "Standup" || !got.StartTime.Equal(standup.StartTime) {
			t.Errorf("unexpected event %+v", got)
		}
		if _, err := s.Events.FindByID(ctx, NewID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Find with predicates", func(t *testing.T) {
		work, err := s.Events.Find(ctx, Where().Eq("calendarId", "work"))
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}
		if len(work) != 2 || work[0].Title != "Standup" || work[1].Title != "Design Review" {
			t.Errorf("expected work events sorted by start, got %v", titles(work))
		}

		byText, _ := s.Events.Find(ctx, Where().Contains("title", "REVIEW"))
		if len(byText) != 1 || byText[0].ID != review.ID {
			t.Errorf("expected case-insensitive match on review, got %v", titles(byText))
		}

		inSet, _ := s.Events.Find(ctx, Where().In("calendarId", "personal", "other"))
		if len(inSet) != 1 || inSet[0].Title != "Dentist" {
			t.Errorf("expected set membership match, got %v", titles(inSet))
		}

		from := mustTime(t, "2026-03-02T09:00:00Z")
		to := mustTime(t, "2026-03-03T14:00:00Z")
		ranged, _ := s.Events.Find(ctx, Where().Between("startTime", &from, &to))
		if len(ranged) != 2 {
			t.Errorf("expected inclusive range to hold 2 events, got %v", titles(ranged))
		}

		limited, _ := s.Events.Find(ctx, Where().WithLimit(1))
		if len(limited) != 1 {
			t.Errorf("expected limit 1, got %d", len(limited))
		}
	})

	t.Run("UpdateByID", func(t *testing.T) {
		updated, err := s.Events.UpdateByID(ctx, review.ID, Patch{"title": "Architecture Review", "location": "Room 4"})
		if err != nil {
			t.Fatalf("UpdateByID failed: %v", err)
		}
		if updated.Title != "Architecture Review" || updated.Location != "Room 4" {
			t.Errorf("unexpected update result %+v", updated)
		}

		if _, err := s.Events.UpdateByID(ctx, review.ID, Patch{"endTime": "2026-03-03T13:00:00Z"}); !errors.Is(err, ErrInvalidField) {
			t.Errorf("expected ErrInvalidField for end before start, got %v", err)
		}
		if _, err := s.Events.UpdateByID(ctx, review.ID, Patch{"colour": "red"}); !errors.Is(err, ErrInvalidField) {
			t.Errorf("expected ErrInvalidField for unknown field, got %v", err)
		}
		if _, err := s.Events.UpdateByID(ctx, NewID(), Patch{"title": "x"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Items and DeleteMany", func(t *testing.T) {
		groceries, err := s.Lists.Create(ctx, &List{Name: "Groceries"})
		if err != nil {
			t.Fatalf("Create list failed: %v", err)
		}
		for _, content := range []string{"Milk", "Eggs", "Bread"} {
			if _, err := s.Items.Create(ctx, &Item{ListID: groceries.ID, Content: content}); err != nil {
				t.Fatalf("Create item failed: %v", err)
			}
		}
		loose, _ := s.Items.Create(ctx, &Item{Content: "Call mum"})

		done, err := s.Items.UpdateByID(ctx, loose.ID, Patch{"completed": true})
		if err != nil || !done.Completed {
			t.Fatalf("expected completed item, got %+v (%v)", done, err)
		}
		completed, _ := s.Items.Find(ctx, Where().Eq("completed", true))
		if len(completed) != 1 || completed[0].ID != loose.ID {
			t.Errorf("expected one completed item, got %d", len(completed))
		}

		n, err := s.Items.DeleteMany(ctx, Where().Eq("listId", groceries.ID))
		if err != nil {
			t.Fatalf("DeleteMany failed: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 deleted items, got %d", n)
		}
		left, _ := s.Items.Find(ctx, Where())
		if len(left) != 1 {
			t.Errorf("expected 1 remaining item, got %d", len(left))
		}
	})

	t.Run("DeleteByID", func(t *testing.T) {
		deleted, err := s.Events.DeleteByID(ctx, standup.ID)
		if err != nil {
			t.Fatalf("DeleteByID failed: %v", err)
		}
		if deleted.Title != "Standup" {
			t.Errorf("expected deleted record to be returned, got %+v", deleted)
		}
		if _, err := s.Events.DeleteByID(ctx, standup.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func titles(events []*Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}

func TestFilter_BuilderDoesNotAlias(t *testing.T) {
	base := Where().Eq("listId", "a")
	left := base.Eq("completed", true)
	right := base.Contains("content", "milk")

	if len(base.Conditions) != 1 {
		t.Fatalf("base filter mutated: %+v", base.Conditions)
	}
	if left.Conditions[1].Field != "completed" || right.Conditions[1].Field != "content" {
		t.Errorf("derived filters share storage: %+v / %+v", left.Conditions, right.Conditions)
	}
}

func TestToBSON(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := toBSON(Where().Eq("id", "abc").Contains("title", "a.b").Between("startTime", &from, nil))
	if err != nil {
		t.Fatalf("toBSON failed: %v", err)
	}
	want := bson.M{"$and": []bson.M{
		{"_id": "abc"},
		{"title": bson.M{"$regex": `a\.b`, "$options": "i"}},
		{"startTime": bson.M{"$gt": time.Time{}, "$gte": from}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("toBSON mismatch (-want +got):\n%s", diff)
	}

	single, _ := toBSON(Where().In("listId", "x", "y"))
	if diff := cmp.Diff(bson.M{"listId": bson.M{"$in": []any{"x", "y"}}}, single); diff != "" {
		t.Errorf("toBSON mismatch (-want +got):\n%s", diff)
	}

	empty, _ := toBSON(Where())
	if len(empty) != 0 {
		t.Errorf("expected empty document, got %v", empty)
	}
}

func TestBuildWhere(t *testing.T) {
	where, args, err := buildWhere(Where().Contains("content", "50%_off").In("listId"), itemTable.fields)
	if err != nil {
		t.Fatalf("buildWhere failed: %v", err)
	}
	if where != ` WHERE LOWER(content) LIKE ? ESCAPE '\' AND 0` {
		t.Errorf("unexpected clause %q", where)
	}
	if len(args) != 1 || args[0] != `%50\%\_off%` {
		t.Errorf("unexpected args %v", args)
	}

	if _, _, err := buildWhere(Where().Eq("colour", "red"), itemTable.fields); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected ErrInvalidField, got %v", err)
	}
}
