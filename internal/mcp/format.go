package mcp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/agenda/internal/apperr"
	"github.com/felixgeelhaar/agenda/internal/store"
)

const timeLayout = time.RFC3339

func formatEvent(ev *store.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Event: %s\nID: %s\nStart: %s\nEnd: %s", ev.Title, ev.ID,
		ev.StartTime.Format(timeLayout), ev.EndTime.Format(timeLayout))
	if ev.Location != "" {
		fmt.Fprintf(&sb, "\nLocation: %s", ev.Location)
	}
	if ev.Description != "" {
		fmt.Fprintf(&sb, "\nDescription: %s", ev.Description)
	}
	if ev.CalendarID != "" {
		fmt.Fprintf(&sb, "\nCalendar: %s", ev.CalendarID)
	}
	if ev.ListID != "" {
		fmt.Fprintf(&sb, "\nList ID: %s", ev.ListID)
	}
	return sb.String()
}

func formatList(l *store.List) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "List: %s\nID: %s", l.Name, l.ID)
	if l.Description != "" {
		fmt.Fprintf(&sb, "\nDescription: %s", l.Description)
	}
	if l.EventID != "" {
		fmt.Fprintf(&sb, "\nEvent ID: %s", l.EventID)
	}
	return sb.String()
}

func formatItem(it *store.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Item: %s\nID: %s\nCompleted: %t", it.Content, it.ID, it.Completed)
	if it.ListID != "" {
		fmt.Fprintf(&sb, "\nList ID: %s", it.ListID)
	}
	if !it.DueDate.IsZero() {
		fmt.Fprintf(&sb, "\nDue: %s", it.DueDate.Format(timeLayout))
	}
	return sb.String()
}

func formatItems(items []*store.Item) string {
	if len(items) == 0 {
		return "No items found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d item(s):", len(items))
	for _, it := range items {
		mark := " "
		if it.Completed {
			mark = "x"
		}
		fmt.Fprintf(&sb, "\n[%s] %s (ID: %s)", mark, it.Content, it.ID)
	}
	return sb.String()
}

// patch copies the allowed keys that are present in args.
func patch(args map[string]any, keys ...string) store.Patch {
	p := store.Patch{}
	for _, k := range keys {
		if v, ok := args[k]; ok && v != nil {
			p[k] = v
		}
	}
	return p
}

func str(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func num(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

func optTime(args map[string]any, key string) (*time.Time, error) {
	s := str(args, key)
	if s == "" {
		return nil, nil
	}
	t, err := store.ParseTime(s)
	if err != nil {
		return nil, apperr.InvalidRequest("%s: %v", key, err)
	}
	return &t, nil
}

func invalid(err error) error {
	return apperr.InvalidRequest("%v", err)
}

// notFound maps a missing record to InvalidRequest and everything else
// through storeErr.
func notFound(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.InvalidRequest("%s %s not found", kind, id)
	}
	return storeErr(err, "access "+kind)
}

func storeErr(err error, action string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.InvalidRequest("%v", err)
	case errors.Is(err, store.ErrInvalidField):
		return apperr.InvalidRequest("%v", err)
	}
	return apperr.Internal(err, "failed to %s", action)
}
