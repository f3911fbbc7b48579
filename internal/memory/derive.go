package memory

import (
	"fmt"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`ID:\s*([a-fA-F0-9]{24})\b`)

// ExtractID finds the 24-hex identifier following "ID:" in a result text.
func ExtractID(text string) string {
	m := idPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func (e *Engine) updateContext(s *Session, operation string, args map[string]any, result any) {
	now := e.now()
	ok := succeeded(result)
	ctx := &s.Context

	switch operation {
	case "create_event":
		if !ok {
			return
		}
		ev := RecentEvent{
			ID:        ExtractID(resultText(result)),
			Title:     str(args, "title"),
			StartTime: str(args, "startTime"),
			EndTime:   str(args, "endTime"),
			CreatedAt: now,
		}
		ctx.RecentEvents = pushFront(ctx.RecentEvents, ev, maxRecentEvents)
		ctx.CurrentFocus = &Focus{Type: FocusEvent, ID: ev.ID, Title: ev.Title, Timestamp: now}

	case "create_list":
		if !ok {
			return
		}
		l := RecentList{
			ID:        ExtractID(resultText(result)),
			Name:      str(args, "name"),
			CreatedAt: now,
		}
		ctx.RecentLists = pushFront(ctx.RecentLists, l, maxRecentLists)
		ctx.CurrentFocus = &Focus{Type: FocusList, ID: l.ID, Title: l.Name, Timestamp: now}

	case "create_item":
		if !ok {
			return
		}
		it := RecentItem{
			ID:        ExtractID(resultText(result)),
			Content:   str(args, "content"),
			ListID:    str(args, "listId"),
			CreatedAt: now,
		}
		ctx.RecentItems = pushFront(ctx.RecentItems, it, maxRecentItems)

	case "get_events":
		for _, key := range []string{"calendarId", "ownerId"} {
			if v := str(args, key); v != "" {
				ctx.UserPreferences[key] = v
			}
		}

	case "assign_list_to_event":
		ctx.CurrentFocus = &Focus{
			Type:      FocusRelationship,
			EventID:   str(args, "eventId"),
			ListID:    str(args, "listId"),
			Timestamp: now,
		}
	}
}

func pushFront[T any](list []T, v T, limit int) []T {
	out := make([]T, 0, min(len(list)+1, limit))
	out = append(out, v)
	for _, existing := range list {
		if len(out) == limit {
			break
		}
		out = append(out, existing)
	}
	return out
}

// sanitizeArguments copies arguments before storage. No field is redacted yet.
func sanitizeArguments(args map[string]any) map[string]any {
	return copyMap(args)
}

// sanitizeResult keeps only the shape of structured results.
func sanitizeResult(result any) any {
	switch r := result.(type) {
	case Result:
		return map[string]any{"type": "text", "hasContent": r.Text != ""}
	case *Result:
		if r == nil {
			return nil
		}
		return map[string]any{"type": "text", "hasContent": r.Text != ""}
	case error:
		return r.Error()
	}
	return result
}

func succeeded(result any) bool {
	switch r := result.(type) {
	case nil:
		return false
	case Result:
		return !r.IsError
	case *Result:
		return r != nil && !r.IsError
	case error:
		return false
	case string:
		return !strings.HasPrefix(strings.ToLower(r), "error")
	}
	return true
}

func resultText(result any) string {
	switch r := result.(type) {
	case Result:
		return r.Text
	case *Result:
		if r != nil {
			return r.Text
		}
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	}
	return ""
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func str(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
