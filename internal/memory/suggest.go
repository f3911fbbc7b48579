package memory

import "fmt"

// Suggestions inspects the pending call against the session's recent context
// and returns advisory hints. It never creates the session.
func (e *Engine) Suggestions(sessionID, operation string, args map[string]any) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return nil
	}
	ctx := s.Context

	var out []string
	switch operation {
	case "create_item":
		if str(args, "listId") == "" && len(ctx.RecentLists) > 0 {
			l := ctx.RecentLists[0]
			out = append(out, fmt.Sprintf("Add this item to your most recent list %q%s?", l.Name, idSuffix(l.ID)))
		}

	case "assign_list_to_event":
		if str(args, "eventId") == "" && len(ctx.RecentEvents) > 0 {
			ev := ctx.RecentEvents[0]
			out = append(out, fmt.Sprintf("Assign the list to your most recent event %q%s?", ev.Title, idSuffix(ev.ID)))
		}
		if str(args, "listId") == "" && len(ctx.RecentLists) > 0 {
			l := ctx.RecentLists[0]
			out = append(out, fmt.Sprintf("Use your most recent list %q%s?", l.Name, idSuffix(l.ID)))
		}

	case "create_event":
		if cal := ctx.UserPreferences["calendarId"]; cal != "" && str(args, "calendarId") == "" {
			out = append(out, fmt.Sprintf("Use your usual calendar %q?", cal))
		}

	case "create_list":
		if f := ctx.CurrentFocus; f != nil && f.Type == FocusEvent && f.ID != "" {
			out = append(out, fmt.Sprintf("Link this list to event %q (ID: %s) with assign_list_to_event afterwards?", f.Title, f.ID))
		}
	}
	return out
}

func idSuffix(id string) string {
	if id == "" {
		return ""
	}
	return " (ID: " + id + ")"
}
