package memory

import (
	"fmt"
	"unicode/utf8"
)

const itemPreviewLen = 50

// ConversationContext is the compact view handed back to callers.
type ConversationContext struct {
	SessionID          string            `json:"sessionId"`
	CurrentFocus       *Focus            `json:"currentFocus"`
	RecentInteractions []string          `json:"recentInteractions"`
	Preferences        map[string]string `json:"userPreferences"`
	Recent             RecentSummary     `json:"recent"`
}

type RecentSummary struct {
	Events []EntityRef `json:"events"`
	Lists  []EntityRef `json:"lists"`
	Items  []EntityRef `json:"items"`
}

// EntityRef carries an id and a display label (title, name or content).
type EntityRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ConversationContext summarises the newest limit interactions of a session.
func (e *Engine) ConversationContext(sessionID string, limit int) ConversationContext {
	e.mu.Lock()
	s := e.sessionLocked(sessionID).clone()
	e.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	out := ConversationContext{
		SessionID:          sessionID,
		CurrentFocus:       s.Context.CurrentFocus,
		RecentInteractions: []string{},
		Preferences:        s.Context.UserPreferences,
		Recent: RecentSummary{
			Events: []EntityRef{},
			Lists:  []EntityRef{},
			Items:  []EntityRef{},
		},
	}

	for i, in := range s.Interactions {
		if i == limit {
			break
		}
		out.RecentInteractions = append(out.RecentInteractions, summarize(in))
	}
	for _, ev := range s.Context.RecentEvents {
		out.Recent.Events = append(out.Recent.Events, EntityRef{ID: ev.ID, Label: ev.Title})
	}
	for _, l := range s.Context.RecentLists {
		out.Recent.Lists = append(out.Recent.Lists, EntityRef{ID: l.ID, Label: l.Name})
	}
	for _, it := range s.Context.RecentItems {
		out.Recent.Items = append(out.Recent.Items, EntityRef{ID: it.ID, Label: truncate(it.Content, itemPreviewLen)})
	}
	return out
}

// summarize renders one interaction as a single line.
func summarize(in Interaction) string {
	a := in.Arguments
	var line string
	switch in.Operation {
	case "create_event":
		line = fmt.Sprintf("Created event %q", str(a, "title"))
		if start := str(a, "startTime"); start != "" {
			line += " at " + start
		}
	case "update_event":
		line = "Updated event " + str(a, "eventId")
	case "delete_event":
		line = "Deleted event " + str(a, "eventId")
	case "create_list":
		line = fmt.Sprintf("Created list %q", str(a, "name"))
	case "update_list":
		line = "Updated list " + str(a, "listId")
	case "delete_list":
		line = "Deleted list " + str(a, "listId")
		if v, _ := a["deleteItems"].(bool); v {
			line += " and its items"
		}
	case "create_item":
		line = fmt.Sprintf("Added item %q", truncate(str(a, "content"), itemPreviewLen))
		if list := str(a, "listId"); list != "" {
			line += " to list " + list
		}
	case "update_item":
		line = "Updated item " + str(a, "itemId")
	case "delete_item":
		line = "Deleted item " + str(a, "itemId")
	case "get_events":
		line = "Searched events"
		if cal := str(a, "calendarId"); cal != "" {
			line += " in calendar " + cal
		}
	case "get_lists":
		line = "Browsed lists"
	case "get_items":
		line = "Browsed items"
		if list := str(a, "listId"); list != "" {
			line += " of list " + list
		}
	case "get_event_with_list_and_items":
		line = "Viewed event " + str(a, "eventId") + " with its list"
	case "assign_list_to_event":
		line = fmt.Sprintf("Assigned list %s to event %s", str(a, "listId"), str(a, "eventId"))
	case "unassign_list_from_event":
		line = "Removed the list from event " + str(a, "eventId")
	case "confirm_operation":
		line = "Answered a confirmation prompt"
	case "get_context":
		line = "Reviewed conversation context"
	default:
		line = fmt.Sprintf("%s with %d argument(s)", in.Operation, len(a))
	}
	return in.Timestamp.Format("2006-01-02 15:04") + " " + line
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
