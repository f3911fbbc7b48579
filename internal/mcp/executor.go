package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/agenda/internal/apperr"
	"github.com/felixgeelhaar/agenda/internal/observe"
	"github.com/felixgeelhaar/agenda/internal/store"
)

// Executor applies operations to the data store and formats the result text.
// Creation results always carry "ID: <hex>" so callers can pick the id up.
type Executor struct {
	store   *store.Store
	observe *observe.Observer
}

func NewExecutor(s *store.Store, o *observe.Observer) *Executor {
	if o == nil {
		o = observe.Nop()
	}
	return &Executor{store: s, observe: o}
}

type handler func(e *Executor, ctx context.Context, args map[string]any) (string, error)

var handlers = map[string]handler{
	"get_events":                    (*Executor).getEvents,
	"get_lists":                     (*Executor).getLists,
	"get_items":                     (*Executor).getItems,
	"get_event_with_list_and_items": (*Executor).getEventWithListAndItems,
	"create_event":                  (*Executor).createEvent,
	"update_event":                  (*Executor).updateEvent,
	"delete_event":                  (*Executor).deleteEvent,
	"create_list":                   (*Executor).createList,
	"update_list":                   (*Executor).updateList,
	"delete_list":                   (*Executor).deleteList,
	"create_item":                   (*Executor).createItem,
	"update_item":                   (*Executor).updateItem,
	"delete_item":                   (*Executor).deleteItem,
	"assign_list_to_event":          (*Executor).assignListToEvent,
	"unassign_list_from_event":      (*Executor).unassignListFromEvent,
}

// Supports reports whether the executor knows the operation.
func (e *Executor) Supports(operation string) bool {
	_, ok := handlers[operation]
	return ok
}

// Execute runs one operation against the store.
func (e *Executor) Execute(ctx context.Context, operation string, args map[string]any) (string, error) {
	ctx, span := e.observe.StartSpan(ctx, "Executor.Execute", operation)
	defer span.End()

	h, ok := handlers[operation]
	if !ok {
		return "", apperr.MethodNotFound(operation)
	}
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	text, err := h(e, ctx, args)
	if err != nil {
		e.observe.Log().Warn().Str("operation", operation).Str("code", string(apperr.CodeOf(err))).Err(err).Msg("operation failed")
		return "", err
	}
	e.observe.Log().Info().Str("operation", operation).Int("durationMs", int(time.Since(start).Milliseconds())).Msg("operation executed")
	return text, nil
}

// Events

func (e *Executor) getEvents(ctx context.Context, args map[string]any) (string, error) {
	f := store.Where()
	if v := str(args, "title"); v != "" {
		f = f.Contains("title", v)
	}
	if v := str(args, "calendarId"); v != "" {
		f = f.Eq("calendarId", v)
	}
	if v := str(args, "ownerId"); v != "" {
		f = f.Eq("ownerId", v)
	}
	from, err := optTime(args, "startAfter")
	if err != nil {
		return "", err
	}
	to, err := optTime(args, "startBefore")
	if err != nil {
		return "", err
	}
	if from != nil || to != nil {
		f = f.Between("startTime", from, to)
	}
	if n, ok := num(args, "limit"); ok && n > 0 {
		f = f.WithLimit(n)
	}

	events, err := e.store.Events.Find(ctx, f)
	if err != nil {
		return "", storeErr(err, "search events")
	}
	if len(events) == 0 {
		return "No events found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d event(s):\n", len(events))
	for _, ev := range events {
		sb.WriteString("\n")
		sb.WriteString(formatEvent(ev))
	}
	return sb.String(), nil
}

func (e *Executor) getEventWithListAndItems(ctx context.Context, args map[string]any) (string, error) {
	id := str(args, "eventId")
	ev, err := e.store.Events.FindByID(ctx, id)
	if err != nil {
		return "", notFound(err, "event", id)
	}

	var sb strings.Builder
	sb.WriteString(formatEvent(ev))
	if ev.ListID == "" {
		sb.WriteString("\n\nNo list assigned.")
		return sb.String(), nil
	}

	list, err := e.store.Lists.FindByID(ctx, ev.ListID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(&sb, "\n\nNo list assigned (list %s no longer exists).", ev.ListID)
		return sb.String(), nil
	}
	if err != nil {
		return "", storeErr(err, "load list")
	}
	items, err := e.store.Items.Find(ctx, store.Where().Eq("listId", list.ID))
	if err != nil {
		return "", storeErr(err, "load items")
	}

	sb.WriteString("\n\nList:\n")
	sb.WriteString(formatList(list))
	sb.WriteString("\n")
	sb.WriteString(formatItems(items))
	return sb.String(), nil
}

func (e *Executor) createEvent(ctx context.Context, args map[string]any) (string, error) {
	ev := &store.Event{}
	if err := ev.Apply(patch(args, "title", "description", "startTime", "endTime", "location", "calendarId", "ownerId")); err != nil {
		return "", invalid(err)
	}
	if ev.Title == "" || ev.StartTime.IsZero() || ev.EndTime.IsZero() {
		return "", apperr.InvalidRequest("create_event requires title, startTime and endTime")
	}
	created, err := e.store.Events.Create(ctx, ev)
	if err != nil {
		return "", storeErr(err, "create event")
	}
	return "Event created successfully.\n\n" + formatEvent(created), nil
}

func (e *Executor) updateEvent(ctx context.Context, args map[string]any) (string, error) {
	id := str(args, "eventId")
	p := patch(args, "title", "description", "startTime", "endTime", "location", "calendarId")
	if len(p) == 0 {
		return "", apperr.InvalidRequest("update_event: nothing to update")
	}
	updated, err := e.store.Events.UpdateByID(ctx, id, p)
	if err != nil {
		return "", notFound(err, "event", id)
	}
	return "Event updated successfully.\n\n" + formatEvent(updated), nil
}

func (e *Executor) deleteEvent(ctx context.Context, args map[string]any) (string, error) {
	id := str(args, "eventId")
	ev, err := e.store.Events.DeleteByID(ctx, id)
	if err != nil {
		return "", notFound(err, "event", id)
	}
	if ev.ListID != "" {
		if err := e.detachList(ctx, ev.ListID); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Event %q deleted.\nID: %s", ev.Title, ev.ID), nil
}

// Lists

func (e *Executor) getLists(ctx context.Context, args map[string]any) (string, error) {
	f := store.Where()
	if v := str(args, "name"); v != "" {
		f = f.Contains("name", v)
	}
	if v := str(args, "ownerId"); v != "" {
		f = f.Eq("ownerId", v)
	}
	if v := str(args, "eventId"); v != "" {
		f = f.Eq("eventId", v)
	}
	lists, err := e.store.Lists.Find(ctx, f)
	if err != nil {
		return "", storeErr(err, "search lists")
	}
	if len(lists) == 0 {
		return "No lists found.", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d list(s):\n", len(lists))
	for _, l := range lists {
		sb.WriteString("\n")
		sb.WriteString(formatList(l))
	}
	return sb.String(), nil
}

func (e *Executor) createList(ctx context.Context, args map[string]any) (string, error) {
	l := &store.List{}
	if err := l.Apply(patch(args, "name", "description", "ownerId")); err != nil {
		return "", invalid(err)
	}
	if l.Name == "" {
		return "", apperr.InvalidRequest("create_list requires name")
	}
	created, err := e.store.Lists.Create(ctx, l)
	if err != nil {
		return "", storeErr(err, "create list")
	}
	return "List created successfully.\n\n" + formatList(created), nil
}

func (e *Executor) updateList(ctx context.Context, args map[string]any) (string, error) {
	id := str(args, "listId")
	p := patch(args, "name", "description")
	if len(p) == 0 {
		return "", apperr.InvalidRequest("update_list: nothing to update")
	}
	updated, err := e.store.Lists.UpdateByID(ctx, id, p)
	if err != nil {
		return "", notFound(err, "list", id)
	}
	return "List updated successfully.\n\n" + formatList(updated), nil
}

func (e *Executor) deleteList(ctx context.Context, args map[string]any) (string, error) {
	id := str(args, "listId")
	list, err := e.store.Lists.FindByID(ctx, id)
	if err != nil {
		return "", notFound(err, "list", id)
	}

	removedItems := 0
	if deleteItems, _ := args["deleteItems"].(bool); deleteItems {
		removedItems, err = e.store.Items.DeleteMany(ctx, store.Where().Eq("listId", id))
		if err != nil {
			return "", storeErr(err, "delete items")
		}
	}

	owners, err := e.store.Events.Find(ctx, store.Where().Eq("listId", id))
	if err != nil {
		return "", storeErr(err, "find events")
	}
	for _, ev := range owners {
		if _, err := e.store.Events.UpdateByID(ctx, ev.ID, store.Patch{"listId": ""}); err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", storeErr(err, "unassign list")
		}
	}

	if _, err := e.store.Lists.DeleteByID(ctx, id); err != nil {
		return "", notFound(err, "list", id)
	}

	text := fmt.Sprintf("List %q deleted.\nID: %s", list.Name, list.ID)
	if removedItems > 0 {
		text += fmt.Sprintf("\nDeleted %d item(s).", removedItems)
	}
	return text, nil
}

// Items

func (e *Executor) getItems(ctx context.Context, args map[string]any) (string, error) {
	f := store.Where()
	if v := str(args, "listId"); v != "" {
		f = f.Eq("listId", v)
	}
	if v := str(args, "content"); v != "" {
		f = f.Contains("content", v)
	}
	if v, ok := args["completed"].(bool); ok {
		f = f.Eq("completed", v)
	}
	items, err := e.store.Items.Find(ctx, f)
	if err != nil {
		return "", storeErr(err, "search items")
	}
	return formatItems(items), nil
}

func (e *Executor) createItem(ctx context.Context, args map[string]any) (string, error) {
	it := &store.Item{}
	if err := it.Apply(patch(args, "content", "listId", "completed", "dueDate")); err != nil {
		return "", invalid(err)
	}
	if it.Content == "" {
		return "", apperr.InvalidRequest("create_item requires content")
	}
	if it.ListID != "" {
		if _, err := e.store.Lists.FindByID(ctx, it.ListID); err != nil {
			return "", notFound(err, "list", it.ListID)
		}
	}
	created, err := e.store.Items.Create(ctx, it)
	if err != nil {
		return "", storeErr(err, "create item")
	}
	return "Item created successfully.\n\n" + formatItem(created), nil
}

func (e *Executor) updateItem(ctx context.Context, args map[string]any) (string, error) {
	id := str(args, "itemId")
	p := patch(args, "content", "completed", "dueDate")
	if len(p) == 0 {
		return "", apperr.InvalidRequest("update_item: nothing to update")
	}
	updated, err := e.store.Items.UpdateByID(ctx, id, p)
	if err != nil {
		return "", notFound(err, "item", id)
	}
	return "Item updated successfully.\n\n" + formatItem(updated), nil
}

func (e *Executor) deleteItem(ctx context.Context, args map[string]any) (string, error) {
	id := str(args, "itemId")
	it, err := e.store.Items.DeleteByID(ctx, id)
	if err != nil {
		return "", notFound(err, "item", id)
	}
	return fmt.Sprintf("Item %q deleted.\nID: %s", it.Content, it.ID), nil
}

// Relationships

func (e *Executor) assignListToEvent(ctx context.Context, args map[string]any) (string, error) {
	eventID, listID := str(args, "eventId"), str(args, "listId")
	ev, err := e.store.Events.FindByID(ctx, eventID)
	if err != nil {
		return "", notFound(err, "event", eventID)
	}
	list, err := e.store.Lists.FindByID(ctx, listID)
	if err != nil {
		return "", notFound(err, "list", listID)
	}

	// One list per event and one event per list: release previous partners.
	if ev.ListID != "" && ev.ListID != listID {
		if err := e.detachList(ctx, ev.ListID); err != nil {
			return "", err
		}
	}
	if list.EventID != "" && list.EventID != eventID {
		if _, err := e.store.Events.UpdateByID(ctx, list.EventID, store.Patch{"listId": ""}); err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", storeErr(err, "unassign list")
		}
	}

	if _, err := e.store.Events.UpdateByID(ctx, eventID, store.Patch{"listId": listID}); err != nil {
		return "", notFound(err, "event", eventID)
	}
	if _, err := e.store.Lists.UpdateByID(ctx, listID, store.Patch{"eventId": eventID}); err != nil {
		return "", notFound(err, "list", listID)
	}
	return fmt.Sprintf("List %q assigned to event %q.\nEvent ID: %s\nList ID: %s", list.Name, ev.Title, eventID, listID), nil
}

func (e *Executor) unassignListFromEvent(ctx context.Context, args map[string]any) (string, error) {
	eventID := str(args, "eventId")
	ev, err := e.store.Events.FindByID(ctx, eventID)
	if err != nil {
		return "", notFound(err, "event", eventID)
	}
	if ev.ListID == "" {
		return fmt.Sprintf("Event %q has no list assigned.", ev.Title), nil
	}
	if _, err := e.store.Events.UpdateByID(ctx, eventID, store.Patch{"listId": ""}); err != nil {
		return "", notFound(err, "event", eventID)
	}
	if err := e.detachList(ctx, ev.ListID); err != nil {
		return "", err
	}
	return fmt.Sprintf("List %s removed from event %q.", ev.ListID, ev.Title), nil
}

func (e *Executor) detachList(ctx context.Context, listID string) error {
	_, err := e.store.Lists.UpdateByID(ctx, listID, store.Patch{"eventId": ""})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeErr(err, "unassign list")
	}
	return nil
}
