package runtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/agenda/internal/apperr"
)

// ParamType is the JSON kind an argument must have.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
	TypeNumber  ParamType = "number"
	TypeObject  ParamType = "object"
)

// Param describes one operation argument.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Definition is the static description of an operation.
type Definition struct {
	Name        string
	Description string
	ReadOnly    bool
	Params      []Param
	// Summary renders the one-line confirmation prompt for writes.
	Summary func(args map[string]any) string
}

// Registry maps operation names to their definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry returns a registry holding every agenda operation.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range catalog() {
		_ = r.Register(d)
	}
	return r
}

// Register adds a definition. Names must be unique.
func (r *Registry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return fmt.Errorf("operation name is required")
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("operation %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// ParamType returns the declared type of one argument of operation.
func (r *Registry) ParamType(operation, name string) (ParamType, bool) {
	def, ok := r.Get(operation)
	if !ok {
		return "", false
	}
	for _, p := range def.Params {
		if p.Name == name {
			return p.Type, true
		}
	}
	return "", false
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// IsReadOnly reports whether name is a known read-only operation.
// Unknown names are treated as writes.
func (r *Registry) IsReadOnly(name string) bool {
	def, ok := r.Get(name)
	return ok && def.ReadOnly
}

// Summarize renders the confirmation line for a write. Operations without
// a template fall back to the name followed by the JSON arguments.
func (r *Registry) Summarize(name string, args map[string]any) string {
	if def, ok := r.Get(name); ok && def.Summary != nil {
		return def.Summary(args)
	}
	data, err := json.Marshal(args)
	if err != nil || args == nil {
		data = []byte("{}")
	}
	return fmt.Sprintf("%s %s", name, data)
}

// Validate checks required arguments and argument kinds.
func (r *Registry) Validate(name string, args map[string]any) error {
	def, ok := r.Get(name)
	if !ok {
		return apperr.MethodNotFound(name)
	}
	var missing []string
	for _, p := range def.Params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				missing = append(missing, p.Name)
			}
			continue
		}
		if !kindMatches(p.Type, v) {
			return apperr.InvalidRequest("%s: argument %s must be a %s", name, p.Name, p.Type)
		}
		if s, isStr := v.(string); isStr && p.Required && strings.TrimSpace(s) == "" {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return apperr.InvalidRequest("%s: missing required argument(s): %s", name, strings.Join(missing, ", "))
	}
	return nil
}

func kindMatches(t ParamType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32, json.Number:
			return true
		}
		return false
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}

func arg(args map[string]any, key string) string {
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func opt(args map[string]any, key, format string) string {
	if v := arg(args, key); v != "" {
		return fmt.Sprintf(format, v)
	}
	return ""
}

func changes(args map[string]any, idKey string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		if k != idKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "no changes"
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, ", ")
}

func str(name, desc string, required bool) Param {
	return Param{Name: name, Type: TypeString, Required: required, Description: desc}
}

func catalog() []Definition {
	return []Definition{
		{
			Name:        "get_events",
			Description: "Search events by title, calendar, owner or start time range",
			ReadOnly:    true,
			Params: []Param{
				str("title", "case-insensitive title substring", false),
				str("calendarId", "calendar identifier", false),
				str("ownerId", "owner identifier", false),
				str("startAfter", "RFC 3339 lower bound on start time", false),
				str("startBefore", "RFC 3339 upper bound on start time", false),
				{Name: "limit", Type: TypeNumber, Description: "maximum number of events"},
			},
		},
		{
			Name:        "get_lists",
			Description: "Browse lists by name, owner or event",
			ReadOnly:    true,
			Params: []Param{
				str("name", "case-insensitive name substring", false),
				str("ownerId", "owner identifier", false),
				str("eventId", "event the list is assigned to", false),
			},
		},
		{
			Name:        "get_items",
			Description: "Browse items of a list",
			ReadOnly:    true,
			Params: []Param{
				str("listId", "list identifier", false),
				str("content", "case-insensitive content substring", false),
				{Name: "completed", Type: TypeBoolean, Description: "completion state"},
			},
		},
		{
			Name:        "get_event_with_list_and_items",
			Description: "Show an event together with its assigned list and items",
			ReadOnly:    true,
			Params:      []Param{str("eventId", "event identifier", true)},
		},
		{
			Name:        "get_context",
			Description: "Show conversation context and suggestions for a planned operation",
			ReadOnly:    true,
			Params: []Param{
				str("operation", "operation you are about to call", false),
				{Name: "params", Type: TypeObject, Description: "arguments you are about to pass"},
			},
		},
		{
			Name:        "confirm_operation",
			Description: "Confirm or cancel a pending write by id, flag or free-text reply",
			Params: []Param{
				str("operationId", "pending operation id", false),
				{Name: "confirm", Type: TypeBoolean, Description: "true to execute, false to cancel"},
				str("response", "free-text reply such as yes or no", false),
			},
		},
		{
			Name:        "create_event",
			Description: "Create a calendar event",
			Params: []Param{
				str("title", "event title", true),
				str("startTime", "RFC 3339 start time", true),
				str("endTime", "RFC 3339 end time", true),
				str("description", "free text", false),
				str("location", "where it happens", false),
				str("calendarId", "calendar identifier", false),
				str("ownerId", "owner identifier", false),
			},
			Summary: func(a map[string]any) string {
				return fmt.Sprintf("Create event %q from %s to %s%s%s", arg(a, "title"), arg(a, "startTime"), arg(a, "endTime"),
					opt(a, "location", " at %s"), opt(a, "calendarId", " in calendar %s"))
			},
		},
		{
			Name:        "update_event",
			Description: "Update fields of an event",
			Params: []Param{
				str("eventId", "event identifier", true),
				str("title", "event title", false),
				str("description", "free text", false),
				str("startTime", "RFC 3339 start time", false),
				str("endTime", "RFC 3339 end time", false),
				str("location", "where it happens", false),
				str("calendarId", "calendar identifier", false),
			},
			Summary: func(a map[string]any) string {
				return fmt.Sprintf("Update event %s (%s)", arg(a, "eventId"), changes(a, "eventId"))
			},
		},
		{
			Name:        "delete_event",
			Description: "Delete an event",
			Params:      []Param{str("eventId", "event identifier", true)},
			Summary: func(a map[string]any) string {
				return "Delete event " + arg(a, "eventId")
			},
		},
		{
			Name:        "create_list",
			Description: "Create a list",
			Params: []Param{
				str("name", "list name", true),
				str("description", "free text", false),
				str("ownerId", "owner identifier", false),
			},
			Summary: func(a map[string]any) string {
				return fmt.Sprintf("Create list %q%s", arg(a, "name"), opt(a, "description", ": %s"))
			},
		},
		{
			Name:        "update_list",
			Description: "Update fields of a list",
			Params: []Param{
				str("listId", "list identifier", true),
				str("name", "list name", false),
				str("description", "free text", false),
			},
			Summary: func(a map[string]any) string {
				return fmt.Sprintf("Update list %s (%s)", arg(a, "listId"), changes(a, "listId"))
			},
		},
		{
			Name:        "delete_list",
			Description: "Delete a list, optionally with all of its items",
			Params: []Param{
				str("listId", "list identifier", true),
				{Name: "deleteItems", Type: TypeBoolean, Description: "also delete the list's items"},
			},
			Summary: func(a map[string]any) string {
				if v, _ := a["deleteItems"].(bool); v {
					return fmt.Sprintf("Delete list %s and all of its items", arg(a, "listId"))
				}
				return "Delete list " + arg(a, "listId")
			},
		},
		{
			Name:        "create_item",
			Description: "Add an item, optionally to a list",
			Params: []Param{
				str("content", "item text", true),
				str("listId", "list identifier", false),
				{Name: "completed", Type: TypeBoolean, Description: "completion state"},
				str("dueDate", "RFC 3339 due date", false),
			},
			Summary: func(a map[string]any) string {
				return fmt.Sprintf("Add item %q%s%s", arg(a, "content"), opt(a, "listId", " to list %s"), opt(a, "dueDate", " due %s"))
			},
		},
		{
			Name:        "update_item",
			Description: "Update fields of an item",
			Params: []Param{
				str("itemId", "item identifier", true),
				str("content", "item text", false),
				{Name: "completed", Type: TypeBoolean, Description: "completion state"},
				str("dueDate", "RFC 3339 due date", false),
			},
			Summary: func(a map[string]any) string {
				return fmt.Sprintf("Update item %s (%s)", arg(a, "itemId"), changes(a, "itemId"))
			},
		},
		{
			Name:        "delete_item",
			Description: "Delete an item",
			Params:      []Param{str("itemId", "item identifier", true)},
			Summary: func(a map[string]any) string {
				return "Delete item " + arg(a, "itemId")
			},
		},
		{
			Name:        "assign_list_to_event",
			Description: "Attach a list to an event",
			Params: []Param{
				str("eventId", "event identifier", true),
				str("listId", "list identifier", true),
			},
			Summary: func(a map[string]any) string {
				return fmt.Sprintf("Assign list %s to event %s", arg(a, "listId"), arg(a, "eventId"))
			},
		},
		{
			Name:        "unassign_list_from_event",
			Description: "Detach the list from an event",
			Params:      []Param{str("eventId", "event identifier", true)},
			Summary: func(a map[string]any) string {
				return "Remove the list from event " + arg(a, "eventId")
			},
		},
	}
}
