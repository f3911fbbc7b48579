// Package mcp exposes agenda operations as MCP tools and applies them to the
// data store.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/felixgeelhaar/agenda/internal/apperr"
	"github.com/felixgeelhaar/agenda/internal/observe"
	"github.com/felixgeelhaar/agenda/internal/runtime"
)

// Caller is the slice of the runtime the server needs.
type Caller interface {
	Call(ctx context.Context, sessionID, operation string, args map[string]any) (runtime.Response, error)
	Registry() *runtime.Registry
}

// Server wraps the MCP server around the agenda runtime.
type Server struct {
	rt        Caller
	sessionID string
	observe   *observe.Observer
	server    *mcp.Server
}

// NewServer creates an MCP server whose tool calls all belong to sessionID.
func NewServer(rt Caller, sessionID, version string, o *observe.Observer) *Server {
	if o == nil {
		o = observe.Nop()
	}
	s := &Server{rt: rt, sessionID: sessionID, observe: o}

	impl := &mcp.Implementation{
		Name:    "agenda",
		Version: version,
	}
	s.server = mcp.NewServer(impl, nil)
	s.registerTools()
	return s
}

// MCP returns the underlying server, e.g. to connect other transports.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves on stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Tool arguments.

type GetEventsArgs struct {
	Title       string `json:"title,omitempty" jsonschema:"Case-insensitive substring of the event title"`
	CalendarID  string `json:"calendarId,omitempty" jsonschema:"Only events in this calendar"`
	OwnerID     string `json:"ownerId,omitempty" jsonschema:"Only events owned by this user"`
	StartAfter  string `json:"startAfter,omitempty" jsonschema:"RFC 3339 lower bound (inclusive) on start time"`
	StartBefore string `json:"startBefore,omitempty" jsonschema:"RFC 3339 upper bound (inclusive) on start time"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of events to return"`
}

type GetListsArgs struct {
	Name    string `json:"name,omitempty" jsonschema:"Case-insensitive substring of the list name"`
	OwnerID string `json:"ownerId,omitempty" jsonschema:"Only lists owned by this user"`
	EventID string `json:"eventId,omitempty" jsonschema:"Only the list assigned to this event"`
}

type GetItemsArgs struct {
	ListID    string `json:"listId,omitempty" jsonschema:"Only items of this list"`
	Content   string `json:"content,omitempty" jsonschema:"Case-insensitive substring of the item text"`
	Completed *bool  `json:"completed,omitempty" jsonschema:"Only completed (true) or open (false) items"`
}

type EventIDArgs struct {
	EventID string `json:"eventId" jsonschema:"Event identifier"`
}

type GetContextArgs struct {
	Operation string         `json:"operation,omitempty" jsonschema:"Operation you are about to call, for suggestions"`
	Params    map[string]any `json:"params,omitempty" jsonschema:"Arguments you are about to pass"`
}

type ConfirmArgs struct {
	OperationID string `json:"operationId,omitempty" jsonschema:"Pending operation id from the confirmation prompt"`
	Confirm     *bool  `json:"confirm,omitempty" jsonschema:"true to execute, false to cancel"`
	Response    string `json:"response,omitempty" jsonschema:"Free-text reply such as yes or no; applies to the most recent pending write"`
}

type CreateEventArgs struct {
	Title       string `json:"title" jsonschema:"Event title"`
	StartTime   string `json:"startTime" jsonschema:"RFC 3339 start time"`
	EndTime     string `json:"endTime" jsonschema:"RFC 3339 end time, after startTime"`
	Description string `json:"description,omitempty" jsonschema:"Free text"`
	Location    string `json:"location,omitempty" jsonschema:"Where it happens"`
	CalendarID  string `json:"calendarId,omitempty" jsonschema:"Calendar identifier"`
	OwnerID     string `json:"ownerId,omitempty" jsonschema:"Owner identifier"`
}

type UpdateEventArgs struct {
	EventID     string `json:"eventId" jsonschema:"Event identifier"`
	Title       string `json:"title,omitempty" jsonschema:"New title"`
	Description string `json:"description,omitempty" jsonschema:"New description"`
	StartTime   string `json:"startTime,omitempty" jsonschema:"New RFC 3339 start time"`
	EndTime     string `json:"endTime,omitempty" jsonschema:"New RFC 3339 end time"`
	Location    string `json:"location,omitempty" jsonschema:"New location"`
	CalendarID  string `json:"calendarId,omitempty" jsonschema:"New calendar identifier"`
}

type CreateListArgs struct {
	Name        string `json:"name" jsonschema:"List name"`
	Description string `json:"description,omitempty" jsonschema:"Free text"`
	OwnerID     string `json:"ownerId,omitempty" jsonschema:"Owner identifier"`
}

type UpdateListArgs struct {
	ListID      string `json:"listId" jsonschema:"List identifier"`
	Name        string `json:"name,omitempty" jsonschema:"New name"`
	Description string `json:"description,omitempty" jsonschema:"New description"`
}

type DeleteListArgs struct {
	ListID      string `json:"listId" jsonschema:"List identifier"`
	DeleteItems bool   `json:"deleteItems,omitempty" jsonschema:"Also delete every item of the list"`
}

type CreateItemArgs struct {
	Content   string `json:"content" jsonschema:"Item text"`
	ListID    string `json:"listId,omitempty" jsonschema:"List to add the item to"`
	Completed *bool  `json:"completed,omitempty" jsonschema:"Initial completion state"`
	DueDate   string `json:"dueDate,omitempty" jsonschema:"RFC 3339 due date"`
}

type UpdateItemArgs struct {
	ItemID    string `json:"itemId" jsonschema:"Item identifier"`
	Content   string `json:"content,omitempty" jsonschema:"New text"`
	Completed *bool  `json:"completed,omitempty" jsonschema:"New completion state"`
	DueDate   string `json:"dueDate,omitempty" jsonschema:"New RFC 3339 due date"`
}

type ItemIDArgs struct {
	ItemID string `json:"itemId" jsonschema:"Item identifier"`
}

type AssignArgs struct {
	EventID string `json:"eventId" jsonschema:"Event identifier"`
	ListID  string `json:"listId" jsonschema:"List identifier"`
}

func (s *Server) registerTools() {
	addTool[GetEventsArgs](s, "get_events")
	addTool[GetListsArgs](s, "get_lists")
	addTool[GetItemsArgs](s, "get_items")
	addTool[EventIDArgs](s, "get_event_with_list_and_items")
	addTool[GetContextArgs](s, "get_context")
	addTool[ConfirmArgs](s, "confirm_operation")
	addTool[CreateEventArgs](s, "create_event")
	addTool[UpdateEventArgs](s, "update_event")
	addTool[EventIDArgs](s, "delete_event")
	addTool[CreateListArgs](s, "create_list")
	addTool[UpdateListArgs](s, "update_list")
	addTool[DeleteListArgs](s, "delete_list")
	addTool[CreateItemArgs](s, "create_item")
	addTool[UpdateItemArgs](s, "update_item")
	addTool[ItemIDArgs](s, "delete_item")
	addTool[AssignArgs](s, "assign_list_to_event")
	addTool[EventIDArgs](s, "unassign_list_from_event")
}

// addTool registers name with the description from the operation registry.
// Writes get a note that they only queue a confirmation.
func addTool[A any](s *Server, name string) {
	def, ok := s.rt.Registry().Get(name)
	if !ok {
		panic(fmt.Sprintf("mcp: operation %q is not registered", name))
	}
	desc := def.Description
	if !def.ReadOnly && name != "confirm_operation" {
		desc += ". Returns a confirmation prompt; nothing changes until confirm_operation is called."
	}

	mcp.AddTool(s.server, &mcp.Tool{Name: name, Description: desc},
		func(ctx context.Context, req *mcp.CallToolRequest, args A) (*mcp.CallToolResult, any, error) {
			m, err := toMap(args)
			if err != nil {
				return errorResult(apperr.InvalidRequest("%s: %v", name, err)), nil, nil
			}
			resp, err := s.rt.Call(ctx, s.sessionID, name, m)
			if err != nil {
				s.observe.Log().Warn().Str("operation", name).Str("code", string(apperr.CodeOf(err))).Msg("tool call failed")
				return errorResult(err), nil, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: resp.Text}},
			}, nil, nil
		})
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %s", apperr.CodeOf(err), apperr.MessageOf(err))}},
		IsError: true,
	}
}

// toMap turns typed tool arguments into the generic form the runtime takes.
// Omitted optional fields stay absent.
func toMap(args any) (map[string]any, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
