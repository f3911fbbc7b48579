package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/agenda/internal/apperr"
	"github.com/felixgeelhaar/agenda/internal/confirm"
	"github.com/felixgeelhaar/agenda/internal/guard"
	"github.com/felixgeelhaar/agenda/internal/memory"
	"github.com/felixgeelhaar/agenda/internal/observe"
)

const contextLimit = 10

// Response is what a caller sees for one operation.
type Response struct {
	Text string
	// OperationID is set when the call queued a write for confirmation.
	OperationID string
	Suggestions []string
}

// Pending reports whether the call is waiting for confirmation.
func (r Response) Pending() bool {
	return r.OperationID != ""
}

// Runtime routes operations through the guard, the confirmation machine and
// the memory engine.
type Runtime struct {
	registry *Registry
	exec     confirm.Executor
	pending  *confirm.PendingStore
	machine  *confirm.Machine
	memory   *memory.Engine
	guard    *guard.Guard
	observe  *observe.Observer
	bus      *EventBus
}

func New(exec confirm.Executor, p *confirm.PendingStore, m *memory.Engine, g *guard.Guard, o *observe.Observer) *Runtime {
	return &Runtime{
		registry: DefaultRegistry(),
		exec:     exec,
		pending:  p,
		machine:  confirm.NewMachine(p, exec),
		memory:   m,
		guard:    g,
		observe:  o,
		bus:      NewEventBus(),
	}
}

func (r *Runtime) Registry() *Registry            { return r.registry }
func (r *Runtime) Events() *EventBus              { return r.bus }
func (r *Runtime) Memory() *memory.Engine         { return r.memory }
func (r *Runtime) Pending() *confirm.PendingStore { return r.pending }

// Call runs one named operation for a session.
func (r *Runtime) Call(ctx context.Context, sessionID, operation string, args map[string]any) (Response, error) {
	ctx, span := r.observe.StartSpan(ctx, "Runtime.Call", operation)
	defer span.End()

	if args == nil {
		args = map[string]any{}
	}
	log := r.observe.Log().With().Str("sessionID", sessionID).Str("operation", operation).Logger()

	def, ok := r.registry.Get(operation)
	if !ok || !r.supports(operation) {
		return Response{}, apperr.MethodNotFound(operation)
	}
	if v := r.guard.CheckOperation(operation, def.ReadOnly); v != nil {
		log.Warn().Str("rule", v.Rule).Msg("operation blocked by policy")
		r.bus.PublishWithData(EventGuardViolation, sessionID, map[string]any{"operation": operation, "rule": v.Rule})
		return Response{}, apperr.InvalidRequest("%s", v.Message)
	}
	if err := r.registry.Validate(operation, args); err != nil {
		// Hints that fill a missing argument travel with the rejection.
		if s := r.memory.Suggestions(sessionID, operation, args); len(s) > 0 && apperr.Is(err, apperr.CodeInvalidRequest) {
			return Response{Suggestions: s}, apperr.InvalidRequest("%s", withSuggestions(apperr.MessageOf(err), s))
		}
		return Response{}, err
	}

	switch {
	case operation == "confirm_operation":
		return r.confirm(ctx, sessionID, args)
	case operation == "get_context":
		return r.conversationContext(sessionID, args)
	case def.ReadOnly:
		return r.read(ctx, sessionID, operation, args)
	}
	return r.queue(sessionID, operation, args)
}

// supporter is implemented by executors that can report which operations
// they handle.
type supporter interface {
	Supports(operation string) bool
}

// supports reports whether the executor can run operation. Operations the
// runtime answers itself never reach the executor.
func (r *Runtime) supports(operation string) bool {
	switch operation {
	case "confirm_operation", "get_context":
		return true
	}
	s, ok := r.exec.(supporter)
	return !ok || s.Supports(operation)
}

func (r *Runtime) read(ctx context.Context, sessionID, operation string, args map[string]any) (Response, error) {
	suggestions := r.memory.Suggestions(sessionID, operation, args)

	text, err := r.exec.Execute(ctx, operation, args)
	if err != nil {
		r.record(sessionID, operation, args, err, nil)
		return Response{}, err
	}
	r.record(sessionID, operation, args, memory.Result{Text: text}, nil)

	return Response{Text: withSuggestions(text, suggestions), Suggestions: suggestions}, nil
}

func (r *Runtime) queue(sessionID, operation string, args map[string]any) (Response, error) {
	if v := r.guard.CheckPending(r.pending.Len()); v != nil {
		r.bus.PublishWithData(EventGuardViolation, sessionID, map[string]any{"operation": operation, "rule": v.Rule})
		return Response{}, apperr.InvalidRequest("%s", v.Message)
	}

	suggestions := r.memory.Suggestions(sessionID, operation, args)
	p := r.pending.Create(operation, args)

	r.observe.Log().Info().Str("sessionID", sessionID).Str("operation", operation).Str("operationID", p.ID).Msg("write queued for confirmation")
	r.bus.PublishWithData(EventOperationPending, sessionID, map[string]any{"operation": operation, "operationID": p.ID})

	var sb strings.Builder
	sb.WriteString("Confirmation required: ")
	sb.WriteString(r.registry.Summarize(operation, args))
	sb.WriteString("\n\nOperation ID: ")
	sb.WriteString(p.ID)
	fmt.Fprintf(&sb, "\nReply yes or no, or call confirm_operation with {\"operationId\": %q, \"confirm\": true}.", p.ID)

	return Response{
		Text:        withSuggestions(sb.String(), suggestions),
		OperationID: p.ID,
		Suggestions: suggestions,
	}, nil
}

func (r *Runtime) confirm(ctx context.Context, sessionID string, args map[string]any) (Response, error) {
	out, err := r.machine.Resolve(ctx, confirm.RequestFromArgs(args))
	if out.Pending.ID == "" {
		return Response{}, err
	}

	log := r.observe.Log().With().Str("sessionID", sessionID).Str("operation", out.Pending.Operation).Str("operationID", out.Pending.ID).Logger()
	extra := map[string]any{"operationId": out.Pending.ID}

	if out.Status == confirm.StatusCancelled {
		extra["cancelledOperation"] = out.Pending.Operation
		r.record(sessionID, "confirm_operation", args, memory.Result{Text: out.Text}, extra)
		log.Info().Msg("pending write cancelled")
		r.bus.PublishWithData(EventOperationCancelled, sessionID, map[string]any{"operation": out.Pending.Operation, "operationID": out.Pending.ID})
		return Response{Text: out.Text}, nil
	}

	r.bus.PublishWithData(EventOperationConfirmed, sessionID, map[string]any{"operation": out.Pending.Operation, "operationID": out.Pending.ID})
	extra["confirmed"] = true
	if err != nil {
		r.record(sessionID, out.Pending.Operation, out.Pending.Arguments, err, extra)
		log.Warn().Err(err).Msg("confirmed write failed")
		r.bus.PublishWithData(EventOperationFailed, sessionID, map[string]any{"operation": out.Pending.Operation, "operationID": out.Pending.ID, "error": err.Error()})
		return Response{}, err
	}

	r.record(sessionID, out.Pending.Operation, out.Pending.Arguments, memory.Result{Text: out.Result}, extra)
	log.Info().Msg("confirmed write executed")
	r.bus.PublishWithData(EventOperationExecuted, sessionID, map[string]any{"operation": out.Pending.Operation, "operationID": out.Pending.ID})
	return Response{Text: out.Text}, nil
}

type contextView struct {
	Context     memory.ConversationContext `json:"context"`
	Pending     []confirm.PendingOperation `json:"pendingOperations"`
	Suggestions []string                   `json:"suggestions"`
}

func (r *Runtime) conversationContext(sessionID string, args map[string]any) (Response, error) {
	view := contextView{
		Context:     r.memory.ConversationContext(sessionID, contextLimit),
		Pending:     r.pending.List(),
		Suggestions: []string{},
	}
	if op, _ := args["operation"].(string); op != "" {
		params, _ := args["params"].(map[string]any)
		if s := r.memory.Suggestions(sessionID, op, params); len(s) > 0 {
			view.Suggestions = s
		}
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return Response{}, apperr.Internal(err, "failed to render context")
	}
	text := string(data)
	r.record(sessionID, "get_context", args, memory.Result{Text: text}, nil)
	return Response{Text: text, Suggestions: view.Suggestions}, nil
}

func (r *Runtime) record(sessionID, operation string, args map[string]any, result any, extra map[string]any) {
	r.memory.RecordInteraction(sessionID, operation, args, result, extra)
	r.bus.PublishWithData(EventInteraction, sessionID, map[string]any{"operation": operation})
}

// ExpirePending drops pending writes older than ttl.
func (r *Runtime) ExpirePending(ttl time.Duration) int {
	expired := r.pending.Sweep(ttl)
	if len(expired) > 0 {
		r.observe.Log().Info().Int("expired", len(expired)).Msg("pending operations expired")
		r.bus.PublishWithData(EventOperationsExpired, "", map[string]any{"operationIDs": expired})
	}
	return len(expired)
}

// CleanupSessions evicts sessions idle for longer than maxAge.
func (r *Runtime) CleanupSessions(maxAge time.Duration) int {
	n := r.memory.Cleanup(maxAge)
	if n > 0 {
		r.bus.PublishWithData(EventSessionsEvicted, "", map[string]any{"evicted": n})
	}
	return n
}

// Shutdown evicts stale sessions, flushes memory and drops pending writes.
func (r *Runtime) Shutdown(maxAge time.Duration) error {
	r.CleanupSessions(maxAge)
	dropped := r.pending.Clear()
	if dropped > 0 {
		r.observe.Log().Info().Int("dropped", dropped).Msg("pending operations discarded on shutdown")
	}
	if err := r.memory.Save(); err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

func withSuggestions(text string, suggestions []string) string {
	if len(suggestions) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\nSuggestions:")
	for _, s := range suggestions {
		sb.WriteString("\n- ")
		sb.WriteString(s)
	}
	return sb.String()
}
