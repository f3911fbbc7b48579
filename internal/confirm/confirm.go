// Package confirm holds writes until the caller approves them.
package confirm

import (
	"context"

	"github.com/felixgeelhaar/agenda/internal/apperr"
)

// Executor applies an approved operation.
type Executor interface {
	Execute(ctx context.Context, operation string, args map[string]any) (string, error)
}

// Request carries the confirmation signals a caller may supply.
type Request struct {
	OperationID string
	Confirm     *bool
	Response    string
}

// RequestFromArgs reads confirm_operation arguments.
func RequestFromArgs(args map[string]any) Request {
	var req Request
	if v, ok := args["operationId"].(string); ok {
		req.OperationID = v
	}
	if v, ok := args["confirm"].(bool); ok {
		req.Confirm = &v
	}
	if v, ok := args["response"].(string); ok {
		req.Response = v
	}
	return req
}

// Status is the terminal state reached by a resolved request.
type Status string

const (
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
)

// Outcome describes what happened to the resolved pending operation.
type Outcome struct {
	Status  Status
	Pending PendingOperation
	Result  string
	Text    string
}

// Machine resolves confirmation requests against a PendingStore.
type Machine struct {
	pending *PendingStore
	exec    Executor
}

func NewMachine(pending *PendingStore, exec Executor) *Machine {
	return &Machine{pending: pending, exec: exec}
}

func (m *Machine) Pending() *PendingStore {
	return m.pending
}

// Resolve finds the pending entry named by req, removes it, and then either
// executes or cancels it. A second resolution of the same entry fails.
// When execution fails the returned Outcome still names the entry.
func (m *Machine) Resolve(ctx context.Context, req Request) (Outcome, error) {
	var (
		op     PendingOperation
		affirm bool
	)

	switch {
	case req.Response != "" && req.OperationID == "":
		if !m.pending.HasAlias() {
			return Outcome{}, apperr.InvalidRequest("no pending operation to confirm")
		}
		intent := Classify(req.Response)
		if intent == Unrecognized {
			return Outcome{}, apperr.InvalidRequest("could not understand %q; reply yes to proceed or no to cancel", req.Response)
		}
		var ok bool
		if op, ok = m.pending.TakeLatest(); !ok {
			return Outcome{}, apperr.InvalidRequest("pending operation not found or expired")
		}
		affirm = intent == Affirm

	case req.OperationID != "":
		affirm = req.Confirm == nil || *req.Confirm
		if req.Confirm == nil && req.Response != "" {
			intent := Classify(req.Response)
			if intent == Unrecognized {
				return Outcome{}, apperr.InvalidRequest("could not understand %q; reply yes to proceed or no to cancel", req.Response)
			}
			affirm = intent == Affirm
		}
		var ok bool
		if op, ok = m.pending.Take(req.OperationID); !ok {
			return Outcome{}, apperr.InvalidRequest("operation %s not found or expired", req.OperationID)
		}

	case req.Confirm != nil:
		latest, ok := m.pending.Latest()
		if !ok {
			return Outcome{}, apperr.InvalidRequest("no pending operation to confirm")
		}
		if op, ok = m.pending.Take(latest.ID); !ok {
			return Outcome{}, apperr.InvalidRequest("operation %s not found or expired", latest.ID)
		}
		affirm = *req.Confirm

	default:
		return Outcome{}, apperr.InvalidRequest("provide operationId, confirm or response")
	}

	if !affirm {
		return Outcome{
			Status:  StatusCancelled,
			Pending: op,
			Text:    "Operation cancelled: " + op.Operation,
		}, nil
	}

	result, err := m.exec.Execute(ctx, op.Operation, op.Arguments)
	out := Outcome{Status: StatusExecuted, Pending: op, Result: result}
	if err != nil {
		return out, err
	}
	out.Text = "Operation confirmed and executed:\n\n" + result
	return out, nil
}
