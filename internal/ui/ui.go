// Package ui holds the console plumbing shared by the interactive and plain
// front ends: the input line parser and the bridge from runtime events.
package ui

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/agenda/internal/runtime"
)

type UI interface {
	UpdateStatus(status string)
	UpdatePending(count int)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string) {}
func (s SilentUI) UpdatePending(count int)    {}
func (s SilentUI) Log(msg string)             {}

// Schema reports the declared type of an operation argument.
type Schema interface {
	ParamType(operation, name string) (runtime.ParamType, bool)
}

// Command is one parsed input line.
type Command struct {
	Operation string
	Args      map[string]any
}

// ParseLine turns a console line into an operation call. Accepted forms:
//
//	get_items {"listId": "L1"}
//	create_item content="Oat milk" listId=L1
//	yes
//
// While a write is pending, any line that does not start with an operation
// name becomes a confirm_operation call carrying the line as the response.
//
// Unquoted key=value values stay strings unless schema declares the argument
// a number or a boolean. A nil schema keeps every value a string.
func ParseLine(line string, pending bool, schema Schema) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("empty input")
	}
	name, rest, _ := strings.Cut(line, " ")
	if !isOperationName(name) {
		if pending {
			return Command{Operation: "confirm_operation", Args: map[string]any{"response": line}}, nil
		}
		return Command{}, fmt.Errorf("expected an operation name, got %q", name)
	}

	rest = strings.TrimSpace(rest)
	args := map[string]any{}
	switch {
	case rest == "":
	case strings.HasPrefix(rest, "{"):
		if err := json.Unmarshal([]byte(rest), &args); err != nil {
			return Command{}, fmt.Errorf("invalid JSON arguments: %w", err)
		}
	default:
		parsed, err := parsePairs(rest, func(key string) runtime.ParamType {
			if schema == nil {
				return runtime.TypeString
			}
			t, _ := schema.ParamType(name, key)
			return t
		})
		if err != nil {
			return Command{}, err
		}
		args = parsed
	}
	return Command{Operation: name, Args: args}, nil
}

// Operation names are lower snake case with at least one underscore, which
// keeps single-word replies such as "yes" out.
func isOperationName(s string) bool {
	if !strings.Contains(s, "_") {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// parsePairs reads key=value pairs. Values may be double quoted; quoted
// values are always strings.
func parsePairs(s string, typeOf func(key string) runtime.ParamType) (map[string]any, error) {
	args := map[string]any{}
	for s = strings.TrimSpace(s); s != ""; s = strings.TrimSpace(s) {
		key, rest, ok := strings.Cut(s, "=")
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("expected key=value, got %q", s)
		}

		var raw string
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("unterminated quote for %s", key)
			}
			raw, _ = strconv.Unquote(quoted)
			s = rest[len(quoted):]
			args[key] = raw
			continue
		}

		raw, s, _ = strings.Cut(rest, " ")
		args[key] = scalar(raw, typeOf(key))
	}
	return args, nil
}

// scalar converts raw to the declared type. Values that do not fit are left
// as strings so validation can name the argument.
func scalar(raw string, t runtime.ParamType) any {
	switch t {
	case runtime.TypeBoolean:
		switch raw {
		case "true":
			return true
		case "false":
			return false
		}
	case runtime.TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f
		}
	}
	return raw
}

// Attach forwards runtime events to u. pending reports how many writes are
// waiting so the display stays current.
func Attach(bus *runtime.EventBus, u UI, pending func() int) {
	bus.SubscribeAll(func(e runtime.Event) {
		if line := Describe(e); line != "" {
			u.Log(line)
		}
		switch e.Type {
		case runtime.EventOperationPending, runtime.EventOperationConfirmed,
			runtime.EventOperationCancelled, runtime.EventOperationsExpired:
			u.UpdatePending(pending())
		}
	})
}

// Describe renders an event as one console line. Interaction records are
// too chatty and render as "".
func Describe(e runtime.Event) string {
	switch e.Type {
	case runtime.EventInteraction:
		return ""
	case runtime.EventOperationsExpired:
		if ids, ok := e.Data["operationIDs"].([]string); ok {
			return fmt.Sprintf("· %d pending operation(s) expired", len(ids))
		}
	case runtime.EventSessionsEvicted:
		return fmt.Sprintf("· evicted %v idle session(s)", e.Data["evicted"])
	}

	line := "· " + strings.ReplaceAll(string(e.Type), "_", " ")
	if op, ok := e.Data["operation"].(string); ok && op != "" {
		line += ": " + op
	}
	if id, ok := e.Data["operationID"].(string); ok && id != "" {
		line += " (" + id + ")"
	}
	if msg, ok := e.Data["error"].(string); ok {
		line += ": " + msg
	}
	return line
}
