package observe

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewWith(t *testing.T) {
	testCases := []struct {
		name string
		opts Options
	}{
		{"console", Options{Verbose: true}},
		{"json", Options{JSON: true, Verbose: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			obs := NewWith(buf, tc.opts)
			if obs == nil || obs.log == nil {
				t.Fatal("expected non-nil Observer with logger")
			}

			obs.Log().Info().Str("sessionID", "default").Msg("memory loaded")
			if !strings.Contains(buf.String(), "memory loaded") {
				t.Errorf("expected output to contain message, got %q", buf.String())
			}
		})
	}
}

func TestNewJSON_EmitsFields(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := NewJSON(buf, true)

	obs.Log().Info().
		Str("operation", "create_event").
		Int("pending", 2).
		Msg("operation pending")

	output := buf.String()
	if !strings.Contains(output, "create_event") || !strings.Contains(output, "operation pending") {
		t.Errorf("expected JSON output with fields, got %q", output)
	}
}

func TestNew_QuietSuppressesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, false)

	obs.Log().Info().Msg("chatty")
	obs.Log().Warn().Msg("important")

	output := buf.String()
	if strings.Contains(output, "chatty") {
		t.Errorf("expected info to be suppressed, got %q", output)
	}
	if !strings.Contains(output, "important") {
		t.Errorf("expected warning to be shown, got %q", output)
	}
}

func TestNop(t *testing.T) {
	obs := Nop()
	// Should not panic
	obs.Log().Error().Msg("discarded")
	if err := obs.Close(); err != nil {
		t.Errorf("expected nil error from Close, got %v", err)
	}
}

func TestObserver_StartSpan(t *testing.T) {
	obs := New(&bytes.Buffer{}, true)

	spanCtx, span := obs.StartSpan(context.Background(), "Runtime.Call", "get_events")
	if spanCtx == nil {
		t.Fatal("expected non-nil context from StartSpan")
	}
	if span == nil {
		t.Fatal("expected non-nil span from StartSpan")
	}
	span.End()
}
