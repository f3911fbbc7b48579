package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("agenda")

// Observer handles logging and tracing
type Observer struct {
	log *bolt.Logger
}

// Options selects the log format and level.
type Options struct {
	JSON    bool
	Verbose bool
}

// NewWith creates an Observer writing to out in the requested format.
// If Verbose is false, only warnings and errors are shown.
func NewWith(out io.Writer, opts Options) *Observer {
	var l *bolt.Logger
	if opts.JSON {
		l = bolt.New(bolt.NewJSONHandler(out))
	} else {
		l = bolt.New(bolt.NewConsoleHandler(out))
	}

	if !opts.Verbose {
		l.SetLevel(bolt.WARN)
	}

	return &Observer{
		log: l,
	}
}

// New creates a new Observer with console output.
func New(out io.Writer, verbose bool) *Observer {
	return NewWith(out, Options{Verbose: verbose})
}

// NewJSON creates a new Observer with JSON output.
func NewJSON(out io.Writer, verbose bool) *Observer {
	return NewWith(out, Options{JSON: true, Verbose: verbose})
}

// Nop returns an Observer that discards everything.
func Nop() *Observer {
	return NewWith(io.Discard, Options{})
}

// Log returns the underlying logger
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a new OTel span tagged with the operation name.
func (o *Observer) StartSpan(ctx context.Context, name string, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("agenda.operation", operation)))
}

// Close ensures any buffered logs or traces are flushed (placeholder)
func (o *Observer) Close() error {
	return nil
}
