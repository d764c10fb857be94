// Package logging wires the structured logger and tracer shared by every component.
package logging

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("hubrag")

// Logger bundles the bolt logger with span creation.
type Logger struct {
	log *bolt.Logger
}

// New creates a Logger writing to out. format is "console" for human-readable
// output; anything else produces JSON lines. Without verbose only warnings and
// errors are emitted.
func New(out io.Writer, format string, verbose bool) *Logger {
	var l *bolt.Logger
	if format == "console" {
		l = bolt.New(bolt.NewConsoleHandler(out))
	} else {
		l = bolt.New(bolt.NewJSONHandler(out))
	}
	if !verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Logger{log: l}
}

// Nop returns a Logger that discards everything. Used by tests and as the
// fallback when a component is constructed without a logger.
func Nop() *Logger {
	return New(io.Discard, "json", false)
}

// Log returns the underlying logger.
func (l *Logger) Log() *bolt.Logger {
	return l.log
}

// StartSpan starts a new OTel span. Spans are no-ops unless the host process
// installs a tracer provider.
func (l *Logger) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}
