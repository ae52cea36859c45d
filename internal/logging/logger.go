// Package logging defines the structured-logging interface used across the
// client and the adapters that back it (slog and zap).
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "search dispatched", "query", q, "generation", gen)
type Logger interface {
	// Debug logs diagnostics that are noisy in normal operation.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Options selects and tunes a Logger implementation.
//
// Format is one of "text", "json" (both slog) or "zap". File is only used by
// the zap backend; when set, output goes to a rotated file in addition to w.
type Options struct {
	Format string
	Level  string
	File   string
}

// New builds a Logger writing to w according to opts.
func New(w io.Writer, opts Options) (Logger, error) {
	switch strings.ToLower(opts.Format) {
	case "", "text":
		return newSlogLogger(w, false, opts.Level), nil
	case "json":
		return newSlogLogger(w, true, opts.Level), nil
	case "zap":
		return NewZapLogger(w, opts.Level, opts.File)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.DiscardHandler))
}
