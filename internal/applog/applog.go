// Package applog provides the structured Logger interface threaded through
// every orchestration component.
//
// Corresponds to: mfateev/temporal-agent-harness's use of
// go.temporal.io/sdk/log.Logger (workflow.GetLogger(ctx)) — the same
// Info/Warn/Error/Debug(msg, keyvals...) call shape, backed by the
// standard library's log/slog instead of a Temporal logger since the
// orchestration core no longer runs inside Temporal workflows.
package applog

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the minimal structured-logging surface every component depends
// on via constructor injection — never a package-level global.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New returns a Logger backed by slog.NewJSONHandler on stderr.
func New() Logger {
	return &slogLogger{l: slog.New(slog.NewJSONHandler(os.Stderr, nil))}
}

// NewText returns a Logger backed by slog.NewTextHandler, used by CLI tools
// where JSON output would be noisy.
func NewText() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, nil))}
}

func (s *slogLogger) Debug(msg string, keyvals ...any) { s.l.Debug(msg, keyvals...) }
func (s *slogLogger) Info(msg string, keyvals ...any)  { s.l.Info(msg, keyvals...) }
func (s *slogLogger) Warn(msg string, keyvals ...any)  { s.l.Warn(msg, keyvals...) }
func (s *slogLogger) Error(msg string, keyvals ...any) { s.l.Error(msg, keyvals...) }
func (s *slogLogger) With(keyvals ...any) Logger {
	return &slogLogger{l: s.l.With(keyvals...)}
}

type ctxKey struct{}

// Into returns a context carrying the logger, mirroring workflow.GetLogger's
// ambient-retrieval convenience without a global.
func Into(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From retrieves the logger from ctx, or a default if none was set.
func From(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return New()
}
