// Package obs holds the process-wide logger shared by shadercompile and
// all of its sub-packages, so that a single configuration call
// (shadercompile.SetLogger) takes effect everywhere without those
// packages importing the root package (which would create an import
// cycle, since the root package orchestrates all of them).
package obs

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// LevelTrace is one step below slog.LevelDebug, for detail too fine to
// want on every -verbose2 run: the parser's #include expansion and
// cache-hit/miss trace, enabled only by -verbose_preprocessor.
const LevelTrace = slog.LevelDebug - 4

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// Set installs the shared logger. Passing nil restores the silent
// default. Safe for concurrent use.
func Set(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Get returns the currently configured shared logger. Never nil.
// Safe for concurrent use.
func Get() *slog.Logger {
	return loggerPtr.Load()
}
