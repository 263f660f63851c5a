package shadercompile

import (
	"log/slog"

	"github.com/Alivebyte/ShaderCompile/internal/obs"
)

// SetLogger configures the logger used by shadercompile and its
// sub-packages (dispatch, exec, parser, crashdump). By
// default, the module produces no log output. Pass nil to disable
// logging again (restore the silent default).
//
// SetLogger is safe for concurrent use: it stores the new logger
// atomically.
//
// Log levels used by this module:
//   - [obs.LevelTrace] (one step below [slog.LevelDebug]): the parser's
//     #include expansion and cache-hit/miss trace (-verbose_preprocessor
//     in the CLI)
//   - [slog.LevelDebug]: per-command detail (compiler invocations that
//     failed or could not run) and periodic progress (-verbose2 in the CLI)
//   - [slog.LevelWarn]: each failed combo compile
//   - [slog.LevelError]: crash reports written by crashdump
//
// Nothing in this module logs at [slog.LevelInfo].
//
// Example:
//
//	shadercompile.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//		Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	obs.Set(l)
}

// Logger returns the logger currently configured for this module.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return obs.Get()
}
