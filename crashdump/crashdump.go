// Package crashdump is this module's stand-in for the original
// compiler's unhandled-exception filter: rather than writing a .mdmp a
// debugger can later load, it writes a plain-text crash report next to
// the run's working directory and then lets the panic continue
// unwinding, so a top-level recoverer (or the runtime, if there is
// none) still sees the failure.
package crashdump

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/Alivebyte/ShaderCompile/internal/obs"
)

// Recover must be deferred at the top of a goroutine the caller wants
// protected (typically main). If that goroutine panics, Recover writes
// a timestamped report under dir (created if necessary) describing the
// panic value and the stack at the time it was recovered, logs the
// report's path, and then re-panics with the original value so the
// process still exits non-zero and any outer recover (tests, a
// supervisor) still observes the failure.
func Recover(dir string) {
	r := recover()
	if r == nil {
		return
	}
	path, err := write(dir, r, debug.Stack())
	if err != nil {
		obs.Get().Error("crashdump: failed to write crash report", "error", err)
	} else {
		obs.Get().Error("crashdump: wrote crash report", "path", path)
	}
	panic(r)
}

// write renders one crash report and saves it to dir, returning its
// path. Exposed at package scope, rather than inlined into Recover, so
// tests can exercise the formatting without forcing an actual panic.
func write(dir string, r any, stack []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("crashdump: %w", err)
	}

	name := fmt.Sprintf("crash-%s.log", time.Now().UTC().Format("20060102-150405.000000000"))
	path := filepath.Join(dir, name)

	report := fmt.Sprintf("panic: %v\n\n%s", r, stack)
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("crashdump: %w", err)
	}
	return path, nil
}
