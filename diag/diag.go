// Package diag aggregates compiler warnings and errors across an
// entire run and prints a summary, plus a small moving-average
// throughput counter used by Run's progress reporting.
package diag

import (
	"sort"
	"strings"
	"sync"
)

// messageInfo tracks one distinct message's first reporting command
// and how many times it has been seen.
type messageInfo struct {
	firstCommand string
	count        uint64
}

type shaderMessages struct {
	warnings map[string]*messageInfo
	errors   map[string]*messageInfo
}

// Aggregator collects compiler listings under a single mutex (lock M),
// classifying each line as a warning or an error.
type Aggregator struct {
	mu      sync.Mutex
	shaders map[string]*shaderMessages
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{shaders: make(map[string]*shaderMessages)}
}

// Report splits listing into lines and records each non-empty one
// against shader, attributing it to cmdLine as its reporting command.
// A line is classified as a warning iff it contains "warning X"
// (matching the compiler's own diagnostic code prefix); everything
// else is an error.
func (a *Aggregator) Report(shader, cmdLine, listing string) {
	lines := strings.Split(listing, "\n")

	a.mu.Lock()
	defer a.mu.Unlock()

	sm, ok := a.shaders[shader]
	if !ok {
		sm = &shaderMessages{warnings: make(map[string]*messageInfo), errors: make(map[string]*messageInfo)}
		a.shaders[shader] = sm
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		bucket := sm.errors
		if strings.Contains(line, "warning X") {
			bucket = sm.warnings
		}
		info, ok := bucket[line]
		if !ok {
			info = &messageInfo{firstCommand: cmdLine}
			bucket[line] = info
		}
		info.count++
	}
}

// Totals returns the total number of distinct warning and error
// messages recorded across every shader.
func (a *Aggregator) Totals() (warnings, errors int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, sm := range a.shaders {
		warnings += len(sm.warnings)
		errors += len(sm.errors)
	}
	return warnings, errors
}

// ShaderNames returns every shader with at least one recorded message,
// sorted lexicographically.
func (a *Aggregator) ShaderNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.shaders))
	for name := range a.shaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
