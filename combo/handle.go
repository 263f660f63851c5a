package combo

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ComboHandle identifies one compile command: the entry it belongs to,
// its raw position within that entry's combo grid, and the dense
// command number it was assigned during enumeration.
//
// ComboIndex and CommandNumber are deliberately distinct fields,
// mirroring the original compiler's separate combo number and command
// number: CommandNumber is dense across an entry's [CommandStart,
// CommandEnd) range (and is what the dispatcher's watermark advances
// over), while ComboIndex is the raw grid position skipped combos
// still occupy, and is what StaticID/DynamicID are derived from.
type ComboHandle struct {
	Entry         *EntryInfo
	ComboIndex    uint64
	CommandNumber uint64
	Values        map[string]int
}

// StaticID returns the handle's position in the static axis space.
func (h *ComboHandle) StaticID() uint64 {
	return h.ComboIndex / h.Entry.NumDynamicCombos
}

// DynamicID returns the handle's position in the dynamic axis space.
func (h *ComboHandle) DynamicID() uint64 {
	return h.ComboIndex % h.Entry.NumDynamicCombos
}

var handlePool = sync.Pool{
	New: func() any { return &ComboHandle{Values: make(map[string]int)} },
}

func acquireHandle() *ComboHandle {
	h := handlePool.Get().(*ComboHandle)
	for k := range h.Values {
		delete(h.Values, k)
	}
	return h
}

// Release returns h to the handle pool. Callers must not use h after
// calling Release.
func Release(h *ComboHandle) {
	if h == nil {
		return
	}
	h.Entry = nil
	handlePool.Put(h)
}

// Clone returns a new handle with the same entry, indices and values
// as h, independent of the pool slot h occupies. Useful when a handle
// needs to outlive the loop iteration that produced it (e.g. handed
// off to a worker goroutine) while the cursor keeps reusing h.
func Clone(h *ComboHandle) *ComboHandle {
	c := acquireHandle()
	c.Entry = h.Entry
	c.ComboIndex = h.ComboIndex
	c.CommandNumber = h.CommandNumber
	for k, v := range h.Values {
		c.Values[k] = v
	}
	return c
}

func fillHandle(h *ComboHandle, entry *EntryInfo, comboIndex, commandNumber uint64) {
	h.Entry = entry
	h.ComboIndex = comboIndex
	h.CommandNumber = commandNumber
	decodeComboValues(entry.StaticAxes, entry.DynamicAxes, entry.NumDynamicCombos, comboIndex, h.Values)
}

// orderedAxisNames returns the handle's static axes followed by its
// dynamic axes, in declaration order, for deterministic formatting.
func (h *ComboHandle) orderedAxisNames() []string {
	names := make([]string, 0, len(h.Entry.StaticAxes)+len(h.Entry.DynamicAxes))
	for _, a := range h.Entry.StaticAxes {
		names = append(names, a.Name)
	}
	for _, a := range h.Entry.DynamicAxes {
		names = append(names, a.Name)
	}
	return names
}

// FormatCommand renders h as a compiler command line: one "-D
// NAME=value" token per axis, in declaration order (static axes
// first), so that two handles with identical values always format
// identically regardless of map iteration order.
func (h *ComboHandle) FormatCommand() string {
	var b strings.Builder
	for i, name := range h.orderedAxisNames() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "-D %s=%d", name, h.Values[name])
	}
	return b.String()
}

// FormatCommandHuman renders a short, human-readable description of
// h, suitable for diagnostics and progress output.
func (h *ComboHandle) FormatCommandHuman() string {
	names := make([]string, 0, len(h.Values))
	for n := range h.Values {
		names = append(names, n)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", n, h.Values[n]))
	}
	return fmt.Sprintf("%s[static=%d,dynamic=%d](%s)",
		h.Entry.Name, h.StaticID(), h.DynamicID(), strings.Join(parts, ","))
}
