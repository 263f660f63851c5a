package combo

// Enumerator walks the command-number space of a set of entries
// produced by Describe, supporting both random access (GetCombo) and
// cheap sequential iteration (Cursor.Next).
type Enumerator struct {
	entries []EntryInfo
}

// NewEnumerator wraps entries (as returned by Describe) for lookup and
// iteration.
func NewEnumerator(entries []EntryInfo) *Enumerator {
	return &Enumerator{entries: entries}
}

// Entries returns the entries this enumerator was built from.
func (e *Enumerator) Entries() []EntryInfo {
	return e.entries
}

// Total returns the number of command numbers across every entry.
func (e *Enumerator) Total() uint64 {
	if len(e.entries) == 0 {
		return 0
	}
	last := e.entries[len(e.entries)-1]
	return last.CommandEnd
}

// entryFor returns the index of the entry whose [CommandStart,
// CommandEnd) range contains commandNumber, or -1.
func (e *Enumerator) entryFor(commandNumber uint64) int {
	for i := range e.entries {
		if commandNumber >= e.entries[i].CommandStart && commandNumber < e.entries[i].CommandEnd {
			return i
		}
	}
	return -1
}

// EntryAt returns the entry index owning commandNumber, or -1 if out
// of range.
func (e *Enumerator) EntryAt(commandNumber uint64) int {
	return e.entryFor(commandNumber)
}

// GetCombo returns the handle for commandNumber. The caller owns the
// returned handle and must call Release on it when done.
//
// This walks the entry's raw combo grid from the beginning, counting
// non-skipped positions, until it reaches commandNumber. It is meant
// for the occasional random-access lookup (range boundaries,
// diagnostics), not the hot per-command loop: sequential work should
// use a Cursor instead.
func (e *Enumerator) GetCombo(commandNumber uint64) (*ComboHandle, bool) {
	idx := e.entryFor(commandNumber)
	if idx < 0 {
		return nil, false
	}
	entry := &e.entries[idx]

	h := acquireHandle()
	comboIndex, ok := seekComboIndex(entry, commandNumber-entry.CommandStart)
	if !ok {
		Release(h)
		return nil, false
	}
	fillHandle(h, entry, comboIndex, commandNumber)
	return h, true
}

// seekComboIndex returns the raw grid position of the (target+1)-th
// non-skipped combo in entry (0-indexed: target=0 is the first
// non-skipped combo).
func seekComboIndex(entry *EntryInfo, target uint64) (uint64, bool) {
	if len(entry.Skips) == 0 {
		return target, target < entry.NumCombos
	}
	vals := make(map[string]int, len(entry.StaticAxes)+len(entry.DynamicAxes))
	var seen uint64
	for combo := uint64(0); combo < entry.NumCombos; combo++ {
		decodeComboValues(entry.StaticAxes, entry.DynamicAxes, entry.NumDynamicCombos, combo, vals)
		if anySkip(entry.Skips, vals) {
			continue
		}
		if seen == target {
			return combo, true
		}
		seen++
	}
	return 0, false
}

// Cursor is cheap, stateful sequential iteration over an Enumerator's
// command-number space, starting at a given command number and
// producing handles in increasing command-number order.
type Cursor struct {
	enum          *Enumerator
	entryIdx      int
	comboIndex    uint64
	commandNumber uint64
	vals          map[string]int
}

// NewCursor returns a Cursor positioned to produce firstCommand as its
// first result from Next.
func (e *Enumerator) NewCursor(firstCommand uint64) *Cursor {
	c := &Cursor{enum: e, commandNumber: firstCommand, vals: make(map[string]int)}
	idx := e.entryFor(firstCommand)
	if idx < 0 {
		c.entryIdx = len(e.entries)
		return c
	}
	c.entryIdx = idx
	entry := &e.entries[idx]
	comboIndex, ok := seekComboIndex(entry, firstCommand-entry.CommandStart)
	if !ok {
		c.entryIdx = len(e.entries)
		return c
	}
	c.comboIndex = comboIndex
	return c
}

// Next advances the cursor and returns the next non-skipped command
// strictly before end, or nil if the cursor has reached end or run out
// of entries. The caller owns the returned handle and must Release it.
func (c *Cursor) Next(end uint64) *ComboHandle {
	for {
		if c.entryIdx >= len(c.enum.entries) || c.commandNumber >= end {
			return nil
		}
		entry := &c.enum.entries[c.entryIdx]
		if c.commandNumber >= entry.CommandEnd {
			c.entryIdx++
			c.comboIndex = 0
			continue
		}
		if c.comboIndex >= entry.NumCombos {
			// Ran off the end of this entry's grid without reaching
			// CommandEnd: only possible if the entry's non-skipped
			// count was computed incorrectly.
			c.entryIdx++
			c.comboIndex = 0
			continue
		}

		decodeComboValues(entry.StaticAxes, entry.DynamicAxes, entry.NumDynamicCombos, c.comboIndex, c.vals)
		if anySkip(entry.Skips, c.vals) {
			c.comboIndex++
			continue
		}

		h := acquireHandle()
		fillHandle(h, entry, c.comboIndex, c.commandNumber)
		c.comboIndex++
		c.commandNumber++
		return h
	}
}
