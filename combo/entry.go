package combo

import "fmt"

// EntryDescription is the input to Describe: one shader's static and
// dynamic combo axes, plus the skip predicates that invalidate some
// combinations of them.
type EntryDescription struct {
	Name          string
	SourceFile    string
	ShaderVersion string
	StaticAxes    []Axis
	DynamicAxes   []Axis
	Skips         []Expr
	CentroidMask  uint32
}

// EntryInfo is one shader's combo space, fully described: its axes,
// and the command-number range it occupies in a larger enumeration
// spanning possibly many entries.
type EntryInfo struct {
	Name          string
	SourceFile    string
	ShaderVersion string
	StaticAxes    []Axis
	DynamicAxes   []Axis
	Skips         []Expr
	CentroidMask  uint32

	// NumStaticCombos and NumDynamicCombos are the raw cartesian sizes
	// of the static and dynamic axis sets, before skip is applied.
	NumStaticCombos  uint64
	NumDynamicCombos uint64

	// NumCombos is NumStaticCombos * NumDynamicCombos: the size of the
	// raw (unskipped) combo grid.
	NumCombos uint64

	// CommandStart and CommandEnd bound this entry's command numbers:
	// CommandEnd - CommandStart equals the number of non-skipped
	// combos in the grid, not NumCombos.
	CommandStart uint64
	CommandEnd   uint64
}

// Describe computes each entry's combo-space sizes and assigns each a
// contiguous command-number range, packed end to end in the order
// given. It returns an error if any entry has a degenerate axis or an
// empty combo space.
func Describe(descs []EntryDescription) ([]EntryInfo, error) {
	entries := make([]EntryInfo, len(descs))
	var cursor uint64

	for i, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("combo: entry %d has empty name", i)
		}
		if err := validateAxes(d.StaticAxes); err != nil {
			return nil, fmt.Errorf("combo: entry %q: %w", d.Name, err)
		}
		if err := validateAxes(d.DynamicAxes); err != nil {
			return nil, fmt.Errorf("combo: entry %q: %w", d.Name, err)
		}

		staticSize := axesProduct(d.StaticAxes)
		dynSize := axesProduct(d.DynamicAxes)
		if staticSize == 0 || dynSize == 0 {
			return nil, fmt.Errorf("combo: entry %q has an empty combo space", d.Name)
		}
		total := staticSize * dynSize

		nonSkipped, err := countNonSkipped(d, total, dynSize)
		if err != nil {
			return nil, err
		}
		if nonSkipped == 0 {
			return nil, fmt.Errorf("combo: entry %q skips every combo", d.Name)
		}

		entries[i] = EntryInfo{
			Name:             d.Name,
			SourceFile:       d.SourceFile,
			ShaderVersion:    d.ShaderVersion,
			StaticAxes:       d.StaticAxes,
			DynamicAxes:      d.DynamicAxes,
			Skips:            d.Skips,
			CentroidMask:     d.CentroidMask,
			NumStaticCombos:  staticSize,
			NumDynamicCombos: dynSize,
			NumCombos:        total,
			CommandStart:     cursor,
			CommandEnd:       cursor + nonSkipped,
		}
		cursor += nonSkipped
	}

	return entries, nil
}

func countNonSkipped(d EntryDescription, total, dynSize uint64) (uint64, error) {
	if len(d.Skips) == 0 {
		return total, nil
	}
	vals := make(map[string]int, len(d.StaticAxes)+len(d.DynamicAxes))
	var count uint64
	for combo := uint64(0); combo < total; combo++ {
		decodeComboValues(d.StaticAxes, d.DynamicAxes, dynSize, combo, vals)
		if !anySkip(d.Skips, vals) {
			count++
		}
	}
	return count, nil
}

// decodeComboValues fills dst with both the static and dynamic axis
// values for a raw combo index in [0, staticSize*dynSize).
func decodeComboValues(staticAxes, dynamicAxes []Axis, dynSize, comboIndex uint64, dst map[string]int) {
	staticIdx := comboIndex / dynSize
	dynamicIdx := comboIndex % dynSize
	decodeAxes(staticAxes, staticIdx, dst)
	decodeAxes(dynamicAxes, dynamicIdx, dst)
}
