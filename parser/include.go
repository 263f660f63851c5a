package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/Alivebyte/ShaderCompile/combo"
)

// WriteInclude writes the companion include file the -dynamic CLI mode
// produces: one block of preprocessor defines per entry, giving the
// generated shader source access to its own combo-space sizes without
// needing to link against this compiler's logic.
func WriteInclude(w io.Writer, entries []combo.EntryInfo) error {
	for _, e := range entries {
		ident := sanitizeIdent(e.Name)
		lines := []string{
			fmt.Sprintf("#define %s_NUM_STATIC_COMBOS %d\n", ident, e.NumStaticCombos),
			fmt.Sprintf("#define %s_NUM_DYNAMIC_COMBOS %d\n", ident, e.NumDynamicCombos),
			fmt.Sprintf("#define %s_CENTROID_MASK 0x%xu\n", ident, e.CentroidMask),
		}
		for _, line := range lines {
			if _, err := io.WriteString(w, line); err != nil {
				return fmt.Errorf("parser: write include: %w", err)
			}
		}
	}
	return nil
}

// sanitizeIdent upper-cases name and replaces every character that
// cannot appear in a C preprocessor identifier with an underscore.
func sanitizeIdent(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
