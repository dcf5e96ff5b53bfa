package table

import (
	"fmt"
	"strings"
)

// Markdown renders up to maxRows rows as a pipe table. maxRows <= 0 renders all.
func (t *Table) Markdown(maxRows int) string {
	var b strings.Builder
	b.WriteString("| ")
	for i, n := range t.names {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(safeName(n))
	}
	b.WriteString(" |\n| ")
	for i := range t.names {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("---")
	}
	b.WriteString(" |\n")
	n := t.nrows
	if maxRows > 0 && maxRows < n {
		n = maxRows
	}
	for r := 0; r < n; r++ {
		b.WriteString("| ")
		for c := range t.cols {
			if c > 0 {
				b.WriteString(" | ")
			}
			val := t.cols[c][r].String()
			if len(val) > 80 {
				val = val[:77] + "..."
			}
			b.WriteString(SafeVal(val))
		}
		b.WriteString(" |\n")
	}
	if n < t.nrows {
		b.WriteString(fmt.Sprintf("(%d more rows)\n", t.nrows-n))
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return SafeVal(s)
}

// SafeVal flattens a cell for a single Markdown table line.
func SafeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
