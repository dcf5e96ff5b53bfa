package tidy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// DefaultSeparator splits on any run of non-alphanumeric characters.
const DefaultSeparator = `[^[:alnum:]]+`

// ExtraPolicy handles rows that split into more pieces than names.
type ExtraPolicy string

// FillPolicy handles rows that split into fewer pieces than names.
type FillPolicy string

const (
	ExtraError ExtraPolicy = "error"
	ExtraDrop  ExtraPolicy = "drop"
	ExtraMerge ExtraPolicy = "merge"

	FillError FillPolicy = "error"
	FillRight FillPolicy = "right"
	FillLeft  FillPolicy = "left"
)

// ParseExtraPolicy maps a config or flag value to a policy. Empty means error.
func ParseExtraPolicy(s string) (ExtraPolicy, error) {
	switch ExtraPolicy(s) {
	case "", ExtraError:
		return ExtraError, nil
	case ExtraDrop, ExtraMerge:
		return ExtraPolicy(s), nil
	}
	return "", fmt.Errorf("%w: extra %q (use error|drop|merge)", ErrInvalidOption, s)
}

// ParseFillPolicy maps a config or flag value to a policy. Empty means error.
func ParseFillPolicy(s string) (FillPolicy, error) {
	switch FillPolicy(s) {
	case "", FillError:
		return FillError, nil
	case FillRight, FillLeft:
		return FillPolicy(s), nil
	}
	return "", fmt.Errorf("%w: fill %q (use error|right|left)", ErrInvalidOption, s)
}

// SeparateOptions describes how one column is split into several.
type SeparateOptions struct {
	Column string
	// Into names the output columns; an empty name discards that piece.
	Into []string
	// Sep is a regular expression separator. Ignored when Positions is set.
	// Empty means DefaultSeparator.
	Sep string
	// Positions splits at character offsets instead of a separator.
	// Positive offsets count from the start, negative from the end.
	// len(Positions) must be len(Into)-1.
	Positions []int
	Extra     ExtraPolicy
	Fill      FillPolicy
	// Convert re-infers each output column's type after splitting.
	Convert bool
	// Keep retains the original column after the new ones.
	Keep bool
}

// Separate replaces Column with the Into columns at the same position.
// Missing cells yield missing in every output column. Numeric cells are split
// on their text rendering.
func Separate(t *table.Table, opt SeparateOptions) (*table.Table, error) {
	ci, err := t.Index(opt.Column)
	if err != nil {
		return nil, fmt.Errorf("separate: %w", err)
	}
	if len(opt.Into) == 0 {
		return nil, fmt.Errorf("separate: %w: into names are required", ErrInvalidOption)
	}
	extra, err := ParseExtraPolicy(string(opt.Extra))
	if err != nil {
		return nil, fmt.Errorf("separate: %w", err)
	}
	fill, err := ParseFillPolicy(string(opt.Fill))
	if err != nil {
		return nil, fmt.Errorf("separate: %w", err)
	}
	var split func(s string, row int) ([]string, error)
	n := len(opt.Into)
	if len(opt.Positions) > 0 {
		if len(opt.Positions) != n-1 {
			return nil, fmt.Errorf("separate: %w: %d positions need %d names, got %d", ErrInvalidOption, len(opt.Positions), len(opt.Positions)+1, n)
		}
		split = func(s string, _ int) ([]string, error) { return splitPositions(s, opt.Positions), nil }
	} else {
		pattern := opt.Sep
		if pattern == "" {
			pattern = DefaultSeparator
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("separate: %w: sep: %v", ErrInvalidOption, err)
		}
		split = func(s string, row int) ([]string, error) {
			return splitPattern(re, s, n, extra, fill, opt.Column, row)
		}
	}

	pieces := make([][]table.Value, n)
	for i := range pieces {
		pieces[i] = make([]table.Value, t.NumRows())
	}
	for r := 0; r < t.NumRows(); r++ {
		v := t.At(r, ci)
		if v.IsMissing() {
			continue
		}
		parts, err := split(v.String(), r)
		if err != nil {
			return nil, err
		}
		for i := range pieces {
			if parts[i] == missingPiece {
				continue
			}
			pieces[i][r] = table.Str(parts[i])
		}
	}

	var cols []table.Column
	for i, c := range t.Columns() {
		if i != ci {
			cols = append(cols, c)
			continue
		}
		for j, name := range opt.Into {
			if name == "" {
				continue
			}
			vals := pieces[j]
			if opt.Convert {
				vals = reinfer(vals)
			}
			cols = append(cols, table.Column{Name: name, Values: vals})
		}
		if opt.Keep {
			cols = append(cols, c)
		}
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("separate: %w", err)
	}
	return out, nil
}

// missingPiece marks a padded slot; it cannot occur in split text.
const missingPiece = "\x00"

func splitPattern(re *regexp.Regexp, s string, n int, extra ExtraPolicy, fill FillPolicy, col string, row int) ([]string, error) {
	limit := -1
	if extra == ExtraMerge {
		limit = n
	}
	parts := re.Split(s, limit)
	switch {
	case len(parts) > n:
		if extra != ExtraDrop {
			return nil, &ShapeError{Op: "separate", Column: col, Row: row, Value: s,
				Reason: fmt.Sprintf("expected %d pieces, got %d", n, len(parts))}
		}
		parts = parts[:n]
	case len(parts) < n:
		pad := n - len(parts)
		switch fill {
		case FillRight:
			for i := 0; i < pad; i++ {
				parts = append(parts, missingPiece)
			}
		case FillLeft:
			padded := make([]string, 0, n)
			for i := 0; i < pad; i++ {
				padded = append(padded, missingPiece)
			}
			parts = append(padded, parts...)
		default:
			return nil, &ShapeError{Op: "separate", Column: col, Row: row, Value: s,
				Reason: fmt.Sprintf("expected %d pieces, got %d", n, len(parts))}
		}
	}
	return parts, nil
}

// splitPositions cuts s at rune offsets. Offsets past either end clamp, so a
// short value yields empty trailing pieces rather than an error.
func splitPositions(s string, positions []int) []string {
	runes := []rune(s)
	size := len(runes)
	cuts := make([]int, 0, len(positions)+2)
	cuts = append(cuts, 0)
	for _, p := range positions {
		if p < 0 {
			p = size + p
		}
		if p < 0 {
			p = 0
		}
		if p > size {
			p = size
		}
		if prev := cuts[len(cuts)-1]; p < prev {
			p = prev
		}
		cuts = append(cuts, p)
	}
	cuts = append(cuts, size)
	out := make([]string, 0, len(cuts)-1)
	for i := 1; i < len(cuts); i++ {
		out = append(out, string(runes[cuts[i-1]:cuts[i]]))
	}
	return out
}

func reinfer(vals []table.Value) []table.Value {
	raw := make([]string, len(vals))
	for i, v := range vals {
		if v.IsMissing() {
			continue
		}
		raw[i] = v.String()
	}
	return table.InferColumn(raw, table.ParseOptions{})
}

// UniteOptions describes pasting several columns into one.
type UniteOptions struct {
	Column  string
	Columns []string
	// Sep joins the pieces; empty means "_".
	Sep string
	// SkipMissing leaves missing cells out instead of writing NA.
	SkipMissing bool
	// Keep retains the source columns.
	Keep bool
}

// Unite is the inverse of Separate: the joined column takes the position of
// the first source column.
func Unite(t *table.Table, opt UniteOptions) (*table.Table, error) {
	if opt.Column == "" || len(opt.Columns) == 0 {
		return nil, fmt.Errorf("unite: %w: target and source columns are required", ErrInvalidOption)
	}
	idx, err := t.Indices(opt.Columns)
	if err != nil {
		return nil, fmt.Errorf("unite: %w", err)
	}
	sep := opt.Sep
	if sep == "" {
		sep = "_"
	}
	joined := make([]table.Value, t.NumRows())
	parts := make([]string, 0, len(idx))
	for r := 0; r < t.NumRows(); r++ {
		parts = parts[:0]
		for _, c := range idx {
			v := t.At(r, c)
			if v.IsMissing() && opt.SkipMissing {
				continue
			}
			parts = append(parts, v.String())
		}
		joined[r] = table.Str(strings.Join(parts, sep))
	}
	source := make(map[int]bool, len(idx))
	first := idx[0]
	for _, c := range idx {
		source[c] = true
		if c < first {
			first = c
		}
	}
	var cols []table.Column
	for i, c := range t.Columns() {
		if i == first {
			cols = append(cols, table.Column{Name: opt.Column, Values: joined})
		}
		if source[i] && !opt.Keep {
			continue
		}
		cols = append(cols, c)
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("unite: %w", err)
	}
	return out, nil
}
