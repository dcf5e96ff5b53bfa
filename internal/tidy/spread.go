package tidy

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// DuplicatePolicy says what Spread does when a held tuple meets the same
// key value more than once.
type DuplicatePolicy string

const (
	DuplicateError DuplicatePolicy = "error"
	DuplicateFirst DuplicatePolicy = "first"
	DuplicateLast  DuplicatePolicy = "last"
)

// ParseDuplicatePolicy maps a config or flag value to a policy. Empty means error.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateError:
		return DuplicateError, nil
	case DuplicateFirst, DuplicateLast:
		return DuplicatePolicy(s), nil
	}
	return "", fmt.Errorf("%w: duplicates %q (use error|first|last)", ErrInvalidOption, s)
}

// SpreadOptions describes a long-to-wide reshape.
type SpreadOptions struct {
	// Key is the column whose distinct values become column names.
	Key string
	// Value is the column supplying the cells.
	Value string
	// Fill is written where a held tuple has no row for a key value.
	// The zero Value is missing.
	Fill table.Value
	// Duplicates selects the policy for repeated cells.
	Duplicates DuplicatePolicy
	// Sort orders the new columns by key value instead of first occurrence.
	Sort bool
}

// Spread expands the key column into one column per distinct key value.
// Rows are one per distinct tuple of the remaining columns, in order of first
// occurrence; new columns follow the first occurrence of each key value.
func Spread(t *table.Table, opt SpreadOptions) (*table.Table, error) {
	policy, err := ParseDuplicatePolicy(string(opt.Duplicates))
	if err != nil {
		return nil, fmt.Errorf("spread: %w", err)
	}
	ki, err := t.Index(opt.Key)
	if err != nil {
		return nil, fmt.Errorf("spread: %w", err)
	}
	vi, err := t.Index(opt.Value)
	if err != nil {
		return nil, fmt.Errorf("spread: %w", err)
	}
	if ki == vi {
		return nil, fmt.Errorf("spread: %w: key and value must be different columns", ErrInvalidOption)
	}
	names := t.Names()
	var hold []int
	for i := range names {
		if i != ki && i != vi {
			hold = append(hold, i)
		}
	}

	// Pass 1: distinct key values become columns. Values that render alike,
	// such as missing and "NA" or 1 and "1", cannot both name a column.
	var keys []table.Value
	keyPos := map[string]int{}
	firstRow := map[string]int{}
	for r := 0; r < t.NumRows(); r++ {
		k := t.At(r, ki)
		tk := table.TupleKey([]table.Value{k})
		if _, ok := keyPos[tk]; ok {
			continue
		}
		if prev, clash := firstRow[k.String()]; clash {
			return nil, &ShapeError{
				Op:     "spread",
				Column: opt.Key,
				Row:    r,
				Value:  k.String(),
				Reason: fmt.Sprintf("a different key value at row %d gives the same column name", prev),
			}
		}
		firstRow[k.String()] = r
		keyPos[tk] = len(keys)
		keys = append(keys, k)
	}
	if opt.Sort {
		order := make([]int, len(keys))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return table.Compare(keys[order[a]], keys[order[b]]) < 0
		})
		sorted := make([]table.Value, len(keys))
		for i, o := range order {
			sorted[i] = keys[o]
			keyPos[table.TupleKey([]table.Value{keys[o]})] = i
		}
		keys = sorted
	}

	// Pass 2: one output row per distinct held tuple.
	type group struct {
		held   []table.Value
		cells  []table.Value
		filled []bool
	}
	var groups []*group
	groupPos := map[string]int{}
	tuple := make([]table.Value, len(hold))
	for r := 0; r < t.NumRows(); r++ {
		for i, h := range hold {
			tuple[i] = t.At(r, h)
		}
		gk := table.TupleKey(tuple)
		gi, ok := groupPos[gk]
		if !ok {
			held := make([]table.Value, len(tuple))
			copy(held, tuple)
			g := &group{held: held, cells: make([]table.Value, len(keys)), filled: make([]bool, len(keys))}
			for c := range g.cells {
				g.cells[c] = opt.Fill
			}
			gi = len(groups)
			groupPos[gk] = gi
			groups = append(groups, g)
		}
		g := groups[gi]
		k := t.At(r, ki)
		c := keyPos[table.TupleKey([]table.Value{k})]
		if g.filled[c] {
			switch policy {
			case DuplicateFirst:
				continue
			case DuplicateLast:
			default:
				return nil, &ShapeError{
					Op:     "spread",
					Column: opt.Key,
					Row:    r,
					Value:  k.String(),
					Reason: "duplicate identifier for this row's key columns",
				}
			}
		}
		g.cells[c] = t.At(r, vi)
		g.filled[c] = true
	}

	outNames := make([]string, 0, len(hold)+len(keys))
	for _, h := range hold {
		outNames = append(outNames, names[h])
	}
	for _, k := range keys {
		outNames = append(outNames, k.String())
	}
	b := table.NewBuilder(outNames...)
	row := make([]table.Value, len(outNames))
	for _, g := range groups {
		copy(row, g.held)
		copy(row[len(hold):], g.cells)
		if err := b.Append(row...); err != nil {
			return nil, fmt.Errorf("spread: %w", err)
		}
	}
	out, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("spread: %w", err)
	}
	return out, nil
}
