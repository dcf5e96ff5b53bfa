package tidy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// Select keeps the named columns in the given order.
func Select(t *table.Table, names ...string) (*table.Table, error) {
	idx, err := t.Indices(names)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	all := t.Columns()
	cols := make([]table.Column, len(idx))
	for i, c := range idx {
		cols[i] = all[c]
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}

// Rename changes column names; mapping goes from old name to new.
func Rename(t *table.Table, mapping map[string]string) (*table.Table, error) {
	cols := t.Columns()
	for old := range mapping {
		if !t.Has(old) {
			return nil, fmt.Errorf("rename: %w: %q", table.ErrUnknownColumn, old)
		}
	}
	for i := range cols {
		if to, ok := mapping[cols[i].Name]; ok {
			cols[i].Name = to
		}
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	return out, nil
}

// Filter keeps rows for which keep returns true.
func Filter(t *table.Table, keep func(table.Row) bool) *table.Table {
	var rows []int
	for r := 0; r < t.NumRows(); r++ {
		if keep(t.Row(r)) {
			rows = append(rows, r)
		}
	}
	return t.Take(rows)
}

// DropMissing removes rows missing a value in any of the named columns,
// or in any column when none are named.
func DropMissing(t *table.Table, names ...string) (*table.Table, error) {
	idx, err := t.Indices(names)
	if err != nil {
		return nil, fmt.Errorf("drop missing: %w", err)
	}
	if len(names) == 0 {
		idx = make([]int, t.NumCols())
		for i := range idx {
			idx[i] = i
		}
	}
	var rows []int
	for r := 0; r < t.NumRows(); r++ {
		complete := true
		for _, c := range idx {
			if t.At(r, c).IsMissing() {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, r)
		}
	}
	return t.Take(rows), nil
}

// Mutate adds a computed column, or replaces it in place when it exists.
func Mutate(t *table.Table, name string, fn func(table.Row) table.Value) (*table.Table, error) {
	vals := make([]table.Value, t.NumRows())
	for r := range vals {
		vals[r] = fn(t.Row(r))
	}
	cols := t.Columns()
	replaced := false
	for i := range cols {
		if cols[i].Name == name {
			cols[i].Values = vals
			replaced = true
		}
	}
	if !replaced {
		cols = append(cols, table.Column{Name: name, Values: vals})
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("mutate: %w", err)
	}
	return out, nil
}

// SortKey orders by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// ParseSortKeys reads "col" or "-col" (descending) entries.
func ParseSortKeys(specs []string) []SortKey {
	keys := make([]SortKey, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "-") {
			keys = append(keys, SortKey{Column: s[1:], Desc: true})
			continue
		}
		keys = append(keys, SortKey{Column: s})
	}
	return keys
}

// Arrange stable-sorts rows by the keys. Missing values sort last in either direction.
func Arrange(t *table.Table, keys ...SortKey) (*table.Table, error) {
	idx := make([]int, len(keys))
	for i, k := range keys {
		c, err := t.Index(k.Column)
		if err != nil {
			return nil, fmt.Errorf("arrange: %w", err)
		}
		idx[i] = c
	}
	rows := make([]int, t.NumRows())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		for i, c := range idx {
			va, vb := t.At(rows[a], c), t.At(rows[b], c)
			if va.IsMissing() != vb.IsMissing() {
				return vb.IsMissing()
			}
			d := table.Compare(va, vb)
			if d == 0 {
				continue
			}
			if keys[i].Desc {
				return d > 0
			}
			return d < 0
		}
		return false
	})
	return t.Take(rows), nil
}

// JoinKind selects inner or left join semantics.
type JoinKind string

const (
	InnerJoin JoinKind = "inner"
	LeftJoin  JoinKind = "left"
)

// JoinOptions describes an equi-join on shared key columns.
type JoinOptions struct {
	By   []string
	Kind JoinKind
}

// Join matches rows of left and right on the By columns. Every matching pair
// yields one row, in left order then right order. A left join keeps unmatched
// left rows with missing right cells. Non-key names present on both sides get
// ".x" and ".y" suffixes.
func Join(left, right *table.Table, opt JoinOptions) (*table.Table, error) {
	kind := opt.Kind
	if kind == "" {
		kind = LeftJoin
	}
	if kind != InnerJoin && kind != LeftJoin {
		return nil, fmt.Errorf("join: %w: kind %q (use inner|left)", ErrInvalidOption, kind)
	}
	if len(opt.By) == 0 {
		return nil, fmt.Errorf("join: %w: by columns are required", ErrInvalidOption)
	}
	lk, err := left.Indices(opt.By)
	if err != nil {
		return nil, fmt.Errorf("join: left: %w", err)
	}
	rk, err := right.Indices(opt.By)
	if err != nil {
		return nil, fmt.Errorf("join: right: %w", err)
	}
	isRightKey := make(map[int]bool, len(rk))
	for _, c := range rk {
		isRightKey[c] = true
	}
	var rightCols []int
	for c := 0; c < right.NumCols(); c++ {
		if !isRightKey[c] {
			rightCols = append(rightCols, c)
		}
	}

	index := map[string][]int{}
	tuple := make([]table.Value, len(rk))
	for r := 0; r < right.NumRows(); r++ {
		for i, c := range rk {
			tuple[i] = right.At(r, c)
		}
		k := table.TupleKey(tuple)
		index[k] = append(index[k], r)
	}

	byName := make(map[string]bool, len(opt.By))
	for _, n := range opt.By {
		byName[n] = true
	}
	lNames, rNames := left.Names(), right.Names()
	rightHas := map[string]bool{}
	for _, c := range rightCols {
		rightHas[rNames[c]] = true
	}
	names := make([]string, 0, len(lNames)+len(rightCols))
	for _, n := range lNames {
		if !byName[n] && rightHas[n] {
			n += ".x"
		}
		names = append(names, n)
	}
	leftHas := map[string]bool{}
	for _, n := range lNames {
		leftHas[n] = true
	}
	for _, c := range rightCols {
		n := rNames[c]
		if leftHas[n] {
			n += ".y"
		}
		names = append(names, n)
	}

	b := table.NewBuilder(names...)
	row := make([]table.Value, len(names))
	ltuple := make([]table.Value, len(lk))
	for r := 0; r < left.NumRows(); r++ {
		for c := 0; c < left.NumCols(); c++ {
			row[c] = left.At(r, c)
		}
		for i, c := range lk {
			ltuple[i] = left.At(r, c)
		}
		matches := index[table.TupleKey(ltuple)]
		if len(matches) == 0 {
			if kind == InnerJoin {
				continue
			}
			for i := range rightCols {
				row[left.NumCols()+i] = table.Missing()
			}
			if err := b.Append(row...); err != nil {
				return nil, fmt.Errorf("join: %w", err)
			}
			continue
		}
		for _, m := range matches {
			for i, c := range rightCols {
				row[left.NumCols()+i] = right.At(m, c)
			}
			if err := b.Append(row...); err != nil {
				return nil, fmt.Errorf("join: %w", err)
			}
		}
	}
	out, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	return out, nil
}
