package tidy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// Reducer names a group reduction.
type Reducer string

const (
	Count    Reducer = "count"
	Sum      Reducer = "sum"
	Mean     Reducer = "mean"
	Min      Reducer = "min"
	Max      Reducer = "max"
	Distinct Reducer = "distinct"
)

// Aggregation is one output column of Summarize.
type Aggregation struct {
	// Name of the output column.
	Name string
	Func Reducer
	// Column is the input column; unused by Count.
	Column string
	// SkipMissing ignores missing cells. Otherwise a missing cell makes
	// sum, mean, min and max missing for its group. Distinct counts missing
	// as its own value unless skipped.
	SkipMissing bool
}

// ParseAggregation reads "name=func" or "name=func:column", as used by the
// CLI and recipes, e.g. "n=count" or "total=sum:cases".
func ParseAggregation(spec string) (Aggregation, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" || rest == "" {
		return Aggregation{}, fmt.Errorf("%w: aggregation %q (want name=func[:column])", ErrInvalidOption, spec)
	}
	fn, col, _ := strings.Cut(rest, ":")
	a := Aggregation{Name: strings.TrimSpace(name), Func: Reducer(strings.ToLower(strings.TrimSpace(fn))), Column: strings.TrimSpace(col)}
	return a, a.validate()
}

func (a Aggregation) validate() error {
	switch a.Func {
	case Count:
		return nil
	case Sum, Mean, Min, Max, Distinct:
		if a.Column == "" {
			return fmt.Errorf("%w: %s needs a column", ErrInvalidOption, a.Func)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown reducer %q", ErrInvalidOption, a.Func)
}

// SummarizeOptions describes group-and-summarize.
type SummarizeOptions struct {
	// By lists the grouping columns; empty summarizes the whole table.
	By   []string
	Aggs []Aggregation
	// Sort orders groups by key values. Otherwise groups appear in order
	// of first occurrence.
	Sort bool
}

type accumulator struct {
	n       int
	sum     float64
	min     float64
	max     float64
	missing bool
	seen    map[string]struct{}
}

// Summarize partitions rows by the By columns and reduces each group to one
// row: the group key columns followed by one column per aggregation.
func Summarize(t *table.Table, opt SummarizeOptions) (*table.Table, error) {
	if len(opt.Aggs) == 0 {
		return nil, fmt.Errorf("summarize: %w: at least one aggregation is required", ErrInvalidOption)
	}
	by, err := t.Indices(opt.By)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	src := make([]int, len(opt.Aggs))
	for i, a := range opt.Aggs {
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("summarize: %w", err)
		}
		if a.Func == Count {
			src[i] = -1
			continue
		}
		ci, err := t.Index(a.Column)
		if err != nil {
			return nil, fmt.Errorf("summarize: %w", err)
		}
		src[i] = ci
	}

	type group struct {
		key  []table.Value
		accs []accumulator
	}
	var groups []*group
	pos := map[string]int{}
	tuple := make([]table.Value, len(by))
	for r := 0; r < t.NumRows(); r++ {
		for i, c := range by {
			tuple[i] = t.At(r, c)
		}
		k := table.TupleKey(tuple)
		gi, ok := pos[k]
		if !ok {
			key := make([]table.Value, len(tuple))
			copy(key, tuple)
			gi = len(groups)
			pos[k] = gi
			groups = append(groups, &group{key: key, accs: make([]accumulator, len(opt.Aggs))})
		}
		g := groups[gi]
		for i, a := range opt.Aggs {
			acc := &g.accs[i]
			if a.Func == Count {
				acc.n++
				continue
			}
			v := t.At(r, src[i])
			if a.Func == Distinct {
				if v.IsMissing() && a.SkipMissing {
					continue
				}
				if acc.seen == nil {
					acc.seen = map[string]struct{}{}
				}
				acc.seen[table.TupleKey([]table.Value{v})] = struct{}{}
				continue
			}
			if v.IsMissing() {
				if !a.SkipMissing {
					acc.missing = true
				}
				continue
			}
			x, ok := v.Float()
			if !ok {
				return nil, fmt.Errorf("summarize: %w: %s(%s) row %d holds %q", ErrTypeMismatch, a.Func, a.Column, r, v.String())
			}
			if acc.n == 0 || x < acc.min {
				acc.min = x
			}
			if acc.n == 0 || x > acc.max {
				acc.max = x
			}
			acc.n++
			acc.sum += x
		}
	}
	// A whole-table summary of an empty table still yields one row.
	if len(by) == 0 && len(groups) == 0 {
		groups = append(groups, &group{accs: make([]accumulator, len(opt.Aggs))})
	}
	if opt.Sort {
		sort.SliceStable(groups, func(i, j int) bool {
			for c := range groups[i].key {
				if d := table.Compare(groups[i].key[c], groups[j].key[c]); d != 0 {
					return d < 0
				}
			}
			return false
		})
	}

	names := append([]string{}, opt.By...)
	for _, a := range opt.Aggs {
		names = append(names, a.Name)
	}
	b := table.NewBuilder(names...)
	row := make([]table.Value, len(names))
	for _, g := range groups {
		copy(row, g.key)
		for i, a := range opt.Aggs {
			row[len(by)+i] = reduce(a.Func, g.accs[i])
		}
		if err := b.Append(row...); err != nil {
			return nil, fmt.Errorf("summarize: %w", err)
		}
	}
	out, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

func reduce(fn Reducer, acc accumulator) table.Value {
	switch fn {
	case Count:
		return table.Num(float64(acc.n))
	case Distinct:
		return table.Num(float64(len(acc.seen)))
	}
	if acc.missing {
		return table.Missing()
	}
	switch fn {
	case Sum:
		return table.Num(acc.sum)
	case Mean:
		if acc.n == 0 {
			return table.Missing()
		}
		return table.Num(acc.sum / float64(acc.n))
	case Min:
		if acc.n == 0 {
			return table.Missing()
		}
		return table.Num(acc.min)
	case Max:
		if acc.n == 0 {
			return table.Missing()
		}
		return table.Num(acc.max)
	}
	return table.Missing()
}
