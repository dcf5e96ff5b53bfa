package tidy

import (
	"fmt"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// GatherOptions describes a wide-to-long reshape.
type GatherOptions struct {
	// Key names the new column holding the former column names.
	Key string
	// Value names the new column holding the cells.
	Value string
	// Columns lists the value columns explicitly. When empty every column
	// not in Hold is gathered.
	Columns []string
	// Hold lists the key columns repeated on every output row. When empty
	// and Columns is set, every column not in Columns is held.
	Hold []string
	// DropMissing drops output rows whose value is missing.
	DropMissing bool
}

// Gather collapses value columns into key/value pairs. Output rows are
// column-major: every input row for the first value column, then the second.
// With no value columns the result is an empty table of the held columns.
func Gather(t *table.Table, opt GatherOptions) (*table.Table, error) {
	if opt.Key == "" || opt.Value == "" {
		return nil, fmt.Errorf("gather: %w: key and value names are required", ErrInvalidOption)
	}
	if opt.Key == opt.Value {
		return nil, fmt.Errorf("gather: %w: key and value names must differ", ErrInvalidOption)
	}
	hold, gather, err := splitColumns(t, opt.Hold, opt.Columns)
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	if len(gather) == 0 {
		cols := make([]table.Column, len(hold))
		for i, h := range hold {
			cols[i] = table.Column{Name: t.Names()[h]}
		}
		return table.New(cols...)
	}
	names := t.Names()
	outNames := make([]string, 0, len(hold)+2)
	for _, h := range hold {
		outNames = append(outNames, names[h])
	}
	outNames = append(outNames, opt.Key, opt.Value)

	b := table.NewBuilder(outNames...)
	row := make([]table.Value, len(outNames))
	for _, g := range gather {
		varName := table.Str(names[g])
		for r := 0; r < t.NumRows(); r++ {
			v := t.At(r, g)
			if opt.DropMissing && v.IsMissing() {
				continue
			}
			for i, h := range hold {
				row[i] = t.At(r, h)
			}
			row[len(hold)] = varName
			row[len(hold)+1] = v
			if err := b.Append(row...); err != nil {
				return nil, fmt.Errorf("gather: %w", err)
			}
		}
	}
	out, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	return out, nil
}

// splitColumns resolves the held and gathered column positions. An explicit
// list keeps the caller's order; a derived list keeps table order.
func splitColumns(t *table.Table, hold, gather []string) ([]int, []int, error) {
	var holdIdx, gatherIdx []int
	switch {
	case len(gather) > 0:
		gi, err := t.Indices(gather)
		if err != nil {
			return nil, nil, err
		}
		inGather := make(map[int]bool, len(gi))
		for _, i := range gi {
			inGather[i] = true
		}
		if len(hold) > 0 {
			hi, err := t.Indices(hold)
			if err != nil {
				return nil, nil, err
			}
			for _, i := range hi {
				if inGather[i] {
					return nil, nil, fmt.Errorf("%w: column %q is both held and gathered", ErrInvalidOption, t.Names()[i])
				}
			}
			holdIdx = hi
		} else {
			for i := 0; i < t.NumCols(); i++ {
				if !inGather[i] {
					holdIdx = append(holdIdx, i)
				}
			}
		}
		gatherIdx = gi
	default:
		hi, err := t.Indices(hold)
		if err != nil {
			return nil, nil, err
		}
		inHold := make(map[int]bool, len(hi))
		for _, i := range hi {
			inHold[i] = true
		}
		for i := 0; i < t.NumCols(); i++ {
			if !inHold[i] {
				gatherIdx = append(gatherIdx, i)
			}
		}
		holdIdx = hi
	}
	return holdIdx, gatherIdx, nil
}
