package table

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateColumn is returned when a column name would appear twice.
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrRagged is returned when columns differ in length.
	ErrRagged = errors.New("columns have different lengths")
)

// Table is an immutable, column-oriented rectangle of Values.
// Operations never modify a Table; they return a new one.
type Table struct {
	names []string
	cols  [][]Value
	index map[string]int
	nrows int
}

// Column pairs a name with its cells; it is the input unit for New.
type Column struct {
	Name   string
	Values []Value
}

// Col is shorthand for building a Column literal.
func Col(name string, vals ...Value) Column { return Column{Name: name, Values: vals} }

// New builds a table from columns. Names must be unique and lengths equal.
// The cell slices are copied.
func New(cols ...Column) (*Table, error) {
	t := &Table{
		names: make([]string, 0, len(cols)),
		cols:  make([][]Value, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		if i == 0 {
			t.nrows = len(c.Values)
		} else if len(c.Values) != t.nrows {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrRagged, c.Name, len(c.Values), t.nrows)
		}
		vals := make([]Value, len(c.Values))
		copy(vals, c.Values)
		t.index[c.Name] = len(t.names)
		t.names = append(t.names, c.Name)
		t.cols = append(t.cols, vals)
	}
	return t, nil
}

// MustNew is New for literals in tests and examples; it panics on error.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a zero-row table with the given column names.
func Empty(names ...string) (*Table, error) {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return New(cols...)
}

// adopt wraps already-owned slices without copying. Callers in this package
// guarantee the invariants.
func adopt(names []string, cols [][]Value, nrows int) *Table {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return &Table{names: names, cols: cols, index: idx, nrows: nrows}
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.nrows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.names) }

// Names returns a copy of the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of a column.
func (t *Table) Index(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return i, nil
}

// Indices resolves several names at once.
func (t *Table) Indices(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		idx, err := t.Index(n)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Column returns a copy of a column's cells.
func (t *Table) Column(name string) ([]Value, error) {
	i, err := t.Index(name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, t.nrows)
	copy(out, t.cols[i])
	return out, nil
}

// At returns the cell at row r, column c.
func (t *Table) At(r, c int) Value { return t.cols[c][r] }

// Row returns a copy of row r.
func (t *Table) Row(r int) Row {
	vals := make([]Value, len(t.cols))
	for c := range t.cols {
		vals[c] = t.cols[c][r]
	}
	return Row{t: t, vals: vals}
}

// Columns returns the table as Column values, for rebuilding with New.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.names))
	for i, n := range t.names {
		vals := make([]Value, t.nrows)
		copy(vals, t.cols[i])
		out[i] = Column{Name: n, Values: vals}
	}
	return out
}

// Records renders the table as a header plus string rows.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.nrows+1)
	out = append(out, t.Names())
	for r := 0; r < t.nrows; r++ {
		rec := make([]string, len(t.cols))
		for c := range t.cols {
			rec[c] = t.cols[c][r].String()
		}
		out = append(out, rec)
	}
	return out
}

// Equal reports whether two tables have the same names, order and cells.
func (t *Table) Equal(o *Table) bool {
	if t.nrows != o.nrows || len(t.names) != len(o.names) {
		return false
	}
	for i := range t.names {
		if t.names[i] != o.names[i] {
			return false
		}
		for r := 0; r < t.nrows; r++ {
			if !t.cols[i][r].Equal(o.cols[i][r]) {
				return false
			}
		}
	}
	return true
}

// Row is a read-only view of one table row.
type Row struct {
	t    *Table
	vals []Value
}

// Get returns the cell in the named column, or missing if it does not exist.
func (r Row) Get(name string) Value {
	i, ok := r.t.index[name]
	if !ok {
		return Missing()
	}
	return r.vals[i]
}

// Values returns the row cells in column order.
func (r Row) Values() []Value {
	out := make([]Value, len(r.vals))
	copy(out, r.vals)
	return out
}

// Builder accumulates rows for a fixed set of column names.
type Builder struct {
	names []string
	cols  [][]Value
	nrows int
}

// NewBuilder starts a table with the given column names.
func NewBuilder(names ...string) *Builder {
	n := make([]string, len(names))
	copy(n, names)
	return &Builder{names: n, cols: make([][]Value, len(names))}
}

// Append adds one row; the value count must match the column count.
func (b *Builder) Append(vals ...Value) error {
	if len(vals) != len(b.names) {
		return fmt.Errorf("%w: row has %d values, want %d", ErrRagged, len(vals), len(b.names))
	}
	for i, v := range vals {
		b.cols[i] = append(b.cols[i], v)
	}
	b.nrows++
	return nil
}

// Build validates names and returns the table. The builder must not be reused.
func (b *Builder) Build() (*Table, error) {
	seen := make(map[string]struct{}, len(b.names))
	for _, n := range b.names {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, n)
		}
		seen[n] = struct{}{}
	}
	for i := range b.cols {
		if b.cols[i] == nil {
			b.cols[i] = []Value{}
		}
	}
	return adopt(b.names, b.cols, b.nrows), nil
}

// Take returns a new table holding the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	cols := make([][]Value, len(t.cols))
	for c := range t.cols {
		col := make([]Value, len(rows))
		for i, r := range rows {
			col[i] = t.cols[c][r]
		}
		cols[c] = col
	}
	names := make([]string, len(t.names))
	copy(names, t.names)
	return adopt(names, cols, len(rows))
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.nrows || n < 0 {
		n = t.nrows
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Take(rows)
}
