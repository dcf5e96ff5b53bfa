package tidy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// Pipeline chains verbs over a table. Each step sees the previous step's
// output; the first failure stops the chain and is reported by Table.
// Every method returns a new Pipeline and leaves its receiver unchanged, so
// one base can feed several branches.
//
//	out, err := tidy.From(pew).
//		Gather(tidy.GatherOptions{Key: "income", Value: "frequency", Hold: []string{"religion"}}).
//		Arrange(tidy.SortKey{Column: "religion"}).
//		Table()
type Pipeline struct {
	cur   *table.Table
	err   error
	steps int
	log   *zap.Logger
}

// From starts a pipeline at t.
func From(t *table.Table) *Pipeline {
	return &Pipeline{cur: t, log: zap.NewNop()}
}

// WithLogger sets the logger used to trace each step at debug level.
func (p *Pipeline) WithLogger(l *zap.Logger) *Pipeline {
	next := *p
	if l != nil {
		next.log = l
	}
	return &next
}

// Table returns the final table or the first error.
func (p *Pipeline) Table() (*table.Table, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.cur, nil
}

// Then applies an arbitrary step.
func (p *Pipeline) Then(name string, fn func(*table.Table) (*table.Table, error)) *Pipeline {
	if p.err != nil {
		return p
	}
	next := *p
	next.steps++
	out, err := fn(p.cur)
	if err != nil {
		next.err = fmt.Errorf("step %d (%s): %w", next.steps, name, err)
		next.log.Debug("pipeline step failed", zap.Int("step", next.steps), zap.String("op", name), zap.Error(err))
		return &next
	}
	next.log.Debug("pipeline step",
		zap.Int("step", next.steps),
		zap.String("op", name),
		zap.Int("rows_in", p.cur.NumRows()),
		zap.Int("rows_out", out.NumRows()),
		zap.Int("cols_out", out.NumCols()))
	next.cur = out
	return &next
}

func (p *Pipeline) Gather(opt GatherOptions) *Pipeline {
	return p.Then("gather", func(t *table.Table) (*table.Table, error) { return Gather(t, opt) })
}

func (p *Pipeline) Spread(opt SpreadOptions) *Pipeline {
	return p.Then("spread", func(t *table.Table) (*table.Table, error) { return Spread(t, opt) })
}

func (p *Pipeline) Separate(opt SeparateOptions) *Pipeline {
	return p.Then("separate", func(t *table.Table) (*table.Table, error) { return Separate(t, opt) })
}

func (p *Pipeline) Unite(opt UniteOptions) *Pipeline {
	return p.Then("unite", func(t *table.Table) (*table.Table, error) { return Unite(t, opt) })
}

func (p *Pipeline) Summarize(opt SummarizeOptions) *Pipeline {
	return p.Then("summarize", func(t *table.Table) (*table.Table, error) { return Summarize(t, opt) })
}

func (p *Pipeline) Select(names ...string) *Pipeline {
	return p.Then("select", func(t *table.Table) (*table.Table, error) { return Select(t, names...) })
}

func (p *Pipeline) Rename(mapping map[string]string) *Pipeline {
	return p.Then("rename", func(t *table.Table) (*table.Table, error) { return Rename(t, mapping) })
}

func (p *Pipeline) Filter(keep func(table.Row) bool) *Pipeline {
	return p.Then("filter", func(t *table.Table) (*table.Table, error) { return Filter(t, keep), nil })
}

func (p *Pipeline) DropMissing(names ...string) *Pipeline {
	return p.Then("drop_missing", func(t *table.Table) (*table.Table, error) { return DropMissing(t, names...) })
}

func (p *Pipeline) Mutate(name string, fn func(table.Row) table.Value) *Pipeline {
	return p.Then("mutate", func(t *table.Table) (*table.Table, error) { return Mutate(t, name, fn) })
}

func (p *Pipeline) Arrange(keys ...SortKey) *Pipeline {
	return p.Then("arrange", func(t *table.Table) (*table.Table, error) { return Arrange(t, keys...) })
}

func (p *Pipeline) Join(right *table.Table, opt JoinOptions) *Pipeline {
	return p.Then("join", func(t *table.Table) (*table.Table, error) { return Join(t, right, opt) })
}

func (p *Pipeline) Head(n int) *Pipeline {
	return p.Then("head", func(t *table.Table) (*table.Table, error) { return t.Head(n), nil })
}
