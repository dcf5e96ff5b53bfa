package recipe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tidyloom-cli/internal/chart"
	"github.com/KaramelBytes/tidyloom-cli/internal/source"
	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

// Runner executes recipes. The zero value reads files with default options
// and cannot run query sources.
type Runner struct {
	// Conn is used for query sources.
	Conn source.ConnConfig
	// Options applies to every file source; per-source delimiter and string
	// columns override it.
	Options  source.Options
	Defaults Defaults
	Log      *zap.Logger
	// DryRun skips writing outputs.
	DryRun bool
}

// Result describes one run.
type Result struct {
	RunID      string
	Table      *table.Table
	OutputPath string
	ChartPath  string
	Elapsed    time.Duration
}

// run carries the per-run database handle so every query source of a recipe
// shares one connection pool.
type run struct {
	*Runner
	rec *Recipe
	db  *sql.DB
}

// Run loads the source, applies every step and writes the outputs.
func (r *Runner) Run(ctx context.Context, rec *Recipe) (*Result, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{RunID: uuid.NewString()}
	log = log.With(zap.String("recipe", rec.Name), zap.String("run_id", res.RunID))
	start := time.Now()

	st := &run{Runner: r, rec: rec}
	defer func() {
		if st.db != nil {
			_ = st.db.Close()
		}
	}()

	in, err := st.load(ctx, rec.Source)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	log.Info("source loaded", zap.Int("rows", in.NumRows()), zap.Int("cols", in.NumCols()))

	p := tidy.From(in).WithLogger(log)
	for _, s := range rec.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p, err = st.apply(ctx, p, s); err != nil {
			return nil, err
		}
	}
	out, err := p.Table()
	if err != nil {
		return nil, err
	}
	res.Table = out

	if !r.DryRun {
		if rec.Output.CSV != "" {
			res.OutputPath = rec.Resolve(rec.Output.CSV)
			if err := source.WriteCSVFile(res.OutputPath, out, r.Options.Delimiter); err != nil {
				return nil, fmt.Errorf("write output: %w", err)
			}
		}
		if c := rec.Output.Chart; c != nil {
			spec, err := chart.Build(out, chart.Options{
				Kind:  chart.Kind(c.Kind),
				Aes:   chart.Aes{X: c.X, Y: c.Y, Group: c.Group},
				Title: c.Title,
				Bins:  c.Bins,
				Fit:   c.Fit,
			})
			if err != nil {
				return nil, err
			}
			res.ChartPath = rec.Resolve(c.Path)
			if err := chart.Write(res.ChartPath, spec); err != nil {
				return nil, fmt.Errorf("write chart: %w", err)
			}
		}
	}
	res.Elapsed = time.Since(start)
	log.Info("recipe finished",
		zap.Int("rows", out.NumRows()),
		zap.Int("cols", out.NumCols()),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// apply returns p extended by one step. Loading a join's right-hand table
// happens here so a failed earlier step never touches the second source.
func (st *run) apply(ctx context.Context, p *tidy.Pipeline, s Step) (*tidy.Pipeline, error) {
	switch s.Op {
	case OpGather:
		return p.Gather(s.gather()), nil
	case OpSpread:
		return p.Spread(s.spread(st.Defaults)), nil
	case OpSeparate:
		return p.Separate(s.separate(st.Defaults)), nil
	case OpUnite:
		return p.Unite(s.unite()), nil
	case OpSummarize:
		opt, err := s.summarize()
		if err != nil {
			return nil, err
		}
		return p.Summarize(opt), nil
	case OpJoin:
		if _, err := p.Table(); err != nil {
			return p, nil
		}
		right, err := st.load(ctx, *s.With)
		if err != nil {
			return nil, fmt.Errorf("load join source: %w", err)
		}
		return p.Join(right, tidy.JoinOptions{By: s.By, Kind: tidy.JoinKind(s.Kind)}), nil
	case OpFilter:
		return p.Then("filter", func(t *table.Table) (*table.Table, error) {
			for _, c := range s.Where {
				if !t.Has(c.Column) {
					return nil, fmt.Errorf("where %s %s: %w: %q", c.Column, c.Op, table.ErrUnknownColumn, c.Column)
				}
			}
			return tidy.Filter(t, s.filter()), nil
		}), nil
	case OpDropMissing:
		return p.DropMissing(s.Columns...), nil
	case OpSelect:
		return p.Select(s.Columns...), nil
	case OpRename:
		return p.Rename(s.Rename), nil
	case OpArrange:
		return p.Arrange(tidy.ParseSortKeys(s.Order)...), nil
	case OpHead:
		return p.Head(s.N), nil
	}
	return nil, fmt.Errorf("unknown op %q", s.Op)
}

func (st *run) load(ctx context.Context, src Source) (*table.Table, error) {
	if src.Query != "" {
		if st.db == nil {
			db, err := source.Open(ctx, st.Conn)
			if err != nil {
				return nil, err
			}
			st.db = db
		}
		return source.Query(ctx, st.db, src.Query)
	}
	opt := st.Options
	if opt.Parse.MissingTokens == nil {
		opt.Parse = table.DefaultParseOptions()
	}
	if src.Delimiter != "" {
		d, err := ParseDelimiter(src.Delimiter)
		if err != nil {
			return nil, err
		}
		opt.Delimiter = d
	}
	if len(src.Strings) > 0 {
		opt.Strings = append(append([]string(nil), opt.Strings...), src.Strings...)
	}
	path := st.rec.Resolve(src.Path)
	if src.Sheet != "" || src.SheetIndex > 0 {
		return source.ReadXLSXFile(path, src.Sheet, src.SheetIndex, opt)
	}
	return source.ReadFile(path, opt)
}

// ParseDelimiter accepts a single character or "tab".
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: delimiter %q must be one character", tidy.ErrInvalidOption, s)
	}
	return r[0], nil
}
