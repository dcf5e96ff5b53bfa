// Package analysis builds the Markdown dataset summary printed by the
// describe commands.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/stats"
	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

// Options controls what goes into a report.
type Options struct {
	// SampleRows is the number of leading rows shown; 0 disables the section.
	SampleRows int
	// GroupBy adds a per-group summary of every numeric column.
	GroupBy []string
	// Correlations lists the strongest Pearson pairs among numeric columns.
	Correlations bool
	// Outliers counts robust |z| (MAD based) above OutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
	// MaxRows is the row limit the table was read with, used only to note
	// that the input may have been cut short.
	MaxRows int
}

// DefaultOptions returns reasonable defaults for dataset summaries.
func DefaultOptions() Options {
	return Options{SampleRows: 5, Outliers: true, OutlierThreshold: 3.5}
}

const (
	maxTopValues   = 8
	maxGroups      = 20
	maxGroupCols   = 6
	maxCorrPairs   = 10
	minOutlierRows = 8
	maxCategoryLen = 64
)

// Report is a markdown-friendly description of a table.
type Report struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Groups   []GroupResult
	Corr     []PairCorr
	Samples  *table.Table
	Warnings []string
}

// ColumnSummary captures the inferred kind and statistics of one column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|categorical|text|empty
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Moments          stats.Moments
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values, most frequent first
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult is one group of the group-by section.
type GroupResult struct {
	Key     string
	Size    int
	Metrics []GroupMetric
}

type GroupMetric struct {
	Column         string
	Mean, Min, Max float64
}

// PairCorr is a correlation between two numeric columns.
type PairCorr struct {
	A, B string
	R    float64
	N    int
}

// Describe summarizes every column of t. name labels the report.
func Describe(name string, t *table.Table, opt Options) (*Report, error) {
	rep := &Report{Name: name, Rows: t.NumRows()}
	var numeric []string
	for _, col := range t.Columns() {
		s := summarizeColumn(col, opt)
		if s.Kind == "numeric" {
			numeric = append(numeric, col.Name)
		}
		rep.Cols = append(rep.Cols, s)
	}
	if opt.SampleRows > 0 && t.NumRows() > 0 {
		rep.Samples = t.Head(opt.SampleRows)
	}
	if opt.MaxRows > 0 && t.NumRows() >= opt.MaxRows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("read stopped at the %d row limit; later rows are not summarized", opt.MaxRows))
	}
	if len(opt.GroupBy) > 0 {
		groups, err := groupSummary(t, opt.GroupBy, numeric)
		if err != nil {
			return nil, err
		}
		rep.Groups = groups
	}
	if opt.Correlations {
		if len(numeric) < 2 {
			rep.Warnings = append(rep.Warnings, "correlations need at least two numeric columns")
		} else {
			corr, err := correlations(t, numeric)
			if err != nil {
				return nil, err
			}
			rep.Corr = corr
		}
	}
	return rep, nil
}

func summarizeColumn(col table.Column, opt Options) ColumnSummary {
	s := ColumnSummary{Name: col.Name}
	var xs []float64
	cats := map[string]int{}
	strs := 0
	for _, v := range col.Values {
		switch {
		case v.IsMissing():
			s.Missing++
			continue
		case v.IsNumber():
			x, _ := v.Float()
			xs = append(xs, x)
		default:
			strs++
			txt, _ := v.Text()
			if len(txt) <= maxCategoryLen {
				cats[txt]++
			} else if len(s.ExampleTexts) < 3 {
				s.ExampleTexts = append(s.ExampleTexts, txt)
			}
		}
		s.NonNull++
	}
	switch {
	case s.NonNull == 0:
		s.Kind = "empty"
	case strs == 0:
		s.Kind = "numeric"
		s.Moments, _ = stats.Describe(xs)
		s.Unique = distinct(xs)
		if opt.Outliers && len(xs) >= minOutlierRows {
			s.OutlierThreshold = opt.OutlierThreshold
			if s.OutlierThreshold <= 0 {
				s.OutlierThreshold = 3.5
			}
			s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(xs, s.OutlierThreshold)
		}
	case len(cats) > 0:
		s.Kind = "categorical"
		s.Unique = len(cats)
		s.TopValues = topValues(cats, maxTopValues)
	default:
		s.Kind = "text"
	}
	return s
}

func distinct(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}

// robustOutliers counts values whose modified z-score 0.6745·(x-median)/MAD
// exceeds thr. A zero MAD reports nothing.
func robustOutliers(xs []float64, thr float64) (int, float64) {
	median, mad := stats.MedianMAD(xs)
	if mad == 0 {
		return 0, 0
	}
	var n int
	var maxZ float64
	for _, x := range xs {
		z := math.Abs(0.6745 * (x - median) / mad)
		if z > thr {
			n++
		}
		maxZ = math.Max(maxZ, z)
	}
	return n, maxZ
}

func topValues(cats map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

// groupSummary runs one Summarize over the group columns: a row count plus
// mean, min and max of each numeric column, skipping missing cells. Groups are
// ordered largest first.
func groupSummary(t *table.Table, by, numeric []string) ([]GroupResult, error) {
	isKey := map[string]bool{}
	for _, b := range by {
		isKey[b] = true
	}
	countName := "n"
	for t.Has(countName) {
		countName = "_" + countName
	}
	aggs := []tidy.Aggregation{{Name: countName, Func: tidy.Count}}
	var cols []string
	for _, c := range numeric {
		if isKey[c] || len(cols) == maxGroupCols {
			continue
		}
		cols = append(cols, c)
		for _, fn := range []tidy.Reducer{tidy.Mean, tidy.Min, tidy.Max} {
			aggs = append(aggs, tidy.Aggregation{Name: c + "\x00" + string(fn), Func: fn, Column: c, SkipMissing: true})
		}
	}
	keys := []tidy.SortKey{{Column: countName, Desc: true}}
	for _, b := range by {
		keys = append(keys, tidy.SortKey{Column: b})
	}
	sum, err := tidy.From(t).
		Summarize(tidy.SummarizeOptions{By: by, Aggs: aggs}).
		Arrange(keys...).
		Head(maxGroups).
		Table()
	if err != nil {
		return nil, fmt.Errorf("group-by summary: %w", err)
	}

	out := make([]GroupResult, 0, sum.NumRows())
	for r := 0; r < sum.NumRows(); r++ {
		row := sum.Row(r)
		parts := make([]string, len(by))
		for i, b := range by {
			parts[i] = b + "=" + table.SafeVal(row.Get(b).String())
		}
		size, _ := row.Get(countName).Float()
		g := GroupResult{Key: strings.Join(parts, " | "), Size: int(size)}
		for _, c := range cols {
			mean, ok := row.Get(c + "\x00" + string(tidy.Mean)).Float()
			if !ok {
				continue
			}
			lo, _ := row.Get(c + "\x00" + string(tidy.Min)).Float()
			hi, _ := row.Get(c + "\x00" + string(tidy.Max)).Float()
			g.Metrics = append(g.Metrics, GroupMetric{Column: c, Mean: mean, Min: lo, Max: hi})
		}
		out = append(out, g)
	}
	return out, nil
}

// correlations returns the strongest pairs by |r|, each computed over the
// rows where both columns are present.
func correlations(t *table.Table, numeric []string) ([]PairCorr, error) {
	var pairs []PairCorr
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			xs, ys, err := stats.Pairs(t, numeric[i], numeric[j])
			if err != nil {
				return nil, err
			}
			r := stats.Correlation(xs, ys)
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: numeric[i], B: numeric[j], R: r, N: len(xs)})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if len(pairs) > maxCorrPairs {
		pairs = pairs[:maxCorrPairs]
	}
	return pairs, nil
}

// Markdown renders the report in the bracketed-section layout.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", table.SafeVal(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			m := c.Moments
			b.WriteString(fmt.Sprintf(": min %.4g, median %.4g, max %.4g, mean %.4g, std %.4g", m.Min, m.Median, m.Max, m.Mean, m.StdDev))
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case "categorical":
			b.WriteString(": top ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", table.SafeVal(kv.Value), kv.Count))
			}
			if c.Unique > len(c.TopValues) {
				b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
			}
		case "text":
			if len(c.ExampleTexts) > 0 {
				b.WriteString(": e.g. ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(table.SafeVal(clip(ex, 80)))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			for _, m := range g.Metrics {
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g)\n", m.Column, m.Mean, m.Min, m.Max))
			}
		}
	}
	if len(r.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range r.Corr {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N))
		}
	}
	if r.Samples != nil {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString(r.Samples.Markdown(0))
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// clip shortens s to at most max runes, marking the cut with "...".
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
