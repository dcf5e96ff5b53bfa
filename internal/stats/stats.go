// Package stats computes the descriptive summaries behind charts and the
// describe and fit commands. Quantiles, moments, binning, normal quantiles
// and least squares come from go-moremath.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

// ErrTooFewValues is returned when a summary needs more data than it got.
var ErrTooFewValues = errors.New("too few values")

// Numeric returns the non-missing cells of a column as floats. A string cell
// is a type mismatch.
func Numeric(t *table.Table, name string) ([]float64, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(col))
	for r, v := range col {
		if v.IsMissing() {
			continue
		}
		x, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("%w: column %q row %d holds %q", tidy.ErrTypeMismatch, name, r, v.String())
		}
		out = append(out, x)
	}
	return out, nil
}

// Pairs returns the rows where both columns are numeric, dropping rows where
// either is missing.
func Pairs(t *table.Table, x, y string) ([]float64, []float64, error) {
	xi, err := t.Index(x)
	if err != nil {
		return nil, nil, err
	}
	yi, err := t.Index(y)
	if err != nil {
		return nil, nil, err
	}
	var xs, ys []float64
	for r := 0; r < t.NumRows(); r++ {
		xv, yv := t.At(r, xi), t.At(r, yi)
		if xv.IsMissing() || yv.IsMissing() {
			continue
		}
		xf, ok := xv.Float()
		if !ok {
			return nil, nil, fmt.Errorf("%w: column %q row %d holds %q", tidy.ErrTypeMismatch, x, r, xv.String())
		}
		yf, ok := yv.Float()
		if !ok {
			return nil, nil, fmt.Errorf("%w: column %q row %d holds %q", tidy.ErrTypeMismatch, y, r, yv.String())
		}
		xs = append(xs, xf)
		ys = append(ys, yf)
	}
	return xs, ys, nil
}

// Moments is the location and spread of a sample.
type Moments struct {
	N      int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Median float64
}

// Describe summarizes xs. StdDev is the sample standard deviation and is 0
// for fewer than two values.
func Describe(xs []float64) (Moments, error) {
	if len(xs) == 0 {
		return Moments{}, ErrTooFewValues
	}
	s := sample(xs)
	lo, hi := s.Bounds()
	m := Moments{N: len(xs), Min: lo, Max: hi, Mean: s.Mean(), Median: s.Quantile(0.5)}
	if len(xs) > 1 {
		m.StdDev = s.StdDev()
	}
	return m, nil
}

// sample returns a sorted copy wrapped for go-moremath.
func sample(xs []float64) *stats.Sample {
	cp := make([]float64, len(xs))
	copy(cp, xs)
	return (&stats.Sample{Xs: cp}).Sort()
}

// Bin is one histogram bucket covering [Lo, Hi); the last bin includes Hi.
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Histogram buckets xs into nbins equal-width bins spanning the sample range.
// A constant sample yields one bin holding every value.
func Histogram(xs []float64, nbins int) ([]Bin, error) {
	if len(xs) == 0 {
		return nil, ErrTooFewValues
	}
	if nbins <= 0 {
		nbins = SturgesBins(len(xs))
	}
	lo, hi := stats.Bounds(xs)
	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: len(xs)}}, nil
	}
	h := stats.NewLinearHist(lo, hi, nbins)
	for _, x := range xs {
		h.Add(x)
	}
	under, counts, over := h.Counts()
	width := (hi - lo) / float64(nbins)
	bins := make([]Bin, nbins)
	for i := range bins {
		bins[i] = Bin{Lo: lo + float64(i)*width, Hi: lo + float64(i+1)*width, Count: int(counts[i])}
	}
	bins[0].Count += int(under)
	// The maximum lands in the overflow bucket; it belongs to the last bin.
	bins[nbins-1].Count += int(over)
	bins[nbins-1].Hi = hi
	return bins, nil
}

// SturgesBins is the default bin count for n values.
func SturgesBins(n int) int {
	if n < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(n)))) + 1
}

// Box is a five-number summary with Tukey whiskers at 1.5 IQR. Q1 and Q3
// are Tukey's hinges, the medians of the lower and upper halves.
type Box struct {
	N            int
	Min          float64
	Q1           float64
	Median       float64
	Q3           float64
	Max          float64
	LowerWhisker float64
	UpperWhisker float64
	Outliers     []float64
}

// BoxPlot computes a Box for xs. Whiskers reach the most extreme values within
// 1.5 IQR of the quartiles; values beyond them are outliers, in ascending order.
func BoxPlot(xs []float64) (Box, error) {
	if len(xs) == 0 {
		return Box{}, ErrTooFewValues
	}
	s := sample(xs)
	b := Box{
		N:      len(xs),
		Min:    s.Xs[0],
		Max:    s.Xs[len(s.Xs)-1],
		Median: s.Quantile(0.5),
	}
	b.Q1, b.Q3 = hinges(s.Xs)
	iqr := b.Q3 - b.Q1
	lo, hi := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.LowerWhisker, b.UpperWhisker = b.Max, b.Min
	for _, x := range s.Xs {
		if x < lo || x > hi {
			b.Outliers = append(b.Outliers, x)
			continue
		}
		if x < b.LowerWhisker {
			b.LowerWhisker = x
		}
		if x > b.UpperWhisker {
			b.UpperWhisker = x
		}
	}
	return b, nil
}

// hinges returns the lower and upper hinges of sorted xs, as in R's fivenum.
func hinges(xs []float64) (lower, upper float64) {
	n := float64(len(xs))
	d := math.Floor((n+3)/2) / 2
	at := func(pos float64) float64 {
		return 0.5 * (xs[int(math.Floor(pos))-1] + xs[int(math.Ceil(pos))-1])
	}
	return at(d), at(n + 1 - d)
}

// GroupBox is the box summary of one group.
type GroupBox struct {
	Group string
	Box   Box
}

// BoxPlotBy computes one Box per distinct value of the group column, in order
// of first occurrence. Rows with a missing value are skipped.
func BoxPlotBy(t *table.Table, value, group string) ([]GroupBox, error) {
	vi, err := t.Index(value)
	if err != nil {
		return nil, err
	}
	gi, err := t.Index(group)
	if err != nil {
		return nil, err
	}
	var order []string
	vals := map[string][]float64{}
	for r := 0; r < t.NumRows(); r++ {
		v := t.At(r, vi)
		if v.IsMissing() {
			continue
		}
		x, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("%w: column %q row %d holds %q", tidy.ErrTypeMismatch, value, r, v.String())
		}
		g := t.At(r, gi).String()
		if _, seen := vals[g]; !seen {
			order = append(order, g)
		}
		vals[g] = append(vals[g], x)
	}
	out := make([]GroupBox, 0, len(order))
	for _, g := range order {
		b, err := BoxPlot(vals[g])
		if err != nil {
			return nil, err
		}
		out = append(out, GroupBox{Group: g, Box: b})
	}
	return out, nil
}

// QQPoint pairs a theoretical standard-normal quantile with a sample value.
type QQPoint struct {
	Theoretical float64
	Sample      float64
}

// QQNorm returns normal quantile-quantile points for xs in ascending sample
// order. Plotting positions are (i-a)/(n+1-2a) with a = 3/8 for n <= 10 and
// 1/2 otherwise.
func QQNorm(xs []float64) ([]QQPoint, error) {
	if len(xs) == 0 {
		return nil, ErrTooFewValues
	}
	s := sample(xs)
	n := float64(len(xs))
	a := 0.5
	if len(xs) <= 10 {
		a = 3.0 / 8
	}
	out := make([]QQPoint, len(xs))
	for i, x := range s.Xs {
		p := (float64(i+1) - a) / (n + 1 - 2*a)
		out[i] = QQPoint{Theoretical: stats.StdNormal.InvCDF(p), Sample: x}
	}
	return out, nil
}

// Correlation is Pearson's r over paired values. It is NaN when either side
// has zero variance.
func Correlation(xs, ys []float64) float64 {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return math.NaN()
	}
	var sx, sy, sxx, syy, sxy float64
	for i := range xs {
		x, y := xs[i], ys[i]
		sx += x
		sy += y
		sxx += x * x
		syy += y * y
		sxy += x * y
	}
	denom := math.Sqrt((n*sxx - sx*sx) * (n*syy - sy*sy))
	if denom == 0 {
		return math.NaN()
	}
	r := (n*sxy - sx*sy) / denom
	return math.Max(-1, math.Min(1, r))
}

// MedianMAD returns the median and the median absolute deviation.
func MedianMAD(xs []float64) (median, mad float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	median = sample(xs).Quantile(0.5)
	dev := make([]float64, len(xs))
	for i, x := range xs {
		dev[i] = math.Abs(x - median)
	}
	sort.Float64s(dev)
	mad = stats.Sample{Xs: dev, Sorted: true}.Quantile(0.5)
	return median, mad
}
