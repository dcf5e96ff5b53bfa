package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

func TestDescribe(t *testing.T) {
	m, err := Describe([]float64{4, 1, 3, 2, 5})
	require.NoError(t, err)
	require.Equal(t, 5, m.N)
	require.Equal(t, 1.0, m.Min)
	require.Equal(t, 5.0, m.Max)
	require.InDelta(t, 3.0, m.Mean, 1e-12)
	require.InDelta(t, 3.0, m.Median, 1e-9)
	require.InDelta(t, math.Sqrt(2.5), m.StdDev, 1e-9)

	_, err = Describe(nil)
	require.ErrorIs(t, err, ErrTooFewValues)
}

func TestHistogramKeepsEveryValue(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}
	bins, err := Histogram(xs, 5)
	require.NoError(t, err)
	require.Len(t, bins, 5)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	require.Equal(t, len(xs), total)
	require.Equal(t, 0.0, bins[0].Lo)
	require.Equal(t, 10.0, bins[4].Hi)
	require.Equal(t, 2, bins[0].Count)
	require.Equal(t, 2, bins[4].Count)

	one, err := Histogram([]float64{7, 7, 7}, 0)
	require.NoError(t, err)
	require.Equal(t, []Bin{{Lo: 7, Hi: 7, Count: 3}}, one)
}

func TestSturgesBins(t *testing.T) {
	require.Equal(t, 1, SturgesBins(1))
	require.Equal(t, 5, SturgesBins(10))
	require.Equal(t, 8, SturgesBins(100))
}

func TestBoxPlotFlagsOutliers(t *testing.T) {
	xs := []float64{10, 11, 12, 13, 14, 15, 16, 100}
	b, err := BoxPlot(xs)
	require.NoError(t, err)
	require.Equal(t, 8, b.N)
	require.Equal(t, 10.0, b.Min)
	require.Equal(t, 100.0, b.Max)
	require.Equal(t, []float64{100}, b.Outliers)
	require.Equal(t, 10.0, b.LowerWhisker)
	require.Equal(t, 16.0, b.UpperWhisker)
	require.InDelta(t, 11.5, b.Q1, 1e-12)
	require.InDelta(t, 13.5, b.Median, 1e-12)
	require.InDelta(t, 15.5, b.Q3, 1e-12)
}

func TestBoxPlotHingesOddCount(t *testing.T) {
	// fivenum(c(1, 2, 3, 4, 5, 6, 7)) is 1 2.5 4 5.5 7
	b, err := BoxPlot([]float64{7, 1, 6, 2, 5, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2.5, 4, 5.5, 7}, []float64{b.Min, b.Q1, b.Median, b.Q3, b.Max})

	one, err := BoxPlot([]float64{42})
	require.NoError(t, err)
	require.Equal(t, []float64{42, 42, 42}, []float64{one.Q1, one.Median, one.Q3})
}

func TestDescribeEvenMedian(t *testing.T) {
	m, err := Describe([]float64{8, 2, 6, 4})
	require.NoError(t, err)
	require.InDelta(t, 5.0, m.Median, 1e-12)
}

func TestBoxPlotBy(t *testing.T) {
	tb := table.MustNew(
		table.Col("district", table.Str("B2"), table.Str("A1"), table.Str("B2"), table.Str("A1")),
		table.Col("hour", table.Num(13), table.Num(2), table.Num(15), table.Missing()),
	)
	groups, err := BoxPlotBy(tb, "hour", "district")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "B2", groups[0].Group)
	require.Equal(t, 2, groups[0].Box.N)
	require.Equal(t, 1, groups[1].Box.N)

	_, err = BoxPlotBy(tb, "district", "hour")
	require.ErrorIs(t, err, tidy.ErrTypeMismatch)
}

func TestQQNormIsSymmetric(t *testing.T) {
	pts, err := QQNorm([]float64{3, 1, 2})
	require.NoError(t, err)
	require.Len(t, pts, 3)
	require.Equal(t, 1.0, pts[0].Sample)
	require.Equal(t, 3.0, pts[2].Sample)
	require.InDelta(t, 0, pts[1].Theoretical, 1e-9)
	require.InDelta(t, -pts[0].Theoretical, pts[2].Theoretical, 1e-9)
	require.Less(t, pts[0].Theoretical, 0.0)
}

func TestFitLinearPerfectLine(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{3, 5, 7, 9, 11}
	f, err := FitLinear(xs, ys)
	require.NoError(t, err)
	require.InDelta(t, 1.0, f.Intercept, 1e-9)
	require.InDelta(t, 2.0, f.Slope, 1e-9)
	require.InDelta(t, 1.0, f.RSquared, 1e-9)
	require.InDelta(t, 0.0, f.ResidualSE, 1e-6)
	require.InDelta(t, 21.0, f.Predict(10), 1e-9)
}

func TestFitColumnsDropsMissing(t *testing.T) {
	tb := table.MustNew(
		table.Col("speed", table.Num(4), table.Num(7), table.Num(8), table.Missing(), table.Num(10)),
		table.Col("dist", table.Num(2), table.Num(4), table.Num(16), table.Num(10), table.Num(18)),
	)
	f, err := FitColumns(tb, "speed", "dist")
	require.NoError(t, err)
	require.Equal(t, 4, f.N)
	require.Equal(t, 1, f.Dropped)
	require.Greater(t, f.Slope, 0.0)
	require.Greater(t, f.RSquared, 0.5)
	require.Len(t, f.Residuals, 4)
	sum := 0.0
	for _, e := range f.Residuals {
		sum += e
	}
	require.InDelta(t, 0, sum, 1e-9)

	s := f.Summary()
	require.Contains(t, s, "[LINEAR FIT] dist ~ speed")
	require.Contains(t, s, "1 rows with missing values dropped")
	require.Contains(t, s, "on 2 degrees of freedom")
}

func TestFitLinearErrors(t *testing.T) {
	_, err := FitLinear([]float64{1, 2}, []float64{1, 2})
	require.ErrorIs(t, err, ErrTooFewValues)

	_, err = FitLinear([]float64{2, 2, 2}, []float64{1, 2, 3})
	require.Error(t, err)

	tb := table.MustNew(table.Col("x", table.Str("a")), table.Col("y", table.Num(1)))
	_, err = FitColumns(tb, "x", "y")
	require.ErrorIs(t, err, tidy.ErrTypeMismatch)
}

func TestCorrelationAndMAD(t *testing.T) {
	require.InDelta(t, 1.0, Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	require.InDelta(t, -1.0, Correlation([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	require.True(t, math.IsNaN(Correlation([]float64{1, 1}, []float64{1, 2})))

	med, mad := MedianMAD([]float64{1, 2, 3, 4, 100})
	require.InDelta(t, 3, med, 1e-9)
	require.InDelta(t, 1, mad, 1e-9)
}
