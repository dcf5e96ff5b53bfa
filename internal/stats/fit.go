package stats

import (
	"fmt"
	"math"
	"strings"

	"github.com/aclements/go-moremath/fit"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// LinearFit is an ordinary least-squares fit of y = Intercept + Slope*x.
type LinearFit struct {
	X, Y       string
	N          int
	Dropped    int
	Intercept  float64
	Slope      float64
	RSquared   float64
	ResidualSE float64
	Residuals  []float64
	predict    func(float64) float64
}

// Predict evaluates the fitted line at x.
func (f LinearFit) Predict(x float64) float64 {
	if f.predict != nil {
		return f.predict(x)
	}
	return f.Intercept + f.Slope*x
}

// FitLinear regresses ys on xs. It needs at least three points so the
// residual standard error has a degree of freedom.
func FitLinear(xs, ys []float64) (LinearFit, error) {
	if len(xs) != len(ys) {
		return LinearFit{}, fmt.Errorf("fit: %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) < 3 {
		return LinearFit{}, fmt.Errorf("fit: %w: need 3 complete rows, got %d", ErrTooFewValues, len(xs))
	}
	lo, hi := sample(xs).Bounds()
	if lo == hi {
		return LinearFit{}, fmt.Errorf("fit: x is constant (%g)", lo)
	}
	res := fit.PolynomialRegression(xs, ys, nil, 1)
	f := LinearFit{
		N:         len(xs),
		Intercept: res.Coefficients[0],
		Slope:     res.Coefficients[1],
		predict:   res.F,
	}
	var mean float64
	for _, y := range ys {
		mean += y
	}
	mean /= float64(len(ys))
	var ssRes, ssTot float64
	f.Residuals = make([]float64, len(xs))
	for i, x := range xs {
		e := ys[i] - f.Predict(x)
		f.Residuals[i] = e
		ssRes += e * e
		d := ys[i] - mean
		ssTot += d * d
	}
	if ssTot > 0 {
		f.RSquared = 1 - ssRes/ssTot
	} else {
		f.RSquared = 1
	}
	f.ResidualSE = math.Sqrt(ssRes / float64(len(xs)-2))
	return f, nil
}

// FitColumns fits column y against column x, skipping rows where either is
// missing.
func FitColumns(t *table.Table, x, y string) (LinearFit, error) {
	xs, ys, err := Pairs(t, x, y)
	if err != nil {
		return LinearFit{}, fmt.Errorf("fit: %w", err)
	}
	f, err := FitLinear(xs, ys)
	if err != nil {
		return LinearFit{}, err
	}
	f.X, f.Y = x, y
	f.Dropped = t.NumRows() - f.N
	return f, nil
}

// Summary renders the fit in the usual regression-summary shape.
func (f LinearFit) Summary() string {
	x, y := f.X, f.Y
	if x == "" {
		x = "x"
	}
	if y == "" {
		y = "y"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[LINEAR FIT] %s ~ %s\n", y, x)
	fmt.Fprintf(&b, "Observations: %d", f.N)
	if f.Dropped > 0 {
		fmt.Fprintf(&b, " (%d rows with missing values dropped)", f.Dropped)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Coefficients:\n  (Intercept)  %.6g\n  %-11s  %.6g\n", f.Intercept, x, f.Slope)
	fmt.Fprintf(&b, "Residual standard error: %.6g on %d degrees of freedom\n", f.ResidualSE, f.N-2)
	fmt.Fprintf(&b, "R-squared: %.4f\n", f.RSquared)
	return b.String()
}
