// Package chart turns a table and aesthetic mappings into Vega-Lite v5
// specifications. Statistical layers (bins, box summaries, QQ points and
// fitted lines) are computed here; drawing is left to any Vega-Lite renderer.
package chart

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/stats"
	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
)

// SchemaURL is the Vega-Lite schema every spec declares.
const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// Kind selects the chart geometry.
type Kind string

const (
	Bar       Kind = "bar"
	Histogram Kind = "hist"
	BoxPlot   Kind = "box"
	QQ        Kind = "qq"
	Line      Kind = "line"
	Point     Kind = "point"
)

// Kinds lists every supported kind, for flag help.
var Kinds = []Kind{Bar, Histogram, BoxPlot, QQ, Line, Point}

// ErrAesthetic is returned when a kind is missing a required mapping.
var ErrAesthetic = errors.New("missing aesthetic")

// Aes maps table columns to visual channels.
type Aes struct {
	X string
	Y string
	// Group colours marks by a column (fill for bars and boxes).
	Group string
}

// Options describes one chart.
type Options struct {
	Kind  Kind
	Aes   Aes
	Title string
	// Bins for histograms; 0 picks Sturges' rule.
	Bins int
	// Fit overlays a least-squares line on point charts.
	Fit    bool
	Width  int
	Height int
}

// Spec is a Vega-Lite top-level view. Either Mark or Layer is set.
type Spec struct {
	Schema      string    `json:"$schema"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Data        *Data     `json:"data,omitempty"`
	Mark        *Mark     `json:"mark,omitempty"`
	Encoding    *Encoding `json:"encoding,omitempty"`
	Layer       []Layer   `json:"layer,omitempty"`
}

// Layer is one layer of a layered view.
type Layer struct {
	Data     *Data     `json:"data,omitempty"`
	Mark     *Mark     `json:"mark"`
	Encoding *Encoding `json:"encoding,omitempty"`
}

// Data holds inline rows.
type Data struct {
	Values []map[string]any `json:"values"`
}

type Mark struct {
	Type    string  `json:"type"`
	Tooltip bool    `json:"tooltip,omitempty"`
	Point   bool    `json:"point,omitempty"`
	Size    float64 `json:"size,omitempty"`
	Color   string  `json:"color,omitempty"`
}

type Encoding struct {
	X     *Channel `json:"x,omitempty"`
	X2    *Channel `json:"x2,omitempty"`
	Y     *Channel `json:"y,omitempty"`
	Y2    *Channel `json:"y2,omitempty"`
	Color *Channel `json:"color,omitempty"`
}

type Channel struct {
	Field     string `json:"field,omitempty"`
	Type      string `json:"type,omitempty"`
	Aggregate string `json:"aggregate,omitempty"`
	Bin       any    `json:"bin,omitempty"`
	Title     string `json:"title,omitempty"`
	Scale     *Scale `json:"scale,omitempty"`
}

type Scale struct {
	Zero bool `json:"zero"`
}

// Build produces the spec for t under opt.
func Build(t *table.Table, opt Options) (*Spec, error) {
	spec := &Spec{Schema: SchemaURL, Title: opt.Title, Width: opt.Width, Height: opt.Height}
	var err error
	switch opt.Kind {
	case Bar:
		err = buildBar(spec, t, opt.Aes)
	case Histogram:
		err = buildHistogram(spec, t, opt.Aes, opt.Bins)
	case BoxPlot:
		err = buildBox(spec, t, opt.Aes)
	case QQ:
		err = buildQQ(spec, t, opt.Aes)
	case Line, Point:
		err = buildXY(spec, t, opt)
	default:
		return nil, fmt.Errorf("chart: unknown kind %q (use %s)", opt.Kind, kindList())
	}
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", opt.Kind, err)
	}
	return spec, nil
}

// Write renders spec as indented JSON at path, creating parent directories.
func Write(path string, spec *Spec) error {
	b, err := utils.PrettyJSON(spec)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	return utils.SafeWriteFile(path, b)
}

func kindList() string {
	parts := make([]string, len(Kinds))
	for i, k := range Kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, "|")
}

func need(t *table.Table, channel, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s", ErrAesthetic, channel)
	}
	if !t.Has(name) {
		return fmt.Errorf("%s: %w: %q", channel, table.ErrUnknownColumn, name)
	}
	return nil
}

// field escapes characters Vega-Lite treats as nested-field syntax.
func field(name string) string {
	r := strings.NewReplacer(`\`, `\\`, ".", `\.`, "[", `\[`, "]", `\]`)
	return r.Replace(name)
}

// fieldType is "quantitative" for numeric columns and "nominal" otherwise.
func fieldType(t *table.Table, name string) string {
	col, err := t.Column(name)
	if err != nil {
		return "nominal"
	}
	seen := false
	for _, v := range col {
		if v.IsString() {
			return "nominal"
		}
		if v.IsNumber() {
			seen = true
		}
	}
	if seen {
		return "quantitative"
	}
	return "nominal"
}

// rows copies the named columns into inline data rows; missing cells are null.
func rows(t *table.Table, names ...string) *Data {
	var keep []string
	for _, n := range names {
		if n != "" {
			keep = append(keep, n)
		}
	}
	d := &Data{Values: make([]map[string]any, t.NumRows())}
	for r := range d.Values {
		row := t.Row(r)
		m := make(map[string]any, len(keep))
		for _, n := range keep {
			v := row.Get(n)
			switch {
			case v.IsMissing():
				m[n] = nil
			case v.IsNumber():
				f, _ := v.Float()
				m[n] = f
			default:
				m[n] = v.String()
			}
		}
		d.Values[r] = m
	}
	return d
}

func colorChannel(group string) *Channel {
	if group == "" {
		return nil
	}
	return &Channel{Field: field(group), Type: "nominal"}
}

func buildBar(spec *Spec, t *table.Table, aes Aes) error {
	if err := need(t, "x", aes.X); err != nil {
		return err
	}
	spec.Data = rows(t, aes.X, aes.Y, aes.Group)
	spec.Mark = &Mark{Type: "bar", Tooltip: true}
	enc := &Encoding{X: &Channel{Field: field(aes.X), Type: "nominal"}, Color: colorChannel(aes.Group)}
	if aes.Y == "" {
		enc.Y = &Channel{Aggregate: "count", Type: "quantitative", Title: "count"}
	} else {
		if err := need(t, "y", aes.Y); err != nil {
			return err
		}
		if _, err := stats.Numeric(t, aes.Y); err != nil {
			return err
		}
		enc.Y = &Channel{Field: field(aes.Y), Type: "quantitative", Aggregate: "sum"}
	}
	if aes.Group != "" {
		if err := need(t, "group", aes.Group); err != nil {
			return err
		}
	}
	spec.Encoding = enc
	return nil
}

func buildHistogram(spec *Spec, t *table.Table, aes Aes, nbins int) error {
	if err := need(t, "x", aes.X); err != nil {
		return err
	}
	xs, err := stats.Numeric(t, aes.X)
	if err != nil {
		return err
	}
	bins, err := stats.Histogram(xs, nbins)
	if err != nil {
		return fmt.Errorf("%s: %w", aes.X, err)
	}
	d := &Data{Values: make([]map[string]any, len(bins))}
	for i, b := range bins {
		d.Values[i] = map[string]any{"bin_start": b.Lo, "bin_end": b.Hi, "count": b.Count}
	}
	spec.Data = d
	spec.Mark = &Mark{Type: "bar", Tooltip: true}
	spec.Encoding = &Encoding{
		X:  &Channel{Field: "bin_start", Type: "quantitative", Bin: "binned", Title: aes.X},
		X2: &Channel{Field: "bin_end"},
		Y:  &Channel{Field: "count", Type: "quantitative"},
	}
	return nil
}

func buildBox(spec *Spec, t *table.Table, aes Aes) error {
	if err := need(t, "y", aes.Y); err != nil {
		return err
	}
	group := aes.X
	if group == "" {
		group = aes.Group
	}
	var boxes []stats.GroupBox
	if group == "" {
		ys, err := stats.Numeric(t, aes.Y)
		if err != nil {
			return err
		}
		b, err := stats.BoxPlot(ys)
		if err != nil {
			return fmt.Errorf("%s: %w", aes.Y, err)
		}
		boxes = []stats.GroupBox{{Group: aes.Y, Box: b}}
		group = "group"
	} else {
		if err := need(t, "x", group); err != nil {
			return err
		}
		var err error
		boxes, err = stats.BoxPlotBy(t, aes.Y, group)
		if err != nil {
			return err
		}
	}
	summary := &Data{}
	outliers := &Data{Values: []map[string]any{}}
	for _, g := range boxes {
		b := g.Box
		summary.Values = append(summary.Values, map[string]any{
			"group": g.Group, "lower": b.LowerWhisker, "q1": b.Q1,
			"median": b.Median, "q3": b.Q3, "upper": b.UpperWhisker, "n": b.N,
		})
		for _, o := range b.Outliers {
			outliers.Values = append(outliers.Values, map[string]any{"group": g.Group, "value": o})
		}
	}
	x := &Channel{Field: "group", Type: "nominal", Title: group}
	yTitle := aes.Y
	var color *Channel
	if aes.Group != "" {
		color = &Channel{Field: "group", Type: "nominal", Title: group}
	}
	spec.Data = summary
	spec.Layer = []Layer{
		{Mark: &Mark{Type: "rule"}, Encoding: &Encoding{X: x, Y: &Channel{Field: "lower", Type: "quantitative", Title: yTitle, Scale: &Scale{}}, Y2: &Channel{Field: "upper"}}},
		{Mark: &Mark{Type: "bar", Size: 14, Tooltip: true}, Encoding: &Encoding{X: x, Y: &Channel{Field: "q1", Type: "quantitative"}, Y2: &Channel{Field: "q3"}, Color: color}},
		{Mark: &Mark{Type: "tick", Color: "white", Size: 14}, Encoding: &Encoding{X: x, Y: &Channel{Field: "median", Type: "quantitative"}}},
		{Data: outliers, Mark: &Mark{Type: "point"}, Encoding: &Encoding{X: x, Y: &Channel{Field: "value", Type: "quantitative"}}},
	}
	return nil
}

func buildQQ(spec *Spec, t *table.Table, aes Aes) error {
	name := aes.Y
	if name == "" {
		name = aes.X
	}
	if err := need(t, "y", name); err != nil {
		return err
	}
	xs, err := stats.Numeric(t, name)
	if err != nil {
		return err
	}
	pts, err := stats.QQNorm(xs)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	d := &Data{Values: make([]map[string]any, len(pts))}
	for i, p := range pts {
		d.Values[i] = map[string]any{"theoretical": p.Theoretical, "sample": p.Sample}
	}
	spec.Data = d
	spec.Mark = &Mark{Type: "point", Tooltip: true}
	spec.Encoding = &Encoding{
		X: &Channel{Field: "theoretical", Type: "quantitative", Title: "theoretical quantiles"},
		Y: &Channel{Field: "sample", Type: "quantitative", Title: name, Scale: &Scale{}},
	}
	return nil
}

func buildXY(spec *Spec, t *table.Table, opt Options) error {
	aes := opt.Aes
	if err := need(t, "x", aes.X); err != nil {
		return err
	}
	if err := need(t, "y", aes.Y); err != nil {
		return err
	}
	if aes.Group != "" {
		if err := need(t, "group", aes.Group); err != nil {
			return err
		}
	}
	enc := &Encoding{
		X:     &Channel{Field: field(aes.X), Type: fieldType(t, aes.X)},
		Y:     &Channel{Field: field(aes.Y), Type: "quantitative", Scale: &Scale{}},
		Color: colorChannel(aes.Group),
	}
	spec.Data = rows(t, aes.X, aes.Y, aes.Group)
	mark := &Mark{Type: string(opt.Kind), Tooltip: true}
	if opt.Kind == Line {
		mark.Point = true
	}
	if !opt.Fit || opt.Kind != Point {
		spec.Mark = mark
		spec.Encoding = enc
		return nil
	}
	f, err := stats.FitColumns(t, aes.X, aes.Y)
	if err != nil {
		return err
	}
	xs, _, _ := stats.Pairs(t, aes.X, aes.Y)
	m, _ := stats.Describe(xs)
	line := &Data{Values: []map[string]any{
		{aes.X: m.Min, aes.Y: f.Predict(m.Min)},
		{aes.X: m.Max, aes.Y: f.Predict(m.Max)},
	}}
	spec.Description = fmt.Sprintf("%s = %.4g + %.4g * %s (R² %.3f)", aes.Y, f.Intercept, f.Slope, aes.X, f.RSquared)
	spec.Layer = []Layer{
		{Mark: mark, Encoding: enc},
		{Data: line, Mark: &Mark{Type: "line", Color: "firebrick"}, Encoding: &Encoding{X: enc.X, Y: enc.Y}},
	}
	return nil
}
