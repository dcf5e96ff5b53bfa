package chart

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

func incidents() *table.Table {
	return table.MustNew(
		table.Col("district", table.Str("B2"), table.Str("A1"), table.Str("B2"), table.Str("C11"), table.Str("B2")),
		table.Col("hour", table.Num(13), table.Num(2), table.Num(15), table.Num(20), table.Missing()),
		table.Col("temp.f", table.Num(50), table.Num(41), table.Num(55), table.Num(60), table.Num(58)),
	)
}

func TestBarCountsWithoutY(t *testing.T) {
	spec, err := Build(incidents(), Options{Kind: Bar, Aes: Aes{X: "district"}, Title: "Incidents"})
	require.NoError(t, err)
	require.Equal(t, SchemaURL, spec.Schema)
	require.Equal(t, "bar", spec.Mark.Type)
	require.Equal(t, "count", spec.Encoding.Y.Aggregate)
	require.Len(t, spec.Data.Values, 5)
	require.Nil(t, spec.Encoding.Color)
}

func TestBarSumRejectsTextY(t *testing.T) {
	_, err := Build(incidents(), Options{Kind: Bar, Aes: Aes{X: "hour", Y: "district"}})
	require.ErrorIs(t, err, tidy.ErrTypeMismatch)

	spec, err := Build(incidents(), Options{Kind: Bar, Aes: Aes{X: "district", Y: "hour"}})
	require.NoError(t, err)
	require.Equal(t, "sum", spec.Encoding.Y.Aggregate)
}

func TestHistogramPrecomputesBins(t *testing.T) {
	spec, err := Build(incidents(), Options{Kind: Histogram, Aes: Aes{X: "hour"}, Bins: 3})
	require.NoError(t, err)
	require.Len(t, spec.Data.Values, 3)
	total := 0
	for _, v := range spec.Data.Values {
		total += v["count"].(int)
	}
	require.Equal(t, 4, total)
	require.Equal(t, "binned", spec.Encoding.X.Bin)
}

func TestBoxByGroupLayers(t *testing.T) {
	spec, err := Build(incidents(), Options{Kind: BoxPlot, Aes: Aes{X: "district", Y: "hour"}})
	require.NoError(t, err)
	require.Nil(t, spec.Mark)
	require.Len(t, spec.Layer, 4)
	require.Len(t, spec.Data.Values, 3)
	require.Equal(t, "B2", spec.Data.Values[0]["group"])
	require.Equal(t, 2, spec.Data.Values[0]["n"])
	require.Equal(t, 13.0, spec.Data.Values[0]["q1"])
	require.Equal(t, 14.0, spec.Data.Values[0]["median"])
	require.Equal(t, 15.0, spec.Data.Values[0]["q3"])
}

func TestQQAndLine(t *testing.T) {
	spec, err := Build(incidents(), Options{Kind: QQ, Aes: Aes{Y: "hour"}})
	require.NoError(t, err)
	require.Len(t, spec.Data.Values, 4)

	spec, err = Build(incidents(), Options{Kind: Line, Aes: Aes{X: "hour", Y: "temp.f", Group: "district"}})
	require.NoError(t, err)
	require.Equal(t, `temp\.f`, spec.Encoding.Y.Field)
	require.Equal(t, "quantitative", spec.Encoding.X.Type)
	require.Equal(t, "district", spec.Encoding.Color.Field)
	require.Nil(t, spec.Data.Values[4]["hour"])
}

func TestPointWithFitAddsLine(t *testing.T) {
	spec, err := Build(incidents(), Options{Kind: Point, Aes: Aes{X: "hour", Y: "temp.f"}, Fit: true})
	require.NoError(t, err)
	require.Len(t, spec.Layer, 2)
	require.Equal(t, "line", spec.Layer[1].Mark.Type)
	require.Len(t, spec.Layer[1].Data.Values, 2)
	require.Contains(t, spec.Description, "temp.f =")
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(incidents(), Options{Kind: "pie", Aes: Aes{X: "district"}})
	require.Error(t, err)

	_, err = Build(incidents(), Options{Kind: Histogram})
	require.ErrorIs(t, err, ErrAesthetic)

	_, err = Build(incidents(), Options{Kind: Histogram, Aes: Aes{X: "district"}})
	require.ErrorIs(t, err, tidy.ErrTypeMismatch)

	_, err = Build(incidents(), Options{Kind: Line, Aes: Aes{X: "hour", Y: "nope"}})
	require.ErrorIs(t, err, table.ErrUnknownColumn)
}

func TestWriteProducesVegaLiteJSON(t *testing.T) {
	spec, err := Build(incidents(), Options{Kind: Bar, Aes: Aes{X: "district", Y: "hour"}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "charts", "bar.vl.json")
	require.NoError(t, Write(path, spec))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, SchemaURL, doc["$schema"])
	enc := doc["encoding"].(map[string]any)
	require.Equal(t, "sum", enc["y"].(map[string]any)["aggregate"])
}
