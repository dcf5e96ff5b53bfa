package source

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

func TestReadCSVKeepsHeadersVerbatim(t *testing.T) {
	in := "religion,<$10k,$10-20k,1998\nAgnostic,27,34,\nAtheist,12,27,NA\n"
	tb, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, []string{"religion", "<$10k", "$10-20k", "1998"}, tb.Names())
	require.True(t, tb.At(0, 1).IsNumber())
	require.True(t, tb.At(0, 0).IsString())
	require.True(t, tb.At(0, 3).IsMissing())
	require.True(t, tb.At(1, 3).IsMissing())
}

func TestReadCSVSniffsDelimiterAndLocale(t *testing.T) {
	in := "Group;Score\nA;10,5\nB;1.000,25\n"
	opt := DefaultOptions()
	opt.Parse.DecimalSeparator = ','
	opt.Parse.ThousandsSeparator = '.'
	tb, err := ReadCSV(strings.NewReader(in), opt)
	require.NoError(t, err)
	col, err := tb.Column("Score")
	require.NoError(t, err)
	require.Equal(t, []table.Value{table.Num(10.5), table.Num(1000.25)}, col)
}

func TestReadCSVStringsOverrideAndShortRows(t *testing.T) {
	in := "zip,n\n02134,1\n02135\n"
	opt := DefaultOptions()
	opt.Strings = []string{"zip"}
	tb, err := ReadCSV(strings.NewReader(in), opt)
	require.NoError(t, err)
	require.Equal(t, table.Str("02134"), tb.At(0, 0))
	require.True(t, tb.At(1, 1).IsMissing())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,a\n1,2\n"), DefaultOptions())
	require.ErrorIs(t, err, table.ErrDuplicateColumn)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"), DefaultOptions())
	require.Error(t, err)
	require.Contains(t, err.Error(), "row 1")

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "nope.csv"), DefaultOptions())
	require.Error(t, err)
}

func TestReadCSVEmptyInput(t *testing.T) {
	tb, err := ReadCSV(strings.NewReader(""), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 0, tb.NumCols())
}

func TestWriteCSVFileRoundTrip(t *testing.T) {
	tb := table.MustNew(
		table.Col("country", table.Str("AF"), table.Str("BR")),
		table.Col("1999", table.Num(745), table.Missing()),
		table.Col("note", table.Str("a, b"), table.Str(`say "hi"`)),
	)
	path := filepath.Join(t.TempDir(), "out", "wide.tsv")
	require.NoError(t, WriteCSVFile(path, tb, 0))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "country\t1999\tnote\n"), string(raw))

	back, err := ReadCSVFile(path, DefaultOptions())
	require.NoError(t, err)
	if diff := cmp.Diff(tb.Records(), back.Records()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	require.True(t, back.Equal(tb))
}

func TestReadCSVMaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	tb, err := ReadCSV(strings.NewReader("x\n1\n2\n3\n"), opt)
	require.NoError(t, err)
	require.Equal(t, 2, tb.NumRows())
}

// writeWorkbook builds a minimal two-sheet workbook. "Data" is sheet 2 and
// uses shared strings, an inline string and a gap in column B.
func writeWorkbook(t *testing.T) string {
	t.Helper()
	files := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Readme" sheetId="1" r:id="rId1"/><sheet name="Data" sheetId="2" r:id="rId2"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Target="/xl/worksheets/sheet2.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><t>district</t></si><si><t>incidents</t></si><si><t>A1</t></si><si><r><t>B</t></r><r><t>2</t></r></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="inlineStr"><is><t>note</t></is></c></row>
<row r="2"><c r="A2" t="inlineStr"><is><t>see Data</t></is></c></row>
</sheetData></worksheet>`,
		"xl/worksheets/sheet2.xml": `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="inlineStr"><is><t>cleared</t></is></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>14</v></c><c r="C2" t="b"><v>1</v></c></row>
<row r="3"><c r="A3" t="s"><v>3</v></c><c r="C3" t="b"><v>0</v></c></row>
</sheetData></worksheet>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "incidents.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestReadXLSXSheetSelection(t *testing.T) {
	path := writeWorkbook(t)
	want := [][]string{
		{"district", "incidents", "cleared"},
		{"A1", "14", "TRUE"},
		{"B2", "NA", "FALSE"},
	}

	byName, err := ReadXLSXFile(path, "data", 0, DefaultOptions())
	require.NoError(t, err)
	if diff := cmp.Diff(want, byName.Records()); diff != "" {
		t.Fatalf("by name (-want +got):\n%s", diff)
	}
	require.True(t, byName.At(0, 1).IsNumber())

	byIndex, err := ReadXLSXFile(path, "", 2, DefaultOptions())
	require.NoError(t, err)
	require.True(t, byIndex.Equal(byName))

	first, err := ReadFile(path, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, []string{"note"}, first.Names())

	_, err = ReadXLSXFile(path, "Missing", 0, DefaultOptions())
	require.ErrorIs(t, err, ErrSheetNotFound)
	require.Contains(t, err.Error(), "Readme, Data")
}

func TestNormalizeRelPath(t *testing.T) {
	cases := map[string]string{
		"/xl/worksheets/sheet1.xml": "xl/worksheets/sheet1.xml",
		"xl/worksheets/sheet1.xml":  "xl/worksheets/sheet1.xml",
		"/worksheets/sheet1.xml":    "xl/worksheets/sheet1.xml",
		"worksheets/sheet1.xml":     "xl/worksheets/sheet1.xml",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeRelPath(in), in)
	}
	require.Equal(t, 27, colIndexFromRef("AB3"))
	require.Equal(t, -1, colIndexFromRef("12"))
}

func TestConnConfigDSN(t *testing.T) {
	driver, dsn, err := ConnConfig{Driver: "postgres", Server: "db.local", Port: 5433, Database: "crime", User: "analyst", Password: "p w"}.DSN()
	require.NoError(t, err)
	require.Equal(t, "postgres", driver)
	require.Equal(t, "host=db.local port=5433 dbname=crime user=analyst password='p w' sslmode=disable", dsn)

	_, dsn, err = ConnConfig{Driver: "postgres", Server: "db.local", Database: "crime", Password: "secret", Trusted: true, SSLMode: "require"}.DSN()
	require.NoError(t, err)
	require.NotContains(t, dsn, "secret")
	require.Contains(t, dsn, "sslmode=require")

	_, _, err = ConnConfig{Driver: "odbc"}.DSN()
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestQuerySQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ConnConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "crime.db")})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `CREATE TABLE incidents (id INTEGER, district TEXT, offense TEXT, hour INTEGER, lat REAL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO incidents VALUES
		(1, 'B2', 'larceny', 13, 42.33),
		(2, 'A1', 'assault', 2, NULL),
		(3, 'B2', 'larceny', NULL, 42.31)`)
	require.NoError(t, err)

	tb, err := Query(ctx, db, `SELECT district, offense, hour, lat FROM incidents WHERE id >= ? ORDER BY id`, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"district", "offense", "hour", "lat"}, tb.Names())
	require.Equal(t, 3, tb.NumRows())
	require.Equal(t, table.Str("B2"), tb.At(0, 0))
	require.Equal(t, table.Num(13), tb.At(0, 2))
	require.True(t, tb.At(1, 3).IsMissing())
	require.True(t, tb.At(2, 2).IsMissing())

	_, err = Query(ctx, db, `SELECT nope FROM incidents`)
	require.Error(t, err)
}
