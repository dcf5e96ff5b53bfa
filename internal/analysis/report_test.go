package analysis

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/KaramelBytes/tidyloom-cli/internal/source"
	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

var csvRows = []string{
	"Group;Concentration (g/L);Temp (°F);Score;LocaleNumber;Category;Note",
	"A;0,5;70;10,0;1.000,0;alpha;first",
	"A;0,6;71;11,0;1.100,0;alpha;second",
	"A;0,55;69;9,5;0.900,0;beta;third",
	"B;0,7;75;10,5;1.050,0;alpha;fourth",
	"B;0,65;74;9,8;0.980,0;beta;fifth",
	"B;0,68;73;10,2;1.020,0;alpha;sixth",
	"A;0,52;68;8,8;0.880,0;gamma;seventh",
	"B;0,75;76;9,7;0.970,0;beta;eighth",
	"A;3,0;95;50,0;5.000,0;alpha;ninth",
	"B;0,66;72;10,1;1.010,0;gamma;tenth",
}

func metrics(t *testing.T) *table.Table {
	t.Helper()
	opt := source.DefaultOptions()
	opt.Delimiter = ';'
	opt.Parse.DecimalSeparator = ','
	opt.Parse.ThousandsSeparator = '.'
	tb, err := source.ReadCSV(strings.NewReader(strings.Join(csvRows, "\n")), opt)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return tb
}

func column(t *testing.T, rep *Report, name string) ColumnSummary {
	t.Helper()
	for _, c := range rep.Cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not in report", name)
	return ColumnSummary{}
}

func TestDescribeAndMarkdown(t *testing.T) {
	opt := DefaultOptions()
	opt.SampleRows = 3
	opt.GroupBy = []string{"Group"}
	opt.Correlations = true

	rep, err := Describe("metrics.csv", metrics(t), opt)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if rep.Rows != 10 || len(rep.Cols) != 7 {
		t.Fatalf("unexpected shape: rows=%d cols=%d", rep.Rows, len(rep.Cols))
	}

	score := column(t, rep, "Score")
	if score.Kind != "numeric" {
		t.Fatalf("Score kind = %s", score.Kind)
	}
	if math.Abs(score.Moments.Median-10.05) > 1e-9 {
		t.Fatalf("Score median = %v", score.Moments.Median)
	}
	if score.OutliersCount != 1 || score.OutlierThreshold != 3.5 {
		t.Fatalf("Score outliers = %d (thr %v)", score.OutliersCount, score.OutlierThreshold)
	}
	loc := column(t, rep, "LocaleNumber")
	if loc.Moments.Max != 5000 || loc.Moments.Min != 880 {
		t.Fatalf("locale parsing: %+v", loc.Moments)
	}
	cat := column(t, rep, "Category")
	if cat.Kind != "categorical" || cat.Unique != 3 || cat.TopValues[0] != (CategoryCount{Value: "alpha", Count: 5}) {
		t.Fatalf("Category summary: %+v", cat)
	}

	if len(rep.Groups) != 2 || rep.Groups[0].Key != "Group=A" || rep.Groups[0].Size != 5 {
		t.Fatalf("groups: %+v", rep.Groups)
	}
	if len(rep.Corr) != 6 {
		t.Fatalf("expected 6 correlation pairs, got %d", len(rep.Corr))
	}
	for i := 1; i < len(rep.Corr); i++ {
		if math.Abs(rep.Corr[i].R) > math.Abs(rep.Corr[i-1].R) {
			t.Fatalf("correlations not ordered by |r|: %+v", rep.Corr)
		}
	}

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: metrics.csv",
		"Rows: 10",
		"- Concentration (g/L): numeric (non-null 10, missing 0.0%)",
		"outliers: 1 above |z|>3.5",
		"top alpha(5), beta(3), gamma(2)",
		"[GROUP-BY SUMMARY]",
		"- Group=A (n=5)",
		"  • Score: mean 17.86 (min 8.8, max 50)",
		"[CORRELATIONS]",
		"[HEAD AND SAMPLE ROWS]",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "[NOTES]") {
		t.Fatalf("unexpected notes:\n%s", md)
	}
}

func TestDescribeMissingAndEmptyColumns(t *testing.T) {
	tb := table.MustNew(
		table.Col("id", table.Str("a"), table.Str("b"), table.Str("c"), table.Str("d")),
		table.Col("x", table.Num(1), table.Missing(), table.Num(3), table.Missing()),
		table.Col("blank", table.Missing(), table.Missing(), table.Missing(), table.Missing()),
	)
	opt := DefaultOptions()
	opt.SampleRows = 0
	rep, err := Describe("", tb, opt)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	x := column(t, rep, "x")
	if x.NonNull != 2 || x.Missing != 2 || x.Moments.Mean != 2 {
		t.Fatalf("x summary: %+v", x)
	}
	// too few values for robust outliers
	if x.OutlierThreshold != 0 {
		t.Fatalf("outliers should be skipped for short columns")
	}
	if column(t, rep, "blank").Kind != "empty" {
		t.Fatalf("blank should be empty")
	}
	md := rep.Markdown()
	if !strings.Contains(md, "- x: numeric (non-null 2, missing 50.0%)") {
		t.Fatalf("markdown:\n%s", md)
	}
	if strings.Contains(md, "[HEAD AND SAMPLE ROWS]") {
		t.Fatalf("samples should be disabled:\n%s", md)
	}
}

func TestDescribeNotes(t *testing.T) {
	tb := table.MustNew(
		table.Col("g", table.Str("a"), table.Str("a")),
		table.Col("v", table.Num(1), table.Num(2)),
	)
	opt := DefaultOptions()
	opt.MaxRows = 2
	opt.Correlations = true
	rep, err := Describe("t", tb, opt)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	md := rep.Markdown()
	if !strings.Contains(md, "[NOTES]") || !strings.Contains(md, "2 row limit") || !strings.Contains(md, "at least two numeric columns") {
		t.Fatalf("missing notes:\n%s", md)
	}
}

func TestDescribeGroupByUnknownColumn(t *testing.T) {
	tb := table.MustNew(table.Col("v", table.Num(1)))
	opt := DefaultOptions()
	opt.GroupBy = []string{"nope"}
	if _, err := Describe("t", tb, opt); err == nil {
		t.Fatalf("expected unknown column error")
	}
}

func TestGroupSummaryAvoidsCountNameClash(t *testing.T) {
	tb := table.MustNew(
		table.Col("n", table.Str("x"), table.Str("y"), table.Str("x")),
		table.Col("v", table.Num(1), table.Num(2), table.Num(5)),
	)
	groups, err := groupSummary(tb, []string{"n"}, []string{"v"})
	if err != nil {
		t.Fatalf("groupSummary: %v", err)
	}
	if len(groups) != 2 || groups[0].Key != "n=x" || groups[0].Size != 2 || groups[0].Metrics[0].Mean != 3 {
		t.Fatalf("groups: %+v", groups)
	}
}

func TestClipKeepsWholeRunes(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := clip(long, 80)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != 80 || !strings.HasSuffix(got, "...") {
		t.Fatalf("clip = %q", got)
	}
	if clip("short", 80) != "short" {
		t.Fatalf("short strings must be unchanged")
	}
}
