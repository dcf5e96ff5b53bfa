package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/tidyloom-cli/internal/recipe"
	"github.com/KaramelBytes/tidyloom-cli/internal/source"
)

// resetFlags restores every flag to its default so sticky values and Changed
// state do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(args ...string) (string, error) {
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

// isolate points HOME at a temp dir so config and recipes stay per-test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestCLI_GatherSpreadRoundTrip(t *testing.T) {
	home := isolate(t)
	pew := writeFile(t, filepath.Join(home, "pew.csv"), "religion,<$10k,$10-20k\nAgnostic,27,34\nAtheist,12,27\n")
	long := filepath.Join(home, "long.csv")
	wide := filepath.Join(home, "wide.csv")

	out := runCmd(t, "gather", pew, "--key", "income", "--value", "frequency", "--hold", "religion", "-o", long)
	if !strings.Contains(out, "Wrote 4 rows") {
		t.Fatalf("unexpected status: %s", out)
	}
	runCmd(t, "spread", long, "--key", "income", "--value", "frequency", "-o", wide)

	orig, err := source.ReadCSVFile(pew, source.DefaultOptions())
	if err != nil {
		t.Fatalf("read pew: %v", err)
	}
	back, err := source.ReadCSVFile(wide, source.DefaultOptions())
	if err != nil {
		t.Fatalf("read wide: %v", err)
	}
	if !back.Equal(orig) {
		t.Fatalf("round trip mismatch:\n%v\n%v", orig.Records(), back.Records())
	}
}

func TestCLI_SeparateThenSummarize(t *testing.T) {
	home := isolate(t)
	tb := writeFile(t, filepath.Join(home, "tb.csv"), "country,column,cases\nAF,m014,52\nAF,f014,3\nBR,m014,10\n")
	sep := filepath.Join(home, "sep.csv")

	runCmd(t, "separate", tb, "--column", "column", "--into", "sex,age", "--positions", "1", "-o", sep)
	out := runCmd(t, "summarize", sep, "--by", "sex", "--agg", "n=count", "--agg", "total=sum:cases", "--sort")
	want := "sex,n,total\nf,1,3\nm,2,62\n"
	if out != want {
		t.Fatalf("summarize output:\n%q\nwant\n%q", out, want)
	}
}

func TestCLI_JoinAppliesInputFlagsToBothFiles(t *testing.T) {
	home := isolate(t)
	left := writeFile(t, filepath.Join(home, "left.csv"), "code,name\n007,bond\n")
	right := writeFile(t, filepath.Join(home, "right.csv"), "code,agency\n007,mi6\n")

	out := runCmd(t, "join", left, right, "--by", "code", "--kind", "inner", "--strings", "code")
	if out != "code,name,agency\n007,bond,mi6\n" {
		t.Fatalf("join output %q", out)
	}
}

func TestCLI_SpreadDuplicatesFollowPolicy(t *testing.T) {
	home := isolate(t)
	dup := writeFile(t, filepath.Join(home, "dup.csv"), "id,key,val\nr1,a,x\nr1,a,y\n")

	_, err := execute("spread", dup, "--key", "key", "--value", "val")
	if err == nil || !strings.Contains(err.Error(), "duplicate identifier") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	out := runCmd(t, "spread", dup, "--key", "key", "--value", "val", "--duplicates", "last")
	if out != "id,a\nr1,y\n" {
		t.Fatalf("unexpected output %q", out)
	}

	// the configured policy applies when the flag is absent
	runCmd(t, "config", "set", "spread_duplicates", "first")
	out = runCmd(t, "spread", dup, "--key", "key", "--value", "val")
	if out != "id,a\nr1,x\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCLI_RecipeInitRunList(t *testing.T) {
	home := isolate(t)
	tb := writeFile(t, filepath.Join(home, "tb.csv"), "country,year,m014,f014\nAF,2000,52,3\nBR,2000,NA,10\n")

	runCmd(t, "recipe", "init", "tb", "--source", tb, "-o", "out.csv", "-d", "tb cases")
	if _, err := execute("recipe", "init", "tb", "--source", tb); err == nil {
		t.Fatalf("expected second init to fail")
	}

	dir := filepath.Join(home, ".tidyloom", "recipes", "tb")
	r, err := recipe.Load(dir)
	if err != nil {
		t.Fatalf("load recipe: %v", err)
	}
	r.Steps = []recipe.Step{
		{Op: recipe.OpGather, Key: "column", Value: "cases", Columns: []string{"m014", "f014"}, DropMissing: true},
		{Op: recipe.OpSeparate, Column: "column", Into: []string{"sex", "age"}, Positions: []int{1}},
	}
	if err := r.Save(); err != nil {
		t.Fatalf("save recipe: %v", err)
	}

	out := runCmd(t, "recipe", "run", "tb")
	if !strings.Contains(out, "Wrote 3 rows") {
		t.Fatalf("unexpected run output: %s", out)
	}
	opt := source.DefaultOptions()
	opt.Strings = []string{"age"}
	res, err := source.ReadCSVFile(filepath.Join(dir, "out.csv"), opt)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if got := strings.Join(res.Names(), ","); got != "country,year,sex,age,cases" {
		t.Fatalf("result columns: %s", got)
	}

	out = runCmd(t, "recipe", "list")
	if !strings.Contains(out, "- tb: tb cases (2 steps)") {
		t.Fatalf("list output: %s", out)
	}
}

func TestCLI_DescribeBatch_AttachAndSuppressSamples(t *testing.T) {
	home := isolate(t)

	// two CSV files with the same basename in different directories
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	p1 := writeFile(t, filepath.Join(home, "d1", "metrics.csv"), csv)
	writeFile(t, filepath.Join(home, "d2", "metrics.csv"), csv)

	runCmd(t, "recipe", "init", "batchp", "--source", p1, "-d", "batch recipe")
	runCmd(t, "describe-batch", filepath.Join(home, "d*", "metrics.csv"), "-r", "batchp", "--sample-rows-recipe", "0")

	dsDir := filepath.Join(home, ".tidyloom", "recipes", "batchp", "dataset_summaries")
	for _, name := range []string{"metrics.summary.md", "metrics__2.summary.md"} {
		body, err := os.ReadFile(filepath.Join(dsDir, name))
		if err != nil {
			t.Fatalf("missing summary %s: %v", name, err)
		}
		if strings.Contains(string(body), "[HEAD AND SAMPLE ROWS]") {
			t.Fatalf("expected no sample rows in %s", name)
		}
		if !strings.Contains(string(body), "- col2: numeric") {
			t.Fatalf("unexpected summary:\n%s", body)
		}
	}
}

func TestCLI_DescribeToStdout(t *testing.T) {
	home := isolate(t)
	p := writeFile(t, filepath.Join(home, "m.csv"), "g,v\na,1\nb,NA\na,3\n")
	out := runCmd(t, "describe", p, "--group-by", "g")
	for _, want := range []string{"File: m.csv", "- v: numeric (non-null 2, missing 33.3%)", "- g=a (n=2)", "[HEAD AND SAMPLE ROWS]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("describe output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_QueryFitPlot(t *testing.T) {
	home := isolate(t)
	dbPath := filepath.Join(home, "cars.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE cars (speed REAL, dist REAL);
INSERT INTO cars VALUES (4, 2), (7, 4), (8, 16), (9, 10), (10, 18), (12, 24), (15, 26), (20, 48);`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = db.Close()

	cars := filepath.Join(home, "cars.csv")
	runCmd(t, "query", "SELECT speed, dist FROM cars ORDER BY speed", "--driver", "sqlite", "--db", dbPath, "-o", cars)

	chartPath := filepath.Join(home, "fit.json")
	out := runCmd(t, "fit", cars, "--x", "speed", "--y", "dist", "--chart", chartPath)
	if !strings.Contains(out, "[LINEAR FIT] dist ~ speed") || !strings.Contains(out, "Observations: 8") {
		t.Fatalf("fit output: %s", out)
	}
	if _, err := os.Stat(chartPath); err != nil {
		t.Fatalf("fit chart missing: %v", err)
	}

	runCmd(t, "plot", cars, "--kind", "hist", "--x", "dist")
	if _, err := os.Stat(filepath.Join(home, ".tidyloom", "charts", "cars-hist.vl.json")); err != nil {
		t.Fatalf("default chart path: %v", err)
	}
	if _, err := execute("plot", cars, "--kind", "pie", "--x", "dist"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestCLI_ConfigShowMasksPassword(t *testing.T) {
	isolate(t)
	runCmd(t, "config", "set", "db_password", "hunter2secret")
	out := runCmd(t, "config", "show")
	if strings.Contains(out, "hunter2secret") || !strings.Contains(out, "db_password: hun****ret") {
		t.Fatalf("config show: %s", out)
	}
	if _, err := execute("config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}
