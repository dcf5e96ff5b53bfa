package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tidyloom-cli/internal/analysis"
	"github.com/KaramelBytes/tidyloom-cli/internal/recipe"
	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
)

// describeFlags holds the report flags shared by describe and describe-batch.
type describeFlags struct {
	in         inputFlags
	recipe     string
	sampleRows int
	groupBy    []string
	corr       bool
	outliers   bool
	outlierThr float64
}

var (
	descFlags  describeFlags
	descOutput string
)

func addDescribeFlags(c *cobra.Command, f *describeFlags) {
	addInputFlags(c, &f.in)
	c.Flags().StringVarP(&f.recipe, "recipe", "r", "", "recipe name to attach summaries to (written under dataset_summaries/)")
	c.Flags().IntVar(&f.sampleRows, "sample-rows", 5, "number of sample rows to include (0 disables)")
	c.Flags().StringSliceVar(&f.groupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	c.Flags().BoolVar(&f.corr, "correlations", false, "compute Pearson correlations among numeric columns")
	c.Flags().BoolVar(&f.outliers, "outliers", true, "compute robust outlier counts (MAD)")
	c.Flags().Float64Var(&f.outlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}

func (f *describeFlags) options() analysis.Options {
	opt := analysis.DefaultOptions()
	opt.SampleRows = f.sampleRows
	opt.GroupBy = f.groupBy
	opt.Correlations = f.corr
	opt.Outliers = f.outliers
	if f.outlierThr > 0 {
		opt.OutlierThreshold = f.outlierThr
	}
	opt.MaxRows = f.in.maxRows
	return opt
}

func (f *describeFlags) describe(path string) (string, error) {
	t, err := f.in.read(path)
	if err != nil {
		return "", err
	}
	rep, err := analysis.Describe(filepath.Base(path), t, f.options())
	if err != nil {
		return "", err
	}
	return rep.Markdown(), nil
}

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Summarize a CSV/TSV/XLSX dataset as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		md, err := descFlags.describe(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		written := false
		if descOutput != "" {
			if err := utils.EnsureDir(filepath.Dir(descOutput)); err != nil {
				return err
			}
			if err := utils.SafeWriteFile(descOutput, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			success(out, "Wrote summary to %s", descOutput)
			written = true
		}
		if descFlags.recipe != "" {
			file, err := attachSummary(descFlags.recipe, path, descFlags.in.sheet, md, false)
			if err != nil {
				return err
			}
			success(out, "Added summary to recipe '%s' as %s", descFlags.recipe, filepath.Base(file))
			written = true
		}
		if !written {
			fmt.Fprintln(out, md)
		}
		return nil
	},
}

// attachSummary writes md under <recipe>/dataset_summaries/. With unique set,
// an existing file is kept and a __N suffix is added instead.
func attachSummary(name, path, sheet, md string, unique bool) (string, error) {
	r, err := loadRecipe(name)
	if err != nil {
		return "", err
	}
	outDir := filepath.Join(r.RootDir(), "dataset_summaries")
	if err := utils.EnsureDir(outDir); err != nil {
		return "", err
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if sheet != "" {
		stem += "__sheet-" + slug(sheet)
	}
	outFile := filepath.Join(outDir, stem+".summary.md")
	if unique {
		for idx := 2; ; idx++ {
			if _, err := os.Stat(outFile); os.IsNotExist(err) {
				break
			}
			outFile = filepath.Join(outDir, fmt.Sprintf("%s__%d.summary.md", stem, idx))
		}
	}
	if err := utils.SafeWriteFile(outFile, []byte(md)); err != nil {
		return "", fmt.Errorf("write recipe summary: %w", err)
	}
	return outFile, nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "sheet"
	}
	return out
}

func loadRecipe(name string) (*recipe.Recipe, error) {
	root, err := recipesDir()
	if err != nil {
		return nil, err
	}
	if err := recipe.ValidName(name); err != nil {
		return nil, err
	}
	return recipe.Load(filepath.Join(root, name))
}

func init() {
	rootCmd.AddCommand(describeCmd)
	addDescribeFlags(describeCmd, &descFlags)
	describeCmd.Flags().StringVarP(&descOutput, "output", "o", "", "optional path to write the summary (Markdown)")
}
