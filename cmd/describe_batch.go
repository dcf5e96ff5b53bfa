package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	batchFlags            describeFlags
	batchSampleRowsAttach int
	batchQuiet            bool
	batchKeepGoing        bool
)

var describeBatchCmd = &cobra.Command{
	Use:   "describe-batch <files...>",
	Short: "Describe multiple CSV/TSV/XLSX files with progress and optional recipe attachment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandGlobs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		if batchFlags.recipe != "" {
			if _, err := loadRecipe(batchFlags.recipe); err != nil {
				return err
			}
			if batchSampleRowsAttach >= 0 {
				batchFlags.sampleRows = batchSampleRowsAttach
			}
		}

		out := cmd.OutOrStdout()
		total := len(files)
		failed := 0
		for i, path := range files {
			if !batchQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			md, err := batchFlags.describe(path)
			if err != nil {
				if !batchKeepGoing {
					return fmt.Errorf("%s: %w", path, err)
				}
				failed++
				logger.Warn("describe failed", zap.String("path", path), zap.Error(err))
				warn(out, "Skipped %s: %v", filepath.Base(path), err)
				continue
			}
			if batchFlags.recipe == "" {
				if !batchQuiet {
					fmt.Fprintln(out, md)
				}
				continue
			}
			file, err := attachSummary(batchFlags.recipe, path, batchFlags.in.sheet, md, true)
			if err != nil {
				return err
			}
			if !batchQuiet {
				success(out, "Added summary to recipe '%s' as %s", batchFlags.recipe, filepath.Base(file))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		return nil
	},
}

// expandGlobs resolves each argument as a glob, falling back to a literal
// path that exists. The result is sorted and free of duplicates.
func expandGlobs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	rootCmd.AddCommand(describeBatchCmd)
	addDescribeFlags(describeBatchCmd, &batchFlags)
	describeBatchCmd.Flags().IntVar(&batchSampleRowsAttach, "sample-rows-recipe", -1, "when attaching (-r), override sample rows for dataset summaries (0 disables samples)")
	describeBatchCmd.Flags().BoolVar(&batchQuiet, "quiet", false, "suppress progress and non-essential output")
	describeBatchCmd.Flags().BoolVar(&batchKeepGoing, "keep-going", false, "continue past files that fail and report the count at the end")
}
