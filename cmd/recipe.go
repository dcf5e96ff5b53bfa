package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tidyloom-cli/internal/recipe"
	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
)

var (
	recipeDescription string
	recipeSource      string
	recipeSheet       string
	recipeQuery       string
	recipeOutput      string

	runDryRun bool
	runOutput string
	runPrint  bool
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Create, list and run saved reshape recipes",
}

var recipeInitCmd = &cobra.Command{
	Use:   "init <recipe-name>",
	Short: "Initialize a new recipe",
	Long: `Create <recipes_dir>/<name>/recipe.yaml with the given source and no steps.
Edit the file to add steps, then run it with 'tidyloom recipe run <name>'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := recipesDir()
		if err != nil {
			return err
		}
		r := recipe.New(args[0], recipeDescription, "")
		switch {
		case recipeSource != "" && recipeQuery != "":
			return errors.New("--source and --query are exclusive")
		case recipeSource != "":
			abs, err := filepath.Abs(recipeSource)
			if err != nil {
				return err
			}
			r.Source = recipe.Source{Path: abs, Sheet: recipeSheet}
		case recipeQuery != "":
			r.Source = recipe.Source{Query: recipeQuery}
		default:
			return errors.New("one of --source or --query is required")
		}
		r.Steps = []recipe.Step{}
		r.Output.CSV = recipeOutput
		if err := recipe.Create(root, r); err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Recipe initialized: %s", filepath.Join(r.RootDir(), recipe.FileName))
		return nil
	},
}

var recipeRunCmd = &cobra.Command{
	Use:   "run <recipe-name>",
	Short: "Load the recipe source, apply its steps and write its outputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRecipe(args[0])
		if err != nil {
			return err
		}
		if runOutput != "" {
			abs, err := filepath.Abs(runOutput)
			if err != nil {
				return err
			}
			r.Output.CSV = abs
		}
		runner := &recipe.Runner{
			Conn:     cfg.Conn(),
			Options:  cfg.SourceOptions(),
			Defaults: policyDefaults(),
			Log:      logger,
			DryRun:   runDryRun,
		}
		res, err := runner.Run(cmd.Context(), r)
		if err != nil {
			logger.Error("recipe failed", zap.String("recipe", r.Name), zap.Error(err))
			return reportShapeError(err)
		}
		out := cmd.OutOrStdout()
		if runPrint || (res.OutputPath == "" && !runDryRun) {
			if err := writeTable(cmd, res.Table, ""); err != nil {
				return err
			}
		}
		if res.OutputPath != "" {
			success(out, "Wrote %d rows × %d columns to %s", res.Table.NumRows(), res.Table.NumCols(), res.OutputPath)
		}
		if res.ChartPath != "" {
			success(out, "Wrote chart to %s", res.ChartPath)
		}
		if runDryRun {
			success(out, "Dry run of '%s' OK: %d steps, %d rows × %d columns", r.Name, len(r.Steps), res.Table.NumRows(), res.Table.NumCols())
		}
		return nil
	},
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := recipesDir()
		if err != nil {
			return err
		}
		list, err := recipe.List(root)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "(no recipes)")
			return nil
		}
		for _, s := range list {
			if s.Description != "" {
				fmt.Fprintf(out, "- %s: %s (%d steps)\n", s.Name, s.Description, s.Steps)
				continue
			}
			fmt.Fprintf(out, "- %s (%d steps)\n", s.Name, s.Steps)
		}
		return nil
	},
}

func recipesDir() (string, error) {
	dir := expandHome(cfg.RecipesDir)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func init() {
	rootCmd.AddCommand(recipeCmd)
	recipeCmd.AddCommand(recipeInitCmd, recipeRunCmd, recipeListCmd)

	recipeInitCmd.Flags().StringVarP(&recipeDescription, "desc", "d", "", "recipe description")
	recipeInitCmd.Flags().StringVar(&recipeSource, "source", "", "input file (CSV, TSV or XLSX)")
	recipeInitCmd.Flags().StringVar(&recipeSheet, "sheet-name", "", "XLSX: sheet name to read")
	recipeInitCmd.Flags().StringVar(&recipeQuery, "query", "", "SQL query against the configured database")
	recipeInitCmd.Flags().StringVarP(&recipeOutput, "output", "o", "", "result CSV path, relative to the recipe directory")

	recipeRunCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "run every step but write no outputs")
	recipeRunCmd.Flags().StringVarP(&runOutput, "output", "o", "", "override the recipe's result CSV path")
	recipeRunCmd.Flags().BoolVar(&runPrint, "print", false, "also print the result as CSV")
}
