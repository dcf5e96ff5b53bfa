package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

var (
	sumIn          inputFlags
	sumBy          []string
	sumAggs        []string
	sumSkipMissing bool
	sumSort        bool
	sumOutput      string

	joinIn     inputFlags
	joinBy     []string
	joinKind   string
	joinOutput string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Group rows and reduce each group to one row",
	Long: `Group rows by --by columns and reduce each group with --agg entries of the
form name=func[:column]. Functions: count, sum, mean, min, max, distinct.`,
	Example: `  tidyloom summarize tb.csv --by country,year --agg n=count --agg cases=sum:cases --sort`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		aggs := make([]tidy.Aggregation, 0, len(sumAggs))
		for _, spec := range sumAggs {
			a, err := tidy.ParseAggregation(spec)
			if err != nil {
				return err
			}
			a.SkipMissing = sumSkipMissing
			aggs = append(aggs, a)
		}
		t, err := sumIn.read(args[0])
		if err != nil {
			return err
		}
		out, err := tidy.From(t).WithLogger(logger).
			Summarize(tidy.SummarizeOptions{By: sumBy, Aggs: aggs, Sort: sumSort}).
			Table()
		if err != nil {
			return err
		}
		return writeTable(cmd, out, sumOutput)
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <left> <right>",
	Short: "Join two tables on shared key columns",
	Long: `Join <right> onto <left> by the --by columns. Input flags such as --strings,
--delimiter and --max-rows apply to both files.`,
	Example: `  tidyloom join cases.csv regions.csv --by country --kind inner`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		left, err := joinIn.read(args[0])
		if err != nil {
			return err
		}
		// Both inputs are read with the same loading flags.
		right, err := joinIn.read(args[1])
		if err != nil {
			return err
		}
		out, err := tidy.From(left).WithLogger(logger).
			Join(right, tidy.JoinOptions{By: joinBy, Kind: tidy.JoinKind(joinKind)}).
			Table()
		if err != nil {
			return err
		}
		return writeTable(cmd, out, joinOutput)
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd, joinCmd)

	addInputFlags(summarizeCmd, &sumIn)
	summarizeCmd.Flags().StringSliceVar(&sumBy, "by", nil, "grouping columns (default: whole table)")
	summarizeCmd.Flags().StringArrayVar(&sumAggs, "agg", nil, "aggregation name=func[:column] (repeatable)")
	summarizeCmd.Flags().BoolVar(&sumSkipMissing, "skip-missing", false, "ignore missing cells instead of propagating them")
	summarizeCmd.Flags().BoolVar(&sumSort, "sort", false, "order groups by key instead of first occurrence")
	summarizeCmd.Flags().StringVarP(&sumOutput, "output", "o", "", "write CSV here instead of stdout")
	_ = summarizeCmd.MarkFlagRequired("agg")

	addInputFlags(joinCmd, &joinIn)
	joinCmd.Flags().StringSliceVar(&joinBy, "by", nil, "key columns present in both tables")
	joinCmd.Flags().StringVar(&joinKind, "kind", string(tidy.LeftJoin), "join kind: inner|left")
	joinCmd.Flags().StringVarP(&joinOutput, "output", "o", "", "write CSV here instead of stdout")
	_ = joinCmd.MarkFlagRequired("by")
}
