package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tidyloom-cli/internal/chart"
	"github.com/KaramelBytes/tidyloom-cli/internal/stats"
)

var (
	plotIn     inputFlags
	plotKind   string
	plotX      string
	plotY      string
	plotGroup  string
	plotTitle  string
	plotBins   int
	plotFit    bool
	plotWidth  int
	plotHeight int
	plotOutput string

	fitIn    inputFlags
	fitX     string
	fitY     string
	fitChart string
)

var plotCmd = &cobra.Command{
	Use:   "plot <file>",
	Short: "Write a Vega-Lite chart spec for a table",
	Long: `Build a Vega-Lite v5 spec from a table and aesthetic mappings. Kinds:
bar (counts, or sums of --y), hist (binned --x), box (--y by --x), qq (normal
quantiles of --y), line and point (--x against --y; --fit overlays a least-squares line).`,
	Example: `  tidyloom plot tb.csv --kind box --x sex --y cases
  tidyloom plot cars.csv --kind point --x speed --y dist --fit -o cars.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := plotIn.read(args[0])
		if err != nil {
			return err
		}
		spec, err := chart.Build(t, chart.Options{
			Kind:   chart.Kind(plotKind),
			Aes:    chart.Aes{X: plotX, Y: plotY, Group: plotGroup},
			Title:  plotTitle,
			Bins:   plotBins,
			Fit:    plotFit,
			Width:  plotWidth,
			Height: plotHeight,
		})
		if err != nil {
			return err
		}
		out := plotOutput
		if out == "" {
			base := filepath.Base(args[0])
			stem := strings.TrimSuffix(base, filepath.Ext(base))
			out = filepath.Join(expandHome(cfg.ChartsDir), fmt.Sprintf("%s-%s.vl.json", stem, plotKind))
		}
		if err := chart.Write(out, spec); err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Wrote %s chart to %s", plotKind, out)
		return nil
	},
}

var fitCmd = &cobra.Command{
	Use:   "fit <file>",
	Short: "Fit a least-squares line of --y on --x and print the summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := fitIn.read(args[0])
		if err != nil {
			return err
		}
		f, err := stats.FitColumns(t, fitX, fitY)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), f.Summary())
		if fitChart == "" {
			return nil
		}
		spec, err := chart.Build(t, chart.Options{Kind: chart.Point, Aes: chart.Aes{X: fitX, Y: fitY}, Fit: true})
		if err != nil {
			return err
		}
		if err := chart.Write(fitChart, spec); err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Wrote fit chart to %s", fitChart)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plotCmd, fitCmd)

	kinds := make([]string, len(chart.Kinds))
	for i, k := range chart.Kinds {
		kinds[i] = string(k)
	}
	addInputFlags(plotCmd, &plotIn)
	plotCmd.Flags().StringVar(&plotKind, "kind", string(chart.Point), "chart kind: "+strings.Join(kinds, "|"))
	plotCmd.Flags().StringVar(&plotX, "x", "", "column mapped to the x axis")
	plotCmd.Flags().StringVar(&plotY, "y", "", "column mapped to the y axis")
	plotCmd.Flags().StringVar(&plotGroup, "group", "", "column mapped to colour/fill")
	plotCmd.Flags().StringVar(&plotTitle, "title", "", "chart title")
	plotCmd.Flags().IntVar(&plotBins, "bins", 0, "histogram bins (0 = Sturges' rule)")
	plotCmd.Flags().BoolVar(&plotFit, "fit", false, "overlay a least-squares line on point charts")
	plotCmd.Flags().IntVar(&plotWidth, "width", 0, "chart width in pixels")
	plotCmd.Flags().IntVar(&plotHeight, "height", 0, "chart height in pixels")
	plotCmd.Flags().StringVarP(&plotOutput, "output", "o", "", "spec path (default: <charts_dir>/<file>-<kind>.vl.json)")

	addInputFlags(fitCmd, &fitIn)
	fitCmd.Flags().StringVar(&fitX, "x", "", "predictor column")
	fitCmd.Flags().StringVar(&fitY, "y", "", "response column")
	fitCmd.Flags().StringVar(&fitChart, "chart", "", "also write a point chart with the fitted line here")
	_ = fitCmd.MarkFlagRequired("x")
	_ = fitCmd.MarkFlagRequired("y")
}
