package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

var (
	gatherIn          inputFlags
	gatherKey         string
	gatherValue       string
	gatherColumns     []string
	gatherHold        []string
	gatherDropMissing bool
	gatherOutput      string

	spreadIn         inputFlags
	spreadKey        string
	spreadValue      string
	spreadFill       string
	spreadDuplicates string
	spreadSort       bool
	spreadOutput     string

	sepIn        inputFlags
	sepColumn    string
	sepInto      []string
	sepPattern   string
	sepPositions []int
	sepExtra     string
	sepFill      string
	sepConvert   bool
	sepKeep      bool
	sepOutput    string

	uniteIn          inputFlags
	uniteColumn      string
	uniteFrom        []string
	uniteSep         string
	uniteSkipMissing bool
	uniteKeep        bool
	uniteOutput      string
)

var gatherCmd = &cobra.Command{
	Use:   "gather <file>",
	Short: "Collapse value columns into key/value pairs (wide to long)",
	Example: `  tidyloom gather pew.csv --key income --value frequency --hold religion
  tidyloom gather tb.csv --key column --value cases --columns m014,f014 --drop-missing -o long.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := gatherIn.read(args[0])
		if err != nil {
			return err
		}
		out, err := tidy.From(t).WithLogger(logger).
			Gather(tidy.GatherOptions{
				Key:         gatherKey,
				Value:       gatherValue,
				Columns:     gatherColumns,
				Hold:        gatherHold,
				DropMissing: gatherDropMissing,
			}).
			Table()
		if err != nil {
			return err
		}
		return writeTable(cmd, out, gatherOutput)
	},
}

var spreadCmd = &cobra.Command{
	Use:   "spread <file>",
	Short: "Expand a key column into one column per value (long to wide)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := spreadIn.read(args[0])
		if err != nil {
			return err
		}
		dup := policyDefaults().Duplicates
		if cmd.Flags().Changed("duplicates") {
			dup = tidy.DuplicatePolicy(spreadDuplicates)
		}
		fill := table.Missing()
		if cmd.Flags().Changed("fill") {
			opt, err := spreadIn.options()
			if err != nil {
				return err
			}
			fill = table.InferColumn([]string{spreadFill}, opt.Parse)[0]
		}
		out, err := tidy.From(t).WithLogger(logger).
			Spread(tidy.SpreadOptions{Key: spreadKey, Value: spreadValue, Fill: fill, Duplicates: dup, Sort: spreadSort}).
			Table()
		if err != nil {
			return reportShapeError(err)
		}
		return writeTable(cmd, out, spreadOutput)
	},
}

var separateCmd = &cobra.Command{
	Use:   "separate <file>",
	Short: "Split one column into several by a separator or character positions",
	Example: `  tidyloom separate tb.csv --column column --into sex,age --positions 1
  tidyloom separate rates.csv --column rate --into cases,population --sep / --convert`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := sepIn.read(args[0])
		if err != nil {
			return err
		}
		d := policyDefaults()
		if cmd.Flags().Changed("extra") {
			d.Extra = tidy.ExtraPolicy(sepExtra)
		}
		if cmd.Flags().Changed("fill") {
			d.Fill = tidy.FillPolicy(sepFill)
		}
		if cmd.Flags().Changed("positions") && cmd.Flags().Changed("sep") {
			return fmt.Errorf("--sep and --positions are exclusive")
		}
		out, err := tidy.From(t).WithLogger(logger).
			Separate(tidy.SeparateOptions{
				Column:    sepColumn,
				Into:      sepInto,
				Sep:       sepPattern,
				Positions: sepPositions,
				Extra:     d.Extra,
				Fill:      d.Fill,
				Convert:   sepConvert,
				Keep:      sepKeep,
			}).
			Table()
		if err != nil {
			return reportShapeError(err)
		}
		return writeTable(cmd, out, sepOutput)
	},
}

var uniteCmd = &cobra.Command{
	Use:   "unite <file>",
	Short: "Paste several columns into one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := uniteIn.read(args[0])
		if err != nil {
			return err
		}
		out, err := tidy.From(t).WithLogger(logger).
			Unite(tidy.UniteOptions{
				Column:      uniteColumn,
				Columns:     uniteFrom,
				Sep:         uniteSep,
				SkipMissing: uniteSkipMissing,
				Keep:        uniteKeep,
			}).
			Table()
		if err != nil {
			return err
		}
		return writeTable(cmd, out, uniteOutput)
	},
}

func init() {
	rootCmd.AddCommand(gatherCmd, spreadCmd, separateCmd, uniteCmd)

	addInputFlags(gatherCmd, &gatherIn)
	gatherCmd.Flags().StringVar(&gatherKey, "key", "key", "name of the new column holding former column names")
	gatherCmd.Flags().StringVar(&gatherValue, "value", "value", "name of the new column holding the cells")
	gatherCmd.Flags().StringSliceVar(&gatherColumns, "columns", nil, "value columns to gather (default: every column not held)")
	gatherCmd.Flags().StringSliceVar(&gatherHold, "hold", nil, "key columns repeated on every row (default: every column not gathered)")
	gatherCmd.Flags().BoolVar(&gatherDropMissing, "drop-missing", false, "drop rows whose gathered value is missing")
	gatherCmd.Flags().StringVarP(&gatherOutput, "output", "o", "", "write CSV here instead of stdout")

	addInputFlags(spreadCmd, &spreadIn)
	spreadCmd.Flags().StringVar(&spreadKey, "key", "key", "column whose values become column names")
	spreadCmd.Flags().StringVar(&spreadValue, "value", "value", "column supplying the cells")
	spreadCmd.Flags().StringVar(&spreadFill, "fill", "", "value for absent combinations (default: missing)")
	spreadCmd.Flags().StringVar(&spreadDuplicates, "duplicates", "", "repeated cells: error|first|last (default from config)")
	spreadCmd.Flags().BoolVar(&spreadSort, "sort", false, "order new columns by key value instead of first occurrence")
	spreadCmd.Flags().StringVarP(&spreadOutput, "output", "o", "", "write CSV here instead of stdout")

	addInputFlags(separateCmd, &sepIn)
	separateCmd.Flags().StringVar(&sepColumn, "column", "", "column to split")
	separateCmd.Flags().StringSliceVar(&sepInto, "into", nil, "names of the new columns; an empty name discards that piece")
	separateCmd.Flags().StringVar(&sepPattern, "sep", "", "separator regular expression (default: runs of non-alphanumerics)")
	separateCmd.Flags().IntSliceVar(&sepPositions, "positions", nil, "split at character offsets; negative counts from the end")
	separateCmd.Flags().StringVar(&sepExtra, "extra", "", "too many pieces: error|drop|merge (default from config)")
	separateCmd.Flags().StringVar(&sepFill, "fill", "", "too few pieces: error|right|left (default from config)")
	separateCmd.Flags().BoolVar(&sepConvert, "convert", false, "re-infer the type of each new column")
	separateCmd.Flags().BoolVar(&sepKeep, "keep", false, "keep the original column")
	separateCmd.Flags().StringVarP(&sepOutput, "output", "o", "", "write CSV here instead of stdout")
	_ = separateCmd.MarkFlagRequired("column")
	_ = separateCmd.MarkFlagRequired("into")

	addInputFlags(uniteCmd, &uniteIn)
	uniteCmd.Flags().StringVar(&uniteColumn, "column", "", "name of the joined column")
	uniteCmd.Flags().StringSliceVar(&uniteFrom, "from", nil, "columns to paste, in order")
	uniteCmd.Flags().StringVar(&uniteSep, "sep", "_", "separator between pieces")
	uniteCmd.Flags().BoolVar(&uniteSkipMissing, "skip-missing", false, "leave missing cells out instead of writing NA")
	uniteCmd.Flags().BoolVar(&uniteKeep, "keep", false, "keep the source columns")
	uniteCmd.Flags().StringVarP(&uniteOutput, "output", "o", "", "write CSV here instead of stdout")
	_ = uniteCmd.MarkFlagRequired("column")
	_ = uniteCmd.MarkFlagRequired("from")
}
