package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tidyloom-cli/internal/recipe"
	"github.com/KaramelBytes/tidyloom-cli/internal/source"
	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("⚠")
)

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, okMark+" "+format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, warnMark+" "+format+"\n", args...)
}

// inputFlags are the loading flags shared by every command that reads a file.
type inputFlags struct {
	delimiter  string
	sheet      string
	sheetIndex int
	strs       []string
	maxRows    int
}

func addInputFlags(c *cobra.Command, in *inputFlags) {
	c.Flags().StringVar(&in.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	c.Flags().StringVar(&in.sheet, "sheet-name", "", "XLSX: sheet name to read")
	c.Flags().IntVar(&in.sheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	c.Flags().StringSliceVar(&in.strs, "strings", nil, "columns kept as text even when every cell is numeric")
	c.Flags().IntVar(&in.maxRows, "max-rows", 0, "maximum data rows to read (0 = unlimited)")
}

func (in *inputFlags) options() (source.Options, error) {
	opt := source.DefaultOptions()
	if cfg != nil {
		opt = cfg.SourceOptions()
	}
	if in.delimiter != "" {
		d, err := recipe.ParseDelimiter(in.delimiter)
		if err != nil {
			return opt, err
		}
		opt.Delimiter = d
	}
	opt.Strings = in.strs
	opt.MaxRows = in.maxRows
	return opt, nil
}

// read loads path as a table, resolving relative paths against data_dir when
// they do not exist in the working directory.
func (in *inputFlags) read(path string) (*table.Table, error) {
	opt, err := in.options()
	if err != nil {
		return nil, err
	}
	path = resolveInput(path)
	var t *table.Table
	if in.sheet != "" || in.sheetIndex > 0 {
		t, err = source.ReadXLSXFile(path, in.sheet, in.sheetIndex, opt)
	} else {
		t, err = source.ReadFile(path, opt)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("input loaded", zap.String("path", path), zap.Int("rows", t.NumRows()), zap.Int("cols", t.NumCols()))
	return t, nil
}

func resolveInput(path string) string {
	if path == "" || filepath.IsAbs(path) || cfg == nil || cfg.DataDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return path
	}
	alt := filepath.Join(expandHome(cfg.DataDir), path)
	if _, err := os.Stat(alt); err == nil {
		return alt
	}
	return path
}

// writeTable prints t as CSV on stdout, or writes it to out when set.
func writeTable(c *cobra.Command, t *table.Table, out string) error {
	if out == "" || out == "-" {
		return source.WriteCSV(c.OutOrStdout(), t, 0)
	}
	if err := source.WriteCSVFile(out, t, 0); err != nil {
		return err
	}
	success(c.OutOrStdout(), "Wrote %d rows × %d columns to %s", t.NumRows(), t.NumCols(), out)
	return nil
}

func expandHome(dir string) string {
	if !strings.HasPrefix(dir, "~") {
		return filepath.Clean(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dir
	}
	dir = strings.TrimPrefix(dir, "~")
	dir = strings.TrimPrefix(dir, string(os.PathSeparator))
	dir = strings.TrimPrefix(dir, "/")
	return filepath.Join(home, dir)
}

// policyDefaults turns the configured reshape policies into recipe defaults.
func policyDefaults() recipe.Defaults {
	if cfg == nil {
		return recipe.Defaults{}
	}
	return recipe.Defaults{
		Duplicates: tidy.DuplicatePolicy(cfg.SpreadDuplicates),
		Extra:      tidy.ExtraPolicy(cfg.SeparateExtra),
		Fill:       tidy.FillPolicy(cfg.SeparateFill),
	}
}

// reportShapeError adds the offending row to the log before the error is returned.
func reportShapeError(err error) error {
	var se *tidy.ShapeError
	if errors.As(err, &se) {
		logger.Warn("row does not fit reshape",
			zap.String("op", se.Op),
			zap.String("column", se.Column),
			zap.Int("row", se.Row),
			zap.String("value", se.Value))
	}
	return err
}
