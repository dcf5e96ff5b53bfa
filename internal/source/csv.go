// Package source loads tables from delimited text, spreadsheets and SQL
// query results, and writes tables back out as delimited text.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/utils"
)

// Options controls how raw cells become a table.
type Options struct {
	// Delimiter for CSV. If 0, sniffed from the file name (.tsv is tab)
	// and the header line.
	Delimiter rune
	// Parse holds the missing tokens and number locale.
	Parse table.ParseOptions
	// Strings lists columns kept as strings even when every cell is numeric.
	Strings []string
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
}

// DefaultOptions treats "" and "NA" as missing and sniffs the delimiter.
func DefaultOptions() Options {
	return Options{Parse: table.DefaultParseOptions()}
}

// ReadCSVFile reads a delimited file. Header names are kept verbatim.
func ReadCSVFile(path string, opt Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
		opt.Delimiter = '\t'
	}
	t, err := ReadCSV(f, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ReadCSV reads a header row followed by data rows. Short rows are padded
// with missing cells; long rows are an error.
func ReadCSV(r io.Reader, opt Options) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.Empty()
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	raw := make([][]string, len(header))
	rows := 0
	for {
		if opt.MaxRows > 0 && rows >= opt.MaxRows {
			break
		}
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("read row %d: %d fields, header has %d", rows+1, len(rec), len(header))
		}
		for i := range header {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			raw[i] = append(raw[i], cell)
		}
		rows++
	}
	return fromRaw(header, raw, opt)
}

// fromRaw applies per-column type inference to raw text columns.
func fromRaw(header []string, raw [][]string, opt Options) (*table.Table, error) {
	forced := make(map[string]bool, len(opt.Strings))
	for _, s := range opt.Strings {
		forced[s] = true
	}
	cols := make([]table.Column, len(header))
	for i, name := range header {
		if forced[name] {
			cols[i] = table.Column{Name: name, Values: table.StringColumn(raw[i], opt.Parse)}
			continue
		}
		cols[i] = table.Column{Name: name, Values: table.InferColumn(raw[i], opt.Parse)}
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	return t, nil
}

// sniffDelimiter picks the most frequent of ',', ';', '\t' and '|' in the
// first line, defaulting to comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(string(line), string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// WriteCSV writes t with a header row. Missing cells are written as the
// missing label.
func WriteCSV(w io.Writer, t *table.Table, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes t to path atomically, creating parent directories.
func WriteCSVFile(path string, t *table.Table, delim rune) error {
	if delim == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
		delim = '\t'
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t, delim); err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

// ReadFile dispatches on the file extension: .xlsx goes to ReadXLSXFile with
// the first sheet, everything else is read as delimited text.
func ReadFile(path string, opt Options) (*table.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSXFile(path, "", 0, opt)
	}
	return ReadCSVFile(path, opt)
}
