// Package source turns uploaded CSV, Excel and JSON files into untyped
// records for the import pipeline.
//
// Every reader produces the same shape: one [bulkimport.Record] per data row,
// keyed by the (optionally mapped) column header. Values are left as the
// reader found them; type coercion belongs to the schema.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
)

// Format is an input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

var (
	// ErrUnsupportedFormat is returned for files that are not CSV, XLSX or JSON.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned when the input exceeds Options.MaxBytes.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrEmptyFile is returned when the input holds no data rows.
	ErrEmptyFile = errors.New("file contains no data rows")

	// ErrUnreadable wraps parse failures of otherwise supported files.
	ErrUnreadable = errors.New("file could not be read")
)

// Options control how a file is read.
type Options struct {
	Format     Format              // Detected from the file name when empty
	Delimiter  rune                // CSV delimiter; sniffed from the header line when 0
	SkipRows   int                 // Rows before the header row (CSV, XLSX)
	Sheet      string              // XLSX sheet name; the first sheet when empty
	MaxBytes   int64               // Reject larger inputs; 0 for no limit
	MaxRecords int                 // Keep at most this many records; 0 for no limit
	MapHeader  func(string) string // Header to field name; identity when nil
}

// Dataset is the result of reading one file.
type Dataset struct {
	Format    Format
	Headers   []string // Field names after mapping, in column order
	Records   []bulkimport.Record
	Truncated int // Records dropped because of MaxRecords
}

// DetectFormat infers the format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// Read parses r according to opts. opts.Format must be set.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	data, err := readLimited(r, opts.MaxBytes)
	if err != nil {
		return nil, err
	}

	var ds *Dataset
	switch opts.Format {
	case FormatCSV:
		ds, err = readCSV(data, opts)
	case FormatXLSX:
		ds, err = readXLSX(data, opts)
	case FormatJSON:
		ds, err = readJSON(data, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
	if err != nil {
		return nil, err
	}

	if len(ds.Records) == 0 {
		return nil, ErrEmptyFile
	}
	ds.Format = opts.Format
	ds.truncate(opts.MaxRecords)
	return ds, nil
}

// ReadNamed reads r, detecting the format from name unless opts.Format is set.
func ReadNamed(r io.Reader, name string, opts Options) (*Dataset, error) {
	if opts.Format == "" {
		f, err := DetectFormat(name)
		if err != nil {
			return nil, err
		}
		opts.Format = f
	}
	return Read(r, opts)
}

// ReadFile opens and reads path.
func ReadFile(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadNamed(f, path, opts)
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, max)
	}
	return data, nil
}

func (ds *Dataset) truncate(max int) {
	if max > 0 && len(ds.Records) > max {
		ds.Truncated = len(ds.Records) - max
		ds.Records = ds.Records[:max]
	}
}

// rowsToRecords pairs every data row with the header row. Blank rows are
// skipped and short rows are padded with empty strings.
func rowsToRecords(rows [][]string, opts Options) ([]string, []bulkimport.Record, error) {
	if opts.SkipRows > 0 {
		if opts.SkipRows >= len(rows) {
			return nil, nil, ErrEmptyFile
		}
		rows = rows[opts.SkipRows:]
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyFile
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = mapHeader(h, opts.MapHeader)
	}

	records := make([]bulkimport.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(bulkimport.Record, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		records = append(records, rec)
	}
	return headers, records, nil
}

func mapHeader(h string, fn func(string) string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	if fn != nil {
		return fn(h)
	}
	return h
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
