package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

func readCSV(data []byte, opts Options) (*Dataset, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}

	cr := csv.NewReader(NewTextReader(bytes.NewReader(data)))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv: %w", ErrUnreadable, err)
	}

	headers, records, err := rowsToRecords(rows, opts)
	if err != nil {
		return nil, err
	}
	return &Dataset{Headers: headers, Records: records}, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the
// first line. Spreadsheet exports in Turkish locales use semicolons.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if c := bytes.Count(line, []byte{byte(d)}); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}
