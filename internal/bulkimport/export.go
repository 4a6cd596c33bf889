package bulkimport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ErrorColumns is the header row written by WriteErrorsCSV.
var ErrorColumns = []string{"row", "error", "field", "data"}

// WriteErrorsCSV writes one line per error: the 1-based row (empty when
// unknown), the message, the offending field and the original record as JSON.
func WriteErrorsCSV(w io.Writer, errs []RecordError) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ErrorColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range errs {
		row := ""
		if e.Row > 0 {
			row = strconv.Itoa(e.Row)
		}
		data := ""
		if e.Data != nil {
			b, err := json.Marshal(e.Data)
			if err != nil {
				return fmt.Errorf("encode row %d: %w", e.Row, err)
			}
			data = string(b)
		}
		if err := cw.Write([]string{row, e.Message, e.Field, data}); err != nil {
			return fmt.Errorf("write row %d: %w", e.Row, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportErrors writes the importer's collected errors as CSV.
func (imp *Importer[T]) ExportErrors(w io.Writer) error {
	return WriteErrorsCSV(w, imp.Errors())
}
