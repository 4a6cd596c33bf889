package source

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

func readXLSX(data []byte, opts Options) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ErrUnreadable, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmptyFile)
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrUnreadable, sheet, err)
	}
	defer rows.Close()

	var all [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%w: read sheet %q: %w", ErrUnreadable, sheet, err)
		}
		all = append(all, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrUnreadable, sheet, err)
	}

	headers, records, err := rowsToRecords(all, opts)
	if err != nil {
		return nil, err
	}
	return &Dataset{Headers: headers, Records: records}, nil
}
