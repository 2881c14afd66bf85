package ledger

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

const utf8BOM = "\ufeff"

func readCSV(path string) (sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return sheet{}, err
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) (sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return sheet{}, nil
	}
	if err != nil {
		return sheet{}, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	out := sheet{header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sheet{}, err
		}
		out.rows = append(out.rows, toRow(record))
	}
	return out, nil
}

func toRow(cells []string) aging.RawRow {
	row := make(aging.RawRow, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
