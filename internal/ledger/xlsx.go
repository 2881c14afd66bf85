package ledger

import (
	"io"

	"github.com/xuri/excelize/v2"
)

func readXLSX(path string) (sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return sheet{}, err
	}
	defer func() { _ = f.Close() }()
	return firstSheet(f)
}

func parseXLSX(r io.Reader) (sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return sheet{}, err
	}
	defer func() { _ = f.Close() }()
	return firstSheet(f)
}

// firstSheet reads the first worksheet. Cells are taken raw so dates arrive as
// serial numbers and amounts without display formatting.
func firstSheet(f *excelize.File) (sheet, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return sheet{}, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return sheet{}, err
	}
	if len(rows) == 0 {
		return sheet{}, nil
	}
	out := sheet{header: rows[0]}
	for _, cells := range rows[1:] {
		out.rows = append(out.rows, toRow(cells))
	}
	return out, nil
}
