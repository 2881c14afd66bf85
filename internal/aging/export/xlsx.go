package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

const (
	// ReportSheet is the worksheet holding the vendor summary.
	ReportSheet = "Aging Report"
	// FlaggedSheet lists future-dated entries when any exist.
	FlaggedSheet = "Future Dated"

	amountFormat = 4 // #,##0.00
)

// WriteReportXLSX writes the report as a workbook. Amounts are stored as numbers
// so the sheet stays summable; buckets a vendor never touched are left blank.
func WriteReportXLSX(w io.Writer, report aging.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), ReportSheet); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F5F5F5"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	if err != nil {
		return err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: amountFormat})
	if err != nil {
		return err
	}

	columns := report.Columns()
	if err := writeHeader(f, ReportSheet, columns, headerStyle); err != nil {
		return err
	}
	firstAmount := 5
	lastCol := len(columns)
	for i, row := range report.Rows {
		line := i + 2
		values := []any{row.SerialNo, row.Vendor, strings.Join(row.AccountCodes, ListSeparator), strings.Join(row.AccountNames, ListSeparator)}
		for _, bucket := range report.Buckets {
			amount, set := row.BucketValue(bucket.Name)
			if !set {
				values = append(values, nil)
				continue
			}
			values = append(values, amount.InexactFloat64())
		}
		values = append(values, row.Total.InexactFloat64())
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, line)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(ReportSheet, cell, v); err != nil {
				return err
			}
		}
	}
	if len(report.Rows) > 0 {
		from, _ := excelize.CoordinatesToCellName(firstAmount, 2)
		to, _ := excelize.CoordinatesToCellName(lastCol, len(report.Rows)+1)
		if err := f.SetCellStyle(ReportSheet, from, to, amountStyle); err != nil {
			return err
		}
	}
	if err := layoutSheet(f, ReportSheet, lastCol); err != nil {
		return err
	}

	if len(report.Flagged) > 0 {
		if _, err := f.NewSheet(FlaggedSheet); err != nil {
			return err
		}
		if err := writeHeader(f, FlaggedSheet, FlaggedColumns, headerStyle); err != nil {
			return err
		}
		for i, entry := range report.Flagged {
			values := []any{entry.Seq + 1, entry.Vendor, entry.AccountCode, entry.EntryDate.Format(time.DateOnly), entry.AgeDays}
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(FlaggedSheet, cell, &values); err != nil {
				return err
			}
		}
		if err := layoutSheet(f, FlaggedSheet, len(FlaggedColumns)); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func layoutSheet(f *excelize.File, sheet string, cols int) error {
	lastName, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastName, 16); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 32); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.AutoFilter(sheet, fmt.Sprintf("A1:%s1", lastName), nil)
}
