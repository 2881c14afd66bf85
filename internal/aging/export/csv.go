package export

import (
	"encoding/csv"
	"io"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

// WriteReportCSV prints the vendor summary table with a header row.
func WriteReportCSV(w io.Writer, report aging.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(report.Columns()); err != nil {
		return err
	}
	for _, record := range Records(report) {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFlaggedCSV lists future-dated entries.
func WriteFlaggedCSV(w io.Writer, flagged []aging.FlaggedEntry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(FlaggedColumns); err != nil {
		return err
	}
	for _, entry := range flagged {
		if err := writer.Write(flaggedRecord(entry)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
