// Package export renders aging reports as CSV, XLSX, PDF and JSON documents.
package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

// ListSeparator joins the account codes and names of a vendor row.
const ListSeparator = ", "

// Records flattens report rows into display strings in column order. Buckets a
// vendor never touched are rendered as empty cells.
func Records(report aging.Report) [][]string {
	out := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		record := []string{
			strconv.Itoa(row.SerialNo),
			row.Vendor,
			strings.Join(row.AccountCodes, ListSeparator),
			strings.Join(row.AccountNames, ListSeparator),
		}
		for _, bucket := range report.Buckets {
			amount, set := row.BucketValue(bucket.Name)
			if !set {
				record = append(record, "")
				continue
			}
			record = append(record, formatAmount(amount))
		}
		record = append(record, formatAmount(row.Total))
		out = append(out, record)
	}
	return out
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FlaggedColumns heads the future-dated entry listing.
var FlaggedColumns = []string{"Row", "Vendor Name", "Account Code", "Entry Date", "Age (days)"}

func flaggedRecord(entry aging.FlaggedEntry) []string {
	return []string{
		strconv.Itoa(entry.Seq + 1),
		entry.Vendor,
		entry.AccountCode,
		entry.EntryDate.Format(time.DateOnly),
		strconv.Itoa(entry.AgeDays),
	}
}

// GrandTotal sums the vendor totals of the report.
func GrandTotal(report aging.Report) decimal.Decimal {
	total := decimal.Zero
	for _, row := range report.Rows {
		total = total.Add(row.Total)
	}
	return total
}
