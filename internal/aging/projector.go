package aging

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2 Jan 2006",
}

var (
	errEmptyDate = errors.New("empty date")
	errBadDate   = errors.New("unrecognised date")
	errBadAmount = errors.New("unrecognised amount")
)

// ValidateMapping checks every required field against the ledger width.
func ValidateMapping(mapping FieldMapping, width int) error {
	for _, field := range RequiredFields {
		idx := mapping[field]
		if idx < 1 || idx > width {
			return &FieldMappingError{Field: field, Index: idx, Width: width}
		}
	}
	return nil
}

// Project converts ledger rows into transactions using the 1-based field mapping.
// Blank rows are skipped; Seq keeps the original row position.
func Project(ledger Ledger, mapping FieldMapping) ([]Transaction, error) {
	if err := ValidateMapping(mapping, ledger.Width()); err != nil {
		return nil, err
	}
	txns := make([]Transaction, 0, len(ledger.Rows))
	for i, row := range ledger.Rows {
		if blankRow(row) {
			continue
		}
		txn, err := projectRow(i, row, mapping)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func projectRow(seq int, row RawRow, mapping FieldMapping) (Transaction, error) {
	cell := func(f Field) any {
		idx := mapping[f] - 1
		if idx >= len(row) {
			return nil
		}
		return row[idx]
	}
	fail := func(f Field, err error) error {
		return &CellError{Row: seq + 1, Field: f, Value: cell(f), Err: err}
	}

	date, err := parseDate(cell(FieldEntryDate))
	if err != nil {
		return Transaction{}, fail(FieldEntryDate, err)
	}
	debit, err := parseAmount(cell(FieldDebitAmount))
	if err != nil {
		return Transaction{}, fail(FieldDebitAmount, err)
	}
	credit, err := parseAmount(cell(FieldCreditAmount))
	if err != nil {
		return Transaction{}, fail(FieldCreditAmount, err)
	}
	return Transaction{
		Vendor:      cellText(cell(FieldVendorName)),
		AccountCode: CanonicalCode(cell(FieldAccountCode)),
		AccountName: cellText(cell(FieldAccountName)),
		EntryDate:   date,
		Amount:      debit.Sub(credit),
		Seq:         seq,
	}, nil
}

func blankRow(row RawRow) bool {
	for _, c := range row {
		if cellText(c) != "" {
			return false
		}
	}
	return true
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case time.Time:
		return val.Format(time.DateOnly)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func parseAmount(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return val, nil
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, nil
		}
		return *val, nil
	case float64:
		if math.IsNaN(val) {
			return decimal.Zero, nil
		}
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case string:
		return parseAmountText(val)
	case []byte:
		return parseAmountText(string(val))
	default:
		return parseAmountText(fmt.Sprint(val))
	}
}

func parseAmountText(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" || strings.EqualFold(s, "nan") {
		return decimal.Zero, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errBadAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func parseDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, errEmptyDate
	case time.Time:
		if val.IsZero() {
			return time.Time{}, errEmptyDate
		}
		return DateOnly(val), nil
	case float64:
		return fromSerial(val)
	case int:
		return fromSerial(float64(val))
	case int64:
		return fromSerial(float64(val))
	case string:
		return parseDateText(val)
	default:
		return parseDateText(fmt.Sprint(val))
	}
}

func parseDateText(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSerial(serial)
	}
	return time.Time{}, errBadDate
}

func fromSerial(serial float64) (time.Time, error) {
	if serial < 1 || serial > 2958465 || math.IsNaN(serial) {
		return time.Time{}, errBadDate
	}
	t, err := excelize.ExcelDateToTime(math.Floor(serial), false)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return DateOnly(t), nil
}
