package aging

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleMapping() FieldMapping {
	return FieldMapping{
		FieldVendorName:   1,
		FieldEntryDate:    2,
		FieldDebitAmount:  3,
		FieldCreditAmount: 4,
		FieldAccountName:  5,
		FieldAccountCode:  6,
	}
}

func sampleLedger(rows ...RawRow) Ledger {
	return Ledger{
		Header: []string{"Vendor", "Date", "Debit", "Credit", "Account", "Code"},
		Rows:   rows,
	}
}

func TestProjectComputesNetAmount(t *testing.T) {
	ledger := sampleLedger(
		RawRow{" Acme ", "2025-01-15", "1,200.50", "", "Trade Payables", "２１００"},
		RawRow{"Acme", 45678.0, nil, 200.25, "Trade Payables", 2100.0},
		RawRow{"Acme", "2025-01-20", "(50)", "0", "Trade Payables", 2100},
	)
	txns, err := Project(ledger, sampleMapping())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions got %d", len(txns))
	}
	if txns[0].Vendor != "Acme" {
		t.Fatalf("vendor not trimmed: %q", txns[0].Vendor)
	}
	if !txns[0].Amount.Equal(decimal.RequireFromString("1200.50")) {
		t.Fatalf("unexpected amount %s", txns[0].Amount)
	}
	if !txns[1].Amount.Equal(decimal.RequireFromString("-200.25")) {
		t.Fatalf("missing debit should count as zero, got %s", txns[1].Amount)
	}
	if !txns[2].Amount.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("accounting negative not parsed, got %s", txns[2].Amount)
	}
	for i, tx := range txns {
		if tx.AccountCode != "2100" {
			t.Fatalf("row %d: code not canonical: %q", i, tx.AccountCode)
		}
		if tx.Seq != i {
			t.Fatalf("row %d: unexpected seq %d", i, tx.Seq)
		}
	}
	wantSerial := time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)
	if !txns[1].EntryDate.Equal(wantSerial) {
		t.Fatalf("serial date: expected %s got %s", wantSerial, txns[1].EntryDate)
	}
}

func TestProjectRejectsOutOfRangeMapping(t *testing.T) {
	mapping := sampleMapping()
	mapping[FieldAccountCode] = 7
	_, err := Project(sampleLedger(RawRow{"Acme", "2025-01-01", "1", "0", "AP", "100"}), mapping)
	if !errors.Is(err, ErrFieldMapping) {
		t.Fatalf("expected ErrFieldMapping got %v", err)
	}
	var mapErr *FieldMappingError
	if !errors.As(err, &mapErr) || mapErr.Field != FieldAccountCode || mapErr.Width != 6 {
		t.Fatalf("unexpected mapping error %+v", mapErr)
	}

	delete(mapping, FieldVendorName)
	mapping[FieldAccountCode] = 6
	if _, err := Project(sampleLedger(), mapping); !errors.Is(err, ErrFieldMapping) {
		t.Fatalf("expected unmapped field error, got %v", err)
	}
}

func TestProjectReportsBadCells(t *testing.T) {
	_, err := Project(sampleLedger(
		RawRow{"Acme", "2025-01-01", "1", "0", "AP", "100"},
		RawRow{"Acme", "not a date", "1", "0", "AP", "100"},
	), sampleMapping())
	var cellErr *CellError
	if !errors.As(err, &cellErr) {
		t.Fatalf("expected CellError got %v", err)
	}
	if cellErr.Row != 2 || cellErr.Field != FieldEntryDate {
		t.Fatalf("unexpected cell error %+v", cellErr)
	}
	if !errors.Is(err, ErrInvalidCell) {
		t.Fatalf("expected ErrInvalidCell equivalence")
	}

	_, err = Project(sampleLedger(RawRow{"Acme", "2025-01-01", "abc", "0", "AP", "100"}), sampleMapping())
	if !errors.As(err, &cellErr) || cellErr.Field != FieldDebitAmount {
		t.Fatalf("expected debit cell error, got %v", err)
	}
}

func TestProjectSkipsBlankAndShortRows(t *testing.T) {
	txns, err := Project(sampleLedger(
		RawRow{"", nil, "", nil, "", ""},
		RawRow{"Acme", "2025-02-01", "10"},
	), sampleMapping())
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected blank row skipped, got %d transactions", len(txns))
	}
	if txns[0].Seq != 1 || txns[0].AccountCode != "" {
		t.Fatalf("unexpected projection %+v", txns[0])
	}
}

func TestCanonicalCode(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"  100 ", "100"},
		{100, "100"},
		{int64(2100), "2100"},
		{100.0, "100"},
		{100.5, "100.5"},
		{"１００", "100"},
		{nil, ""},
		{decimal.NewFromInt(42), "42"},
	}
	for _, tc := range cases {
		if got := CanonicalCode(tc.in); got != tc.want {
			t.Fatalf("CanonicalCode(%v) = %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestAccountSelectionKeepsInsertionOrder(t *testing.T) {
	sel := NewAccountSelection("300", " 100", "300", "", "２００")
	got := sel.Codes()
	want := []string{"300", "100", "200"}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v got %v", want, got)
		}
	}
	if !sel.Contains("200") || sel.Contains("400") {
		t.Fatalf("membership mismatch")
	}
	var nilSel *AccountSelection
	if nilSel.Len() != 0 || nilSel.Contains("100") {
		t.Fatalf("nil selection must behave as empty")
	}
}
