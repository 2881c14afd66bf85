package aging

import (
	"errors"
	"testing"
)

func TestCatalogListsDistinctAccounts(t *testing.T) {
	ledger := sampleLedger(
		RawRow{"Acme", "2025-01-01", "1", "", "Trade Payables", "2100"},
		RawRow{"Globex", "2025-01-02", "1", "", "Trade Payables", 2100.0},
		RawRow{"Acme", "2025-01-03", "1", "", "Accrued Expenses", "2050"},
		RawRow{"", "", "", "", "", ""},
		RawRow{"Acme", "2025-01-03", "1", "", "Memo", ""},
	)
	accounts, err := Catalog(ledger, sampleMapping())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %+v", accounts)
	}
	if accounts[0].Code != "2050" || accounts[1].Code != "2100" {
		t.Fatalf("accounts not sorted by code: %+v", accounts)
	}
	if accounts[1].Lines != 2 {
		t.Fatalf("expected 2 lines for 2100, got %d", accounts[1].Lines)
	}
}

func TestCatalogNeedsOnlyAccountColumns(t *testing.T) {
	ledger := Ledger{Header: []string{"Code", "Name"}, Rows: []RawRow{{"100", "Payables"}}}
	accounts, err := Catalog(ledger, FieldMapping{FieldAccountCode: 1, FieldAccountName: 2})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Name != "Payables" {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
	if _, err := Catalog(ledger, FieldMapping{FieldAccountCode: 3, FieldAccountName: 2}); !errors.Is(err, ErrFieldMapping) {
		t.Fatalf("expected ErrFieldMapping got %v", err)
	}
}
