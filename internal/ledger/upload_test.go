package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestParseUploadsKeepsOrder(t *testing.T) {
	uploads := []Upload{
		{Name: "z.csv", Data: []byte("Vendor,Code\nZenith,1\n")},
		{Name: "a.CSV", Data: []byte("Vendor,Code\nAcme,2\n")},
	}
	ledger, err := NewLoader(nil).ParseUploads(context.Background(), uploads)
	if err != nil {
		t.Fatalf("parse uploads: %v", err)
	}
	if len(ledger.Rows) != 2 || ledger.Rows[0][0] != "Zenith" {
		t.Fatalf("uploads must keep request order, got %v", ledger.Rows)
	}
	if ledger.Sources[1] != "a.CSV" {
		t.Fatalf("unexpected sources %v", ledger.Sources)
	}
}

func TestParseUploadsRejectsUnknownFormats(t *testing.T) {
	_, err := NewLoader(nil).ParseUploads(context.Background(), []Upload{{Name: "old.xls", Data: []byte{1}}})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat got %v", err)
	}
	if _, err := NewLoader(nil).ParseUploads(context.Background(), nil); !errors.Is(err, ErrNoLedgerFiles) {
		t.Fatalf("expected ErrNoLedgerFiles got %v", err)
	}
}

func TestUploadKeyDependsOnContent(t *testing.T) {
	a := UploadKey([]Upload{{Name: "a.csv", Data: []byte("x")}})
	b := UploadKey([]Upload{{Name: "a.csv", Data: []byte("y")}})
	if a == "" || a == b {
		t.Fatalf("expected distinct keys, got %q and %q", a, b)
	}
	if UploadKey(nil) != "" {
		t.Fatalf("no uploads must not be cacheable")
	}
}
