package main

import (
	"testing"

	"github.com/odyssey-erp/odyssey-aging/internal/app"
	_ "github.com/odyssey-erp/odyssey-aging/testing"
)

func TestMainReturnsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be enabled")
	}
	main()
}
