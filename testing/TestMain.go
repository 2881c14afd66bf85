// Package testing forces test mode for packages that import it, so binaries
// exercised from tests never dial Postgres, Redis or Gotenberg.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		_ = os.Unsetenv("PG_DSN")
		_ = os.Setenv("GOTENBERG_URL", "")
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
