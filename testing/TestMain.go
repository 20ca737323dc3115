// Package testing flips the binaries and router into test mode when blank
// imported from a test file.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("LEDGER_TEST_MODE", "1")
		if os.Getenv("BACKOFFICE_BASE_URL") == "" {
			_ = os.Setenv("BACKOFFICE_BASE_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
