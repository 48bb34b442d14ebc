// Package guard forces test mode before any package init can spin up
// runtime side effects. Blank-import it from tests that touch the app
// wiring.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("GRIDSCAPE_TEST_MODE") == "" {
			_ = os.Setenv("GRIDSCAPE_TEST_MODE", "1")
		}
	})
}
