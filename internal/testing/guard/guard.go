package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("HARBORVET_TEST_MODE") == "" {
			_ = os.Setenv("HARBORVET_TEST_MODE", "1")
		}
	})
}
