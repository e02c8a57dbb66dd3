package pool

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// A worker goroutine outliving its pool is a leak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
