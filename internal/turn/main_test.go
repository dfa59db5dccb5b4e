package turn

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the turn
// package. Streaming turns run on the consumer's goroutine and must leave
// nothing behind when iteration stops early.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
