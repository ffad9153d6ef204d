package testutil

import (
	"context"
	"testing"
	"time"
)

// TestContextWithTimeout returns a context with a timeout, canceled when the
// test ends. Use it to bound tests that shell out to git.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	return ctx
}
