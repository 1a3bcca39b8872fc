package testutil

import (
	"context"
	"testing"
	"time"
)

// ContextWithTimeout возвращает context, отменяемый по таймауту или в конце теста.
// Container-backed tests use it so a stuck container doesn't hang the run.
func ContextWithTimeout(tb testing.TB, d time.Duration) context.Context {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	tb.Cleanup(cancel)
	return ctx
}

// ContextWithCancel returns a context cancelled by the returned func or at
// test cleanup, whichever comes first.
func ContextWithCancel(tb testing.TB) (context.Context, context.CancelFunc) {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)
	return ctx, cancel
}
