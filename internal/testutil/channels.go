// Package testutil provides shared test helpers for trapwatch packages.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeouts.
const (
	DefaultTestTimeout = 5 * time.Second
	ShortTestTimeout   = 1 * time.Second
)

// WaitForChannel waits for a signal on ch or fails the test after timeout.
func WaitForChannel[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.FailNow(t, msg)
	}
	var zero T
	return zero
}

// WaitForClose waits for ch to be closed or fails the test after timeout.
func WaitForClose(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			require.FailNow(t, msg, "channel received a value instead of closing")
		}
	case <-time.After(timeout):
		require.FailNow(t, msg)
	}
}
