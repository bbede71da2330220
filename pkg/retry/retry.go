// Package retry wraps fallible operations with bounded retries and a
// monotonically increasing delay. Every read against the document store
// goes through it so transient offline errors are absorbed instead of
// surfacing to the UI layer.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Do invokes op up to attempts times total, sleeping baseDelay*n between
// attempt n and n+1. It returns the first successful result, or the last
// error once attempts are exhausted. A canceled context stops retrying
// immediately.
func Do[T any](ctx context.Context, attempts int, baseDelay time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for n := 1; n <= attempts; n++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if n == attempts {
			break
		}
		select {
		case <-time.After(baseDelay * time.Duration(n)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

// offlinePatterns are the store error messages that indicate the device has
// no connectivity rather than a real fault. Matched case-insensitively.
var offlinePatterns = []string{
	"client is offline",
	"failed to get document",
	"connection refused",
	"no such host",
	"network is unreachable",
}

// IsOffline classifies err as a transient offline/connectivity failure.
// Callers suppress these after retry exhaustion and degrade to an empty
// result; anything else is a real error and is logged at error level.
func IsOffline(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range offlinePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
