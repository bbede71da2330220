package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), 3, time.Millisecond, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != 42 || calls != 3 {
		t.Fatalf("v=%d calls=%d", v, calls)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 3, time.Millisecond, func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("attempt %d failed", calls)
	})
	if err == nil || err.Error() != "attempt 3 failed" {
		t.Fatalf("err = %v, want last attempt's error", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, 5, time.Hour, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want no retry after cancel", calls)
	}
}

func TestIsOffline(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("rpc: Client Is Offline"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("lookup db.example.com: no such host"), true},
		{fmt.Errorf("read page: %w", errors.New("network is unreachable")), true},
		{errors.New("permission denied"), false},
		{errors.New("document malformed"), false},
	}
	for _, c := range cases {
		if got := IsOffline(c.err); got != c.want {
			t.Fatalf("IsOffline(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
