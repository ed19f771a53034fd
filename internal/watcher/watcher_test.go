package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atomex-go/swapengine/internal/backend"
)

func TestPollSucceeds(t *testing.T) {
	calls := 0
	result, err := Poll(context.Background(), PollConfig{Interval: time.Millisecond}, func(ctx context.Context) (int, bool, error) {
		calls++
		if calls < 3 {
			return 0, false, nil
		}
		return 42, true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("got %d, want 42", result)
	}
	if calls != 3 {
		t.Fatalf("got %d calls, want 3", calls)
	}
}

func TestPollDeadlineReached(t *testing.T) {
	deadline := time.Now().Add(-time.Second)
	_, err := Poll(context.Background(), PollConfig{Interval: time.Millisecond, Deadline: deadline}, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})
	if !errors.Is(err, ErrDeadlineReached) {
		t.Fatalf("got %v, want ErrDeadlineReached", err)
	}
}

func TestPollCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Poll(ctx, PollConfig{Interval: time.Millisecond}, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("got %v, want ErrCanceled", err)
	}
}

func TestPollMaxAttemptsReached(t *testing.T) {
	_, err := Poll(context.Background(), PollConfig{Interval: time.Millisecond, MaxAttempts: 3}, func(ctx context.Context) (int, bool, error) {
		return 0, false, backend.ErrRateLimited
	})
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("got %v, want ErrMaxAttempts", err)
	}
}

func TestPollFatalErrorStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Poll(context.Background(), PollConfig{Interval: time.Millisecond, MaxAttempts: 100}, func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, backend.ErrInvalidTx
	})
	if !errors.Is(err, backend.ErrInvalidTx) {
		t.Fatalf("got %v, want ErrInvalidTx", err)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1 (fatal errors don't retry)", calls)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{backend.ErrRateLimited, true},
		{backend.ErrTxNotFound, true},
		{backend.ErrAddressNotFound, true},
		{backend.ErrNotConnected, true},
		{backend.ErrInvalidTx, false},
		{backend.ErrBroadcastFailed, false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
