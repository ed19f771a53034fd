// Package watcher implements the engine's bounded, cancellable chain
// watchers: confirmation, UTXO-spend, counter-party refund, and
// counter-party payment. Every watcher here is
// parameterized by (interval, max_attempts, deadline) and ends in
// exactly one of: success, ErrDeadlineReached, ErrCanceled, or
// ErrMaxAttempts.
//
// This package intentionally knows nothing about internal/swapfsm: a
// watcher holds a swap ID and reports results on a channel/return
// value, it never reaches back into a Swap. That keeps the dependency
// one-directional (swapfsm imports watcher, not the reverse) even
// though swapfsm.Engine is the thing that starts these goroutines.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"time"

	"github.com/atomex-go/swapengine/internal/backend"
)

// Local, swapfsm-independent error kinds. internal/swapfsm wraps these
// into its own tagged sentinels (RequestError/MaxAttemptsCountReached)
// at the point it consumes a watcher's result.
var (
	ErrDeadlineReached = errors.New("watcher: deadline reached")
	ErrCanceled        = errors.New("watcher: canceled")
	ErrMaxAttempts     = errors.New("watcher: max attempts count reached")
)

// PollFunc is one polling attempt. Returning a zero value, done=false,
// nil error means "nothing to report yet, try again next tick".
type PollFunc[T any] func(ctx context.Context) (result T, done bool, err error)

// PollConfig bounds a single watcher run.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int       // 0 means unbounded; Deadline is the only bound
	Deadline    time.Time // zero means no deadline
}

// Poll calls fn on Interval ticks until it reports done, a
// non-transient error occurs, the deadline passes, the context is
// canceled, or MaxAttempts transient failures have accumulated.
func Poll[T any](ctx context.Context, cfg PollConfig, fn PollFunc[T]) (T, error) {
	var zero T
	attempts := 0
	ticker := time.NewTicker(jitter(cfg.Interval))
	defer ticker.Stop()

	for {
		if !cfg.Deadline.IsZero() && !time.Now().Before(cfg.Deadline) {
			return zero, ErrDeadlineReached
		}

		result, done, err := fn(ctx)
		if err != nil {
			if !IsTransient(err) {
				return zero, err
			}
			attempts++
			if cfg.MaxAttempts > 0 && attempts >= cfg.MaxAttempts {
				return zero, fmt.Errorf("%w: %v", ErrMaxAttempts, err)
			}
		} else if done {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return zero, ErrCanceled
		case <-ticker.C:
		}
	}
}

// jitter spreads poll ticks +/-20% so many watchers started at once
// don't all hammer the same backend in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 5
	if spread == 0 {
		return d
	}
	delta := time.Duration(rand.Int63n(spread))
	if rand.Intn(2) == 0 {
		return d + delta
	}
	return d - delta
}

// IsTransient reports whether err should be retried rather than
// immediately terminate a watcher: rate limiting, not-yet-visible
// transactions during mempool propagation, dropped connections, and
// ordinary network-layer errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, backend.ErrRateLimited) || errors.Is(err, backend.ErrTxNotFound) ||
		errors.Is(err, backend.ErrAddressNotFound) || errors.Is(err, backend.ErrNotConnected) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return false
}
