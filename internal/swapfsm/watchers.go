package swapfsm

import (
	"context"
	"errors"
	"fmt"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/watcher"
)

// This file is the point where watcher results are consumed: the
// watcher package reports its own local error kinds
// (ErrMaxAttempts, transient RPC failures), and the Engine translates
// them into the tagged taxonomy in errors.go before surfacing them.

// translateWatcherErr maps a watcher-local error onto the engine's
// tagged error kinds: exhausted retries become
// ErrMaxAttemptsCountReached, a transient RPC failure that escaped the
// retry loop becomes ErrRequestError, anything else passes through.
func translateWatcherErr(err error) error {
	switch {
	case errors.Is(err, watcher.ErrMaxAttempts):
		return fmt.Errorf("%w: %v", ErrMaxAttemptsCountReached, err)
	case watcher.IsTransient(err):
		return fmt.Errorf("%w: %v", ErrRequestError, err)
	default:
		return err
	}
}

// reportTaskErr surfaces a background task's failure on the Errors
// channel after taxonomy translation. Cancellation is not a failure
// and is dropped silently.
func (e *Engine) reportTaskErr(id, task string, err error) {
	if err == nil || errors.Is(err, watcher.ErrCanceled) || errors.Is(err, context.Canceled) {
		return
	}
	select {
	case e.Errors <- fmt.Errorf("swapfsm: %s for swap %s: %w", task, id, translateWatcherErr(err)):
	default:
	}
}

// WatchPaymentConfirmation spawns a confirmation watcher for the
// swap's own payment transaction and records PaymentConfirmed once it
// reaches confirmation depth. Watcher failures surface on e.Errors;
// they never cancel the swap (the action can be retried at the next
// scheduling tick).
func (e *Engine) WatchPaymentConfirmation(ctx context.Context, id, txID string, b backend.Backend) {
	e.Spawn(ctx, id, func(ctx context.Context) {
		if _, err := watcher.WatchConfirmation(ctx, b, txID, e.watchCfg); err != nil {
			e.reportTaskErr(id, "payment confirmation watcher", err)
			return
		}
		if _, err := e.MarkPaymentConfirmed(ctx, id); err != nil {
			e.reportTaskErr(id, "payment confirmation", err)
		}
	})
}

// WatchPaymentSpend spawns a UTXO-spend watcher over the swap's own
// HTLC output (txID, vout). A claim spend reveals the secret and is
// recorded via RevealSecret; a refund spend goes straight to
// RefundConfirmed; if the swap's own lock_time passes unspent,
// onRefundTime fires (nil means the caller relies on the persisted
// deadline sweep instead).
func (e *Engine) WatchPaymentSpend(ctx context.Context, id, txID string, vout uint32, b backend.Backend, onRefundTime func(context.Context)) {
	e.Spawn(ctx, id, func(ctx context.Context) {
		swap, ok := e.Get(id)
		if !ok {
			return
		}
		res, err := watcher.WatchUTXOSpend(ctx, b, txID, vout, swap.SecretHash, swap.LocalDeadline(e.swapCfg), e.watchCfg)
		if err != nil {
			if errors.Is(err, watcher.ErrDeadlineReached) {
				if onRefundTime != nil {
					onRefundTime(ctx)
				}
				return
			}
			e.reportTaskErr(id, "utxo spend watcher", err)
			return
		}
		if res.IsRedeem {
			if _, err := e.RevealSecret(ctx, id, res.Secret); err != nil {
				e.reportTaskErr(id, "secret reveal", err)
			}
			return
		}
		if _, err := e.MarkRefundFromSpendWitness(ctx, id); err != nil {
			e.reportTaskErr(id, "refund from spend witness", err)
		}
	})
}
