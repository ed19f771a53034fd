package watcher

import (
	"context"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/config"
)

// WatchConfirmation polls get_transaction(tx_id) until it is
// confirmed. Transient
// errors (NotFound during mempool propagation, rate limiting, dropped
// connections) do not terminate it; only a non-transient error or
// DefaultGetTransactionAttempts exhausted transient retries does.
func WatchConfirmation(ctx context.Context, b backend.Backend, txID string, cfg config.WatcherConfig) (*backend.Transaction, error) {
	return Poll(ctx, PollConfig{
		Interval:    cfg.GetTransactionInterval,
		MaxAttempts: cfg.DefaultGetTransactionAttempts,
	}, func(ctx context.Context) (*backend.Transaction, bool, error) {
		tx, err := b.GetTransaction(ctx, txID)
		if err != nil {
			return nil, false, err
		}
		if tx.Confirmations < 1 {
			return nil, false, nil
		}
		return tx, true, nil
	})
}
