package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/config"
)

type fakeConfirmBackend struct {
	backend.Backend
	txs   []*backend.Transaction
	err   error
	calls int
}

func (f *fakeConfirmBackend) GetTransaction(ctx context.Context, txID string) (*backend.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	tx := f.txs[f.calls]
	if f.calls < len(f.txs)-1 {
		f.calls++
	}
	return tx, nil
}

func TestWatchConfirmationSucceeds(t *testing.T) {
	b := &fakeConfirmBackend{txs: []*backend.Transaction{
		{TxID: "tx", Confirmations: 0},
		{TxID: "tx", Confirmations: 1},
	}}
	cfg := config.WatcherConfig{GetTransactionInterval: time.Millisecond, DefaultGetTransactionAttempts: 10}

	tx, err := WatchConfirmation(context.Background(), b, "tx", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Confirmations != 1 {
		t.Fatalf("got %d confirmations, want 1", tx.Confirmations)
	}
}

func TestWatchConfirmationTransientRetriesThenFails(t *testing.T) {
	b := &fakeConfirmBackend{err: backend.ErrTxNotFound}
	cfg := config.WatcherConfig{GetTransactionInterval: time.Millisecond, DefaultGetTransactionAttempts: 3}

	_, err := WatchConfirmation(context.Background(), b, "tx", cfg)
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("got %v, want ErrMaxAttempts", err)
	}
}
