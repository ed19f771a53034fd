package swapfsm

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/config"
	"github.com/atomex-go/swapengine/internal/watcher"
)

// fakeChainBackend implements backend.Backend with only the two reads
// the engine's watcher entry points use.
type fakeChainBackend struct {
	backend.Backend
	tx    *backend.Transaction
	txErr error
	input *backend.TxInput
}

func (f *fakeChainBackend) GetTransaction(ctx context.Context, txID string) (*backend.Transaction, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	return f.tx, nil
}

func (f *fakeChainBackend) GetInput(ctx context.Context, txID string, vout uint32) (*backend.TxInput, error) {
	return f.input, nil
}

// newFastEngine builds an Engine whose watchers poll on millisecond
// ticks so these tests finish quickly.
func newFastEngine() *Engine {
	watchCfg := config.DefaultWatcherConfig()
	watchCfg.GetTransactionInterval = time.Millisecond
	watchCfg.DefaultGetTransactionAttempts = 3
	watchCfg.OutputSpentCheckInterval = time.Millisecond
	return NewEngine(newMemStore(), config.DefaultSwapConfig(), watchCfg)
}

func waitForFlags(t *testing.T, e *Engine, id string, want StateFlags) *Swap {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := e.Get(id); ok && s.Flags.Has(want) {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	s, _ := e.Get(id)
	t.Fatalf("flags %s never included %s", s.Flags, want)
	return nil
}

func TestTranslateWatcherErr(t *testing.T) {
	maxed := fmt.Errorf("%w: %v", watcher.ErrMaxAttempts, backend.ErrTxNotFound)
	if !errors.Is(translateWatcherErr(maxed), ErrMaxAttemptsCountReached) {
		t.Error("exhausted retries should map to ErrMaxAttemptsCountReached")
	}
	if !errors.Is(translateWatcherErr(backend.ErrRateLimited), ErrRequestError) {
		t.Error("transient RPC error should map to ErrRequestError")
	}
	plain := errors.New("chain rejected the script")
	if translateWatcherErr(plain) != plain {
		t.Error("non-watcher errors should pass through unchanged")
	}
}

func TestWatchPaymentConfirmationMarksConfirmed(t *testing.T) {
	e := newFastEngine()
	s := registerTestSwap(t, e, Initiator)
	ctx := context.Background()

	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "pay-tx", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	b := &fakeChainBackend{tx: &backend.Transaction{TxID: "pay-tx", Confirmations: 2}}
	e.WatchPaymentConfirmation(ctx, s.ID, "pay-tx", b)

	waitForFlags(t, e, s.ID, FlagPaymentConfirmed)
}

func TestWatchPaymentConfirmationSurfacesMaxAttempts(t *testing.T) {
	e := newFastEngine()
	s := registerTestSwap(t, e, Initiator)
	ctx := context.Background()

	// ErrTxNotFound is transient, so the watcher retries until its
	// attempt budget runs out, then the failure surfaces through the
	// taxonomy on the Errors channel.
	b := &fakeChainBackend{txErr: backend.ErrTxNotFound}
	e.WatchPaymentConfirmation(ctx, s.ID, "pay-tx", b)

	select {
	case err := <-e.Errors:
		if !errors.Is(err, ErrMaxAttemptsCountReached) {
			t.Fatalf("err = %v, want wrap of ErrMaxAttemptsCountReached", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error surfaced on the Errors channel")
	}
}

func TestWatchPaymentSpendRevealsSecretFromClaimWitness(t *testing.T) {
	e := newFastEngine()
	s := registerTestSwap(t, e, Acceptor)
	ctx := context.Background()
	secret, _ := testSecret()

	b := &fakeChainBackend{input: &backend.TxInput{
		TxID:    "spend-tx",
		Witness: []string{"aa", hex.EncodeToString(secret[:]), "01", "cc"},
	}}
	e.WatchPaymentSpend(ctx, s.ID, "pay-tx", 0, b, nil)

	got := waitForFlags(t, e, s.ID, FlagHasSecret)
	if got.Secret != secret {
		t.Errorf("recovered secret %x, want %x", got.Secret, secret)
	}
}

func TestWatchPaymentSpendRefundBranchNeverSetsSecret(t *testing.T) {
	e := newFastEngine()
	s := registerTestSwap(t, e, Acceptor)
	ctx := context.Background()

	b := &fakeChainBackend{input: &backend.TxInput{
		TxID:    "spend-tx",
		Witness: []string{"aa", "", "cc"},
	}}
	e.WatchPaymentSpend(ctx, s.ID, "pay-tx", 0, b, nil)

	got := waitForFlags(t, e, s.ID, FlagRefundConfirmed)
	if got.Flags.Has(FlagHasSecret) {
		t.Error("refund-branch spend must never set HasSecret")
	}
}

func TestWatchPaymentSpendDeadlineFiresRefundCallback(t *testing.T) {
	e := newFastEngine()
	_, hash := testSecret()
	// Backdate far enough that the swap's own lock_time has passed, so
	// the spend watcher reports refund time instead of polling.
	start := time.Now().UTC().Add(-config.DefaultSwapConfig().InitiatorLockTime).Add(-time.Hour)
	s, err := NewSwap(testOffer(), Acceptor, hash, [32]byte{}, "party-addr", "to-addr", start)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{})
	e.WatchPaymentSpend(ctx, s.ID, "pay-tx", 0, &fakeChainBackend{}, func(context.Context) {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("refund-time callback never fired")
	}
	got, _ := e.Get(s.ID)
	if got.Flags.Has(FlagHasSecret) || got.Flags.Has(FlagRefundConfirmed) {
		t.Error("deadline must not mutate flags by itself")
	}
}
