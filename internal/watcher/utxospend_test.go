package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/config"
)

func TestIsRefundWitness(t *testing.T) {
	claim := []string{"aa", hex.EncodeToString(make([]byte, 32)), "01", "cc"}
	refund := []string{"aa", "", "cc"}

	if IsRefundWitness(claim) {
		t.Fatal("claim witness misclassified as refund")
	}
	if !IsRefundWitness(refund) {
		t.Fatal("refund witness not recognized")
	}
}

func TestExtractSecret(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	hash := sha256.Sum256(secret)

	witness := []string{"aa", hex.EncodeToString(secret), "01", "cc"}
	got, ok := ExtractSecret(witness, hash)
	if !ok {
		t.Fatal("expected secret to be found")
	}
	if hex.EncodeToString(got[:]) != hex.EncodeToString(secret) {
		t.Fatalf("got %x, want %x", got, secret)
	}

	if _, ok := ExtractSecret(witness, sha256.Sum256([]byte("wrong"))); ok {
		t.Fatal("expected no match for wrong hash")
	}
}

// fakeSpendBackend implements backend.Backend with only GetInput
// wired; every other method is unused by WatchUTXOSpend.
type fakeSpendBackend struct {
	backend.Backend
	inputs []*backend.TxInput
	err    error
	calls  int
}

func (f *fakeSpendBackend) GetInput(ctx context.Context, txID string, vout uint32) (*backend.TxInput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.inputs) {
		return nil, nil
	}
	in := f.inputs[f.calls]
	f.calls++
	return in, nil
}

func TestWatchUTXOSpendRedeem(t *testing.T) {
	secret := make([]byte, 32)
	secret[0] = 0x42
	hash := sha256.Sum256(secret)

	b := &fakeSpendBackend{inputs: []*backend.TxInput{
		nil,
		{Witness: []string{"aa", hex.EncodeToString(secret), "01", "cc"}},
	}}

	cfg := config.WatcherConfig{OutputSpentCheckInterval: time.Millisecond}
	result, err := WatchUTXOSpend(context.Background(), b, "tx", 0, hash, time.Time{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsRedeem {
		t.Fatal("expected IsRedeem true")
	}
	if hex.EncodeToString(result.Secret[:]) != hex.EncodeToString(secret) {
		t.Fatalf("secret mismatch: got %x, want %x", result.Secret, secret)
	}
}

func TestWatchUTXOSpendRefund(t *testing.T) {
	b := &fakeSpendBackend{inputs: []*backend.TxInput{
		{Witness: []string{"aa", "", "cc"}},
	}}
	cfg := config.WatcherConfig{OutputSpentCheckInterval: time.Millisecond}
	result, err := WatchUTXOSpend(context.Background(), b, "tx", 0, [32]byte{}, time.Time{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsRedeem {
		t.Fatal("expected IsRedeem false for refund witness")
	}
}

func TestWatchUTXOSpendDeadline(t *testing.T) {
	b := &fakeSpendBackend{}
	cfg := config.WatcherConfig{OutputSpentCheckInterval: time.Millisecond}
	_, err := WatchUTXOSpend(context.Background(), b, "tx", 0, [32]byte{}, time.Now().Add(-time.Second), cfg)
	if err != ErrDeadlineReached {
		t.Fatalf("got %v, want ErrDeadlineReached", err)
	}
}
