package storage

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(&Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitSchemaIdempotent(t *testing.T) {
	s := newTestStorage(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("user_version = %d, want %d", version, schemaVersion)
	}

	// Re-running the ladder on an up-to-date database must be a no-op.
	if err := s.initSchema(); err != nil {
		t.Fatalf("initSchema (second run): %v", err)
	}
}

func TestSaveSwapRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	record := &SwapRecord{
		ID:                "swap-1",
		Role:              "initiator",
		SoldCurrency:      "BTC",
		PurchasedCurrency: "XTZ",
		State:             SwapStateFunding,
		MethodData:        json.RawMessage(`{"id":"swap-1"}`),
		PaymentTxID:       "txid-payment",
		DeadlineAt:        time.Now().Add(48 * time.Hour),
	}
	if err := s.SaveSwap(record); err != nil {
		t.Fatalf("SaveSwap: %v", err)
	}

	got, err := s.GetSwap("swap-1")
	if err != nil {
		t.Fatalf("GetSwap: %v", err)
	}
	if got.Role != "initiator" || got.SoldCurrency != "BTC" || got.PurchasedCurrency != "XTZ" {
		t.Errorf("round-trip lost columns: %+v", got)
	}
	if got.State != SwapStateFunding {
		t.Errorf("state = %s, want %s", got.State, SwapStateFunding)
	}
	if string(got.MethodData) != `{"id":"swap-1"}` {
		t.Errorf("method_data = %s", got.MethodData)
	}
	if got.PaymentTxID != "txid-payment" {
		t.Errorf("payment_txid = %s", got.PaymentTxID)
	}
}

func TestSaveSwapUpsert(t *testing.T) {
	s := newTestStorage(t)

	record := &SwapRecord{ID: "swap-1", Role: "acceptor", SoldCurrency: "XTZ", PurchasedCurrency: "BTC", State: SwapStateInit}
	if err := s.SaveSwap(record); err != nil {
		t.Fatalf("SaveSwap: %v", err)
	}

	record.State = SwapStateRedeemed
	record.RedeemTxID = "txid-redeem"
	if err := s.SaveSwap(record); err != nil {
		t.Fatalf("SaveSwap (update): %v", err)
	}

	got, err := s.GetSwap("swap-1")
	if err != nil {
		t.Fatalf("GetSwap: %v", err)
	}
	if got.State != SwapStateRedeemed || got.RedeemTxID != "txid-redeem" {
		t.Errorf("upsert did not apply: %+v", got)
	}
}

func TestGetSwapNotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetSwap("missing"); err != ErrSwapNotFound {
		t.Errorf("err = %v, want ErrSwapNotFound", err)
	}
}

func TestGetPendingSwapsExcludesTerminal(t *testing.T) {
	s := newTestStorage(t)

	for _, rec := range []*SwapRecord{
		{ID: "pending-1", Role: "initiator", SoldCurrency: "BTC", PurchasedCurrency: "XTZ", State: SwapStateFunding},
		{ID: "done-1", Role: "initiator", SoldCurrency: "BTC", PurchasedCurrency: "XTZ", State: SwapStateRedeemed},
		{ID: "done-2", Role: "acceptor", SoldCurrency: "XTZ", PurchasedCurrency: "BTC", State: SwapStateRefunded},
	} {
		if err := s.SaveSwap(rec); err != nil {
			t.Fatalf("SaveSwap(%s): %v", rec.ID, err)
		}
	}

	pending, err := s.GetPendingSwaps()
	if err != nil {
		t.Fatalf("GetPendingSwaps: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "pending-1" {
		t.Errorf("pending = %+v, want only pending-1", pending)
	}
}

func TestGetSwapsPastDeadline(t *testing.T) {
	s := newTestStorage(t)

	now := time.Now()
	for _, rec := range []*SwapRecord{
		{ID: "overdue", Role: "initiator", SoldCurrency: "BTC", PurchasedCurrency: "XTZ", State: SwapStateFunding, DeadlineAt: now.Add(-time.Hour)},
		{ID: "not-yet", Role: "initiator", SoldCurrency: "BTC", PurchasedCurrency: "XTZ", State: SwapStateFunding, DeadlineAt: now.Add(time.Hour)},
		{ID: "overdue-but-done", Role: "initiator", SoldCurrency: "BTC", PurchasedCurrency: "XTZ", State: SwapStateRefunded, DeadlineAt: now.Add(-time.Hour)},
	} {
		if err := s.SaveSwap(rec); err != nil {
			t.Fatalf("SaveSwap(%s): %v", rec.ID, err)
		}
	}

	overdue, err := s.GetSwapsPastDeadline(now)
	if err != nil {
		t.Fatalf("GetSwapsPastDeadline: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "overdue" {
		t.Errorf("overdue = %+v, want only overdue", overdue)
	}
}
