package swapfsm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func registerTestSwap(t *testing.T, e *Engine, role Role) *Swap {
	t.Helper()
	_, hash := testSecret()
	s, err := NewSwap(testOffer(), role, hash, [32]byte{}, "party-addr", "to-addr", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Register(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestApplySwapPaymentRecordsAnnouncement(t *testing.T) {
	e, _, _ := newTestEngine()
	s := registerTestSwap(t, e, Acceptor)
	ctx := context.Background()

	script := []byte{0x63, 0xa8}
	got, err := e.ApplySwapPayment(ctx, s.ID, "party-tx", script, nil)
	if err != nil {
		t.Fatalf("ApplySwapPayment: %v", err)
	}
	if got.PartyPaymentTxID != "party-tx" {
		t.Errorf("party tx id = %s", got.PartyPaymentTxID)
	}
	if !got.Flags.Has(FlagHasPartyPayment) {
		t.Error("HasPartyPayment not set")
	}
	if string(got.PartyRedeemScript) != string(script) {
		t.Error("party redeem script not recorded")
	}

	// Re-announcing the same payment is idempotent.
	if _, err := e.ApplySwapPayment(ctx, s.ID, "party-tx", nil, nil); err != nil {
		t.Fatalf("repeated announcement: %v", err)
	}
}

func TestApplySwapPaymentEmptyTxIDFails(t *testing.T) {
	e, _, _ := newTestEngine()
	s := registerTestSwap(t, e, Acceptor)
	ctx := context.Background()

	_, err := e.ApplySwapPayment(ctx, s.ID, "", nil, nil)
	if !errors.Is(err, ErrInvalidPaymentTxId) {
		t.Fatalf("err = %v, want ErrInvalidPaymentTxId", err)
	}

	// Not a protocol violation: a corrected announcement still lands.
	if _, err := e.ApplySwapPayment(ctx, s.ID, "party-tx", nil, nil); err != nil {
		t.Fatalf("announcement after empty-txid rejection: %v", err)
	}
}

func TestApplySwapPaymentConflictingTxIDQuarantines(t *testing.T) {
	e, _, _ := newTestEngine()
	s := registerTestSwap(t, e, Acceptor)
	ctx := context.Background()

	if _, err := e.ApplySwapPayment(ctx, s.ID, "party-tx", nil, nil); err != nil {
		t.Fatal(err)
	}
	_, err := e.ApplySwapPayment(ctx, s.ID, "a-different-tx", nil, nil)
	if !errors.Is(err, ErrWrongSwapMessageOrder) {
		t.Fatalf("err = %v, want ErrWrongSwapMessageOrder", err)
	}

	got, _ := e.Get(s.ID)
	if !got.Flags.Has(FlagCanceled) {
		t.Error("conflicting announcement should quarantine the swap")
	}
	if _, err := e.MarkPartyPaymentConfirmed(ctx, s.ID); !errors.Is(err, ErrQuarantined) {
		t.Errorf("post-quarantine action: err = %v, want ErrQuarantined", err)
	}
}

func TestApplySwapPaymentVerifierFailureRejectsWithoutQuarantine(t *testing.T) {
	e, _, _ := newTestEngine()
	s := registerTestSwap(t, e, Acceptor)
	ctx := context.Background()

	verify := func(s *Swap, txID string, script []byte) error {
		return fmt.Errorf("redeem script does not embed the agreed secret hash")
	}
	_, err := e.ApplySwapPayment(ctx, s.ID, "party-tx", []byte{0xff}, verify)
	if !errors.Is(err, ErrTransactionVerificationError) {
		t.Fatalf("err = %v, want ErrTransactionVerificationError", err)
	}

	got, _ := e.Get(s.ID)
	if got.Flags.Has(FlagHasPartyPayment) {
		t.Error("rejected announcement must not set HasPartyPayment")
	}
	if got.Flags.Has(FlagCanceled) {
		t.Error("verification failure must not quarantine: on-chain observation may still confirm")
	}
}

func TestApplySwapSecretBeforePaymentBroadcastQuarantines(t *testing.T) {
	e, _, _ := newTestEngine()
	s := registerTestSwap(t, e, Acceptor)
	secret, _ := testSecret()

	_, err := e.ApplySwapSecret(context.Background(), s.ID, secret)
	if !errors.Is(err, ErrWrongSwapMessageOrder) {
		t.Fatalf("err = %v, want ErrWrongSwapMessageOrder", err)
	}
	got, _ := e.Get(s.ID)
	if got.Flags.Has(FlagHasSecret) {
		t.Error("out-of-order secret must not be recorded")
	}
	if !got.Flags.Has(FlagCanceled) {
		t.Error("out-of-order secret should quarantine the swap")
	}
}

func TestApplySwapSecretAfterPaymentBroadcast(t *testing.T) {
	e, _, _ := newTestEngine()
	s := registerTestSwap(t, e, Acceptor)
	ctx := context.Background()
	secret, _ := testSecret()

	if _, err := e.MarkPartyPayment(ctx, s.ID, "party-tx", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "own-tx", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	got, err := e.ApplySwapSecret(ctx, s.ID, secret)
	if err != nil {
		t.Fatalf("ApplySwapSecret: %v", err)
	}
	if !got.Flags.Has(FlagHasSecret) || got.Secret != secret {
		t.Error("secret not recorded")
	}
}
