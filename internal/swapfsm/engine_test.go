package swapfsm

import (
	"context"
	"crypto/sha256"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/atomex-go/swapengine/internal/amount"
	"github.com/atomex-go/swapengine/internal/config"
)

// memStore is a trivial in-memory Store for tests: it records the
// latest snapshot per swap ID with upsert semantics, like the real
// persistence layer.
type memStore struct {
	mu    sync.Mutex
	saved map[string]Swap
}

func newMemStore() *memStore { return &memStore{saved: make(map[string]Swap)} }

func (m *memStore) Save(_ context.Context, swap *Swap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[swap.ID] = *swap
	return nil
}

func testOffer() Offer {
	return Offer{
		Symbol: "XTZ/BTC",
		Side:   amount.Sell,
		Price:  big.NewRat(1, 1000),
		Qty:    big.NewRat(100, 1),
	}
}

func testSecret() (secret [32]byte, hash [32]byte) {
	secret = [32]byte{1, 2, 3, 4}
	hash = sha256.Sum256(secret[:])
	return
}

func newTestEngine() (*Engine, config.SwapConfig, config.WatcherConfig) {
	swapCfg := config.DefaultSwapConfig()
	watchCfg := config.DefaultWatcherConfig()
	return NewEngine(newMemStore(), swapCfg, watchCfg), swapCfg, watchCfg
}

// Happy path, acceptor view: initiator pays,
// acceptor observes it confirmed, pays itself, initiator redeems
// revealing the secret, acceptor's spend watcher extracts it and
// redeems too. This test drives the initiator leg directly through the
// Engine's transition API.
func TestHappyPathInitiatorRedeemsAfterPartyPaymentConfirmed(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Now().UTC()
	secret, hash := testSecret()

	s, err := NewSwap(testOffer(), Initiator, hash, secret, "party-addr", "to-addr", now)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}

	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "payment-tx", now); err != nil {
		t.Fatalf("initiator should be able to pay first: %v", err)
	}
	if _, err := e.MarkPaymentConfirmed(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPartyPayment(ctx, s.ID, "party-tx", []byte("redeem-script")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPartyPaymentConfirmed(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	final, err := e.MarkRedeemBroadcast(ctx, s.ID, "redeem-tx", now)
	if err != nil {
		t.Fatalf("redeem should be legal once party payment is confirmed: %v", err)
	}
	if !final.Flags.Has(FlagRedeemBroadcast) {
		t.Error("expected RedeemBroadcast flag set")
	}

	final, err = e.MarkRedeemConfirmed(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !final.Flags.Has(FlagRedeemConfirmed) {
		t.Error("expected RedeemConfirmed terminal flag")
	}
	if final.Flags.Has(FlagRefundConfirmed) {
		t.Error("redeem and refund must be mutually exclusive")
	}
}

// Scenario: acceptor may not pay before observing the initiator's
// party payment (transition table "Created → PaymentBroadcast" guard).
func TestAcceptorCannotPayBeforePartyPaymentObserved(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Now().UTC()
	_, hash := testSecret()

	s, err := NewSwap(testOffer(), Acceptor, hash, [32]byte{}, "party-addr", "to-addr", now)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}

	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "payment-tx", now); err == nil {
		t.Error("expected acceptor payment broadcast to be illegal before observing party payment")
	}

	if _, err := e.MarkPartyPayment(ctx, s.ID, "party-tx", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "payment-tx", now); err != nil {
		t.Errorf("acceptor should be able to pay after observing party payment: %v", err)
	}
}

// Initiator refund: acceptor never pays, the
// initiator's own lock_time passes, refund becomes legal.
func TestInitiatorRefundOnlyLegalAfterLocalLockTime(t *testing.T) {
	e, cfg, _ := newTestEngine()
	start := time.Now().UTC()
	_, hash := testSecret()

	s, err := NewSwap(testOffer(), Initiator, hash, [32]byte{}, "party-addr", "to-addr", start)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "payment-tx", start); err != nil {
		t.Fatal(err)
	}

	if _, err := e.MarkRefundBroadcast(ctx, s.ID, "refund-tx", start); err == nil {
		t.Error("expected refund to be illegal before lock_time")
	}

	afterDeadline := s.InitiatorDeadline(cfg).Add(time.Second)
	final, err := e.MarkRefundBroadcast(ctx, s.ID, "refund-tx", afterDeadline)
	if err != nil {
		t.Fatalf("expected refund to be legal after lock_time: %v", err)
	}
	if !final.Flags.Has(FlagRefundBroadcast) {
		t.Error("expected RefundBroadcast flag set")
	}
}

// Acceptor refund when the initiator vanishes
// after the acceptor has paid — RedeemConfirmed must never be set, and
// RefundConfirmed must be the terminal outcome.
func TestAcceptorRefundWhenInitiatorVanishes(t *testing.T) {
	e, cfg, _ := newTestEngine()
	start := time.Now().UTC()
	_, hash := testSecret()

	s, err := NewSwap(testOffer(), Acceptor, hash, [32]byte{}, "party-addr", "to-addr", start)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPartyPayment(ctx, s.ID, "party-tx", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "payment-tx", start); err != nil {
		t.Fatal(err)
	}

	afterDeadline := s.AcceptorDeadline(cfg).Add(time.Second)
	final, err := e.MarkRefundBroadcast(ctx, s.ID, "refund-tx", afterDeadline)
	if err != nil {
		t.Fatal(err)
	}
	final, err = e.MarkRefundConfirmed(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Flags.Has(FlagRedeemConfirmed) {
		t.Error("RedeemConfirmed must never be set on this leg")
	}
	if !final.Flags.Has(FlagRefundConfirmed) {
		t.Error("expected RefundConfirmed terminal flag")
	}
}

// Redeem-deadline policy: past timestamp+T_acc-redeem_reserve, redeem
// must never be broadcast.
func TestRedeemDeadlineSafety(t *testing.T) {
	e, cfg, watchCfg := newTestEngine()
	start := time.Now().UTC()
	secret, hash := testSecret()

	s, err := NewSwap(testOffer(), Initiator, hash, secret, "party-addr", "to-addr", start)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "payment-tx", start); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPartyPayment(ctx, s.ID, "party-tx", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPartyPaymentConfirmed(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	pastDeadline := s.RedeemDeadline(cfg, watchCfg).Add(time.Second)
	if _, err := e.MarkRedeemBroadcast(ctx, s.ID, "redeem-tx", pastDeadline); err == nil {
		t.Error("expected redeem broadcast to be refused past the redeem deadline")
	}
}

// The UTXO-spend refund branch transitions
// straight to RefundConfirmed and must never set HasSecret.
func TestRefundFromSpendWitnessNeverSetsHasSecret(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Now().UTC()
	_, hash := testSecret()

	s, err := NewSwap(testOffer(), Acceptor, hash, [32]byte{}, "party-addr", "to-addr", now)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}

	final, err := e.MarkRefundFromSpendWitness(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !final.Flags.Has(FlagRefundConfirmed) {
		t.Error("expected RefundConfirmed")
	}
	if final.Flags.Has(FlagHasSecret) {
		t.Error("HasSecret must never be set on the refund-witness branch")
	}
}

// RevealSecret rejects any preimage whose SHA-256 doesn't match
// secret_hash, and quarantines the swap as a protocol violation.
func TestRevealSecretRejectsMismatchAndQuarantines(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Now().UTC()
	_, hash := testSecret()

	s, err := NewSwap(testOffer(), Acceptor, hash, [32]byte{}, "party-addr", "to-addr", now)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}

	wrong := [32]byte{9, 9, 9}
	if _, err := e.RevealSecret(ctx, s.ID, wrong); err == nil {
		t.Fatal("expected a mismatched secret to be rejected")
	}

	// The swap is now quarantined: any further action fails with
	// ErrQuarantined rather than silently proceeding.
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "tx", now); err == nil {
		t.Error("expected quarantined swap to refuse further actions")
	}
}

// State monotonicity: flags only ever grow.
func TestStateFlagsNeverShrink(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Now().UTC()
	secret, hash := testSecret()

	s, err := NewSwap(testOffer(), Initiator, hash, secret, "party-addr", "to-addr", now)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}

	before, _ := e.Get(s.ID)
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "tx", now); err != nil {
		t.Fatal(err)
	}
	after, _ := e.Get(s.ID)
	if after.Flags&before.Flags != before.Flags {
		t.Error("flags must be a superset of their prior value")
	}
}

// ForceRefund retries broadcast until it succeeds; a refund is never
// given up on.
func TestForceRefundRetriesUntilBroadcastSucceeds(t *testing.T) {
	e, cfg, _ := newTestEngine()
	e.watchCfg.ForceRefundInterval = 5 * time.Millisecond
	// Backdate the swap's timestamp so its lock_time has already
	// elapsed by the time ForceRefund evaluates CanRefund against the
	// real clock — this test only cares about the retry-until-success
	// loop, not deadline arithmetic (covered separately above).
	start := time.Now().UTC().Add(-cfg.InitiatorLockTime).Add(-time.Hour)
	_, hash := testSecret()

	s, err := NewSwap(testOffer(), Initiator, hash, [32]byte{}, "party-addr", "to-addr", start)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Register(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MarkPaymentBroadcast(ctx, s.ID, "tx", start); err != nil {
		t.Fatal(err)
	}

	attempts := 0
	var mu sync.Mutex
	broadcast := func(ctx context.Context) (string, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return "", context.DeadlineExceeded
		}
		return "refund-tx", nil
	}

	done := make(chan struct{})
	go func() {
		e.ForceRefund(ctx, s.ID, func(ctx context.Context) (string, error) {
			return broadcast(ctx)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("ForceRefund did not complete before the context deadline")
	}

	final, _ := e.Get(s.ID)
	if !final.Flags.Has(FlagRefundBroadcast) {
		t.Error("expected refund to eventually be marked broadcast")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts < 3 {
		t.Errorf("expected at least 3 broadcast attempts, got %d", attempts)
	}
}
