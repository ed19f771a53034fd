package swapfsm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atomex-go/swapengine/internal/config"
)

// Store is the persistence contract for swap records: idempotent
// upserts, keyed by swap ID. internal/storage
// provides a concrete mattn/go-sqlite3-backed implementation; tests
// use the in-memory one in this package.
type Store interface {
	Save(ctx context.Context, swap *Swap) error
}

// TaskHandle is an owned, cancellable background task the Engine
// starts on a swap's behalf (a watcher goroutine, a force-refund
// loop). Engine.Cancel cancels every handle registered for a swap;
// cancellation is idempotent and never blocks on the task's own exit.
type TaskHandle struct {
	cancel context.CancelFunc
}

// active is the Engine's bookkeeping for one in-flight swap: the swap
// record itself, a per-swap mutex serializing every flag mutation, and
// the task handles started on its behalf.
type active struct {
	mu    sync.Mutex
	swap  *Swap
	tasks []TaskHandle
}

// Engine is the protocol core: it owns every in-flight Swap,
// serializes flag mutations per swap ID, enforces the transition
// legality guards, and persists after every change. It
// knows nothing about any specific chain's wire format — broadcasting,
// signing, and watching are the caller's job (internal/txfactory,
// internal/watcher, internal/htlc); the Engine only decides *whether*
// an action is legal right now and records that it happened.
type Engine struct {
	mu       sync.Mutex
	swaps    map[string]*active
	store    Store
	swapCfg  config.SwapConfig
	watchCfg config.WatcherConfig

	// Errors receives panics recovered from task goroutines and fatal
	// (non-transient) errors the Engine itself cannot act on. The
	// channel is buffered so a slow/absent consumer cannot wedge a
	// watcher goroutine.
	Errors chan error
}

// NewEngine constructs an Engine with no active swaps.
func NewEngine(store Store, swapCfg config.SwapConfig, watchCfg config.WatcherConfig) *Engine {
	return &Engine{
		swaps:    make(map[string]*active),
		store:    store,
		swapCfg:  swapCfg,
		watchCfg: watchCfg,
		Errors:   make(chan error, 16),
	}
}

// Register adds a freshly constructed Swap to the Engine's active set
// and persists its initial record.
func (e *Engine) Register(ctx context.Context, swap *Swap) error {
	e.mu.Lock()
	if _, exists := e.swaps[swap.ID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("swapfsm: swap %s already registered", swap.ID)
	}
	e.swaps[swap.ID] = &active{swap: swap}
	e.mu.Unlock()
	return e.persist(ctx, swap)
}

// Get returns a copy of the swap's current flags/fields. Callers must
// not mutate the returned value; all mutation goes through the
// Apply*/Mark* methods below so it is serialized per swap ID.
func (e *Engine) Get(id string) (*Swap, bool) {
	a, ok := e.lookup(id)
	if !ok {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *a.swap
	return &cp, true
}

func (e *Engine) lookup(id string) (*active, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.swaps[id]
	return a, ok
}

// withSwap is the Engine's single serialization point: every flag
// mutation runs inside fn while holding the swap's own mutex, never
// the Engine-wide one, so unrelated swaps never contend.
func (e *Engine) withSwap(ctx context.Context, id string, fn func(*Swap) error) (*Swap, error) {
	a, ok := e.lookup(id)
	if !ok {
		return nil, fmt.Errorf("swapfsm: unknown swap %s", id)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.swap.Flags.Has(FlagCanceled) {
		return nil, fmt.Errorf("%w: swap %s", ErrQuarantined, id)
	}
	if err := fn(a.swap); err != nil {
		if isProtocolViolation(err) {
			a.swap.Flags = a.swap.Flags.With(FlagCanceled)
			e.persist(ctx, a.swap) //nolint:errcheck // best-effort on the quarantine path
		}
		return nil, err
	}
	a.swap.UpdatedAt = time.Now().UTC()
	if err := e.persist(ctx, a.swap); err != nil {
		return nil, err
	}
	cp := *a.swap
	return &cp, nil
}

func (e *Engine) persist(ctx context.Context, swap *Swap) error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(ctx, swap)
}

// registerTask records a cancellable background task against a swap
// so Cancel can stop it later.
func (e *Engine) registerTask(id string, cancel context.CancelFunc) {
	a, ok := e.lookup(id)
	if !ok {
		cancel()
		return
	}
	a.mu.Lock()
	a.tasks = append(a.tasks, TaskHandle{cancel: cancel})
	a.mu.Unlock()
}

// Spawn runs fn in its own goroutine under a context derived from ctx,
// registers the resulting cancel func as a task handle on the swap,
// and recovers any panic into e.Errors rather than crashing the
// process.
func (e *Engine) Spawn(ctx context.Context, id string, fn func(context.Context)) {
	taskCtx, cancel := context.WithCancel(ctx)
	e.registerTask(id, cancel)
	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				select {
				case e.Errors <- fmt.Errorf("swapfsm: task panic for swap %s: %v", id, r):
				default:
				}
			}
		}()
		fn(taskCtx)
	}()
}

// Cancel stops every task handle registered for a swap. Idempotent:
// calling it twice, or on a swap with no tasks, never errors.
func (e *Engine) Cancel(id string) {
	a, ok := e.lookup(id)
	if !ok {
		return
	}
	a.mu.Lock()
	tasks := a.tasks
	a.tasks = nil
	a.mu.Unlock()
	for _, t := range tasks {
		t.cancel()
	}
}

// ---------------------------------------------------------------------
// Transition legality guards and local-action entry points
// ---------------------------------------------------------------------

// CanBroadcastPayment implements the "Created → PaymentBroadcast"
// guard: the initiator may always pay first; the acceptor may only pay
// once it has observed the initiator's party payment.
func (s *Swap) CanBroadcastPayment() bool {
	return s.Role == Initiator || s.Flags.Has(FlagHasPartyPayment)
}

// CanRedeem implements the "* → Redeem" guard: the party payment must
// be confirmed, and it must still be before this swap's redeem
// deadline.
func (s *Swap) CanRedeem(cfg config.SwapConfig, watchCfg config.WatcherConfig, now time.Time) bool {
	if !s.Flags.Has(FlagPartyPaymentConfirmed) {
		return false
	}
	return now.Before(s.RedeemDeadline(cfg, watchCfg))
}

// CanRefund implements the "* → Refund" guard: refund only becomes
// legal once this swap's own local lock_time has passed.
func (s *Swap) CanRefund(cfg config.SwapConfig, now time.Time) bool {
	return !now.Before(s.LocalDeadline(cfg))
}

// MarkPaymentBroadcast records that the local payment transaction has
// been broadcast. Guarded by CanBroadcastPayment; broadcast implies
// signed, so PaymentSigned is set alongside PaymentBroadcast if not
// already present.
func (e *Engine) MarkPaymentBroadcast(ctx context.Context, id, paymentTxID string, now time.Time) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if !s.CanBroadcastPayment() {
			return fmt.Errorf("%w: payment broadcast not yet legal for swap %s", ErrSwapError, s.ID)
		}
		s.PaymentTxID = paymentTxID
		s.Flags = s.Flags.With(FlagPaymentSigned).With(FlagPaymentBroadcast)
		return nil
	})
}

// MarkPaymentConfirmed records that the confirmation watcher observed
// the local payment reach at least one confirmation.
func (e *Engine) MarkPaymentConfirmed(ctx context.Context, id string) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if !s.Flags.Has(FlagPaymentBroadcast) {
			return fmt.Errorf("%w: payment not broadcast for swap %s", ErrSwapError, s.ID)
		}
		s.Flags = s.Flags.With(FlagPaymentConfirmed)
		return nil
	})
}

// MarkPartyPayment records that the counter-party's HTLC payment has
// been observed on-chain (either via the counter-party payment watcher
// or a SwapPayment message; on-chain observation remains
// authoritative).
func (e *Engine) MarkPartyPayment(ctx context.Context, id, partyTxID string, partyRedeemScript []byte) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		s.PartyPaymentTxID = partyTxID
		if partyRedeemScript != nil {
			s.PartyRedeemScript = partyRedeemScript
		}
		s.Flags = s.Flags.With(FlagHasPartyPayment)
		return nil
	})
}

// MarkPartyPaymentConfirmed records that the counter-party's payment
// has reached confirmation depth, which is the precondition for this
// swap's own redeem.
func (e *Engine) MarkPartyPaymentConfirmed(ctx context.Context, id string) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if !s.Flags.Has(FlagHasPartyPayment) {
			return fmt.Errorf("%w: no observed party payment for swap %s", ErrSwapError, s.ID)
		}
		s.Flags = s.Flags.With(FlagPartyPaymentConfirmed)
		return nil
	})
}

// RevealSecret records a secret learned either by on-chain spend
// inspection (internal/watcher.ExtractSecret) or an out-of-band
// SwapSecret message. It is idempotent for the correct secret and
// rejects a mismatching one with ErrInvalidSpentPoint, which
// quarantines the swap.
func (e *Engine) RevealSecret(ctx context.Context, id string, secret [32]byte) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		return s.setSecret(secret)
	})
}

// MarkRedeemBroadcast records that a redeem transaction for the
// counter-party's HTLC has been broadcast. Guarded by CanRedeem: past
// the redeem deadline this call fails and the caller falls back to the
// counter-party's own refund path rather than racing a late redeem.
func (e *Engine) MarkRedeemBroadcast(ctx context.Context, id, redeemTxID string, now time.Time) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if !s.CanRedeem(e.swapCfg, e.watchCfg, now) {
			return fmt.Errorf("%w: redeem deadline passed for swap %s", ErrSwapError, s.ID)
		}
		if !s.Flags.Has(FlagHasSecret) {
			return fmt.Errorf("%w: no secret known for swap %s", ErrSwapError, s.ID)
		}
		s.RedeemTxID = redeemTxID
		s.Flags = s.Flags.With(FlagRedeemSigned).With(FlagRedeemBroadcast)
		return nil
	})
}

// MarkRedeemConfirmed records that the redeem transaction reached
// confirmation depth — the success terminal outcome for this leg.
func (e *Engine) MarkRedeemConfirmed(ctx context.Context, id string) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if s.Flags.Has(FlagRefundConfirmed) {
			return fmt.Errorf("%w: swap %s already refund-confirmed", ErrInternalError, s.ID)
		}
		if !s.Flags.Has(FlagRedeemBroadcast) {
			return fmt.Errorf("%w: redeem not broadcast for swap %s", ErrSwapError, s.ID)
		}
		s.Flags = s.Flags.With(FlagRedeemConfirmed)
		return nil
	})
}

// MarkRefundBroadcast records that a refund transaction has been
// broadcast. Guarded by CanRefund: refund is only legal once the
// swap's own lock_time has actually passed.
func (e *Engine) MarkRefundBroadcast(ctx context.Context, id, refundTxID string, now time.Time) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if !s.CanRefund(e.swapCfg, now) {
			return fmt.Errorf("%w: lock_time not yet reached for swap %s", ErrSwapError, s.ID)
		}
		if s.Flags.Has(FlagRedeemConfirmed) {
			return fmt.Errorf("%w: swap %s already redeem-confirmed", ErrInternalError, s.ID)
		}
		s.RefundTxID = refundTxID
		s.Flags = s.Flags.With(FlagRefundSigned).With(FlagRefundBroadcast)
		return nil
	})
}

// MarkRefundConfirmed records that the refund transaction reached
// confirmation depth — the fallback terminal outcome for this leg.
func (e *Engine) MarkRefundConfirmed(ctx context.Context, id string) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if s.Flags.Has(FlagRedeemConfirmed) {
			return fmt.Errorf("%w: swap %s already redeem-confirmed", ErrInternalError, s.ID)
		}
		if !s.Flags.Has(FlagRefundBroadcast) {
			return fmt.Errorf("%w: refund not broadcast for swap %s", ErrSwapError, s.ID)
		}
		s.Flags = s.Flags.With(FlagRefundConfirmed)
		return nil
	})
}

// MarkRefundFromSpendWitness handles a spend whose witness matched the
// refund branch of the HTLC script: the counter-party spent our
// payment output via the refund path, which only happens after our own
// lock_time, so this goes straight to the refund-confirmed terminal
// without ever touching HasSecret.
func (e *Engine) MarkRefundFromSpendWitness(ctx context.Context, id string) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if s.Flags.Has(FlagRedeemConfirmed) {
			return fmt.Errorf("%w: swap %s already redeem-confirmed", ErrInternalError, s.ID)
		}
		s.Flags = s.Flags.With(FlagRefundSigned).With(FlagRefundBroadcast).With(FlagRefundConfirmed)
		return nil
	})
}

// Quarantine marks the swap Canceled after a protocol violation
// (invalid signs, an invalid spent point, or a message arriving out of
// order stop all further action and surface to the operator). Unlike the
// Mark* methods, this one always "succeeds": the swap is canceled and
// persisted, and the original cause is only returned for logging, not
// as a failure of this call.
func (e *Engine) Quarantine(ctx context.Context, id string, cause error) (*Swap, error) {
	swap, err := e.withSwap(ctx, id, func(s *Swap) error {
		s.Flags = s.Flags.With(FlagCanceled)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return swap, fmt.Errorf("%w: %v", ErrQuarantined, cause)
}

// ForceRefund re-broadcasts a pre-signed refund transaction on
// watchCfg.ForceRefundInterval until broadcast succeeds,
// MarkRefundBroadcast is accepted, or ctx is canceled. The refund is
// pre-signed at payment time, so it is always rescueable and retried
// indefinitely rather than given up on: losing a refund is worse than
// wasted polling. broadcast returns the refund tx ID once accepted.
func (e *Engine) ForceRefund(ctx context.Context, id string, broadcast func(context.Context) (string, error)) {
	ticker := time.NewTicker(e.watchCfg.ForceRefundInterval)
	defer ticker.Stop()
	for {
		now := time.Now().UTC()
		if swap, ok := e.Get(id); ok && swap.Flags.Has(FlagRefundBroadcast) {
			return
		}
		txID, err := broadcast(ctx)
		if err == nil {
			if _, markErr := e.MarkRefundBroadcast(ctx, id, txID, now); markErr == nil {
				return
			}
		} else {
			select {
			case e.Errors <- fmt.Errorf("%w: refund for swap %s: %v", ErrTransactionBroadcastError, id, err):
			default:
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
