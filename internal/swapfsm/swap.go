// Package swapfsm is the protocol core of the swap engine: the Swap
// record, its monotonic state-flag set, and the Engine that drives
// transitions from local actions, watcher callbacks, and counter-party
// messages.
package swapfsm

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atomex-go/swapengine/internal/amount"
	"github.com/atomex-go/swapengine/internal/config"
)

// Role distinguishes the first mover (who chooses the secret) from the
// second mover in a swap.
type Role int

const (
	Initiator Role = iota
	Acceptor
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "acceptor"
}

// StateFlags is the swap's monotonic state bit-set. Flags only ever
// accumulate: a swap's StateFlags value today is always a superset of
// its value at any earlier moment.
type StateFlags uint32

const (
	FlagPaymentSigned StateFlags = 1 << iota
	FlagPaymentBroadcast
	FlagPaymentConfirmed
	FlagHasPartyPayment
	FlagPartyPaymentConfirmed
	FlagRedeemSigned
	FlagRedeemBroadcast
	FlagRedeemConfirmed
	FlagRefundSigned
	FlagRefundBroadcast
	FlagRefundConfirmed
	FlagHasSecret
	FlagCanceled
)

var flagNames = []struct {
	flag StateFlags
	name string
}{
	{FlagPaymentSigned, "PaymentSigned"},
	{FlagPaymentBroadcast, "PaymentBroadcast"},
	{FlagPaymentConfirmed, "PaymentConfirmed"},
	{FlagHasPartyPayment, "HasPartyPayment"},
	{FlagPartyPaymentConfirmed, "PartyPaymentConfirmed"},
	{FlagRedeemSigned, "RedeemSigned"},
	{FlagRedeemBroadcast, "RedeemBroadcast"},
	{FlagRedeemConfirmed, "RedeemConfirmed"},
	{FlagRefundSigned, "RefundSigned"},
	{FlagRefundBroadcast, "RefundBroadcast"},
	{FlagRefundConfirmed, "RefundConfirmed"},
	{FlagHasSecret, "HasSecret"},
	{FlagCanceled, "Canceled"},
}

// Has reports whether every bit in want is set.
func (f StateFlags) Has(want StateFlags) bool { return f&want == want }

// Any reports whether at least one bit in want is set.
func (f StateFlags) Any(want StateFlags) bool { return f&want != 0 }

// With returns f with add's bits set. Flags are never cleared, so this
// is the only way StateFlags values are ever produced from an existing
// one.
func (f StateFlags) With(add StateFlags) StateFlags { return f | add }

func (f StateFlags) String() string {
	var set []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			set = append(set, fn.name)
		}
	}
	if len(set) == 0 {
		return "Created"
	}
	return strings.Join(set, "|")
}

// Terminal reports whether this flag set holds one of the two terminal
// outcomes for a leg: RedeemConfirmed or RefundConfirmed, never both.
func (f StateFlags) Terminal() bool {
	return f.Has(FlagRedeemConfirmed) || f.Has(FlagRefundConfirmed)
}

// Offer is the minimal match-time value a Swap is constructed from:
// the symbol/side/price/qty a matched order carries. Order book and
// matching live outside this engine; this type only exists so NewSwap
// has a realistic entry point.
type Offer struct {
	Symbol string
	Side   amount.Side
	Price  *big.Rat
	Qty    *big.Rat
}

// Swap is one protocol instance: one HTLC leg pair
// (the local payment and the counter-party's mirrored payment),
// addressed by Symbol/Side, synchronized by a shared SecretHash, and
// driven forward by the monotonic Flags bit-set.
type Swap struct {
	ID     string
	Symbol string
	Side   amount.Side
	Price  *big.Rat
	Qty    *big.Rat

	SoldCurrency      string
	PurchasedCurrency string

	Role Role

	// SecretHash is fixed at match time and never changes. Secret is
	// zero until the preimage is known (by generation, for the
	// initiator; by discovery, for the acceptor).
	SecretHash [32]byte
	Secret     [32]byte

	Timestamp time.Time

	PartyAddress string // counter-party's receiving address on PurchasedCurrency
	ToAddress    string // local receiving address

	PaymentTxID      string
	PartyPaymentTxID string
	RedeemTxID       string
	RefundTxID       string

	RedeemScript      []byte // UTXO side, local leg
	PartyRedeemScript []byte // UTXO side, counter-party leg

	Flags StateFlags

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSwap constructs a freshly matched Swap. The caller supplies
// secretHash (known to both parties from match time) and, only when
// role is Initiator and it already generated the secret, the secret
// itself; pass a zero secret otherwise.
func NewSwap(offer Offer, role Role, secretHash [32]byte, secret [32]byte, partyAddress, toAddress string, now time.Time) (*Swap, error) {
	sold, purchased, err := splitSymbol(offer.Symbol, offer.Side)
	if err != nil {
		return nil, err
	}

	s := &Swap{
		ID:                uuid.NewString(),
		Symbol:            offer.Symbol,
		Side:              offer.Side,
		Price:             new(big.Rat).Set(offer.Price),
		Qty:               new(big.Rat).Set(offer.Qty),
		SoldCurrency:      sold,
		PurchasedCurrency: purchased,
		Role:              role,
		SecretHash:        secretHash,
		PartyAddress:      partyAddress,
		ToAddress:         toAddress,
		Timestamp:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if secret != ([32]byte{}) {
		if err := s.setSecret(secret); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// splitSymbol derives sold/purchased currencies from a "BASE/QUOTE"
// symbol and a side: buying means paying QUOTE to receive BASE.
func splitSymbol(symbol string, side amount.Side) (sold, purchased string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("swapfsm: invalid symbol %q", symbol)
	}
	base, quote := parts[0], parts[1]
	if side == amount.Buy {
		return quote, base, nil
	}
	return base, quote, nil
}

// setSecret validates and stores the preimage, setting FlagHasSecret.
// It is idempotent for the correct secret and rejects any attempt to
// overwrite a previously accepted secret with a different value.
func (s *Swap) setSecret(secret [32]byte) error {
	if s.Flags.Has(FlagHasSecret) && s.Secret != secret {
		return fmt.Errorf("swapfsm: secret already set to a different value")
	}
	h := sha256.Sum256(secret[:])
	if h != s.SecretHash {
		return ErrInvalidSpentPoint
	}
	s.Secret = secret
	s.Flags = s.Flags.With(FlagHasSecret)
	return nil
}

// InitiatorDeadline is the absolute lock_time of the initiator's
// payment: timestamp + T_init.
func (s *Swap) InitiatorDeadline(cfg config.SwapConfig) time.Time {
	return s.Timestamp.Add(cfg.InitiatorLockTime)
}

// AcceptorDeadline is the absolute lock_time of the acceptor's
// payment: timestamp + T_acc. T_acc < T_init always, so the acceptor
// can refund before the initiator's payment becomes refundable.
func (s *Swap) AcceptorDeadline(cfg config.SwapConfig) time.Time {
	return s.Timestamp.Add(cfg.ResponderLockTime)
}

// LocalDeadline returns this swap's own leg's lock_time, selected by
// Role.
func (s *Swap) LocalDeadline(cfg config.SwapConfig) time.Time {
	if s.Role == Initiator {
		return s.InitiatorDeadline(cfg)
	}
	return s.AcceptorDeadline(cfg)
}

// RedeemDeadline is the last moment the initiator may broadcast a
// redeem of the counter-party's (acceptor's) HTLC: past this point
// redeem is abandoned in favor of the counter-party's own refund path.
func (s *Swap) RedeemDeadline(cfg config.SwapConfig, watcherCfg config.WatcherConfig) time.Time {
	return s.AcceptorDeadline(cfg).Add(-watcherCfg.RedeemReserve)
}
