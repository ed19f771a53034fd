package swapfsm

import (
	"context"
	"fmt"
)

// Entry points for counter-party messages delivered over the swap
// message channel. Unlike the Mark* methods (driven by this node's own
// observations), these guard against a counter-party sending messages
// out of order or announcing a payment that doesn't match the agreed
// terms.

// PartyPaymentVerifier checks a counter-party's announced payment
// against the swap's agreed terms before the engine records it — for a
// UTXO leg, that the redeem script embeds the shared secret hash and
// an acceptable lock_time. The check is chain-specific, so the caller
// supplies it; a returned error is wrapped as
// ErrTransactionVerificationError and the announcement is rejected
// (the swap itself stays live: on-chain observation can still confirm
// a genuine payment later).
type PartyPaymentVerifier func(s *Swap, paymentTxID string, redeemScript []byte) error

// ApplySwapPayment records a SwapPayment message from the
// counter-party: its payment tx id and, for a UTXO leg, the redeem
// script. An empty tx id fails with ErrInvalidPaymentTxId; an
// announcement conflicting with one already recorded is a protocol
// violation (ErrWrongSwapMessageOrder) and quarantines the swap.
func (e *Engine) ApplySwapPayment(ctx context.Context, id, paymentTxID string, partyRedeemScript []byte, verify PartyPaymentVerifier) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if paymentTxID == "" {
			return fmt.Errorf("%w: empty payment tx id announced for swap %s", ErrInvalidPaymentTxId, s.ID)
		}
		if s.PartyPaymentTxID != "" && s.PartyPaymentTxID != paymentTxID {
			return fmt.Errorf("%w: conflicting party payment tx id for swap %s", ErrWrongSwapMessageOrder, s.ID)
		}
		if verify != nil {
			if err := verify(s, paymentTxID, partyRedeemScript); err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionVerificationError, err)
			}
		}
		s.PartyPaymentTxID = paymentTxID
		if partyRedeemScript != nil {
			s.PartyRedeemScript = partyRedeemScript
		}
		s.Flags = s.Flags.With(FlagHasPartyPayment)
		return nil
	})
}

// ApplySwapSecret records a secret received out-of-band via a
// SwapSecret message. A secret arriving before this swap has even
// broadcast its own payment is out of order — the counter-party cannot
// have redeemed a payment that does not exist — and quarantines the
// swap. The hash check itself happens in setSecret, same as for
// secrets recovered from spend witnesses.
func (e *Engine) ApplySwapSecret(ctx context.Context, id string, secret [32]byte) (*Swap, error) {
	return e.withSwap(ctx, id, func(s *Swap) error {
		if !s.Flags.Has(FlagPaymentBroadcast) {
			return fmt.Errorf("%w: secret received before payment broadcast for swap %s", ErrWrongSwapMessageOrder, s.ID)
		}
		return s.setSecret(secret)
	})
}
