package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/config"
)

// SpendResult is what a UTXO-spend watcher reports once the output it
// is watching has been spent.
type SpendResult struct {
	Input    *backend.TxInput
	Secret   [32]byte
	IsRedeem bool // false means the refund branch was taken instead
}

// WatchUTXOSpend polls the output (txID, vout) until it is spent. It
// classifies the spend by witness shape (see IsRefundWitness) and, for
// a redeem, recovers the secret by scanning the witness push data. If
// deadline passes unspent, it returns ErrDeadlineReached so the
// caller's refund path can take over.
//
// Only native SegWit spends are recognized: a P2SH-wrapped HTLC (the
// Dogecoin fallback in internal/htlc/script.go) carries its witness
// data in scriptSig instead, which this watcher does not parse.
func WatchUTXOSpend(ctx context.Context, b backend.Backend, txID string, vout uint32, secretHash [32]byte, deadline time.Time, cfg config.WatcherConfig) (*SpendResult, error) {
	return Poll(ctx, PollConfig{
		Interval: cfg.OutputSpentCheckInterval,
		Deadline: deadline,
	}, func(ctx context.Context) (*SpendResult, bool, error) {
		input, err := b.GetInput(ctx, txID, vout)
		if err != nil {
			return nil, false, err
		}
		if input == nil {
			return nil, false, nil
		}
		if IsRefundWitness(input.Witness) {
			return &SpendResult{Input: input, IsRedeem: false}, true, nil
		}
		if secret, ok := ExtractSecret(input.Witness, secretHash); ok {
			return &SpendResult{Input: input, Secret: secret, IsRedeem: true}, true, nil
		}
		// Spent by a witness shape this engine doesn't recognize. Report
		// it anyway rather than spin forever: the caller decides what a
		// spend with neither a matching secret nor the refund shape means.
		return &SpendResult{Input: input, IsRedeem: false}, true, nil
	})
}

// IsRefundWitness reports whether a spending witness matches the HTLC
// refund branch built by htlc.BuildRefundWitness: [signature, empty,
// script]. A claim witness (htlc.BuildClaimWitness) never has an empty
// second element — it carries the secret there.
func IsRefundWitness(witness []string) bool {
	if len(witness) < 2 {
		return false
	}
	mid, err := hex.DecodeString(witness[1])
	if err != nil {
		return false
	}
	return len(mid) == 0
}

// ExtractSecret scans a spending witness for the push-data item that
// is exactly config.DefaultSecretSize bytes long and whose SHA-256
// equals secretHash.
func ExtractSecret(witness []string, secretHash [32]byte) ([32]byte, bool) {
	for _, item := range witness {
		raw, err := hex.DecodeString(item)
		if err != nil || len(raw) != config.DefaultSecretSize {
			continue
		}
		if sha256.Sum256(raw) == secretHash {
			var secret [32]byte
			copy(secret[:], raw)
			return secret, true
		}
	}
	return [32]byte{}, false
}
