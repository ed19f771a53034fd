package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atomex-go/swapengine/internal/config"
	"github.com/atomex-go/swapengine/internal/swapfsm"
)

// SwapFSMStore adapts *Storage's SQLite-backed active_swaps table to
// swapfsm.Store. The full Swap — secret, secret_hash, every tx ID, the
// monotonic flag set — is round-tripped through the MethodData JSON
// column; Role/SoldCurrency/PurchasedCurrency/State/the tx-id columns
// and DeadlineAt are kept populated alongside it purely so
// GetPendingSwaps/GetSwapsPastDeadline can filter without decoding the
// blob.
type SwapFSMStore struct {
	storage *Storage
	swapCfg config.SwapConfig
}

// NewSwapFSMStore wraps an existing Storage for use as a swapfsm.Store.
// swapCfg is needed to compute each swap's own lock_time deadline for
// the deadline_at column.
func NewSwapFSMStore(storage *Storage, swapCfg config.SwapConfig) *SwapFSMStore {
	return &SwapFSMStore{storage: storage, swapCfg: swapCfg}
}

// Save upserts swap's full state, satisfying swapfsm.Store.
func (a *SwapFSMStore) Save(_ context.Context, swap *swapfsm.Swap) error {
	blob, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("storage: encode swap %s: %w", swap.ID, err)
	}

	record := &SwapRecord{
		ID:                swap.ID,
		Role:              swap.Role.String(),
		SoldCurrency:      swap.SoldCurrency,
		PurchasedCurrency: swap.PurchasedCurrency,
		State:             fsmStateToRecordState(swap.Flags),
		MethodData:        blob,
		PaymentTxID:       swap.PaymentTxID,
		PartyPaymentTxID:  swap.PartyPaymentTxID,
		RedeemTxID:        swap.RedeemTxID,
		RefundTxID:        swap.RefundTxID,
		DeadlineAt:        swap.LocalDeadline(a.swapCfg),
		CreatedAt:         swap.CreatedAt,
		UpdatedAt:         swap.UpdatedAt,
	}
	return a.storage.SaveSwap(record)
}

// LoadSwap recovers the full Swap from the JSON blob saved alongside
// the record, for restart recovery.
func (a *SwapFSMStore) LoadSwap(id string) (*swapfsm.Swap, error) {
	record, err := a.storage.GetSwap(id)
	if err != nil {
		return nil, err
	}
	var swap swapfsm.Swap
	if err := json.Unmarshal(record.MethodData, &swap); err != nil {
		return nil, fmt.Errorf("storage: decode swap %s: %w", id, err)
	}
	return &swap, nil
}

// LoadPendingSwaps recovers every non-terminal swap, for registering
// with a freshly constructed swapfsm.Engine after a daemon restart.
func (a *SwapFSMStore) LoadPendingSwaps() ([]*swapfsm.Swap, error) {
	records, err := a.storage.GetPendingSwaps()
	if err != nil {
		return nil, fmt.Errorf("storage: load pending swaps: %w", err)
	}
	swaps := make([]*swapfsm.Swap, 0, len(records))
	for _, record := range records {
		var swap swapfsm.Swap
		if err := json.Unmarshal(record.MethodData, &swap); err != nil {
			return nil, fmt.Errorf("storage: decode swap %s: %w", record.ID, err)
		}
		swaps = append(swaps, &swap)
	}
	return swaps, nil
}

// SwapsPastDeadline returns the IDs of non-terminal swaps whose own
// lock_time has already passed as of now, for the daemon's
// refund-timeout sweep.
func (a *SwapFSMStore) SwapsPastDeadline(now time.Time) ([]string, error) {
	records, err := a.storage.GetSwapsPastDeadline(now)
	if err != nil {
		return nil, fmt.Errorf("storage: load past-deadline swaps: %w", err)
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids, nil
}

// fsmStateToRecordState maps a swapfsm.StateFlags snapshot onto the
// coarse SwapState enum, so GetPendingSwaps/GetSwapsPastDeadline can
// filter on state without decoding MethodData.
func fsmStateToRecordState(flags swapfsm.StateFlags) SwapState {
	switch {
	case flags.Has(swapfsm.FlagRedeemConfirmed):
		return SwapStateRedeemed
	case flags.Has(swapfsm.FlagRefundConfirmed):
		return SwapStateRefunded
	case flags.Has(swapfsm.FlagCanceled):
		return SwapStateFailed
	case flags.Has(swapfsm.FlagPaymentBroadcast):
		return SwapStateFunding
	default:
		return SwapStateInit
	}
}
