package watcher

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atomex-go/swapengine/internal/config"
	"github.com/atomex-go/swapengine/internal/htlc"
)

// WatchCounterpartyPayment polls an account-model HTLC contract until
// it sees the counter-party's initiate call for swapID with the
// expected secret_hash, receiver, minimum value, and minimum
// lock_time. This is a contract-state poll, not an address-history
// scan: an EVM HTLC answers "has the party paid" with a single GetSwap
// call.
func WatchCounterpartyPayment(
	ctx context.Context,
	client *htlc.EVMClient,
	swapID [32]byte,
	secretHash [32]byte,
	receiver common.Address,
	minValue *big.Int,
	minLockTime *big.Int,
	cfg config.WatcherConfig,
) (*htlc.ContractSwap, error) {
	return Poll(ctx, PollConfig{
		Interval:    cfg.CounterpartyPollInterval,
		MaxAttempts: cfg.MaxCounterpartyAttempts,
	}, func(ctx context.Context) (*htlc.ContractSwap, bool, error) {
		swap, err := client.GetSwap(ctx, swapID)
		if err != nil {
			return nil, false, err
		}
		if swap.State != htlc.SwapStateActive {
			return nil, false, nil
		}
		if swap.SecretHash != secretHash {
			return nil, false, fmt.Errorf("watcher: counter-party payment secret_hash mismatch")
		}
		if swap.Receiver != receiver {
			return nil, false, fmt.Errorf("watcher: counter-party payment receiver mismatch")
		}
		if swap.Amount.Cmp(minValue) < 0 {
			return nil, false, nil
		}
		if swap.LockTime.Cmp(minLockTime) < 0 {
			return nil, false, fmt.Errorf("watcher: counter-party payment lock_time too short")
		}
		return swap, true, nil
	})
}

// WatchCounterpartyRefund polls until a counter-party's HTLC contract
// swap transitions to refunded. Unlike the Bitcoin-family case (which
// scans transaction history for a matching refund call), the contract
// exposes refund as a state transition directly.
func WatchCounterpartyRefund(ctx context.Context, client *htlc.EVMClient, swapID [32]byte, cfg config.WatcherConfig) (*htlc.ContractSwap, error) {
	return Poll(ctx, PollConfig{
		Interval:    cfg.CounterpartyPollInterval,
		MaxAttempts: cfg.MaxCounterpartyAttempts,
	}, func(ctx context.Context) (*htlc.ContractSwap, bool, error) {
		swap, err := client.GetSwap(ctx, swapID)
		if err != nil {
			return nil, false, err
		}
		if swap.State != htlc.SwapStateRefunded {
			return nil, false, nil
		}
		return swap, true, nil
	})
}
