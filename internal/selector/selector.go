// Package selector picks which wallet inputs fund a swap leg: UTXOs for
// a Bitcoin-family leg, or sending addresses for an account-model leg.
// Both selectors are policy-driven so a caller can trade off address
// reuse against transaction count without the engine hardcoding either
// choice.
package selector

import (
	"fmt"

	"github.com/atomex-go/swapengine/internal/swapfsm"
)

// AddressUsagePolicy controls the order candidate addresses/UTXOs are
// tried in.
type AddressUsagePolicy string

const (
	// MinBalanceFirst tries the smallest balances first, consolidating
	// dust and favoring privacy through address rotation.
	MinBalanceFirst AddressUsagePolicy = "min_balance_first"
	// MaxBalanceFirst tries the largest balances first, minimizing the
	// number of inputs/transactions needed.
	MaxBalanceFirst AddressUsagePolicy = "max_balance_first"
	// OnlyOne restricts selection to a single address/UTXO; the
	// selection fails if none can cover the amount alone.
	OnlyOne AddressUsagePolicy = "only_one"
)

// FeeUsagePolicy controls how a caller-supplied fee is attributed
// across the transactions a selection may require.
type FeeUsagePolicy string

const (
	// EstimatedFee asks the caller-supplied FeeEstimator for each
	// transaction's fee rather than using a fixed total.
	EstimatedFee FeeUsagePolicy = "estimated"
	// FeeForAllTransactions divides a single user-supplied fee evenly
	// across however many transactions the selection ends up using.
	FeeForAllTransactions FeeUsagePolicy = "fee_for_all_transactions"
	// FeePerTransaction applies the user-supplied fee to every
	// transaction the selection uses (not divided).
	FeePerTransaction FeeUsagePolicy = "fee_per_transaction"
)

// Candidate is one spendable source: a UTXO or a wallet address with an
// account-model balance.
type Candidate struct {
	Address          string
	AvailableBalance uint64
}

// ErrInsufficientFunds is returned when no candidate set covers amount
// plus fees under the given policy.
type ErrInsufficientFunds struct {
	Required  uint64
	Available uint64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("selector: insufficient funds: need %d, have %d", e.Required, e.Available)
}

func (e *ErrInsufficientFunds) Unwrap() error { return swapfsm.ErrInsufficientFunds }

// ErrInsufficientGas is returned when a policy-derived per-transaction
// fee falls below the operation's gas limit: the transaction would be
// rejected by the chain no matter which addresses fund it, so the
// selection fails up front instead of producing an unminable spend.
type ErrInsufficientGas struct {
	FeePerTx uint64
	GasLimit uint64
}

func (e *ErrInsufficientGas) Error() string {
	return fmt.Sprintf("selector: insufficient gas: fee per transaction %d below gas limit %d", e.FeePerTx, e.GasLimit)
}

func (e *ErrInsufficientGas) Unwrap() error { return swapfsm.ErrInsufficientGas }

// sortCandidates returns a new slice of candidates ordered per policy.
// OnlyOne sorts descending too (so the largest single candidate is
// tried first), since the policy's distinguishing behavior is the
// count cap applied by the caller, not the ordering.
func sortCandidates(candidates []Candidate, policy AddressUsagePolicy) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	ascending := policy == MinBalanceFirst
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			swap := sorted[j].AvailableBalance < sorted[j-1].AvailableBalance
			if !ascending {
				swap = sorted[j].AvailableBalance > sorted[j-1].AvailableBalance
			}
			if !swap {
				break
			}
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}
