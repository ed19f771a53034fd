package selector

import "fmt"

// FeeEstimator returns the fee an account-model transaction will cost,
// given how many transactions the selection is currently trying (so
// Tezos/Ethereum gas-limit-by-operation can distinguish the first
// payment from later top-ups) and whether this is the first payment in
// the selection.
type FeeEstimator func(txCount int, isFirst bool) (uint64, error)

// AddressSelection is one (address, amount, fee) triple chosen to fund
// part of an account-model swap leg.
type AddressSelection struct {
	Address string
	Amount  uint64
	Fee     uint64
}

const maxAccountAddresses = 8

// SelectAccountAddresses implements the account-model selection
// algorithm: it tries using 1, then 2, ... transactions, stopping at
// the first transaction count that can fully cover amount once each
// transaction's fee is subtracted from its address's available
// balance. OnlyOne caps the search at a single transaction.
//
// gasLimit is the floor every single transaction's fee must meet
// (Ethereum-style gas accounting): a user-supplied fee that divides
// down below it yields ErrInsufficientGas rather than a selection the
// chain would reject. Pass 0 to disable the check.
func SelectAccountAddresses(
	candidates []Candidate,
	amount uint64,
	usagePolicy AddressUsagePolicy,
	feePolicy FeeUsagePolicy,
	estimate FeeEstimator,
	userFee uint64,
	gasLimit uint64,
) ([]AddressSelection, error) {
	if amount == 0 {
		return nil, nil
	}
	sorted := sortCandidates(candidates, usagePolicy)

	maxTx := len(sorted)
	if usagePolicy == OnlyOne {
		maxTx = 1
	}
	if maxTx > maxAccountAddresses {
		maxTx = maxAccountAddresses
	}

	var totalAvailable uint64
	for _, c := range sorted {
		totalAvailable += c.AvailableBalance
	}

	for txCount := 1; txCount <= maxTx; txCount++ {
		selection := make([]AddressSelection, 0, txCount)
		required := amount

		for _, c := range sorted {
			isFirst := len(selection) == 0
			txFee, err := feeForTx(feePolicy, estimate, txCount, isFirst, userFee)
			if err != nil {
				return nil, err
			}
			if gasLimit > 0 && txFee < gasLimit {
				return nil, &ErrInsufficientGas{FeePerTx: txFee, GasLimit: gasLimit}
			}
			if c.AvailableBalance <= txFee {
				continue
			}
			spendable := c.AvailableBalance - txFee
			use := spendable
			if use > required {
				use = required
			}
			selection = append(selection, AddressSelection{Address: c.Address, Amount: use, Fee: txFee})
			required -= use
			if required == 0 {
				return selection, nil
			}
			if len(selection) == txCount {
				break
			}
		}
	}

	return nil, &ErrInsufficientFunds{Required: amount, Available: totalAvailable}
}

func feeForTx(policy FeeUsagePolicy, estimate FeeEstimator, txCount int, isFirst bool, userFee uint64) (uint64, error) {
	switch policy {
	case EstimatedFee:
		if estimate == nil {
			return 0, fmt.Errorf("selector: EstimatedFee policy requires a FeeEstimator")
		}
		return estimate(txCount, isFirst)
	case FeeForAllTransactions:
		return userFee / uint64(txCount), nil
	case FeePerTransaction:
		return userFee, nil
	default:
		return 0, fmt.Errorf("selector: unknown fee usage policy %q", policy)
	}
}
