package txfactory

import (
	"context"
	"fmt"
	"math/big"

	"github.com/atomex-go/swapengine/internal/amount"
	"github.com/atomex-go/swapengine/internal/chain"
	"github.com/atomex-go/swapengine/internal/nonce"
)

// AccountCall is an assembled, unsigned account-model transaction
// request: the nonce, gas parameters, destination, and value a Signer
// needs to produce a signed transaction, whether that's an EVM
// transaction or a Tezos operation.
type AccountCall struct {
	From     string
	To       string
	Value    *big.Int
	Nonce    uint64
	GasPrice *big.Int // EVM: wei per gas; Tezos-family: unused, Fee carries the mutez total
	GasLimit uint64
	Fee      amount.Fee // populated for Tezos-family calls
	Data     []byte     // EVM calldata
}

// AssembleEVMCall populates an AccountCall for an Ethereum-style HTLC
// invocation: nonce comes from the shared nonce.Manager, gas limit
// from the operation's gas schedule (initiate and add differ),
// and gas price from the caller's current fee-market read.
func AssembleEVMCall(
	ctx context.Context,
	nonces *nonce.Manager,
	from, to string,
	value *big.Int,
	gasPriceWei *big.Int,
	op amount.OperationKind,
	isFirst bool,
	schedule amount.GasSchedule,
	data []byte,
) (*AccountCall, error) {
	n, err := nonces.Next(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("txfactory: fetch nonce for %s: %w", from, err)
	}
	gasLimit, err := amount.GasLimitByOperation(op, isFirst, schedule)
	if err != nil {
		return nil, fmt.Errorf("txfactory: resolve gas limit: %w", err)
	}
	return &AccountCall{
		From:     from,
		To:       to,
		Value:    value,
		Nonce:    n,
		GasPrice: gasPriceWei,
		GasLimit: gasLimit,
		Data:     data,
	}, nil
}

// AssembleTezosCall populates an AccountCall for a Tezos-family HTLC
// invocation. Tezos counters are account-scoped like EVM nonces, so the
// same nonce.Manager is reused with the Tezos address as the cache key.
func AssembleTezosCall(
	ctx context.Context,
	nonces *nonce.Manager,
	params *chain.Params,
	from, to string,
	amountMutez uint64,
	op amount.OperationKind,
	isFirst bool,
	schedule amount.GasSchedule,
) (*AccountCall, error) {
	counter, err := nonces.Next(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("txfactory: fetch counter for %s: %w", from, err)
	}
	cost, err := amount.CostByOperation(op, isFirst, schedule)
	if err != nil {
		return nil, fmt.Errorf("txfactory: resolve gas cost: %w", err)
	}
	fee, err := amount.TezosFee(params, cost)
	if err != nil {
		return nil, fmt.Errorf("txfactory: compute fee: %w", err)
	}
	return &AccountCall{
		From:     from,
		To:       to,
		Value:    new(big.Int).SetUint64(amountMutez),
		Nonce:    counter,
		GasLimit: cost.GasLimit,
		Fee:      fee,
	}, nil
}
