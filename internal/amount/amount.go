// Package amount implements side-aware quantity/amount conversion and
// per-chain fee arithmetic for the swap engine. All conversion is
// floor-rounded: a side that would otherwise spend a fraction more than
// it holds must round down, never up.
package amount

import (
	"fmt"
	"math/big"

	"github.com/atomex-go/swapengine/internal/chain"
)

// Side is the direction of a swap leg relative to the traded symbol.
type Side int

const (
	Buy Side = iota
	Sell
)

// Opposite returns the other side. The redeemer of a swap leg receives
// the *purchased* side, so redeem-amount math always runs on
// side.Opposite() rather than side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// sigDigits is the minimum significant-digit budget big.Rat's internal
// big.Int numerator/denominator trivially exceeds; kept only as a
// documented invariant the tests assert on, since big.Rat is already
// arbitrary precision.
const sigDigits = 28

// AmountToQty converts a quote-currency amount to a base-currency
// quantity at the given price, floor-rounded to 1/digitsMultiplier.
//
//	qty = floor((side == Buy ? amount/price : amount) * digitsMultiplier) / digitsMultiplier
func AmountToQty(side Side, amount, price *big.Rat, digitsMultiplier uint64) (*big.Rat, error) {
	if price.Sign() == 0 {
		return nil, fmt.Errorf("amount: zero price")
	}
	base := new(big.Rat).Set(amount)
	if side == Buy {
		base = new(big.Rat).Quo(amount, price)
	}
	return floorToMultiplier(base, digitsMultiplier), nil
}

// QtyToAmount converts a base-currency quantity to a quote-currency
// amount at the given price, floor-rounded to 1/digitsMultiplier. It is
// the multiplicative analogue of AmountToQty.
func QtyToAmount(side Side, qty, price *big.Rat, digitsMultiplier uint64) *big.Rat {
	result := new(big.Rat).Set(qty)
	if side == Buy {
		result = new(big.Rat).Mul(qty, price)
	}
	return floorToMultiplier(result, digitsMultiplier)
}

// floorToMultiplier returns floor(v * m) / m as an exact rational.
func floorToMultiplier(v *big.Rat, m uint64) *big.Rat {
	mul := new(big.Rat).SetFrac(new(big.Int).SetUint64(m), big.NewInt(1))
	scaled := new(big.Rat).Mul(v, mul)
	floored := floorRat(scaled)
	return new(big.Rat).Quo(new(big.Rat).SetInt(floored), mul)
}

// floorRat returns the greatest integer <= r.
func floorRat(r *big.Rat) *big.Int {
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(r.Num(), r.Denom(), m)
	return q
}

// OperationKind is the account-chain call a fee is computed for.
type OperationKind string

const (
	OpInitiate   OperationKind = "initiate"
	OpAdd        OperationKind = "add"
	OpRedeem     OperationKind = "redeem"
	OpRefund     OperationKind = "refund"
	OpTransfer   OperationKind = "transfer"
	OpApprove    OperationKind = "approve"
	OpGetBalance OperationKind = "get_balance"
)

// GasSchedule maps an operation kind to the gas_limit/storage_limit it
// consumes on a given account-model chain. Callers (internal/htlc)
// populate this from their contract's known costs.
type GasSchedule map[OperationKind]GasCost

// GasCost is the gas/storage a single operation kind consumes.
type GasCost struct {
	GasLimit     uint64
	StorageLimit uint64
	Size         uint64 // serialized operation size in bytes
}

// Fee is the (gas_limit, storage_limit, size, fee) tuple the HTLC
// builder must emit per operation kind.
type Fee struct {
	GasLimit     uint64
	StorageLimit uint64
	Size         uint64
	FeeMutez     uint64 // or wei, for Ethereum-kind chains
}

// TezosFee implements the Tezos/FA1.2 fee formula:
//
//	fee = minimal_fee + (gas_limit + gas_reserve) * nanotez_per_gas + size * nanotez_per_byte + 1
//
// The formula is shared by Tezos and Fa12 currencies (FA1.2 tokens ride
// on Tezos operations), which is why it takes *chain.Params directly
// rather than switching on chain.CurrencyKind again.
func TezosFee(params *chain.Params, cost GasCost) (Fee, error) {
	if params.Kind != chain.Tezos && params.Kind != chain.Fa12 {
		return Fee{}, fmt.Errorf("amount: TezosFee called for non-Tezos currency %s", params.Symbol)
	}
	feeMutez := params.MinimalFee +
		(cost.GasLimit+params.GasReserve)*params.NanotezPerGasUnit +
		cost.Size*params.NanotezPerByte + 1
	return Fee{
		GasLimit:     cost.GasLimit,
		StorageLimit: cost.StorageLimit,
		Size:         cost.Size,
		FeeMutez:     feeMutez,
	}, nil
}

// RefundFee estimates the refund operation's fee using the chain's
// RefundStorageLimit rather than the refund operation's actual
// serialized size. This over-charges slightly versus a size-based
// estimate; a size-based one would need the forged operation before
// its own fee is known.
func RefundFee(params *chain.Params, refundGasLimit uint64) (Fee, error) {
	if params.Kind != chain.Tezos && params.Kind != chain.Fa12 {
		return Fee{}, fmt.Errorf("amount: RefundFee called for non-Tezos currency %s", params.Symbol)
	}
	feeMutez := params.MinimalFee +
		(refundGasLimit+params.GasReserve)*params.NanotezPerGasUnit +
		params.RefundStorageLimit*params.NanotezPerByte + 1
	return Fee{
		GasLimit:     refundGasLimit,
		StorageLimit: params.RefundStorageLimit,
		FeeMutez:     feeMutez,
	}, nil
}

// EthereumFee implements the Ethereum gas*price fee: a flat product,
// no minimal-fee or per-byte term, matching how an EVM account chain
// actually prices execution.
func EthereumFee(gasLimit uint64, gasPriceWei *big.Int) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPriceWei)
}

// ActivationFee is the one-time cost (mutez) to make a previously
// unused Tezos-family destination address spendable. It applies only
// to the first transaction sent to that address, and only when the
// address is currently inactive on-chain.
func ActivationFee(params *chain.Params, destinationIsFirstUse, destinationIsActive bool) uint64 {
	const tezosActivationBurn = 257_000 // mutez, protocol-fixed burn for a new originated/implicit account
	if (params.Kind != chain.Tezos && params.Kind != chain.Fa12) || destinationIsActive || !destinationIsFirstUse {
		return 0
	}
	return tezosActivationBurn
}

// StorageFee is the per-transaction storage burn: storage_limit / 1000
// tez expressed in mutez.
func StorageFee(storageLimit uint64) uint64 {
	return storageLimit * 1_000_000 / 1000
}

// CostByOperation resolves an operation's full gas cost from the
// schedule, applying the first-payment rule: the first payment of a
// swap leg uses the initiate cost (it also creates the HTLC record),
// every subsequent payment uses the add cost, and redeem/refund use
// their own fixed costs.
func CostByOperation(kind OperationKind, isFirst bool, schedule GasSchedule) (GasCost, error) {
	if kind == OpInitiate && !isFirst {
		kind = OpAdd
	}
	cost, ok := schedule[kind]
	if !ok {
		return GasCost{}, fmt.Errorf("amount: no gas cost registered for operation %q", kind)
	}
	return cost, nil
}

// GasLimitByOperation is CostByOperation narrowed to the gas limit, for
// EVM callers that price gas separately.
func GasLimitByOperation(kind OperationKind, isFirst bool, schedule GasSchedule) (uint64, error) {
	cost, err := CostByOperation(kind, isFirst, schedule)
	if err != nil {
		return 0, err
	}
	return cost.GasLimit, nil
}
