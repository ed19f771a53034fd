package htlc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/atomex-go/swapengine/internal/amount"
	"github.com/atomex-go/swapengine/internal/chain"
)

// The Tezos and FA1.2 leg of the HTLC builder is modeled as a typed
// call payload rather than a bound RPC client: an external Tezos
// signer/injector consumes this struct the same way internal/signer's
// Signer consumes a UTXO or EVM Transaction.

// TezosEntrypoint names one of the HTLC contract's four entry points.
type TezosEntrypoint string

const (
	EntrypointInitiate TezosEntrypoint = "initiate"
	EntrypointAdd      TezosEntrypoint = "add"
	EntrypointRedeem   TezosEntrypoint = "redeem"
	EntrypointRefund   TezosEntrypoint = "refund"
)

// TezosCall is the payload for one Tezos (or FA1.2) HTLC contract
// invocation: everything an operation-forging/injection client needs
// besides the account's branch and counter.
type TezosCall struct {
	ContractAddress string
	Entrypoint      TezosEntrypoint
	Parameters      map[string]any
	AmountMutez     uint64 // transferred tez; zero for FA1.2 legs
	Fee             amount.Fee
}

// BuildInitiateCall assembles the payload for a fresh Tezos HTLC
// initiation. secretHash is the raw 32-byte SHA-256 digest; lockTime is
// a Unix timestamp enforced contract-side the same way CHECKLOCKTIMEVERIFY
// enforces it on the UTXO leg.
func BuildInitiateCall(params *chain.Params, participant string, secretHash []byte, lockTime int64, amountMutez uint64, isFirst bool, schedule amount.GasSchedule) (*TezosCall, error) {
	if params.Kind != chain.Tezos && params.Kind != chain.Fa12 {
		return nil, fmt.Errorf("htlc: BuildInitiateCall requires a Tezos-family currency, got %s", params.Kind)
	}
	if len(secretHash) != sha256.Size {
		return nil, fmt.Errorf("htlc: secret hash must be %d bytes, got %d", sha256.Size, len(secretHash))
	}

	cost, err := amount.CostByOperation(amount.OpInitiate, isFirst, schedule)
	if err != nil {
		return nil, err
	}
	fee, err := amount.TezosFee(params, cost)
	if err != nil {
		return nil, err
	}

	call := &TezosCall{
		ContractAddress: contractAddressFor(params),
		Entrypoint:      EntrypointInitiate,
		Parameters: map[string]any{
			"participant": participant,
			"secret_hash": hex.EncodeToString(secretHash),
			"lock_time":   lockTime,
		},
		Fee: fee,
	}
	if params.Kind == chain.Tezos {
		call.AmountMutez = amountMutez
	} else {
		call.Parameters["amount"] = amountMutez
	}
	return call, nil
}

// BuildAddCall assembles the payload for topping up an already-initiated
// swap (the second and later payments of a multi-payment transfer).
func BuildAddCall(params *chain.Params, secretHash []byte, amountMutez uint64, schedule amount.GasSchedule) (*TezosCall, error) {
	if params.Kind != chain.Tezos && params.Kind != chain.Fa12 {
		return nil, fmt.Errorf("htlc: BuildAddCall requires a Tezos-family currency, got %s", params.Kind)
	}
	cost, err := amount.CostByOperation(amount.OpAdd, false, schedule)
	if err != nil {
		return nil, err
	}
	fee, err := amount.TezosFee(params, cost)
	if err != nil {
		return nil, err
	}
	call := &TezosCall{
		ContractAddress: contractAddressFor(params),
		Entrypoint:      EntrypointAdd,
		Parameters:      map[string]any{"secret_hash": hex.EncodeToString(secretHash)},
		Fee:             fee,
	}
	if params.Kind == chain.Tezos {
		call.AmountMutez = amountMutez
	} else {
		call.Parameters["amount"] = amountMutez
	}
	return call, nil
}

// BuildRedeemCall assembles the payload that reveals secret to claim a
// counter-party's Tezos-family leg.
func BuildRedeemCall(params *chain.Params, secret []byte, schedule amount.GasSchedule) (*TezosCall, error) {
	if params.Kind != chain.Tezos && params.Kind != chain.Fa12 {
		return nil, fmt.Errorf("htlc: BuildRedeemCall requires a Tezos-family currency, got %s", params.Kind)
	}
	cost, err := amount.CostByOperation(amount.OpRedeem, false, schedule)
	if err != nil {
		return nil, err
	}
	fee, err := amount.TezosFee(params, cost)
	if err != nil {
		return nil, err
	}
	return &TezosCall{
		ContractAddress: contractAddressFor(params),
		Entrypoint:      EntrypointRedeem,
		Parameters:      map[string]any{"secret": hex.EncodeToString(secret)},
		Fee:             fee,
	}, nil
}

// BuildRefundCall assembles the payload for reclaiming a swap once its
// lock_time has elapsed. The fee is computed with RefundStorageLimit
// rather than the call's actual operation size: this overestimates the
// true fee slightly but keeps the refund path independent of any
// size measurement the engine would otherwise need at refund time.
func BuildRefundCall(params *chain.Params, secretHash []byte, refundGasLimit uint64) (*TezosCall, error) {
	if params.Kind != chain.Tezos && params.Kind != chain.Fa12 {
		return nil, fmt.Errorf("htlc: BuildRefundCall requires a Tezos-family currency, got %s", params.Kind)
	}
	fee, err := amount.RefundFee(params, refundGasLimit)
	if err != nil {
		return nil, err
	}
	return &TezosCall{
		ContractAddress: contractAddressFor(params),
		Entrypoint:      EntrypointRefund,
		Parameters:      map[string]any{"secret_hash": hex.EncodeToString(secretHash)},
		Fee:             fee,
	}, nil
}

func contractAddressFor(params *chain.Params) string {
	if params.Kind == chain.Fa12 {
		return params.TokenContractAddress
	}
	return params.HTLCContractAddress
}
