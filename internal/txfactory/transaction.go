package txfactory

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/atomex-go/swapengine/internal/swapfsm"
)

// Transaction is the tagged variant over the two shapes a swap leg's
// payment can take: a Bitcoin-family wire transaction or an
// account-model call. Code that receives a Transaction reaches its
// payload through UTXO/Account, which guard the variant — asking a
// UTXO transaction for its account call (or vice versa) fails with
// ErrInvalidPaymentTxId instead of handing back garbage.
type Transaction struct {
	utxo    *wire.MsgTx
	account *AccountCall
}

// NewUTXOTransaction wraps a Bitcoin-family wire transaction.
func NewUTXOTransaction(tx *wire.MsgTx) Transaction {
	return Transaction{utxo: tx}
}

// NewAccountTransaction wraps an assembled account-model call.
func NewAccountTransaction(call *AccountCall) Transaction {
	return Transaction{account: call}
}

// IsUTXO reports whether this transaction carries the UTXO variant.
func (t Transaction) IsUTXO() bool { return t.utxo != nil }

// IsAccount reports whether this transaction carries the account
// variant.
func (t Transaction) IsAccount() bool { return t.account != nil }

// UTXO returns the Bitcoin-family payload, or ErrInvalidPaymentTxId if
// this transaction holds the account variant (or nothing at all).
func (t Transaction) UTXO() (*wire.MsgTx, error) {
	if t.utxo == nil {
		return nil, fmt.Errorf("%w: not a UTXO transaction", swapfsm.ErrInvalidPaymentTxId)
	}
	return t.utxo, nil
}

// Account returns the account-model payload, or ErrInvalidPaymentTxId
// if this transaction holds the UTXO variant (or nothing at all).
func (t Transaction) Account() (*AccountCall, error) {
	if t.account == nil {
		return nil, fmt.Errorf("%w: not an account transaction", swapfsm.ErrInvalidPaymentTxId)
	}
	return t.account, nil
}
