package txfactory

import (
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/wire"

	"github.com/atomex-go/swapengine/internal/swapfsm"
)

func TestTransactionVariantAccessors(t *testing.T) {
	utxoTx := NewUTXOTransaction(wire.NewMsgTx(wire.TxVersion))
	if !utxoTx.IsUTXO() || utxoTx.IsAccount() {
		t.Error("UTXO transaction misreports its variant")
	}
	if _, err := utxoTx.UTXO(); err != nil {
		t.Errorf("UTXO() on UTXO variant: %v", err)
	}

	accountTx := NewAccountTransaction(&AccountCall{From: "0xfrom", Value: big.NewInt(1)})
	if !accountTx.IsAccount() || accountTx.IsUTXO() {
		t.Error("account transaction misreports its variant")
	}
	if _, err := accountTx.Account(); err != nil {
		t.Errorf("Account() on account variant: %v", err)
	}
}

func TestTransactionWrongVariantFailsWithInvalidPaymentTxId(t *testing.T) {
	utxoTx := NewUTXOTransaction(wire.NewMsgTx(wire.TxVersion))
	if _, err := utxoTx.Account(); !errors.Is(err, swapfsm.ErrInvalidPaymentTxId) {
		t.Errorf("Account() on UTXO variant: err = %v, want ErrInvalidPaymentTxId", err)
	}

	accountTx := NewAccountTransaction(&AccountCall{})
	if _, err := accountTx.UTXO(); !errors.Is(err, swapfsm.ErrInvalidPaymentTxId) {
		t.Errorf("UTXO() on account variant: err = %v, want ErrInvalidPaymentTxId", err)
	}

	var zero Transaction
	if _, err := zero.UTXO(); !errors.Is(err, swapfsm.ErrInvalidPaymentTxId) {
		t.Errorf("UTXO() on zero Transaction: err = %v, want ErrInvalidPaymentTxId", err)
	}
}
