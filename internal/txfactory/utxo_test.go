package txfactory

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/chain"
	"github.com/atomex-go/swapengine/internal/signer"
)

func fakePaymentTx(amount int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	var hash chainhash.Hash
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&hash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(amount, []byte{0x00, 0x20}))
	return tx
}

func TestSelectWithFeeAccumulatesUntilCovered(t *testing.T) {
	utxos := []backend.UTXO{
		{TxID: "a", Vout: 0, Amount: 1000},
		{TxID: "b", Vout: 0, Amount: 2000},
		{TxID: "c", Vout: 0, Amount: 500},
	}
	selected, total, fee, err := selectWithFee(utxos, 1200, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total < 1200+fee {
		t.Errorf("selected total %d does not cover amount+fee %d", total, 1200+fee)
	}
	if len(selected) == 0 {
		t.Error("expected at least one selected UTXO")
	}
}

func TestSelectWithFeeInsufficientFunds(t *testing.T) {
	utxos := []backend.UTXO{{TxID: "a", Vout: 0, Amount: 100}}
	_, _, _, err := selectWithFee(utxos, 10000, 1)
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
}

func TestCreateRedeemTxSignsThroughSigner(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s := signer.NewInMemorySigner()
	s.AddUTXOKey("payer1", key)

	secret := make([]byte, 32)
	script := []byte{0x63, 0xa8, 0x20} // arbitrary non-empty redeem script for sighash purposes

	tx, err := CreateRedeemTx(context.Background(), &RedeemParams{
		Symbol:       "BTC",
		Network:      chain.Testnet,
		PaymentTx:    fakePaymentTx(100000),
		PaymentVout:  0,
		Amount:       100000,
		RedeemAddr:   "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx",
		RedeemScript: script,
		Secret:       secret,
		FeeRate:      2,
		SignerAddr:   "payer1",
		Signer:       s,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tx.TxIn[0].Witness) != 4 {
		t.Errorf("expected a 4-element claim witness, got %d", len(tx.TxIn[0].Witness))
	}
}

func TestCreateRedeemTxUnknownSignerFails(t *testing.T) {
	s := signer.NewInMemorySigner()
	_, err := CreateRedeemTx(context.Background(), &RedeemParams{
		Symbol:       "BTC",
		Network:      chain.Testnet,
		PaymentTx:    fakePaymentTx(100000),
		PaymentVout:  0,
		Amount:       100000,
		RedeemAddr:   "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx",
		RedeemScript: []byte{0x63, 0xa8, 0x20},
		Secret:       make([]byte, 32),
		FeeRate:      2,
		SignerAddr:   "unknown",
		Signer:       s,
	})
	if err == nil {
		t.Fatal("expected error for unregistered signer address")
	}
}

func TestScriptPubKeyForSegwitVsP2SH(t *testing.T) {
	script := []byte{0x51, 0x02, 0xab, 0xcd}

	segwitParams := &chain.Params{Symbol: "BTC", Bech32HRP: "bc"}
	p2wsh := scriptPubKeyFor(script, segwitParams)
	if len(p2wsh) == 0 || p2wsh[0] != 0x00 {
		t.Errorf("expected P2WSH script starting with OP_0, got %x", p2wsh)
	}

	p2shParams := &chain.Params{Symbol: "DOGE", Bech32HRP: ""}
	p2sh := scriptPubKeyFor(script, p2shParams)
	if len(p2sh) == 0 {
		t.Error("expected non-empty P2SH script")
	}
}
