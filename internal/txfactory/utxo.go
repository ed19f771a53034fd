// Package txfactory builds and signs the transactions a swap leg needs:
// the UTXO payment/refund/redeem triple for a Bitcoin-family leg, and
// the call-parameter assembly for an account-model leg. Signing itself
// is delegated to a Signer collaborator — this engine never custodies
// private keys.
package txfactory

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/chain"
	"github.com/atomex-go/swapengine/internal/htlc"
	"github.com/atomex-go/swapengine/internal/signer"
	"github.com/atomex-go/swapengine/internal/swapfsm"
)

// ErrTransactionCreation reports that no viable coin selection covered
// the requested transaction.
type ErrTransactionCreation struct {
	Reason string
}

func (e *ErrTransactionCreation) Error() string {
	return fmt.Sprintf("txfactory: cannot build transaction: %s", e.Reason)
}

func (e *ErrTransactionCreation) Unwrap() error { return swapfsm.ErrTransactionCreationError }

// OutputsSource supplies spendable UTXOs for an address, the same role
// backend.Backend.GetAddressUTXOs plays for the wallet.
type OutputsSource func(address string) ([]backend.UTXO, error)

// PaymentParams describes a Bitcoin-family HTLC funding transaction.
type PaymentParams struct {
	Symbol         string
	Network        chain.Network
	Amount         uint64
	FromAddrs      []string
	RefundAddr     string
	ToAddr         string // receiver address, recorded alongside the script for the counter-party message
	ReceiverPubKey *btcec.PublicKey
	SenderPubKey   *btcec.PublicKey
	LockTime       uint32
	SecretHash     []byte
	FeeRate        uint64
	Outputs        OutputsSource
}

// PaymentResult is a built (unsigned) funding transaction plus the
// redeem script a later claim/refund needs to reference.
type PaymentResult struct {
	Tx           *wire.MsgTx
	RedeemScript []byte
	ScriptData   *htlc.ScriptData
	Fee          uint64
}

// CreatePaymentTx builds the transaction that locks amount into an
// HTLC output spendable by (secret, receiver_sig) before lock_time or
// by refund_sig after it.
func CreatePaymentTx(params *PaymentParams) (*PaymentResult, error) {
	chainParams, ok := chain.Get(params.Symbol, params.Network)
	if !ok {
		return nil, fmt.Errorf("txfactory: unsupported chain %s", params.Symbol)
	}

	scriptData, err := htlc.BuildScriptData(params.SecretHash, params.ReceiverPubKey, params.SenderPubKey, params.LockTime, params.Symbol, params.Network)
	if err != nil {
		return nil, fmt.Errorf("txfactory: build HTLC script: %w", err)
	}

	var candidates []backend.UTXO
	for _, addr := range params.FromAddrs {
		utxos, err := params.Outputs(addr)
		if err != nil {
			return nil, fmt.Errorf("txfactory: fetch UTXOs for %s: %w", addr, err)
		}
		candidates = append(candidates, utxos...)
	}
	if len(candidates) == 0 {
		return nil, &ErrTransactionCreation{Reason: "no spendable UTXOs for the given addresses"}
	}

	selected, totalInput, fee, err := selectWithFee(candidates, params.Amount, params.FeeRate)
	if err != nil {
		return nil, &ErrTransactionCreation{Reason: err.Error()}
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, u := range selected {
		txHash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("txfactory: invalid txid %s: %w", u.TxID, err)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(txHash, u.Vout), nil, nil))
	}

	htlcScriptPubKey := scriptPubKeyFor(scriptData.Script, chainParams)
	tx.AddTxOut(wire.NewTxOut(int64(params.Amount), htlcScriptPubKey))

	const dustThreshold = uint64(546)
	if change := totalInput - params.Amount - fee; change > dustThreshold {
		changeScript, err := addressToScript(params.RefundAddr, chainParams)
		if err != nil {
			return nil, fmt.Errorf("txfactory: invalid refund/change address: %w", err)
		}
		tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
	} else {
		fee += change
	}

	return &PaymentResult{Tx: tx, RedeemScript: scriptData.Script, ScriptData: scriptData, Fee: fee}, nil
}

// RedeemParams describes spending an HTLC output by revealing the
// secret (the receiver's claim path). Signing goes through a
// signer.UTXOSigner rather than a raw private key: this package never
// custodies key material.
type RedeemParams struct {
	Symbol       string
	Network      chain.Network
	PaymentTx    *wire.MsgTx
	PaymentVout  uint32
	Amount       uint64
	RedeemAddr   string
	RedeemScript []byte
	Secret       []byte
	FeeRate      uint64
	SignerAddr   string // address the HTLC counterparty signature belongs to
	Signer       signer.UTXOSigner
}

// CreateRedeemTx builds and signs the transaction that claims an HTLC
// output using the secret, before lock_time.
func CreateRedeemTx(ctx context.Context, params *RedeemParams) (*wire.MsgTx, error) {
	chainParams, ok := chain.Get(params.Symbol, params.Network)
	if !ok {
		return nil, fmt.Errorf("txfactory: unsupported chain %s", params.Symbol)
	}
	if len(params.Secret) != 32 {
		return nil, &ErrTransactionCreation{Reason: fmt.Sprintf("secret must be 32 bytes, got %d", len(params.Secret))}
	}

	fundingTxID := params.PaymentTx.TxHash()
	tx := wire.NewMsgTx(wire.TxVersion)
	outpoint := wire.NewOutPoint(&fundingTxID, params.PaymentVout)
	txIn := wire.NewTxIn(outpoint, nil, nil)
	txIn.Sequence = wire.MaxTxInSequenceNum
	tx.AddTxIn(txIn)

	const estimatedVSize = int64(10 + 41 + 43 + 52) // overhead + input + output + P2WSH claim witness
	fee := uint64(estimatedVSize) * params.FeeRate
	if params.Amount <= fee {
		return nil, &ErrTransactionCreation{Reason: fmt.Sprintf("amount %d <= fee %d", params.Amount, fee)}
	}
	destScript, err := addressToScript(params.RedeemAddr, chainParams)
	if err != nil {
		return nil, fmt.Errorf("txfactory: invalid redeem address: %w", err)
	}
	tx.AddTxOut(wire.NewTxOut(int64(params.Amount-fee), destScript))

	htlcScriptPubKey := scriptPubKeyFor(params.RedeemScript, chainParams)
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(htlcScriptPubKey, int64(params.Amount))
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
	sighash, err := txscript.CalcWitnessSigHash(params.RedeemScript, sigHashes, txscript.SigHashAll, tx, 0, int64(params.Amount))
	if err != nil {
		return nil, fmt.Errorf("txfactory: compute sighash: %w", err)
	}
	sig, err := params.Signer.SignUTXO(ctx, params.SignerAddr, sighash)
	if err != nil {
		return nil, fmt.Errorf("%w: sign redeem: %v", swapfsm.ErrTransactionSigningError, err)
	}
	sigBytes := append(sig, byte(txscript.SigHashAll))
	tx.TxIn[0].Witness = htlc.BuildClaimWitness(sigBytes, params.Secret, params.RedeemScript)

	return tx, nil
}

// RefundParams describes reclaiming an HTLC output after lock_time.
type RefundParams struct {
	Symbol       string
	Network      chain.Network
	PaymentTx    *wire.MsgTx
	PaymentVout  uint32
	Amount       uint64
	RefundAddr   string
	LockTime     uint32
	RedeemScript []byte
	FeeRate      uint64
	SignerAddr   string
	Signer       signer.UTXOSigner
}

// CreateRefundTx builds and signs the transaction that reclaims an
// HTLC output after lock_time has passed. The transaction's nLockTime
// is set to lock_time so CHECKLOCKTIMEVERIFY is satisfied.
func CreateRefundTx(ctx context.Context, params *RefundParams) (*wire.MsgTx, error) {
	chainParams, ok := chain.Get(params.Symbol, params.Network)
	if !ok {
		return nil, fmt.Errorf("txfactory: unsupported chain %s", params.Symbol)
	}

	fundingTxID := params.PaymentTx.TxHash()
	tx := wire.NewMsgTx(wire.TxVersion)
	outpoint := wire.NewOutPoint(&fundingTxID, params.PaymentVout)
	txIn := wire.NewTxIn(outpoint, nil, nil)
	// A nonfinal sequence number is required for nLockTime to take
	// effect at all; CHECKLOCKTIMEVERIFY further requires it in the
	// script itself.
	txIn.Sequence = wire.MaxTxInSequenceNum - 1
	tx.AddTxIn(txIn)
	tx.LockTime = params.LockTime

	const estimatedVSize = int64(10 + 41 + 43 + 44)
	fee := uint64(estimatedVSize) * params.FeeRate
	if params.Amount <= fee {
		return nil, &ErrTransactionCreation{Reason: fmt.Sprintf("amount %d <= fee %d", params.Amount, fee)}
	}
	destScript, err := addressToScript(params.RefundAddr, chainParams)
	if err != nil {
		return nil, fmt.Errorf("txfactory: invalid refund address: %w", err)
	}
	tx.AddTxOut(wire.NewTxOut(int64(params.Amount-fee), destScript))

	htlcScriptPubKey := scriptPubKeyFor(params.RedeemScript, chainParams)
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(htlcScriptPubKey, int64(params.Amount))
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
	sighash, err := txscript.CalcWitnessSigHash(params.RedeemScript, sigHashes, txscript.SigHashAll, tx, 0, int64(params.Amount))
	if err != nil {
		return nil, fmt.Errorf("txfactory: compute sighash: %w", err)
	}
	sig, err := params.Signer.SignUTXO(ctx, params.SignerAddr, sighash)
	if err != nil {
		return nil, fmt.Errorf("%w: sign refund: %v", swapfsm.ErrTransactionSigningError, err)
	}
	sigBytes := append(sig, byte(txscript.SigHashAll))
	tx.TxIn[0].Witness = htlc.BuildRefundWitness(sigBytes, params.RedeemScript)

	return tx, nil
}

// SignPaymentInputs signs each P2WPKH input CreatePaymentTx selected
// from the payer's own wallet UTXOs, delegating to the same
// signer.UTXOSigner boundary as redeem/refund. utxos must be in the
// order CreatePaymentTx's selection produced (selectWithFee's
// ascending-balance sort), which PaymentResult does not currently
// expose — callers reconstruct it by re-running selection or by
// tracking the inputs they fed in.
func SignPaymentInputs(ctx context.Context, tx *wire.MsgTx, utxos []backend.UTXO, addressOf func(vout int) string, pubKeyOf func(address string) (*btcec.PublicKey, error), s signer.UTXOSigner) error {
	for i, u := range utxos {
		address := addressOf(i)
		pub, err := pubKeyOf(address)
		if err != nil {
			return fmt.Errorf("txfactory: public key for %s: %w", address, err)
		}
		scriptPubKey, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return fmt.Errorf("txfactory: decode scriptPubKey for input %d: %w", i, err)
		}
		witnessScript, err := txscript.NewScriptBuilder().
			AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
			AddData(btcutil.Hash160(pub.SerializeCompressed())).
			AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
			Script()
		if err != nil {
			return fmt.Errorf("txfactory: build P2PKH script for %s: %w", address, err)
		}
		prevOutFetcher := txscript.NewCannedPrevOutputFetcher(scriptPubKey, int64(u.Amount))
		sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
		sighash, err := txscript.CalcWitnessSigHash(witnessScript, sigHashes, txscript.SigHashAll, tx, i, int64(u.Amount))
		if err != nil {
			return fmt.Errorf("txfactory: compute sighash for input %d: %w", i, err)
		}
		sig, err := s.SignUTXO(ctx, address, sighash)
		if err != nil {
			return fmt.Errorf("%w: sign input %d: %v", swapfsm.ErrTransactionSigningError, i, err)
		}
		tx.TxIn[i].Witness = wire.TxWitness{append(sig, byte(txscript.SigHashAll)), pub.SerializeCompressed()}
	}
	return nil
}

// SerializeTx hex-encodes a transaction for broadcast.
func SerializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("txfactory: serialize: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func selectWithFee(utxos []backend.UTXO, amount, feeRate uint64) ([]backend.UTXO, uint64, uint64, error) {
	sorted := make([]backend.UTXO, len(utxos))
	copy(sorted, utxos)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Amount < sorted[j-1].Amount; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	const baseVSize = int64(10 + 43 + 43) // overhead + htlc output + change output
	var selected []backend.UTXO
	var total uint64
	for _, u := range sorted {
		selected = append(selected, u)
		total += u.Amount
		vsize := baseVSize + int64(len(selected))*68
		fee := uint64(vsize) * feeRate
		if total >= amount+fee {
			return selected, total, fee, nil
		}
	}
	return nil, 0, 0, fmt.Errorf("insufficient funds: need %d, have %d", amount, total)
}

func addressToScript(address string, params *chain.Params) ([]byte, error) {
	netParams, err := chain.ChaincfgParams(params)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.DecodeAddress(address, netParams)
	if err != nil {
		return nil, fmt.Errorf("decode address %s: %w", address, err)
	}
	return txscript.PayToAddrScript(addr)
}

func scriptPubKeyFor(script []byte, params *chain.Params) []byte {
	if params.Bech32HRP != "" {
		return htlc.BuildP2WSHScriptPubKey(script)
	}
	return htlc.BuildP2SHScriptPubKey(script)
}
