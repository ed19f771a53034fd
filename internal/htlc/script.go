// Package htlc builds the HTLC redeem script for the UTXO leg of a swap
// and the contract-call payloads for the account-model leg. The
// script uses an absolute lock_time (OP_CHECKLOCKTIMEVERIFY) so the
// refund deadline is a wall-clock fact both parties can compute from
// the swap timestamp alone.
package htlc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/atomex-go/swapengine/internal/chain"
	"github.com/atomex-go/swapengine/pkg/helpers"
)

// ScriptData contains everything needed to spend or inspect an HTLC
// output.
type ScriptData struct {
	Script     []byte
	Address    string
	ScriptHash []byte

	SecretHash     []byte
	ReceiverPubKey []byte
	SenderPubKey   []byte
	LockTime       uint32
}

// BuildScript creates an HTLC redeem script:
//
//	OP_IF
//	    OP_SHA256 <secret_hash> OP_EQUALVERIFY
//	    <receiver_pubkey> OP_CHECKSIG
//	OP_ELSE
//	    <lock_time> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	    <sender_pubkey> OP_CHECKSIG
//	OP_ENDIF
//
// The claim path (OP_IF) requires the secret plus the receiver's
// signature; the refund path (OP_ELSE) requires the sender's signature
// and is only valid once the transaction's nLockTime has reached
// lockTime, per CHECKLOCKTIMEVERIFY (BIP65). lockTime is an absolute
// block height or Unix timestamp, matching the protocol's absolute
// deadline semantics rather than a per-UTXO relative timeout.
func BuildScript(secretHash, receiverPubKey, senderPubKey []byte, lockTime uint32) ([]byte, error) {
	if len(secretHash) != 32 {
		return nil, fmt.Errorf("htlc: secret hash must be 32 bytes, got %d", len(secretHash))
	}
	if len(receiverPubKey) != 33 {
		return nil, fmt.Errorf("htlc: receiver pubkey must be 33 bytes (compressed), got %d", len(receiverPubKey))
	}
	if len(senderPubKey) != 33 {
		return nil, fmt.Errorf("htlc: sender pubkey must be 33 bytes (compressed), got %d", len(senderPubKey))
	}
	if lockTime == 0 {
		return nil, fmt.Errorf("htlc: lock_time must be greater than 0")
	}

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(secretHash)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(receiverPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(lockTime))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(senderPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)

	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// BuildScriptData builds the script and derives its spending address.
// Chains with a Bech32HRP get a native P2WSH address; chains without
// one (Dogecoin) get bare P2SH since they predate SegWit.
func BuildScriptData(
	secretHash []byte,
	receiverPubKey, senderPubKey *btcec.PublicKey,
	lockTime uint32,
	symbol string,
	network chain.Network,
) (*ScriptData, error) {
	receiverBytes := receiverPubKey.SerializeCompressed()
	senderBytes := senderPubKey.SerializeCompressed()

	script, err := BuildScript(secretHash, receiverBytes, senderBytes, lockTime)
	if err != nil {
		return nil, fmt.Errorf("htlc: build script: %w", err)
	}

	address, scriptHash, err := addressFromScript(script, symbol, network)
	if err != nil {
		return nil, err
	}

	return &ScriptData{
		Script:         script,
		Address:        address,
		ScriptHash:     scriptHash,
		SecretHash:     secretHash,
		ReceiverPubKey: receiverBytes,
		SenderPubKey:   senderBytes,
		LockTime:       lockTime,
	}, nil
}

// BuildClaimWitness creates the witness stack for claiming with the
// secret. Bottom to top: <signature> <secret> <1> <script>. The 1
// selects the OP_IF (claim) branch.
func BuildClaimWitness(signature, secret, script []byte) [][]byte {
	return [][]byte{signature, secret, {0x01}, script}
}

// BuildRefundWitness creates the witness stack for refunding after
// lock_time. Bottom to top: <signature> <> <script>. The empty item
// selects the OP_ELSE (refund) branch.
func BuildRefundWitness(signature, script []byte) [][]byte {
	return [][]byte{signature, {}, script}
}

// BuildP2WSHScriptPubKey returns the OP_0 <scripthash> output script
// for a P2WSH-funded HTLC.
func BuildP2WSHScriptPubKey(script []byte) []byte {
	scriptHash := sha256.Sum256(script)
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	builder.AddData(scriptHash[:])
	scriptPubKey, _ := builder.Script()
	return scriptPubKey
}

// BuildP2SHScriptPubKey returns the HASH160-based output script used
// for bare P2SH HTLCs on chains without SegWit.
func BuildP2SHScriptPubKey(script []byte) []byte {
	scriptHash := btcutil.Hash160(script)
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(scriptHash)
	builder.AddOp(txscript.OP_EQUAL)
	scriptPubKey, _ := builder.Script()
	return scriptPubKey
}

// GenerateSecret returns a cryptographically secure 32-byte secret and
// its SHA-256 hash.
func GenerateSecret() (secret, hash []byte, err error) {
	secret, err = helpers.GenerateSecureRandom(32)
	if err != nil {
		return nil, nil, fmt.Errorf("htlc: generate secret: %w", err)
	}
	h := sha256.Sum256(secret)
	return secret, h[:], nil
}

// VerifySecret checks a secret against an expected hash in constant
// time.
func VerifySecret(secret, expectedHash []byte) bool {
	if len(secret) != 32 || len(expectedHash) != 32 {
		return false
	}
	actual := sha256.Sum256(secret)
	return helpers.ConstantTimeCompare(actual[:], expectedHash)
}

func chainParams(symbol string, network chain.Network) (*chaincfg.Params, error) {
	p, ok := chain.Get(symbol, network)
	if !ok {
		return nil, fmt.Errorf("htlc: %s is not a registered chain", symbol)
	}
	return chain.ChaincfgParams(p)
}

// addressFromScript derives the funding address and raw script hash
// for an HTLC script on the given chain.
func addressFromScript(script []byte, symbol string, network chain.Network) (string, []byte, error) {
	params, err := chainParams(symbol, network)
	if err != nil {
		return "", nil, err
	}

	if params.Bech32HRPSegwit != "" {
		scriptHash := sha256.Sum256(script)
		addr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], params)
		if err != nil {
			return "", nil, fmt.Errorf("htlc: derive P2WSH address: %w", err)
		}
		return addr.EncodeAddress(), scriptHash[:], nil
	}

	scriptHash := btcutil.Hash160(script)
	addr, err := btcutil.NewAddressScriptHashFromHash(scriptHash, params)
	if err != nil {
		return "", nil, fmt.Errorf("htlc: derive P2SH address: %w", err)
	}
	return addr.EncodeAddress(), scriptHash, nil
}

// AddressFromScript derives the funding address from a raw HTLC script
// without requiring the caller to rebuild ScriptData.
func AddressFromScript(script []byte, symbol string, network chain.Network) (string, error) {
	addr, _, err := addressFromScript(script, symbol, network)
	return addr, err
}

// ParseScript parses an HTLC script and extracts its components,
// recovering secretHash, receiverPubKey, senderPubKey, and lockTime.
func ParseScript(script []byte) (secretHash, receiverPubKey, senderPubKey []byte, lockTime uint32, err error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_IF {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_IF")
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_SHA256 {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_SHA256")
	}
	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected secret hash")
	}
	secretHash = tokenizer.Data()
	if len(secretHash) != 32 {
		return nil, nil, nil, 0, fmt.Errorf("htlc: secret hash must be 32 bytes")
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_EQUALVERIFY {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_EQUALVERIFY")
	}
	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected receiver pubkey")
	}
	receiverPubKey = tokenizer.Data()
	if len(receiverPubKey) != 33 {
		return nil, nil, nil, 0, fmt.Errorf("htlc: receiver pubkey must be 33 bytes")
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_CHECKSIG {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_CHECKSIG")
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_ELSE {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_ELSE")
	}

	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected lock_time")
	}
	op := tokenizer.Opcode()
	if txscript.IsSmallInt(op) {
		lockTime = uint32(txscript.AsSmallInt(op))
	} else {
		data := tokenizer.Data()
		if len(data) == 0 {
			return nil, nil, nil, 0, fmt.Errorf("htlc: invalid lock_time push")
		}
		for i := 0; i < len(data); i++ {
			lockTime |= uint32(data[i]) << (8 * i)
		}
	}

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_CHECKLOCKTIMEVERIFY {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_CHECKLOCKTIMEVERIFY")
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_DROP {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_DROP")
	}
	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected sender pubkey")
	}
	senderPubKey = tokenizer.Data()
	if len(senderPubKey) != 33 {
		return nil, nil, nil, 0, fmt.Errorf("htlc: sender pubkey must be 33 bytes")
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_CHECKSIG {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_CHECKSIG")
	}
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_ENDIF {
		return nil, nil, nil, 0, fmt.Errorf("htlc: expected OP_ENDIF")
	}

	return secretHash, receiverPubKey, senderPubKey, lockTime, nil
}

// ScriptHex returns the script as a hex string.
func (d *ScriptData) ScriptHex() string {
	return hex.EncodeToString(d.Script)
}
