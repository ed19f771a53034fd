// Package signer defines the external wallet boundary: the engine never
// custodies private keys, so every place it needs a signature goes
// through this interface instead of holding key material itself. The
// InMemorySigner below exists only for tests and local development.
package signer

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// UTXOSigner signs a single P2WSH/P2SH input's sighash for a
// Bitcoin-family HTLC transaction.
type UTXOSigner interface {
	SignUTXO(ctx context.Context, address string, sighash []byte) (signature []byte, err error)
}

// EVMSigner signs the keccak256 hash of an RLP-encoded Ethereum
// transaction.
type EVMSigner interface {
	SignEVM(ctx context.Context, address string, txHash []byte) (signature []byte, err error)
}

// TezosSigner signs the watermarked hash of a forged Tezos operation.
type TezosSigner interface {
	SignTezos(ctx context.Context, address string, operationHash []byte) (signature []byte, err error)
}

// Signer composes all three chain-family signing capabilities an
// external wallet must offer.
type Signer interface {
	UTXOSigner
	EVMSigner
	TezosSigner
}

// InMemorySigner holds raw private keys and signs locally. It is meant
// for tests and the reference CLI, not for production custody of real
// funds — the whole point of the Signer interface is that a real wallet
// can replace it with an HSM- or hardware-backed implementation without
// this package changing.
type InMemorySigner struct {
	utxoKeys  map[string]*btcec.PrivateKey
	evmKeys   map[string]*btcec.PrivateKey
	tezosKeys map[string]*btcec.PrivateKey
}

// NewInMemorySigner creates an empty signer; keys are added with the
// AddXxxKey methods as addresses are provisioned.
func NewInMemorySigner() *InMemorySigner {
	return &InMemorySigner{
		utxoKeys:  make(map[string]*btcec.PrivateKey),
		evmKeys:   make(map[string]*btcec.PrivateKey),
		tezosKeys: make(map[string]*btcec.PrivateKey),
	}
}

func (s *InMemorySigner) AddUTXOKey(address string, key *btcec.PrivateKey)  { s.utxoKeys[address] = key }
func (s *InMemorySigner) AddEVMKey(address string, key *btcec.PrivateKey)   { s.evmKeys[address] = key }
func (s *InMemorySigner) AddTezosKey(address string, key *btcec.PrivateKey) { s.tezosKeys[address] = key }

func (s *InMemorySigner) SignUTXO(_ context.Context, address string, sighash []byte) ([]byte, error) {
	key, ok := s.utxoKeys[address]
	if !ok {
		return nil, errUnknownAddress(address)
	}
	sig := btcecdsa.Sign(key, sighash)
	return sig.Serialize(), nil
}

func (s *InMemorySigner) SignEVM(_ context.Context, address string, txHash []byte) ([]byte, error) {
	key, ok := s.evmKeys[address]
	if !ok {
		return nil, errUnknownAddress(address)
	}
	sig := btcecdsa.Sign(key, pad32(txHash))
	return sig.Serialize(), nil
}

func (s *InMemorySigner) SignTezos(_ context.Context, address string, operationHash []byte) ([]byte, error) {
	key, ok := s.tezosKeys[address]
	if !ok {
		return nil, errUnknownAddress(address)
	}
	sig := btcecdsa.Sign(key, pad32(operationHash))
	return sig.Serialize(), nil
}

func pad32(b []byte) []byte {
	if len(b) == 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

type errUnknownAddress string

func (e errUnknownAddress) Error() string { return "signer: no key registered for address " + string(e) }
