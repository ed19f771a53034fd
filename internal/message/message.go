// Package message implements the swap message channel: the
// asynchronous duplex link carrying payment tx-ids, redeem scripts, and
// proof-of-possession between the two parties of a swap via a trusted
// matchmaker relay. It is deliberately independent of internal/swapfsm
// — a message is just a signed, addressed envelope; the Engine decides
// what an incoming one means for a given Swap.
package message

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/google/uuid"
)

// ErrInvalidSigns is returned when a ProofOfPossession fails either the
// public-key-to-address check or the signature check.
var ErrInvalidSigns = errors.New("message: invalid signature")

// Type tags the payload carried by an Envelope.
type Type string

const (
	TypeSwapPayment       Type = "swap_payment"
	TypeSwapSecret        Type = "swap_secret"
	TypeProofOfPossession Type = "proof_of_possession"
)

// SwapPayment is sent by a payer to the counter-party after its payment
// transaction has been broadcast.
type SwapPayment struct {
	SwapID       string `json:"swap_id"`
	PaymentTxID  string `json:"payment_tx_id"`
	RedeemScript []byte `json:"redeem_script,omitempty"`
}

// SwapSecret is an optional out-of-band hint carrying the preimage.
// The on-chain reveal (spend-witness inspection) remains
// authoritative; a SwapSecret message only lets the acceptor redeem
// sooner than waiting for its own UTXO-spend watcher to notice.
type SwapSecret struct {
	SwapID string   `json:"swap_id"`
	Secret [32]byte `json:"secret"`
}

// ProofOfPossession is a per-address signature proving control of the
// signing key behind Address, verified by the relay and by the
// counter-party before either trusts an address in a swap. The signed
// message is "{nonce}{timestamp}" with timestamp formatted as the
// literal pattern yyyy.MM.dd HH:mm:ss.fff in UTC, encoded UTF-16LE.
// Both sides must produce these bytes exactly or verification fails.
type ProofOfPossession struct {
	Address   string `json:"address"`
	Nonce     uint64 `json:"nonce"`
	Signature []byte `json:"signature"`
}

// Envelope is the wire-level wrapper every message.Relay sends and
// receives: an ID for dedup, the swap it concerns, and the typed
// payload as raw JSON, so transports forward envelopes without
// decoding them. Retry, ack, and sequencing are the relay's job, not
// this engine's.
type Envelope struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	SwapID    string          `json:"swap_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// NewEnvelope wraps a typed payload for transmission.
func NewEnvelope(typ Type, swapID string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("message: encode %s payload: %w", typ, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		SwapID:    swapID,
		Payload:   raw,
		Timestamp: time.Now().UTC().UnixMilli(),
	}, nil
}

// DecodeSwapPayment unmarshals an Envelope's payload, failing fast if
// its Type isn't TypeSwapPayment.
func (e *Envelope) DecodeSwapPayment() (*SwapPayment, error) {
	if e.Type != TypeSwapPayment {
		return nil, fmt.Errorf("message: envelope %s is not a swap_payment", e.ID)
	}
	var p SwapPayment
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("message: decode swap_payment: %w", err)
	}
	return &p, nil
}

// DecodeSwapSecret unmarshals an Envelope's payload, failing fast if
// its Type isn't TypeSwapSecret.
func (e *Envelope) DecodeSwapSecret() (*SwapSecret, error) {
	if e.Type != TypeSwapSecret {
		return nil, fmt.Errorf("message: envelope %s is not a swap_secret", e.ID)
	}
	var s SwapSecret
	if err := json.Unmarshal(e.Payload, &s); err != nil {
		return nil, fmt.Errorf("message: decode swap_secret: %w", err)
	}
	return &s, nil
}

// DecodeProofOfPossession unmarshals an Envelope's payload, failing
// fast if its Type isn't TypeProofOfPossession.
func (e *Envelope) DecodeProofOfPossession() (*ProofOfPossession, error) {
	if e.Type != TypeProofOfPossession {
		return nil, fmt.Errorf("message: envelope %s is not a proof_of_possession", e.ID)
	}
	var p ProofOfPossession
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("message: decode proof_of_possession: %w", err)
	}
	return &p, nil
}

// timestampPattern is the proof-of-possession wire format yyyy.MM.dd
// HH:mm:ss.fff, which in Go's reference-time layout is:
const timestampPattern = "2006.01.02 15:04:05.000"

// FormatProofTimestamp renders t in UTC using the fixed wire pattern.
// Any non-UTC t is converted first: the signed message must be
// reproducible bit-for-bit by both parties regardless of the caller's
// local timezone.
func FormatProofTimestamp(t time.Time) string {
	return t.UTC().Format(timestampPattern)
}

// EncodeProofMessage builds the exact byte sequence a ProofOfPossession
// signs: the decimal nonce immediately followed by the formatted
// timestamp, encoded UTF-16LE (no BOM), matching the relay's
// culture-invariant wire format bit for bit.
func EncodeProofMessage(nonce uint64, timestamp time.Time) []byte {
	text := fmt.Sprintf("%d%s", nonce, FormatProofTimestamp(timestamp))
	units := utf16.Encode([]rune(text))
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

// Signer is the minimal signing capability ProofOfPossession needs: a
// raw digest signed by the key behind address. internal/signer.Signer
// satisfies this for each chain family via its SignUTXO/SignEVM/
// SignTezos methods — callers adapt whichever one matches the
// address's chain.
type Signer interface {
	Sign(ctx context.Context, address string, digest []byte) (signature []byte, err error)
}

// SignerFunc adapts a plain function to Signer.
type SignerFunc func(ctx context.Context, address string, digest []byte) ([]byte, error)

func (f SignerFunc) Sign(ctx context.Context, address string, digest []byte) ([]byte, error) {
	return f(ctx, address, digest)
}

// CreateProofOfPossession signs EncodeProofMessage's SHA-256 digest
// with the key behind address and returns the resulting proof.
func CreateProofOfPossession(ctx context.Context, s Signer, address string, nonce uint64, timestamp time.Time) (*ProofOfPossession, error) {
	digest := sha256.Sum256(EncodeProofMessage(nonce, timestamp))
	sig, err := s.Sign(ctx, address, digest[:])
	if err != nil {
		return nil, fmt.Errorf("message: sign proof of possession: %w", err)
	}
	return &ProofOfPossession{Address: address, Nonce: nonce, Signature: sig}, nil
}

// AddressFromPubKey derives the address a public key is expected to
// control. Different chain families derive addresses differently
// (P2WPKH hash160 vs. Ethereum's keccak256(pubkey)[12:]); the caller
// supplies the right one for the address's chain.
type AddressFromPubKey func(pub *btcec.PublicKey) (string, error)

// VerifyProofOfPossession checks both halves of the proof:
// the public key actually derives the claimed address, and the
// signature over EncodeProofMessage's digest verifies against that
// public key. Either failure returns ErrInvalidSigns.
func VerifyProofOfPossession(pop *ProofOfPossession, nonce uint64, timestamp time.Time, pub *btcec.PublicKey, deriveAddress AddressFromPubKey) error {
	if pop.Nonce != nonce {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidSigns)
	}
	gotAddr, err := deriveAddress(pub)
	if err != nil || gotAddr != pop.Address {
		return fmt.Errorf("%w: address does not match public key", ErrInvalidSigns)
	}
	sig, err := btcecdsa.ParseDERSignature(pop.Signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrInvalidSigns)
	}
	digest := sha256.Sum256(EncodeProofMessage(nonce, timestamp))
	if !sig.Verify(digest[:], pub) {
		return fmt.Errorf("%w: signature does not verify", ErrInvalidSigns)
	}
	return nil
}
