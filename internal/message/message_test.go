package message

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// testAddress is a toy address scheme for these tests only: the hex
// SHA-256 of the compressed public key. Real chains derive addresses
// differently (P2WPKH hash160, Ethereum keccak256); what matters for
// ProofOfPossession is that VerifyProofOfPossession treats "does this
// pubkey derive this address" as a hard gate independent of the
// signature check.
func testAddress(pub *btcec.PublicKey) (string, error) {
	h := sha256.Sum256(pub.SerializeCompressed())
	return hex.EncodeToString(h[:]), nil
}

func keyedSigner(priv *btcec.PrivateKey) SignerFunc {
	return func(ctx context.Context, address string, digest []byte) ([]byte, error) {
		sig := btcecdsa.Sign(priv, digest)
		return sig.Serialize(), nil
	}
}

func TestProofOfPossessionRoundTripSucceedsForMatchingKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr, err := testAddress(priv.PubKey())
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	pop, err := CreateProofOfPossession(context.Background(), keyedSigner(priv), addr, 42, ts)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := VerifyProofOfPossession(pop, 42, ts, priv.PubKey(), testAddress); err != nil {
		t.Errorf("expected verification to succeed, got %v", err)
	}
}

func TestProofOfPossessionFailsForWrongKey(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	other, _ := btcec.NewPrivateKey()
	addr, _ := testAddress(priv.PubKey())
	ts := time.Now().UTC()

	pop, err := CreateProofOfPossession(context.Background(), keyedSigner(priv), addr, 1, ts)
	if err != nil {
		t.Fatal(err)
	}
	// Verifying against a different public key: the address no longer
	// matches, so this must fail before signature verification even runs.
	if err := VerifyProofOfPossession(pop, 1, ts, other.PubKey(), testAddress); err == nil {
		t.Error("expected verification to fail for mismatched key")
	}
}

func TestProofOfPossessionFailsForTamperedNonce(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	addr, _ := testAddress(priv.PubKey())
	ts := time.Now().UTC()

	pop, err := CreateProofOfPossession(context.Background(), keyedSigner(priv), addr, 7, ts)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyProofOfPossession(pop, 8, ts, priv.PubKey(), testAddress); err == nil {
		t.Error("expected verification to fail for mismatched nonce")
	}
}

func TestFormatProofTimestampMatchesPinnedPattern(t *testing.T) {
	ts := time.Date(2026, 3, 5, 9, 7, 1, 234000000, time.UTC)
	got := FormatProofTimestamp(ts)
	want := "2026.03.05 09:07:01.234"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatProofTimestampConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	ts := time.Date(2026, 3, 5, 4, 7, 1, 0, loc) // 09:07:01 UTC
	got := FormatProofTimestamp(ts)
	want := "2026.03.05 09:07:01.000"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeProofMessageIsUTF16LE(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	encoded := EncodeProofMessage(5, ts)
	text := "52026.01.01 00:00:00.000"
	if len(encoded) != len(text)*2 {
		t.Fatalf("got %d bytes, want %d", len(encoded), len(text)*2)
	}
	for i, r := range text {
		lo := encoded[i*2]
		hi := encoded[i*2+1]
		if hi != 0 || rune(lo) != r {
			t.Fatalf("byte %d: got (%d,%d), want ascii %q little-endian", i, lo, hi, r)
		}
	}
}

func TestEnvelopeRoundTripsSwapPayment(t *testing.T) {
	p := SwapPayment{SwapID: "swap-1", PaymentTxID: "tx-1", RedeemScript: []byte{0xde, 0xad}}
	env, err := NewEnvelope(TypeSwapPayment, p.SwapID, p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.DecodeSwapPayment()
	if err != nil {
		t.Fatal(err)
	}
	if got.PaymentTxID != p.PaymentTxID || got.SwapID != p.SwapID {
		t.Errorf("got %+v, want %+v", got, p)
	}
}

func TestEnvelopeDecodeRejectsWrongType(t *testing.T) {
	env, err := NewEnvelope(TypeSwapSecret, "swap-1", SwapSecret{SwapID: "swap-1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.DecodeSwapPayment(); err == nil {
		t.Error("expected decode to reject mismatched envelope type")
	}
}
