package signer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

func TestInMemorySignerSignsUTXOWithRegisteredKey(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s := NewInMemorySigner()
	s.AddUTXOKey("addr1", key)

	hash := sha256.Sum256([]byte("message"))
	sig, err := s.SignUTXO(context.Background(), "addr1", hash[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := btcecdsa.ParseDERSignature(sig)
	if err != nil {
		t.Fatalf("signature should parse as DER ECDSA: %v", err)
	}
	if !parsed.Verify(hash[:], key.PubKey()) {
		t.Error("signature should verify against the signing key")
	}
}

func TestInMemorySignerRejectsUnknownAddress(t *testing.T) {
	s := NewInMemorySigner()
	if _, err := s.SignUTXO(context.Background(), "nobody", make([]byte, 32)); err == nil {
		t.Fatal("expected error for unregistered address")
	}
}

func TestPad32LeftPadsShortHashes(t *testing.T) {
	got := pad32([]byte{0x01, 0x02})
	want := append(make([]byte, 30), 0x01, 0x02)
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}
