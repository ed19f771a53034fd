package htlc

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/atomex-go/swapengine/internal/chain"
)

func testKeys(t *testing.T) (*btcec.PrivateKey, *btcec.PrivateKey) {
	t.Helper()
	a, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	b, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return a, b
}

func TestBuildScriptRoundTripsThroughParseScript(t *testing.T) {
	secret, secretHash, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	receiver, sender := testKeys(t)

	script, err := BuildScript(secretHash, receiver.PubKey().SerializeCompressed(), sender.PubKey().SerializeCompressed(), 800000)
	if err != nil {
		t.Fatalf("build script: %v", err)
	}

	gotHash, gotReceiver, gotSender, gotLockTime, err := ParseScript(script)
	if err != nil {
		t.Fatalf("parse script: %v", err)
	}
	if !bytes.Equal(gotHash, secretHash) {
		t.Error("parsed secret hash mismatch")
	}
	if !bytes.Equal(gotReceiver, receiver.PubKey().SerializeCompressed()) {
		t.Error("parsed receiver pubkey mismatch")
	}
	if !bytes.Equal(gotSender, sender.PubKey().SerializeCompressed()) {
		t.Error("parsed sender pubkey mismatch")
	}
	if gotLockTime != 800000 {
		t.Errorf("got lock_time %d, want 800000", gotLockTime)
	}
	if !VerifySecret(secret, secretHash) {
		t.Error("VerifySecret should accept the generated secret")
	}
	if VerifySecret(secret, make([]byte, 32)) {
		t.Error("VerifySecret should reject a wrong hash")
	}
}

func TestBuildScriptRejectsZeroLockTime(t *testing.T) {
	_, secretHash, _ := GenerateSecret()
	receiver, sender := testKeys(t)
	_, err := BuildScript(secretHash, receiver.PubKey().SerializeCompressed(), sender.PubKey().SerializeCompressed(), 0)
	if err == nil {
		t.Fatal("expected error for zero lock_time")
	}
}

func TestBuildScriptDataDerivesSegwitAddressForBTC(t *testing.T) {
	_, secretHash, _ := GenerateSecret()
	receiver, sender := testKeys(t)

	data, err := BuildScriptData(secretHash, receiver.PubKey(), sender.PubKey(), 700000, "BTC", chain.Mainnet)
	if err != nil {
		t.Fatalf("build script data: %v", err)
	}
	if len(data.Address) == 0 || data.Address[:3] != "bc1" {
		t.Errorf("expected bech32 P2WSH address for BTC, got %q", data.Address)
	}
}

func TestBuildScriptDataFallsBackToP2SHForDoge(t *testing.T) {
	_, secretHash, _ := GenerateSecret()
	receiver, sender := testKeys(t)

	data, err := BuildScriptData(secretHash, receiver.PubKey(), sender.PubKey(), 700000, "DOGE", chain.Mainnet)
	if err != nil {
		t.Fatalf("build script data: %v", err)
	}
	if len(data.Address) == 0 {
		t.Fatal("expected a non-empty P2SH address for DOGE")
	}
}

func TestBuildClaimAndRefundWitnessShapes(t *testing.T) {
	script := []byte{0x01, 0x02}
	claim := BuildClaimWitness([]byte("sig"), []byte("secret"), script)
	if len(claim) != 4 || claim[2][0] != 0x01 {
		t.Errorf("claim witness shape wrong: %v", claim)
	}
	refund := BuildRefundWitness([]byte("sig"), script)
	if len(refund) != 3 || len(refund[1]) != 0 {
		t.Errorf("refund witness shape wrong: %v", refund)
	}
}
