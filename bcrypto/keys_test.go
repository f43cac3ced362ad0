package bcrypto_test

import (
	"testing"

	"github.com/logos-network/blockcore/bcrypto"
)

func TestPubKeyFromHexRoundTrips(t *testing.T) {
	_, pub, err := bcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	decoded, err := bcrypto.PubKeyFromHex(pub.Hex())
	if err != nil {
		t.Fatalf("PubKeyFromHex: %v", err)
	}
	if string(decoded) != string(pub) {
		t.Fatal("decoded pubkey does not match original")
	}
}

func TestPubKeyFromHexRejectsWrongLength(t *testing.T) {
	if _, err := bcrypto.PubKeyFromHex("abcd"); err == nil {
		t.Fatal("expected error for short hex pubkey")
	}
}

func TestPrivateKeyHexMatchesPublicDerivation(t *testing.T) {
	priv, pub, err := bcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if priv.Hex() == "" {
		t.Fatal("expected non-empty hex encoding")
	}
	if priv.Public().Hex() != pub.Hex() {
		t.Fatal("derived public key does not match generated one")
	}
}
