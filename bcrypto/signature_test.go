package bcrypto_test

import (
	"testing"

	"github.com/logos-network/blockcore/bcrypto"
)

func TestEd25519SignerAndVerifierRoundTrip(t *testing.T) {
	priv, pub, err := bcrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	signer := bcrypto.Ed25519Signer{Priv: priv}
	verifier := bcrypto.Ed25519Verifier{Pub: pub}

	msg := []byte("request block signing body")
	sig := signer.Sign(msg)
	if !verifier.VerifyAggSignature(msg, sig, []uint8{0}) {
		t.Fatal("expected signature to verify")
	}
	if verifier.VerifyAggSignature([]byte("tampered"), sig, []uint8{0}) {
		t.Fatal("expected verification to fail on tampered message")
	}
}

func TestAlwaysValidVerifierAcceptsAnything(t *testing.T) {
	v := bcrypto.AlwaysValidVerifier{}
	if !v.VerifyAggSignature(nil, nil, nil) {
		t.Fatal("expected AlwaysValidVerifier to accept everything")
	}
}
