package bcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PrivateKey wraps a private key used by a Signer capability implementation.
type PrivateKey []byte

// PublicKey wraps a public key used by an AggregateVerifier capability
// implementation.
type PublicKey []byte

// GenerateKeyPair generates a new ed25519 key pair. Production delegate
// signing uses BLS aggregate signatures (out of scope per spec.md §1);
// this ed25519 pair is the pass-through capability implementation used by
// tests to exercise the pipeline without real key material.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PrivateKey(priv), PublicKey(pub), nil
}

// Hex returns the full hex-encoded public key.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub)
}

// Hex returns the hex-encoded private key.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Public derives the ed25519 public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
}

// PubKeyFromHex decodes a hex-encoded public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return PublicKey(b), nil
}
