package bcrypto

import (
	"crypto/ed25519"
	"errors"
)

// Signer is the opaque "sign" capability the CORE invokes when a local
// delegate needs to sign a block it produced. Production nodes back this
// with BLS; it is out of scope here (spec.md §1).
type Signer interface {
	Sign(msg []byte) []byte
}

// AggregateVerifier is the opaque "verify aggregate signature" capability
// invoked by the per-kind persistence handlers. Production nodes back
// this with BLS aggregate-signature verification against the epoch's
// delegate set; it is out of scope here.
type AggregateVerifier interface {
	VerifyAggSignature(msg []byte, sig []byte, signerIDs []uint8) bool
}

// Ed25519Signer is a pass-through Signer used by tests to exercise the
// validation pipeline independently of real key material.
type Ed25519Signer struct {
	Priv PrivateKey
}

func (s Ed25519Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(s.Priv), msg)
}

// Ed25519Verifier is a pass-through AggregateVerifier: it checks a single
// ed25519 signature from the given public key, ignoring signerIDs (real
// BLS aggregation would fold every named delegate's share together).
type Ed25519Verifier struct {
	Pub PublicKey
}

func (v Ed25519Verifier) VerifyAggSignature(msg []byte, sig []byte, _ []uint8) bool {
	return ed25519.Verify(ed25519.PublicKey(v.Pub), msg, sig)
}

// AlwaysValidVerifier accepts every signature. Used by unit tests that
// want to exercise the pipeline (ordering, dependency resolution) without
// any key material at all, per Design Notes §9.
type AlwaysValidVerifier struct{}

func (AlwaysValidVerifier) VerifyAggSignature([]byte, []byte, []uint8) bool { return true }

// ErrNoSigner is returned by callers that need a Signer but were not
// configured with one (e.g. a pure bootstrap-follower node).
var ErrNoSigner = errors.New("bcrypto: no signer configured")
