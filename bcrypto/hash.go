// Package bcrypto provides the hashing primitive and the two opaque
// cryptographic capabilities the CORE depends on — aggregate signature
// verification and signing — as interfaces injected at construction
// (Design Notes §9). The CORE never implements BLS, ECIES, or ed25519
// itself; it only invokes these capabilities.
package bcrypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/logos-network/blockcore/core"
)

// Hash256 returns the 256-bit blake2b digest of data as a core.Hash.
func Hash256(data []byte) core.Hash {
	sum := blake2b.Sum256(data)
	var h core.Hash
	copy(h[:], sum[:])
	return h
}

// ComputeHash returns the hash of a block's signing body — the same
// bytes an aggregate signature is taken over. Block producers set a
// block's Hash field to this value; the persistence handlers take the
// Hash field as given and do not recompute it.
func ComputeHash(body []byte) core.Hash {
	return Hash256(body)
}
