// Package persistence implements the three per-kind handlers of spec.md
// §2.2: VerifyAggSignature, VerifyContent and ApplyUpdates for Request
// Blocks, Micro Blocks and Epoch Blocks. Block existence is not a handler
// method; it is answered by storage.Store.BlockExists and
// writequeue.Queue.BlockExists. Token/staking
// semantics (balance transfer, fee accounting, proposer-weight staking
// math) are out of scope per spec.md §1; these handlers check only what
// the cache itself depends on to order and commit blocks — sequence
// continuity, previous-hash linkage and cross-chain tip references.
package persistence

import (
	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/storage"
)

// Handler is the capability the write queue and the validate loop invoke
// for one pending block, regardless of kind. RB, MB and EB each
// implement it over their own concrete block type.
type Handler interface {
	Kind() core.Kind
	Hash() core.Hash
	VerifyAggSignature(v bcrypto.AggregateVerifier) bool
	VerifyContent(s *storage.Store, progress uint32) (bool, core.ValidationStatus)
	ApplyUpdates(tx *storage.Tx) error
}
