package persistence

import (
	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/storage"
)

// EB is the Handler for an Epoch Block: the checkpoint of the MB chain
// that rotates the 32-delegate set.
type EB struct {
	Block *core.EpochBlock
}

func (h *EB) Kind() core.Kind { return core.KindEB }
func (h *EB) Hash() core.Hash { return h.Block.Hash }

func (h *EB) VerifyAggSignature(v bcrypto.AggregateVerifier) bool {
	return v.VerifyAggSignature(h.Block.MarshalSigningBody(), h.Block.AggSignature, []uint8{h.Block.PrimaryDelegate})
}

// VerifyContent checks the EB chain's sequence/previous linkage and that
// the micro_block_tip it names is already committed (§4.2.1 rule 1).
func (h *EB) VerifyContent(s *storage.Store, progress uint32) (bool, core.ValidationStatus) {
	b := h.Block

	if !core.ValidDelegateID(b.PrimaryDelegate) {
		return false, core.ValidationStatus{Reason: core.InvalidBlockType}
	}
	if s.BlockExists(b.Hash, core.KindEB) {
		return false, core.ValidationStatus{Reason: core.Exists}
	}

	tip, err := s.GetEpochTip()
	if err != nil {
		return false, core.ValidationStatus{Reason: core.Initializing}
	}
	switch {
	case tip.IsZero():
		if b.Sequence != 0 && !b.IsExtension {
			return false, core.ValidationStatus{Reason: core.GapPrevious}
		}
	case b.Sequence <= tip.Sequence:
		return false, core.ValidationStatus{Reason: core.Old}
	case b.Sequence > tip.Sequence+1:
		// Forward gap: GetNextBlock only ever offers a chain's lowest-
		// sequence cached block, so this means an intermediate block
		// hasn't arrived yet, not corruption. Park on b.Previous like
		// any other gap-previous instead of deleting the block.
		return false, core.ValidationStatus{Reason: core.GapPrevious}
	case b.Previous != tip.Digest:
		return false, core.ValidationStatus{Reason: core.Fork}
	}

	if !b.MicroBlockTip.Digest.IsZero() && !s.BlockExists(b.MicroBlockTip.Digest, core.KindMB) {
		return false, core.ValidationStatus{
			Reason:            core.InvalidRequestGap,
			PerRequestResults: map[int]core.ResultCode{0: core.GapSource},
			Progress:          progress,
		}
	}
	return true, core.ValidationStatus{Reason: core.Progress}
}

// ApplyUpdates commits the block and advances the epoch chain tip.
func (h *EB) ApplyUpdates(tx *storage.Tx) error {
	b := h.Block
	tx.PutEpochBlock(b)
	return tx.SetEpochTip(core.Tip{Epoch: b.EpochNumber, Sequence: b.Sequence, Digest: b.Hash})
}
