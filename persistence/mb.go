package persistence

import (
	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/storage"
)

// MB is the Handler for a Micro Block: the per-epoch checkpoint of all
// 32 delegate RB chains.
type MB struct {
	Block *core.MicroBlock
}

func (h *MB) Kind() core.Kind { return core.KindMB }
func (h *MB) Hash() core.Hash { return h.Block.Hash }

func (h *MB) VerifyAggSignature(v bcrypto.AggregateVerifier) bool {
	return v.VerifyAggSignature(h.Block.MarshalSigningBody(), h.Block.AggSignature, []uint8{h.Block.PrimaryDelegate})
}

// VerifyContent checks the MB chain's sequence/previous linkage (§4.2.1
// rule 2) and that every non-zero RB tip it names is already committed.
func (h *MB) VerifyContent(s *storage.Store, progress uint32) (bool, core.ValidationStatus) {
	b := h.Block

	if !core.ValidDelegateID(b.PrimaryDelegate) {
		return false, core.ValidationStatus{Reason: core.InvalidBlockType}
	}
	if s.BlockExists(b.Hash, core.KindMB) {
		return false, core.ValidationStatus{Reason: core.Exists}
	}

	tip, err := s.GetMicroTip()
	if err != nil {
		return false, core.ValidationStatus{Reason: core.Initializing}
	}
	switch {
	case tip.IsZero():
		if b.Sequence != 0 {
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

	perReq := make(map[int]core.ResultCode, core.NumDelegates)
	gap := false
	for d := 0; d < core.NumDelegates; d++ {
		t := b.Tips[d]
		if t.Digest.IsZero() {
			continue
		}
		if !s.BlockExists(t.Digest, core.KindRB) {
			perReq[d] = core.GapSource
			gap = true
		}
	}
	if gap {
		return false, core.ValidationStatus{Reason: core.InvalidRequestGap, PerRequestResults: perReq, Progress: progress}
	}
	return true, core.ValidationStatus{Reason: core.Progress}
}

// ApplyUpdates commits the block and advances the micro-block chain tip.
func (h *MB) ApplyUpdates(tx *storage.Tx) error {
	b := h.Block
	tx.PutMicroBlock(b)
	return tx.SetMicroTip(core.Tip{Epoch: b.EpochNumber, Sequence: b.Sequence, Digest: b.Hash})
}
