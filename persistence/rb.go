package persistence

import (
	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/storage"
)

// RB is the Handler for a Request Block: the per-delegate batch chain.
type RB struct {
	Block *core.RequestBlock
}

func (h *RB) Kind() core.Kind { return core.KindRB }
func (h *RB) Hash() core.Hash { return h.Block.Hash }

// VerifyAggSignature checks the block's signature against its signing
// body. direct_write blocks (local consensus path) never reach this
// call — the validate loop skips straight to ApplyUpdates for those.
func (h *RB) VerifyAggSignature(v bcrypto.AggregateVerifier) bool {
	return v.VerifyAggSignature(h.Block.MarshalSigningBody(), h.Block.AggSignature, []uint8{h.Block.PrimaryDelegate})
}

// VerifyContent checks structural validity against the store: the
// delegate range, the batch-tip sequence/previous linkage (§4.2.1 rule
// 3), and each inner request's account-chain previous pointer.
func (h *RB) VerifyContent(s *storage.Store, progress uint32) (bool, core.ValidationStatus) {
	b := h.Block

	if !core.ValidDelegateID(b.PrimaryDelegate) {
		return false, core.ValidationStatus{Reason: core.InvalidBlockType}
	}
	if s.BlockExists(b.Hash, core.KindRB) {
		return false, core.ValidationStatus{Reason: core.Exists}
	}

	tip, err := s.GetBatchTip(b.PrimaryDelegate)
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

	perReq := make(map[int]core.ResultCode, len(b.Requests))
	gap := false
	newProgress := progress
	for i := int(progress); i < len(b.Requests); i++ {
		req := b.Requests[i]
		if !req.Previous.IsZero() && !s.RequestExists(req.Previous) {
			perReq[i] = core.GapSource
			gap = true
			continue
		}
		perReq[i] = core.Progress
		if !gap {
			newProgress = uint32(i + 1)
		}
	}
	if gap {
		return false, core.ValidationStatus{
			Reason:            core.InvalidRequestGap,
			PerRequestResults: perReq,
			Progress:          newProgress,
		}
	}
	return true, core.ValidationStatus{Reason: core.Progress, Progress: uint32(len(b.Requests))}
}

// ApplyUpdates commits the block and advances the delegate's batch tip,
// within the caller's single write transaction.
func (h *RB) ApplyUpdates(tx *storage.Tx) error {
	b := h.Block
	tx.PutRequestBlock(b)
	return tx.SetBatchTip(b.PrimaryDelegate, core.Tip{Epoch: b.EpochNumber, Sequence: b.Sequence, Digest: b.Hash})
}
