// Package pending implements the Pending Block Container of spec.md
// §4.2: it organizes cached-but-not-yet-committed blocks by epoch and
// delegate, tracks cross-block dependencies, and hands out the next
// block ready for validation per the §4.2.1 scan order.
//
// Design Notes §9 replaces the original's shared_ptr "ChainPtr" union
// with a plain core.Hash-keyed map, and drops the explicit mutable scan
// cursor: because a chain's ordered list only ever holds not-yet-
// committed blocks (mark_as_validated removes the head on success), the
// head of each per-chain list is always the next eligible candidate for
// that chain — no separate cursor bookkeeping is required to preserve
// that invariant.
package pending

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/persistence"
)

// PendingBlock is the container's wrapper for one cached block of any
// kind (spec.md §3 PendingBlock<T>).
type PendingBlock struct {
	Handler      persistence.Handler
	Status       core.ValidationStatus
	Dependencies mapset.Set[core.Hash]
	Locked       bool
	DirectWrite  bool

	Kind        core.Kind
	EpochNumber uint32
	Sequence    uint32
	DelegateID  uint8 // meaningful only for RB; 0 for MB/EB, which therefore tie-break as delegate 0
}

func newPendingBlock(h persistence.Handler, kind core.Kind, epoch, seq uint32, delegateID uint8, verified bool) *PendingBlock {
	return &PendingBlock{
		Handler:      h,
		Dependencies: mapset.NewSet[core.Hash](),
		DirectWrite:  verified,
		Kind:         kind,
		EpochNumber:  epoch,
		Sequence:     seq,
		DelegateID:   delegateID,
	}
}

// RequestHashes returns the inner request hashes of an RB, or nil for
// MB/EB. MarkAsValidated uses this to drain account-chain waiters.
func (p *PendingBlock) RequestHashes() []core.Hash {
	rb, ok := p.Handler.(*persistence.RB)
	if !ok {
		return nil
	}
	hashes := make([]core.Hash, len(rb.Block.Requests))
	for i, req := range rb.Block.Requests {
		hashes[i] = req.Hash
	}
	return hashes
}

// EpochPeriod owns every pending block belonging to one epoch: at most
// one EB, an ordered MB list, and one ordered RB list per delegate.
type EpochPeriod struct {
	EpochNumber uint32
	EB          *PendingBlock
	MBs         []*PendingBlock
	RBs         [core.NumDelegates][]*PendingBlock
}

func newEpochPeriod(epochNumber uint32) *EpochPeriod {
	return &EpochPeriod{EpochNumber: epochNumber}
}

func (p *EpochPeriod) empty() bool {
	if p.EB != nil {
		return false
	}
	if len(p.MBs) != 0 {
		return false
	}
	for _, rbs := range p.RBs {
		if len(rbs) != 0 {
			return false
		}
	}
	return true
}
