package pending

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/persistence"
)

// recentDBWritesCap is N in spec.md §4.2's recent_DB_writes FIFO.
const recentDBWritesCap = 512

// Container is the Pending Block Container of spec.md §4.2. Four
// fine-grained mutexes guard its four data structures; every operation
// that needs more than one acquires them in the fixed order
// chains → cachedBlocks → hashDependencyTable, with recentMu (guarding
// recentDone) always taken last, to match the deadlock freedom argument
// of §4.3.1.
type Container struct {
	chainsMu sync.Mutex
	epochs   []*EpochPeriod

	cacheMu      sync.Mutex
	cachedBlocks map[core.Hash]*PendingBlock

	depMu                sync.Mutex
	hashDependencyTable  map[core.Hash][]*PendingBlock

	recentMu   sync.Mutex
	recentDone *lru.Cache
}

// New creates an empty Container.
func New() *Container {
	c, _ := lru.New(recentDBWritesCap)
	return &Container{
		cachedBlocks:        make(map[core.Hash]*PendingBlock),
		hashDependencyTable: make(map[core.Hash][]*PendingBlock),
		recentDone:          c,
	}
}

// IsBlockCached reports whether hash currently has a pending entry.
func (c *Container) IsBlockCached(hash core.Hash) bool {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	_, ok := c.cachedBlocks[hash]
	return ok
}

// GetCached returns the pending entry for hash, if any.
func (c *Container) GetCached(hash core.Hash) (*PendingBlock, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	pb, ok := c.cachedBlocks[hash]
	return pb, ok
}

func (c *Container) wasRecentlyWritten(hash core.Hash) bool {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	return c.recentDone.Contains(hash)
}

func (c *Container) findOrCreatePeriod(epochNumber uint32) *EpochPeriod {
	for _, p := range c.epochs {
		if p.EpochNumber == epochNumber {
			return p
		}
	}
	p := newEpochPeriod(epochNumber)
	c.epochs = append(c.epochs, p)
	sort.Slice(c.epochs, func(i, j int) bool { return c.epochs[i].EpochNumber < c.epochs[j].EpochNumber })
	return p
}

// AddRequestBlock inserts rb into the cache and its delegate's ordered
// RB list. Returns true iff this is the first time hash has been seen.
func (c *Container) AddRequestBlock(h persistence.Handler, epochNumber uint32, sequence uint32, delegateID uint8, verified bool) (*PendingBlock, bool) {
	hash := h.Hash()

	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if existing, ok := c.cachedBlocks[hash]; ok {
		return existing, false
	}
	if c.recentDoneContainsLocked(hash) {
		return nil, false
	}

	pb := newPendingBlock(h, core.KindRB, epochNumber, sequence, delegateID, verified)
	c.cachedBlocks[hash] = pb

	period := c.findOrCreatePeriod(epochNumber)
	list := period.RBs[delegateID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].Sequence >= sequence })
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = pb
	period.RBs[delegateID] = list
	return pb, true
}

// AddMicroBlock inserts mb into the cache and the epoch's ordered MB
// list. Returns true iff this is the first time hash has been seen.
func (c *Container) AddMicroBlock(h persistence.Handler, epochNumber uint32, sequence uint32, verified bool) (*PendingBlock, bool) {
	hash := h.Hash()

	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if existing, ok := c.cachedBlocks[hash]; ok {
		return existing, false
	}
	if c.recentDoneContainsLocked(hash) {
		return nil, false
	}

	pb := newPendingBlock(h, core.KindMB, epochNumber, sequence, 0, verified)
	c.cachedBlocks[hash] = pb

	period := c.findOrCreatePeriod(epochNumber)
	idx := sort.Search(len(period.MBs), func(i int) bool { return period.MBs[i].Sequence >= sequence })
	period.MBs = append(period.MBs, nil)
	copy(period.MBs[idx+1:], period.MBs[idx:])
	period.MBs[idx] = pb
	return pb, true
}

// AddEpochBlock inserts eb into the cache as its epoch's (sole) EB.
// Returns true iff this is the first time hash has been seen.
func (c *Container) AddEpochBlock(h persistence.Handler, epochNumber uint32, sequence uint32, verified bool) (*PendingBlock, bool) {
	hash := h.Hash()

	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if existing, ok := c.cachedBlocks[hash]; ok {
		return existing, false
	}
	if c.recentDoneContainsLocked(hash) {
		return nil, false
	}

	pb := newPendingBlock(h, core.KindEB, epochNumber, sequence, 0, verified)
	c.cachedBlocks[hash] = pb

	period := c.findOrCreatePeriod(epochNumber)
	period.EB = pb
	return pb, true
}

func (c *Container) recentDoneContainsLocked(hash core.Hash) bool {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	return c.recentDone.Contains(hash)
}

// AddHashDependency registers that the block identified by waiter is
// blocked on hash. Returns false (no dependency added, caller should
// retry immediately) if hash has already been committed — resolving
// the race described in spec.md §5 between a dependency add and a
// concurrent mark_as_validated draining the same hash.
func (c *Container) AddHashDependency(hash core.Hash, waiter *PendingBlock) bool {
	if c.wasRecentlyWritten(hash) {
		return false
	}
	c.depMu.Lock()
	defer c.depMu.Unlock()
	// Re-check under the dependency table's own lock: mark_as_validated
	// pushes to recentDone before it drains the table under depMu, so
	// this second check is what actually closes the race; the check
	// above is just a fast path.
	if c.wasRecentlyWritten(hash) {
		return false
	}
	waiter.Dependencies.Add(hash)
	c.hashDependencyTable[hash] = append(c.hashDependencyTable[hash], waiter)
	return true
}

// MarkAsValidated removes hash from the cache, records it in
// recentDBWrites, and clears it from every waiter's dependency set.
// Returns true if any waiter thereby became ready (empty dependency
// set). For RBs, the same draining is done for each inner request hash
// so account-chain waiters unblock too.
func (c *Container) MarkAsValidated(pb *PendingBlock) bool {
	hash := pb.Handler.Hash()
	requestHashes := pb.RequestHashes()

	c.cacheMu.Lock()
	delete(c.cachedBlocks, hash)
	c.cacheMu.Unlock()

	c.removeFromChain(pb)

	c.recentMu.Lock()
	c.recentDone.Add(hash, struct{}{})
	c.recentMu.Unlock()

	unblocked := c.drainDependency(hash)
	for _, rh := range requestHashes {
		c.recentMu.Lock()
		c.recentDone.Add(rh, struct{}{})
		c.recentMu.Unlock()
		if c.drainDependency(rh) {
			unblocked = true
		}
	}
	return unblocked
}

func (c *Container) drainDependency(hash core.Hash) bool {
	c.depMu.Lock()
	waiters := c.hashDependencyTable[hash]
	delete(c.hashDependencyTable, hash)
	c.depMu.Unlock()

	unblocked := false
	for _, w := range waiters {
		w.Dependencies.Remove(hash)
		if w.Dependencies.Cardinality() == 0 {
			unblocked = true
		}
	}
	return unblocked
}

// BlockDelete removes a definitively bad block. Its dependents are left
// blocked — their dependency is unsatisfiable — rather than marked
// ready.
func (c *Container) BlockDelete(pb *PendingBlock) {
	hash := pb.Handler.Hash()

	c.cacheMu.Lock()
	delete(c.cachedBlocks, hash)
	c.cacheMu.Unlock()

	c.removeFromChain(pb)

	c.depMu.Lock()
	delete(c.hashDependencyTable, hash)
	c.depMu.Unlock()
}

func (c *Container) removeFromChain(pb *PendingBlock) {
	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()

	for i, period := range c.epochs {
		if period.EpochNumber != pb.EpochNumber {
			continue
		}
		switch pb.Kind {
		case core.KindEB:
			if period.EB == pb {
				period.EB = nil
			}
		case core.KindMB:
			period.MBs = removePending(period.MBs, pb)
		case core.KindRB:
			period.RBs[pb.DelegateID] = removePending(period.RBs[pb.DelegateID], pb)
		}
		if period.empty() {
			c.epochs = append(c.epochs[:i], c.epochs[i+1:]...)
		}
		return
	}
}

func removePending(list []*PendingBlock, pb *PendingBlock) []*PendingBlock {
	for i, x := range list {
		if x == pb {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// GetNextBlock implements the §4.2.1 scan: it looks only at the oldest
// non-empty epoch period (EBs depend on the full previous period being
// committed, so nothing in a newer period can be ready while an older
// one still has content) and returns the lowest-ranked, unlocked,
// dependency-free candidate among that period's RB chain heads, MB
// chain head, and EB. The returned block is left locked (as if by
// validate()'s "acquire block.lock") so a concurrent GetNextBlock call
// cannot hand out the same candidate; callers must call ReleaseBlock
// when done.
func (c *Container) GetNextBlock() *PendingBlock {
	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()

	if len(c.epochs) == 0 {
		return nil
	}
	period := c.epochs[0]

	var candidates []*PendingBlock
	for d := 0; d < core.NumDelegates; d++ {
		if rbs := period.RBs[d]; len(rbs) > 0 {
			candidates = append(candidates, rbs[0])
		}
	}
	if len(period.MBs) > 0 {
		candidates = append(candidates, period.MBs[0])
	}
	if period.EB != nil && len(period.MBs) == 0 {
		candidates = append(candidates, period.EB)
	}

	var best *PendingBlock
	for _, cand := range candidates {
		if cand.Locked || cand.Dependencies.Cardinality() != 0 {
			continue
		}
		if best == nil || tieBreakLess(cand, best) {
			best = cand
		}
	}
	if best != nil {
		best.Locked = true
	}
	return best
}

// ReleaseBlock clears a block's lock, acquired by a previous
// GetNextBlock call. Safe to call even if the block was since removed
// from the container (e.g. by BlockDelete or MarkAsValidated).
func (c *Container) ReleaseBlock(pb *PendingBlock) {
	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()
	pb.Locked = false
}

// tieBreakLess implements the (epoch_number, sequence, delegate_id)
// ascending tie-break required so two nodes scanning the same cached
// set call apply_updates in the same relative order.
func tieBreakLess(a, b *PendingBlock) bool {
	if a.EpochNumber != b.EpochNumber {
		return a.EpochNumber < b.EpochNumber
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	return a.DelegateID < b.DelegateID
}
