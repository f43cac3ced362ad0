// Package blockcache implements the public façade of spec.md §4.3: the
// Add*/Store* entry points consensus and the p2p layer call into, plus
// the §4.3.1 validate loop that drives cached blocks through signature
// and content verification up to commit.
package blockcache

import (
	"time"

	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/executor"
	"github.com/logos-network/blockcore/pending"
	"github.com/logos-network/blockcore/persistence"
	"github.com/logos-network/blockcore/writequeue"
)

// AddResult is the outcome of an add_*/store_* call (spec.md §4.3).
type AddResult int

const (
	Ok AddResult = iota
	Exists
	Failed
)

func (r AddResult) String() string {
	switch r {
	case Ok:
		return "ok"
	case Exists:
		return "exists"
	default:
		return "failed"
	}
}

// Propagator re-emits a newly validated block to the p2p layer. P2P
// transport itself is out of scope (spec.md §4.5); this is the single
// hook the cache calls once a block has passed validation and been
// queued for commit.
type Propagator interface {
	Propagate(kind core.Kind, raw []byte)
}

// Cache is the Block Cache façade.
type Cache struct {
	container *pending.Container
	queue     *writequeue.Queue
	exec      *executor.Executor
	propagate Propagator
}

// New constructs a Cache and wires it as queue's DependencyNotifier.
func New(container *pending.Container, queue *writequeue.Queue, exec *executor.Executor) *Cache {
	c := &Cache{container: container, queue: queue, exec: exec}
	queue.SetNotifier(c)
	return c
}

// SetPropagator installs the re-emission hook. Optional: a bootstrap-only
// follower node may run without one.
func (c *Cache) SetPropagator(p Propagator) {
	c.propagate = p
}

// IsBlockCached reports whether hash has a pending entry right now.
func (c *Cache) IsBlockCached(hash core.Hash) bool {
	return c.container.IsBlockCached(hash)
}

// AddRequestBlock admits a network-received RB: signature and content
// are verified asynchronously before commit.
func (c *Cache) AddRequestBlock(b *core.RequestBlock) AddResult {
	return c.add(&persistence.RB{Block: b}, b.EpochNumber, b.Sequence, b.PrimaryDelegate, false)
}

// StoreRequestBlock admits an RB delivered by the local consensus
// layer: direct_write, signature re-verification skipped.
func (c *Cache) StoreRequestBlock(b *core.RequestBlock) AddResult {
	return c.add(&persistence.RB{Block: b}, b.EpochNumber, b.Sequence, b.PrimaryDelegate, true)
}

// AddMicroBlock admits a network-received MB.
func (c *Cache) AddMicroBlock(b *core.MicroBlock) AddResult {
	return c.add(&persistence.MB{Block: b}, b.EpochNumber, b.Sequence, 0, false)
}

// StoreMicroBlock admits an MB delivered by local consensus.
func (c *Cache) StoreMicroBlock(b *core.MicroBlock) AddResult {
	return c.add(&persistence.MB{Block: b}, b.EpochNumber, b.Sequence, 0, true)
}

// AddEpochBlock admits a network-received EB.
func (c *Cache) AddEpochBlock(b *core.EpochBlock) AddResult {
	return c.add(&persistence.EB{Block: b}, b.EpochNumber, b.Sequence, 0, false)
}

// StoreEpochBlock admits an EB delivered by local consensus.
func (c *Cache) StoreEpochBlock(b *core.EpochBlock) AddResult {
	return c.add(&persistence.EB{Block: b}, b.EpochNumber, b.Sequence, 0, true)
}

func (c *Cache) add(h persistence.Handler, epoch, seq uint32, delegateID uint8, verified bool) AddResult {
	hash := h.Hash()
	if c.queue.BlockExists(hash, h.Kind()) {
		return Exists
	}

	var isNew bool
	switch h.Kind() {
	case core.KindRB:
		_, isNew = c.container.AddRequestBlock(h, epoch, seq, delegateID, verified)
	case core.KindMB:
		_, isNew = c.container.AddMicroBlock(h, epoch, seq, verified)
	case core.KindEB:
		_, isNew = c.container.AddEpochBlock(h, epoch, seq, verified)
	default:
		return Failed
	}
	if !isNew {
		return Exists
	}

	c.exec.Post(c.validate)
	return Ok
}

// ValidateRequest is the read-only pre-check spec.md §4.3 describes for
// the transaction acceptor: does req's previous hash already resolve,
// and has this request already been committed.
func (c *Cache) ValidateRequest(req core.Request, epochNum uint32) (bool, core.ResultCode) {
	if c.queue.RequestExists(req.Hash) {
		return false, core.Exists
	}
	if !req.Previous.IsZero() && !c.queue.RequestExists(req.Previous) {
		return false, core.GapSource
	}
	return true, core.Progress
}

// ProcessDependencies implements writequeue.DependencyNotifier: invoked
// by the write queue's worker (via the executor, never synchronously)
// after committing h. It marks h validated in the container, which may
// free waiters, then re-runs the validate loop once — cheap to call
// even when nothing became ready.
func (c *Cache) ProcessDependencies(h persistence.Handler) {
	pb, ok := c.container.GetCached(h.Hash())
	if !ok {
		return
	}
	c.container.MarkAsValidated(pb)
	c.validate()
}

// validate implements the §4.3.1 loop. Multiple goroutines may run it
// concurrently (one per Add* call, one per ProcessDependencies call);
// GetNextBlock's per-block lock ensures at most one of them works a
// given block at a time, and none of them holds that lock while
// calling into the write queue, which only ever posts asynchronously.
func (c *Cache) validate() {
	for {
		pb := c.container.GetNextBlock()
		if pb == nil {
			return
		}

		if pb.DirectWrite {
			// Do not ReleaseBlock: pb stays locked (and thus ineligible
			// for GetNextBlock) from here until the write queue commits
			// it and ProcessDependencies' MarkAsValidated detaches it
			// from the chain. Releasing here would let the very next
			// GetNextBlock call hand out this same still-cached,
			// still-unlocked head again before the async commit lands.
			c.queue.StoreBlock(pb.Handler)
			c.propagateCommit(pb.Handler)
			continue
		}

		if !c.queue.VerifyAggSignature(pb.Handler) {
			c.container.ReleaseBlock(pb)
			c.container.BlockDelete(pb)
			continue
		}

		ok, status := c.queue.VerifyContent(pb.Handler, pb.Status.Progress)
		if ok {
			// See the DirectWrite branch above: stay locked until commit.
			c.queue.StoreBlock(pb.Handler)
			c.propagateCommit(pb.Handler)
			continue
		}

		if status.Reason.IsGapLike() {
			pb.Status = status
			for _, dep := range dependenciesFor(pb, status) {
				c.container.AddHashDependency(dep, pb)
			}
			c.container.ReleaseBlock(pb)
			continue
		}

		if status.Reason.IsTransient() {
			// §7: initializing/pending/already-reserved retry after a
			// backoff instead of being deleted like a fatal outcome.
			// Return rather than continue: pb is still unlocked and at
			// the head of its chain, so looping immediately would just
			// busy-spin on the same outcome until the backoff elapses.
			pb.Status = status
			c.container.ReleaseBlock(pb)
			time.AfterFunc(transientRetryBackoff, func() { c.exec.Post(c.validate) })
			return
		}

		c.container.ReleaseBlock(pb)
		c.container.BlockDelete(pb)
	}
}

// transientRetryBackoff bounds how long a transient VerifyContent
// outcome (§7) waits before the validate loop re-examines the block.
const transientRetryBackoff = 50 * time.Millisecond

// propagateCommit re-emits a just-queued block to the installed
// Propagator, if any. A bootstrap-only follower runs with none set.
func (c *Cache) propagateCommit(h persistence.Handler) {
	if c.propagate == nil {
		return
	}
	var raw []byte
	switch b := h.(type) {
	case *persistence.RB:
		raw = b.Block.Marshal()
	case *persistence.MB:
		raw = b.Block.Marshal()
	case *persistence.EB:
		raw = b.Block.Marshal()
	default:
		return
	}
	c.propagate.Propagate(h.Kind(), raw)
}

// dependenciesFor extracts the hash(es) a gap-like status blocks on,
// per §4.2.1's three dependency rules.
func dependenciesFor(pb *pending.PendingBlock, status core.ValidationStatus) []core.Hash {
	switch h := pb.Handler.(type) {
	case *persistence.RB:
		if status.Reason == core.GapPrevious {
			return []core.Hash{h.Block.Previous}
		}
		deps := make([]core.Hash, 0, len(status.PerRequestResults))
		for idx, code := range status.PerRequestResults {
			if code == core.GapSource && idx < len(h.Block.Requests) {
				deps = append(deps, h.Block.Requests[idx].Previous)
			}
		}
		return deps
	case *persistence.MB:
		if status.Reason == core.GapPrevious {
			return []core.Hash{h.Block.Previous}
		}
		deps := make([]core.Hash, 0, len(status.PerRequestResults))
		for d, code := range status.PerRequestResults {
			if code == core.GapSource && d >= 0 && d < core.NumDelegates {
				deps = append(deps, h.Block.Tips[d].Digest)
			}
		}
		return deps
	case *persistence.EB:
		if status.Reason == core.GapPrevious {
			return []core.Hash{h.Block.Previous}
		}
		return []core.Hash{h.Block.MicroBlockTip.Digest}
	default:
		return nil
	}
}
