// Package writequeue implements spec.md §4.1: the single point of
// mutation for the block store. One background worker drains a FIFO of
// already-verified blocks, committing each inside its own write
// transaction, then posts process_dependencies onto an external
// executor rather than calling it back synchronously — the inversion
// that keeps a writer from deadlocking with a validator holding the
// cache's per-block lock.
package writequeue

import (
	"log"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/events"
	"github.com/logos-network/blockcore/executor"
	"github.com/logos-network/blockcore/persistence"
	"github.com/logos-network/blockcore/storage"
)

// DependencyNotifier is the callback the queue posts to the executor
// after each commit. The blockcache package implements it; writequeue
// does not import blockcache to avoid a dependency cycle.
type DependencyNotifier interface {
	ProcessDependencies(h persistence.Handler)
}

// Queue is the write queue described by spec.md §4.1.
type Queue struct {
	store    *storage.Store
	verifier bcrypto.AggregateVerifier
	exec     *executor.Executor

	mu        sync.Mutex
	cond      *sync.Cond
	items     []persistence.Handler
	inFlight  mapset.Set[core.Hash]
	terminate bool
	wg        sync.WaitGroup

	notifier DependencyNotifier
	emitter  *events.Emitter
}

// New constructs a Queue. SetNotifier may be called before or after
// Start: the worker reads the notifier afresh for every commit
// (blockcache.New wires itself in, usually after Start).
func New(store *storage.Store, verifier bcrypto.AggregateVerifier, exec *executor.Executor) *Queue {
	q := &Queue{
		store:    store,
		verifier: verifier,
		exec:     exec,
		inFlight: mapset.NewSet[core.Hash](),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// SetNotifier wires the callback invoked after each successful commit.
func (q *Queue) SetNotifier(n DependencyNotifier) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notifier = n
}

// SetEmitter wires an Emitter that receives one Event per commit, for
// external sinks such as the notify package's callback_address POST.
// Optional: a node run without an emitter simply skips notification.
func (q *Queue) SetEmitter(e *events.Emitter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emitter = e
}

// Start spawns the single background worker.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop sets terminate and wakes the worker, then joins it. Mirrors the
// teacher's destructor-joins-worker shutdown shape.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.terminate = true
	q.cond.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}

// VerifyAggSignature delegates to the per-kind handler. Idempotent, pure
// with respect to storage.
func (q *Queue) VerifyAggSignature(h persistence.Handler) bool {
	return h.VerifyAggSignature(q.verifier)
}

// VerifyContent runs the structural + state-dependent check against the
// current storage snapshot.
func (q *Queue) VerifyContent(h persistence.Handler, progress uint32) (bool, core.ValidationStatus) {
	return h.VerifyContent(q.store, progress)
}

// BlockExists reports whether hash is already committed or sitting in
// this queue's in-flight set.
func (q *Queue) BlockExists(hash core.Hash, kind core.Kind) bool {
	if q.store.BlockExists(hash, kind) {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight.Contains(hash)
}

// RequestExists reports whether a request with this hash has already
// been committed to storage. It does not consult the in-flight set:
// inner requests of an RB only become visible once that RB itself
// commits, which is exactly when storage.RequestExists starts to see
// them.
func (q *Queue) RequestExists(hash core.Hash) bool {
	return q.store.RequestExists(hash)
}

// StoreBlock appends h to the FIFO, marks its hash in-flight, and wakes
// the worker. Callers must only enqueue blocks that already passed
// VerifyAggSignature and VerifyContent, or that arrived on the
// direct_write (local consensus) path, which skips both checks.
func (q *Queue) StoreBlock(h persistence.Handler) {
	q.mu.Lock()
	q.items = append(q.items, h)
	q.inFlight.Add(h.Hash())
	q.cond.Signal()
	q.mu.Unlock()
}

// commitEvent builds the notification event for a just-committed
// block, pulling the fields each kind carries via a type switch — the
// same shape blockcache.dependenciesFor uses to read gap information.
func commitEvent(h persistence.Handler) events.Event {
	ev := events.Event{Type: events.TypeForKind(h.Kind()), Hash: h.Hash()}
	switch b := h.(type) {
	case *persistence.RB:
		ev.EpochNumber = b.Block.EpochNumber
		ev.Sequence = b.Block.Sequence
		ev.DelegateID = b.Block.PrimaryDelegate
	case *persistence.MB:
		ev.EpochNumber = b.Block.EpochNumber
		ev.Sequence = b.Block.Sequence
	case *persistence.EB:
		ev.EpochNumber = b.Block.EpochNumber
		ev.Sequence = b.Block.Sequence
	}
	return ev
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.terminate {
			q.cond.Wait()
		}
		if len(q.items) == 0 && q.terminate {
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.mu.Unlock()

		tx := q.store.Begin()
		if err := item.ApplyUpdates(tx); err != nil {
			log.Fatalf("writequeue: apply_updates failed for %s: %v", item.Hash(), err)
		}
		if err := tx.Commit(); err != nil {
			log.Fatalf("writequeue: commit failed for %s: %v", item.Hash(), err)
		}

		q.mu.Lock()
		notifier := q.notifier
		emitter := q.emitter
		q.items = q.items[1:]
		q.inFlight.Remove(item.Hash())
		q.mu.Unlock()

		if notifier != nil {
			committed := item
			q.exec.Post(func() {
				notifier.ProcessDependencies(committed)
			})
		}
		if emitter != nil {
			emitter.Emit(commitEvent(item))
		}
	}
}
