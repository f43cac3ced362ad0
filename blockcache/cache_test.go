package blockcache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/blockcache"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/executor"
	"github.com/logos-network/blockcore/internal/testutil"
	"github.com/logos-network/blockcore/pending"
	"github.com/logos-network/blockcore/writequeue"
)

func newFixture() (*blockcache.Cache, *writequeue.Queue, func()) {
	store := testutil.NewStore()
	exec := executor.New(4)
	queue := writequeue.New(store, bcrypto.AlwaysValidVerifier{}, exec)
	queue.Start()
	container := pending.New()
	cache := blockcache.New(container, queue, exec)
	return cache, queue, func() {
		queue.Stop()
		exec.Close()
	}
}

func signedRB(delegate uint8, seq uint32, previous core.Hash) *core.RequestBlock {
	rb := &core.RequestBlock{PrimaryDelegate: delegate, Sequence: seq, Previous: previous}
	rb.Hash = bcrypto.ComputeHash(rb.MarshalSigningBody())
	return rb
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestAddRequestBlockCommitsInOrderEvenReversed(t *testing.T) {
	cache, queue, cleanup := newFixture()
	defer cleanup()

	rb0 := signedRB(0, 0, core.ZeroHash)
	rb1 := signedRB(0, 1, rb0.Hash)

	if r := cache.AddRequestBlock(rb1); r != blockcache.Ok {
		t.Fatalf("expected ok adding rb1 first, got %v", r)
	}
	if r := cache.AddRequestBlock(rb0); r != blockcache.Ok {
		t.Fatalf("expected ok adding rb0, got %v", r)
	}

	waitUntil(t, time.Second, func() bool {
		return queue.BlockExists(rb1.Hash, core.KindRB)
	})

	if !queue.BlockExists(rb0.Hash, core.KindRB) {
		t.Fatal("expected rb0 committed")
	}
}

func TestStoreRequestBlockBypassesVerification(t *testing.T) {
	cache, queue, cleanup := newFixture()
	defer cleanup()

	rb := signedRB(2, 0, core.ZeroHash)
	rb.AggSignature = nil // would fail signature verification if it were checked

	if r := cache.StoreRequestBlock(rb); r != blockcache.Ok {
		t.Fatalf("expected ok, got %v", r)
	}
	waitUntil(t, time.Second, func() bool {
		return queue.BlockExists(rb.Hash, core.KindRB)
	})
}

func TestAddRequestBlockExists(t *testing.T) {
	cache, queue, cleanup := newFixture()
	defer cleanup()

	rb := signedRB(3, 0, core.ZeroHash)
	if r := cache.AddRequestBlock(rb); r != blockcache.Ok {
		t.Fatalf("expected ok, got %v", r)
	}
	waitUntil(t, time.Second, func() bool {
		return queue.BlockExists(rb.Hash, core.KindRB)
	})
	if r := cache.AddRequestBlock(rb); r != blockcache.Exists {
		t.Fatalf("expected exists on resubmit, got %v", r)
	}
}

func TestIsBlockCachedReflectsPendingState(t *testing.T) {
	cache, _, cleanup := newFixture()
	defer cleanup()

	rb1 := signedRB(0, 1, core.ZeroHash) // gap: sequence 1 with no predecessor committed
	rb1.Previous = bcrypto.ComputeHash([]byte("nonexistent"))

	if r := cache.AddRequestBlock(rb1); r != blockcache.Ok {
		t.Fatalf("expected ok, got %v", r)
	}
	if !cache.IsBlockCached(rb1.Hash) {
		t.Fatal("expected rb1 still cached while waiting on its gap dependency")
	}
}

func TestStoreMicroAndEpochBlockBypassVerification(t *testing.T) {
	cache, queue, cleanup := newFixture()
	defer cleanup()

	mb := &core.MicroBlock{LastMicroBlock: true}
	mb.Hash = bcrypto.ComputeHash(mb.MarshalSigningBody())
	if r := cache.StoreMicroBlock(mb); r != blockcache.Ok {
		t.Fatalf("expected ok storing micro block, got %v", r)
	}
	waitUntil(t, time.Second, func() bool {
		return queue.BlockExists(mb.Hash, core.KindMB)
	})

	eb := &core.EpochBlock{EpochNumber: 1}
	eb.Hash = bcrypto.ComputeHash(eb.MarshalSigningBody())
	if r := cache.StoreEpochBlock(eb); r != blockcache.Ok {
		t.Fatalf("expected ok storing epoch block, got %v", r)
	}
	waitUntil(t, time.Second, func() bool {
		return queue.BlockExists(eb.Hash, core.KindEB)
	})
}

func TestValidateRequestChecksExistenceAndGap(t *testing.T) {
	cache, queue, cleanup := newFixture()
	defer cleanup()

	rb := signedRB(0, 0, core.ZeroHash)
	if r := cache.AddRequestBlock(rb); r != blockcache.Ok {
		t.Fatalf("expected ok, got %v", r)
	}
	waitUntil(t, time.Second, func() bool {
		return queue.BlockExists(rb.Hash, core.KindRB)
	})

	fresh := core.Request{Hash: bcrypto.ComputeHash([]byte("fresh"))}
	if ok, status := cache.ValidateRequest(fresh, 0); !ok {
		t.Fatalf("expected fresh request to pass, got status %v", status)
	}

	gapped := core.Request{
		Hash:     bcrypto.ComputeHash([]byte("gapped")),
		Previous: bcrypto.ComputeHash([]byte("never-committed")),
	}
	if ok, status := cache.ValidateRequest(gapped, 0); ok || status != core.GapSource {
		t.Fatalf("expected gap_source for a request whose previous never committed, got ok=%v status=%v", ok, status)
	}
}

type recordingPropagator struct {
	mu    sync.Mutex
	calls int
	kind  core.Kind
}

func (p *recordingPropagator) Propagate(kind core.Kind, raw []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.kind = kind
}

func (p *recordingPropagator) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type commitCounter struct {
	mu     sync.Mutex
	counts map[core.Hash]int
}

func newCommitCounter() *commitCounter { return &commitCounter{counts: map[core.Hash]int{}} }

func (c *commitCounter) Propagate(kind core.Kind, raw []byte) {
	rb, err := core.UnmarshalRequestBlock(raw)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[rb.Hash]++
}

func (c *commitCounter) countFor(hash core.Hash) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[hash]
}

// TestShuffledArrivalCommitsEachBlockExactlyOnce covers the out-of-order
// and forward-gap arrival patterns of spec §8.2/§8.3: every block of one
// delegate's chain, seq 0..N-1, is added in a fixed shuffled order (so
// some additions see a multi-block forward gap, not just a one-block
// gap) and must still commit exactly once each, in sequence order.
func TestShuffledArrivalCommitsEachBlockExactlyOnce(t *testing.T) {
	cache, queue, cleanup := newFixture()
	defer cleanup()

	counter := newCommitCounter()
	cache.SetPropagator(counter)

	const n = 6
	blocks := make([]*core.RequestBlock, n)
	prev := core.ZeroHash
	for i := 0; i < n; i++ {
		blocks[i] = signedRB(7, uint32(i), prev)
		prev = blocks[i].Hash
	}

	// Deliberately out of order, including forward gaps of more than one
	// block (e.g. seq 5 arrives while seq 1..4 are all still missing).
	for _, idx := range []int{5, 3, 1, 4, 0, 2} {
		if r := cache.AddRequestBlock(blocks[idx]); r != blockcache.Ok {
			t.Fatalf("expected ok adding block seq %d, got %v", idx, r)
		}
	}

	waitUntil(t, 2*time.Second, func() bool {
		return queue.BlockExists(blocks[n-1].Hash, core.KindRB)
	})

	for i, b := range blocks {
		if !queue.BlockExists(b.Hash, core.KindRB) {
			t.Fatalf("expected seq %d committed", i)
		}
		if got := counter.countFor(b.Hash); got != 1 {
			t.Fatalf("expected seq %d to commit exactly once, got %d", i, got)
		}
	}
}

func TestSetPropagatorReceivesCommittedBlocks(t *testing.T) {
	cache, queue, cleanup := newFixture()
	defer cleanup()

	p := &recordingPropagator{}
	cache.SetPropagator(p)

	rb := signedRB(1, 0, core.ZeroHash)
	if r := cache.AddRequestBlock(rb); r != blockcache.Ok {
		t.Fatalf("expected ok, got %v", r)
	}
	waitUntil(t, time.Second, func() bool {
		return queue.BlockExists(rb.Hash, core.KindRB)
	})
	waitUntil(t, time.Second, func() bool {
		return p.count() == 1
	})
	if p.kind != core.KindRB {
		t.Fatalf("expected propagated kind %v, got %v", core.KindRB, p.kind)
	}
}
