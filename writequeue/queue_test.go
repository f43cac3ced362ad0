package writequeue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/executor"
	"github.com/logos-network/blockcore/internal/testutil"
	"github.com/logos-network/blockcore/persistence"
	"github.com/logos-network/blockcore/writequeue"
)

type recordingNotifier struct {
	mu  sync.Mutex
	got []core.Hash
	wg  *sync.WaitGroup
}

func (n *recordingNotifier) ProcessDependencies(h persistence.Handler) {
	n.mu.Lock()
	n.got = append(n.got, h.Hash())
	n.mu.Unlock()
	n.wg.Done()
}

func TestQueueCommitsAndNotifies(t *testing.T) {
	store := testutil.NewStore()
	exec := executor.New(2)
	defer exec.Close()

	q := writequeue.New(store, bcrypto.AlwaysValidVerifier{}, exec)

	var wg sync.WaitGroup
	wg.Add(1)
	notifier := &recordingNotifier{wg: &wg}
	q.SetNotifier(notifier)
	q.Start()
	defer q.Stop()

	rb := &core.RequestBlock{PrimaryDelegate: 4, Sequence: 0}
	rb.Hash = bcrypto.ComputeHash(rb.MarshalSigningBody())
	h := &persistence.RB{Block: rb}

	if q.BlockExists(rb.Hash, core.KindRB) {
		t.Fatal("block should not exist before store_block")
	}
	q.StoreBlock(h)
	if !q.BlockExists(rb.Hash, core.KindRB) {
		t.Fatal("expected in-flight block to report as existing")
	}

	waitTimeout(t, &wg, time.Second)

	tip, err := store.GetBatchTip(4)
	if err != nil {
		t.Fatalf("get tip: %v", err)
	}
	if tip.Digest != rb.Hash {
		t.Fatalf("expected tip committed, got %+v", tip)
	}
	if len(notifier.got) != 1 || notifier.got[0] != rb.Hash {
		t.Fatalf("expected notifier to see %s, got %v", rb.Hash, notifier.got)
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for notifier")
	}
}
