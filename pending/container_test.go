package pending_test

import (
	"testing"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/pending"
	"github.com/logos-network/blockcore/persistence"
)

func newRB(delegate uint8, seq uint32, salt byte) *persistence.RB {
	rb := &core.RequestBlock{PrimaryDelegate: delegate, Sequence: seq}
	body := rb.MarshalSigningBody()
	body = append(body, salt)
	rb.Hash = bcrypto.Hash256(body)
	return &persistence.RB{Block: rb}
}

func TestAddRequestBlockOrdersByDelegateAndSequence(t *testing.T) {
	c := pending.New()

	h2, isNew := c.AddRequestBlock(newRB(0, 1, 1), 0, 1, 0, false)
	if !isNew {
		t.Fatal("expected new block")
	}
	h1, isNew := c.AddRequestBlock(newRB(0, 0, 2), 0, 0, 0, false)
	if !isNew {
		t.Fatal("expected new block")
	}

	next := c.GetNextBlock()
	if next == nil || next.Handler.Hash() != h1.Handler.Hash() {
		t.Fatalf("expected sequence-0 block first, got %+v want %+v", next, h1)
	}
	_ = h2
}

func TestAddRequestBlockDedupe(t *testing.T) {
	c := pending.New()
	rb := newRB(1, 0, 3)
	_, isNew := c.AddRequestBlock(rb, 0, 0, 1, false)
	if !isNew {
		t.Fatal("expected first insert to be new")
	}
	_, isNew = c.AddRequestBlock(rb, 0, 0, 1, false)
	if isNew {
		t.Fatal("expected second insert to report not-new")
	}
}

func TestMarkAsValidatedUnblocksWaiter(t *testing.T) {
	c := pending.New()

	first := newRB(0, 0, 4)
	pbFirst, _ := c.AddRequestBlock(first, 0, 0, 0, false)

	second := newRB(0, 1, 5)
	pbSecond, _ := c.AddRequestBlock(second, 0, 1, 0, false)

	// second depends on first's hash (simulating a gap_previous retry).
	if !c.AddHashDependency(first.Hash(), pbSecond) {
		t.Fatal("expected dependency to be added")
	}
	if pbSecond.Dependencies.Cardinality() != 1 {
		t.Fatalf("expected one dependency, got %d", pbSecond.Dependencies.Cardinality())
	}

	got := c.GetNextBlock()
	if got == nil || got.Handler.Hash() != pbFirst.Handler.Hash() {
		t.Fatalf("expected first block ready, got %+v", got)
	}
	c.ReleaseBlock(got)

	unblocked := c.MarkAsValidated(got)
	if !unblocked {
		t.Fatal("expected MarkAsValidated to report an unblocked waiter")
	}
	if pbSecond.Dependencies.Cardinality() != 0 {
		t.Fatal("expected second's dependency to clear")
	}

	next := c.GetNextBlock()
	if next == nil || next.Handler.Hash() != pbSecond.Handler.Hash() {
		t.Fatalf("expected second block now ready, got %+v", next)
	}
}

func TestAddHashDependencyRejectsAlreadyWritten(t *testing.T) {
	c := pending.New()

	rb := newRB(2, 0, 6)
	pb, _ := c.AddRequestBlock(rb, 0, 0, 2, false)
	c.ReleaseBlock(pb)
	c.MarkAsValidated(pb)

	waiterRB := newRB(2, 1, 7)
	waiterPB, _ := c.AddRequestBlock(waiterRB, 0, 1, 2, false)

	if c.AddHashDependency(rb.Hash(), waiterPB) {
		t.Fatal("expected dependency on an already-written hash to be rejected")
	}
}

func TestBlockDeleteLeavesWaitersBlocked(t *testing.T) {
	c := pending.New()

	bad := newRB(5, 0, 8)
	pbBad, _ := c.AddRequestBlock(bad, 0, 0, 5, false)

	waiter := newRB(5, 1, 9)
	pbWaiter, _ := c.AddRequestBlock(waiter, 0, 1, 5, false)
	c.AddHashDependency(bad.Hash(), pbWaiter)

	c.BlockDelete(pbBad)

	if c.IsBlockCached(bad.Hash()) {
		t.Fatal("expected deleted block to be gone from cache")
	}
	if pbWaiter.Dependencies.Cardinality() == 0 {
		t.Fatal("expected waiter to remain blocked after its dependency is deleted")
	}
}
