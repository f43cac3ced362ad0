package persistence_test

import (
	"testing"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/internal/testutil"
	"github.com/logos-network/blockcore/persistence"
)

func TestRBVerifyContentFirstOfChain(t *testing.T) {
	s := testutil.NewStore()
	rb := &core.RequestBlock{PrimaryDelegate: 3, Sequence: 0}
	rb.Hash = bcrypto.ComputeHash(rb.MarshalSigningBody())

	h := &persistence.RB{Block: rb}
	ok, status := h.VerifyContent(s, 0)
	if !ok {
		t.Fatalf("expected ok, got reason %v", status.Reason)
	}
}

func TestRBVerifyContentGapPrevious(t *testing.T) {
	s := testutil.NewStore()
	rb := &core.RequestBlock{PrimaryDelegate: 3, Sequence: 5}
	rb.Hash = bcrypto.ComputeHash(rb.MarshalSigningBody())

	h := &persistence.RB{Block: rb}
	ok, status := h.VerifyContent(s, 0)
	if ok || status.Reason != core.GapPrevious {
		t.Fatalf("expected gap_previous, got ok=%v reason=%v", ok, status.Reason)
	}
}

func TestRBApplyUpdatesAdvancesTip(t *testing.T) {
	s := testutil.NewStore()
	rb := &core.RequestBlock{PrimaryDelegate: 1, Sequence: 0}
	rb.Hash = bcrypto.ComputeHash(rb.MarshalSigningBody())

	tx := s.Begin()
	h := &persistence.RB{Block: rb}
	if err := h.ApplyUpdates(tx); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tip, err := s.GetBatchTip(1)
	if err != nil {
		t.Fatalf("get tip: %v", err)
	}
	if tip.Sequence != 0 || tip.Digest != rb.Hash {
		t.Fatalf("unexpected tip: %+v", tip)
	}
	if !s.BlockExists(rb.Hash, core.KindRB) {
		t.Fatal("expected rb to exist after commit")
	}
}

func TestRBVerifyContentDetectsRequestGap(t *testing.T) {
	s := testutil.NewStore()
	var missing core.Hash
	missing[0] = 1
	rb := &core.RequestBlock{
		PrimaryDelegate: 0,
		Sequence:        0,
		Requests:        []core.Request{{Previous: missing}},
	}
	rb.Hash = bcrypto.ComputeHash(rb.MarshalSigningBody())

	h := &persistence.RB{Block: rb}
	ok, status := h.VerifyContent(s, 0)
	if ok || status.Reason != core.InvalidRequestGap {
		t.Fatalf("expected invalid_request_gap, got ok=%v reason=%v", ok, status.Reason)
	}
	if status.PerRequestResults[0] != core.GapSource {
		t.Fatalf("expected per-request gap_source, got %+v", status.PerRequestResults)
	}
}

func TestMBVerifyContentWaitsOnRBTip(t *testing.T) {
	s := testutil.NewStore()
	mb := &core.MicroBlock{PrimaryDelegate: 0, Sequence: 0}
	var missingRB core.Hash
	missingRB[0] = 2
	mb.Tips[0] = core.Tip{Sequence: 0, Digest: missingRB}
	mb.Hash = bcrypto.ComputeHash(mb.MarshalSigningBody())

	h := &persistence.MB{Block: mb}
	ok, status := h.VerifyContent(s, 0)
	if ok || status.Reason != core.InvalidRequestGap {
		t.Fatalf("expected invalid_request_gap, got ok=%v reason=%v", ok, status.Reason)
	}
}

func TestEBVerifyContentWaitsOnMicroTip(t *testing.T) {
	s := testutil.NewStore()
	eb := &core.EpochBlock{PrimaryDelegate: 0, Sequence: 0}
	var missingMB core.Hash
	missingMB[0] = 3
	eb.MicroBlockTip = core.Tip{Sequence: 0, Digest: missingMB}
	eb.Hash = bcrypto.ComputeHash(eb.MarshalSigningBody())

	h := &persistence.EB{Block: eb}
	ok, status := h.VerifyContent(s, 0)
	if ok || status.Reason != core.InvalidRequestGap {
		t.Fatalf("expected invalid_request_gap, got ok=%v reason=%v", ok, status.Reason)
	}
}
