package bootstrap

import "github.com/logos-network/blockcore/core"

// PullRequest and PushRequest mirror spec.md §4.4's deque element
// shapes: one range per chain (epoch, micro, batch/RB), plus the
// delegate a batch range belongs to and a retry counter.
type PullRequest struct {
	DelegateID       uint8
	EStart, EEnd     core.Tip
	MStart, MEnd     core.Tip
	BStart, BEnd     core.Tip
	Attempts         int
	AnsweringPeer    string // peer that answered the original frontier_req
}

// PushRequest is symmetric to PullRequest: it describes what this node
// must send, not receive.
type PushRequest struct {
	DelegateID   uint8
	EStart, EEnd core.Tip
	MStart, MEnd core.Tip
	BStart, BEnd core.Tip
}

// classification is the outcome of comparing one delegate's local tips
// against its frontier_response entry (spec.md §4.4.1).
type classification int

const (
	inSync classification = iota
	needPull
	needPush
	inconsistent
)

// classify reproduces spec.md §4.4.1's asymmetric comparison verbatim:
// behind requires epoch_seq ≤ peer_epoch ∧ micro_seq ≤ peer_micro ∧
// bsb_seq < peer_bsb; ahead requires bsb_seq > peer_bsb ∧ epoch_seq ≥
// peer_epoch ∧ micro_seq ≥ peer_micro. This is not a typo: the source
// genuinely uses a strict inequality on the batch chain and non-strict
// on epoch/micro in both directions, so a node exactly level on epoch
// and micro but one batch block behind is classified as behind, while
// one level on epoch/micro and one batch block *ahead* is classified
// ahead — there is no symmetric "exactly equal on all three" case
// other than the all-equal in-sync branch checked first.
func classify(myEpochSeq, myMicroSeq, myBatchSeq, peerEpochSeq, peerMicroSeq, peerBatchSeq uint32) classification {
	if myEpochSeq == peerEpochSeq && myMicroSeq == peerMicroSeq && myBatchSeq == peerBatchSeq {
		return inSync
	}
	behind := myEpochSeq <= peerEpochSeq && myMicroSeq <= peerMicroSeq && myBatchSeq < peerBatchSeq
	ahead := myBatchSeq > peerBatchSeq && myEpochSeq >= peerEpochSeq && myMicroSeq >= peerMicroSeq
	switch {
	case behind:
		return needPull
	case ahead:
		return needPush
	default:
		return inconsistent
	}
}

// myFrontier is this node's locally known tips, queried once up front
// so frontier_response processing never touches storage per-delegate.
type myFrontier struct {
	EpochTip, MicroTip, BatchTip [core.NumDelegates]core.Tip
}

// planFromResponse turns one delegate's frontier_response, compared
// against mine, into either a pull, a push, or nothing. peerAddr is
// recorded on a pull as the AnsweringPeer for the §4.4.2 retry-redirect
// rule.
func planFromResponse(mine myFrontier, resp FrontierResponse, peerAddr string) (classification, *PullRequest, *PushRequest) {
	d := uint8(resp.DelegateID)
	myEpoch := mine.EpochTip[d]
	myMicro := mine.MicroTip[d]
	myBatch := mine.BatchTip[d]

	switch classify(myEpoch.Sequence, myMicro.Sequence, myBatch.Sequence, resp.EpochSeq, resp.MicroSeq, resp.BatchSeq) {
	case needPull:
		return needPull, &PullRequest{
			DelegateID:    d,
			EStart:        myEpoch,
			EEnd:          core.Tip{Sequence: resp.EpochSeq, Digest: resp.EpochTip},
			MStart:        myMicro,
			MEnd:          core.Tip{Sequence: resp.MicroSeq, Digest: resp.MicroTip},
			BStart:        myBatch,
			BEnd:          core.Tip{Sequence: resp.BatchSeq, Digest: resp.BatchTip},
			AnsweringPeer: peerAddr,
		}, nil
	case needPush:
		return needPush, nil, &PushRequest{
			DelegateID: d,
			EStart:     core.Tip{Sequence: resp.EpochSeq, Digest: resp.EpochTip},
			EEnd:       myEpoch,
			MStart:     core.Tip{Sequence: resp.MicroSeq, Digest: resp.MicroTip},
			MEnd:       myMicro,
			BStart:     core.Tip{Sequence: resp.BatchSeq, Digest: resp.BatchTip},
			BEnd:       myBatch,
		}
	case inconsistent:
		return inconsistent, nil, nil
	default:
		return inSync, nil, nil
	}
}

// endTransmission is the non-zero tip among e_end, m_end, b_end that a
// bulk_pull's stream must reach before it is safe to reuse the
// connection (spec.md §4.4.3), epoch taking precedence over micro over
// batch.
func endTransmission(pr *PullRequest) core.Hash {
	if !pr.EEnd.Digest.IsZero() {
		return pr.EEnd.Digest
	}
	if !pr.MEnd.Digest.IsZero() {
		return pr.MEnd.Digest
	}
	return pr.BEnd.Digest
}
