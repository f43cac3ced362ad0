package bootstrap

import (
	"context"
	"fmt"
	"math"

	"github.com/logos-network/blockcore/core"
)

// exchangeFrontier opens one connection to addr, requests all
// NumDelegates delegates' frontiers in a single frontier_req, and turns
// each frontier_response into a pull or push request queued on a.
func (a *Attempt) exchangeFrontier(addr string, mine myFrontier) error {
	conn, err := Dial(addr, a.cfg.TLSConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := FrontierReq{
		Start:      core.Hash{},
		Age:        math.MaxUint32,
		Count:      math.MaxUint32,
		NrDelegate: core.NumDelegates,
	}
	if err := conn.SendMessage(TypeFrontierReq, req.marshal()); err != nil {
		return fmt.Errorf("bootstrap: send frontier_req to %s: %w", addr, err)
	}

	for i := 0; i < core.NumDelegates; i++ {
		if _, err := conn.ReadHeader(); err != nil {
			return fmt.Errorf("bootstrap: read frontier_response header from %s: %w", addr, err)
		}
		payload, err := conn.ReadPayload(FrontierResponseSize)
		if err != nil {
			return fmt.Errorf("bootstrap: read frontier_response body from %s: %w", addr, err)
		}
		resp, err := unmarshalFrontierResponse(payload)
		if err != nil {
			return err
		}

		class, pull, push := planFromResponse(mine, resp, addr)
		switch class {
		case needPull:
			a.mu.Lock()
			a.pulls = append(a.pulls, pull)
			a.mu.Unlock()
		case needPush:
			a.mu.Lock()
			a.pushTargets = append(a.pushTargets, push)
			a.mu.Unlock()
		case inconsistent:
			// The delegate is skipped without error or log entry: one
			// inconsistent peer shouldn't abort the whole exchange.
		}
	}
	return nil
}

// runPull executes one PullRequest: it reuses an idle connection or
// dials a fresh one (preferring the peer that originally answered the
// frontier_req), sends bulk_pull, and feeds every received block frame
// into the cache until the stream's not_a_block terminator. Per DESIGN.md's
// Open Question #2 decision, the connection is pooled for reuse iff the
// stream reached the agreed end_transmission hash; otherwise it is closed
// and the pull is requeued.
func (a *Attempt) runPull(ctx context.Context, pr *PullRequest, peers []string) error {
	cs := a.takeIdle()
	if cs == nil {
		addr := pr.AnsweringPeer
		if addr == "" && len(peers) > 0 {
			addr = peers[0]
		}
		if addr == "" {
			a.requeuePull(pr)
			return nil
		}
		var err error
		cs, err = a.dial(addr)
		if err != nil {
			a.requeuePull(pr)
			return nil
		}
	}

	payload := BulkPullRequest{
		DelegateID: int32(pr.DelegateID),
		EStart:     pr.EStart.Digest,
		EEnd:       pr.EEnd.Digest,
		MStart:     pr.MStart.Digest,
		MEnd:       pr.MEnd.Digest,
		BStart:     pr.BStart.Digest,
		BEnd:       pr.BEnd.Digest,
	}.marshal()
	if err := cs.conn.SendMessage(TypeBulkPull, payload); err != nil {
		a.pool(cs, false)
		a.requeuePull(pr)
		return nil
	}

	want := endTransmission(pr)
	var lastHash core.Hash
	for {
		select {
		case <-ctx.Done():
			a.pool(cs, false)
			return ctx.Err()
		default:
		}

		frameType, body, err := cs.conn.ReadBlockFrame()
		if err != nil {
			a.pool(cs, false)
			a.requeuePull(pr)
			return nil
		}
		if frameType == FrameNotABlock {
			break
		}

		switch frameType {
		case FrameEpochBlock:
			eb, err := core.UnmarshalEpochBlock(body)
			if err == nil {
				a.cache.AddEpochBlock(eb)
				lastHash = eb.Hash
			}
		case FrameMicroBlock:
			mb, err := core.UnmarshalMicroBlock(body)
			if err == nil {
				a.cache.AddMicroBlock(mb)
				lastHash = mb.Hash
			}
		case FrameBatchBlock:
			rb, err := core.UnmarshalRequestBlock(body)
			if err == nil {
				a.cache.AddRequestBlock(rb)
				lastHash = rb.Hash
			}
		}
		cs.blocks++
		a.mu.Lock()
		a.totalBlocks++
		a.mu.Unlock()
	}

	reached := !want.IsZero() && lastHash == want
	a.pool(cs, reached)
	if !reached {
		a.requeuePull(pr)
	}
	return nil
}

// runPush executes one PushRequest: it walks this node's own store from
// each chain's start tip to its end tip and streams the blocks out,
// oldest to newest, terminated by not_a_block. A chain whose start
// equals its end is skipped (nothing to send on that chain).
func (a *Attempt) runPush(ctx context.Context, pr *PushRequest, peers []string) error {
	cs := a.takeIdle()
	if cs == nil {
		if len(peers) == 0 {
			return nil
		}
		var err error
		cs, err = a.dial(peers[0])
		if err != nil {
			return nil
		}
	}

	if err := cs.conn.SendMessage(TypeBulkPush, nil); err != nil {
		a.pool(cs, false)
		return nil
	}

	if err := a.pushEpochChain(cs, pr.EStart, pr.EEnd); err != nil {
		a.pool(cs, false)
		return nil
	}
	if err := a.pushMicroChain(cs, pr.MStart, pr.MEnd); err != nil {
		a.pool(cs, false)
		return nil
	}
	if err := a.pushBatchChain(cs, pr.DelegateID, pr.BStart, pr.BEnd); err != nil {
		a.pool(cs, false)
		return nil
	}

	if err := cs.conn.SendNotABlock(); err != nil {
		a.pool(cs, false)
		return nil
	}
	a.pool(cs, true)
	return nil
}

// pushEpochChain walks the EB chain forward from start to end using
// each block's previous-pointer reversed via a local buffer, since the
// store only links EB -> previous EB, not the other direction.
func (a *Attempt) pushEpochChain(cs *connStats, start, end core.Tip) error {
	if start.Digest == end.Digest {
		return nil
	}
	var chain []*core.EpochBlock
	cur := end.Digest
	for !cur.IsZero() && cur != start.Digest {
		eb, err := a.store.GetEpochBlock(cur)
		if err != nil {
			break
		}
		chain = append(chain, eb)
		cur = eb.Previous
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := cs.conn.SendBlockFrame(FrameEpochBlock, chain[i].Marshal()); err != nil {
			return err
		}
		cs.blocks++
	}
	return nil
}

func (a *Attempt) pushMicroChain(cs *connStats, start, end core.Tip) error {
	if start.Digest == end.Digest {
		return nil
	}
	var chain []*core.MicroBlock
	cur := end.Digest
	for !cur.IsZero() && cur != start.Digest {
		mb, err := a.store.GetMicroBlock(cur)
		if err != nil {
			break
		}
		chain = append(chain, mb)
		cur = mb.Previous
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := cs.conn.SendBlockFrame(FrameMicroBlock, chain[i].Marshal()); err != nil {
			return err
		}
		cs.blocks++
	}
	return nil
}

func (a *Attempt) pushBatchChain(cs *connStats, delegateID uint8, start, end core.Tip) error {
	if start.Digest == end.Digest {
		return nil
	}
	var chain []*core.RequestBlock
	cur := end.Digest
	for !cur.IsZero() && cur != start.Digest {
		rb, err := a.store.GetRequestBlock(cur)
		if err != nil {
			break
		}
		chain = append(chain, rb)
		cur = rb.Previous
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := cs.conn.SendBlockFrame(FrameBatchBlock, chain[i].Marshal()); err != nil {
			return err
		}
		cs.blocks++
	}
	return nil
}
