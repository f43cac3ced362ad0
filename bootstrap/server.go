package bootstrap

import (
	"context"
	"log"
	"net"

	"github.com/logos-network/blockcore/blockcache"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/storage"
)

// Server answers frontier_req/bulk_pull/bulk_push connections from
// peers bootstrapping off this node. It is the passive half of §4.4;
// the active half is Attempt. Grounded on network/node.go's accept
// loop, generalized from a single handler table to a type switch on
// the bootstrap header's Type byte.
type Server struct {
	listener net.Listener
	store    *storage.Store
	cache    *blockcache.Cache
}

// NewServer wraps an already-bound listener.
func NewServer(listener net.Listener, store *storage.Store, cache *blockcache.Cache) *Server {
	return &Server{listener: listener, store: store, cache: cache}
}

// Serve accepts connections until ctx is cancelled or the listener
// errors. Each connection is handled on its own goroutine and closed
// when the peer finishes or errors.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		conn := Accept(raw)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn *Conn) {
	defer conn.Close()
	hdr, err := conn.ReadHeader()
	if err != nil {
		return
	}
	switch hdr.Type {
	case TypeFrontierReq:
		s.handleFrontierReq(conn)
	case TypeBulkPull:
		s.handleBulkPull(conn)
	case TypeBulkPush:
		s.handleBulkPush(conn)
	default:
		log.Printf("[bootstrap] unknown message type %d from %s", hdr.Type, conn.Addr)
	}
}

func (s *Server) handleFrontierReq(conn *Conn) {
	payload, err := conn.ReadPayload(32 + 4 + 4 + 4)
	if err != nil {
		return
	}
	req, err := unmarshalFrontierReq(payload)
	if err != nil {
		return
	}

	n := req.NrDelegate
	if n == 0 || n > core.NumDelegates {
		n = core.NumDelegates
	}
	epochTip, _ := s.store.GetEpochTip()
	microTip, _ := s.store.GetMicroTip()
	for d := uint32(0); d < n; d++ {
		batchTip, _ := s.store.GetBatchTip(uint8(d))
		resp := FrontierResponse{
			DelegateID: d,
			EpochTip:   epochTip.Digest,
			MicroTip:   microTip.Digest,
			BatchTip:   batchTip.Digest,
			EpochSeq:   epochTip.Sequence,
			MicroSeq:   microTip.Sequence,
			BatchSeq:   batchTip.Sequence,
		}
		if err := conn.SendMessage(TypeFrontierReq, resp.marshal()); err != nil {
			return
		}
	}
}

// handleBulkPull reconstructs the three requested ranges from the
// store and streams them oldest-to-newest, epoch then micro then
// batch, terminated by a single not_a_block (spec.md §4.4.5). A range
// whose start already equals its end is skipped. If a link in a chain
// cannot be resolved, that chain's walk simply stops where it is
// rather than failing the whole pull — the client's next frontier
// exchange will notice the remaining gap and re-request it.
func (s *Server) handleBulkPull(conn *Conn) {
	payload, err := conn.ReadPayload(32*8 + 8 + 8 + 4 + 4 + 4)
	if err != nil {
		return
	}
	req, err := unmarshalBulkPull(payload)
	if err != nil {
		return
	}

	if err := s.sendEpochRange(conn, req.EStart, req.EEnd); err != nil {
		return
	}
	if err := s.sendMicroRange(conn, req.MStart, req.MEnd); err != nil {
		return
	}
	if err := s.sendBatchRange(conn, req.BStart, req.BEnd); err != nil {
		return
	}
	conn.SendNotABlock()
}

func (s *Server) sendEpochRange(conn *Conn, start, end core.Hash) error {
	if start == end {
		return nil
	}
	var chain []*core.EpochBlock
	cur := end
	for !cur.IsZero() && cur != start {
		eb, err := s.store.GetEpochBlock(cur)
		if err != nil {
			break
		}
		chain = append(chain, eb)
		cur = eb.Previous
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := conn.SendBlockFrame(FrameEpochBlock, chain[i].Marshal()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) sendMicroRange(conn *Conn, start, end core.Hash) error {
	if start == end {
		return nil
	}
	var chain []*core.MicroBlock
	cur := end
	for !cur.IsZero() && cur != start {
		mb, err := s.store.GetMicroBlock(cur)
		if err != nil {
			break
		}
		chain = append(chain, mb)
		cur = mb.Previous
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := conn.SendBlockFrame(FrameMicroBlock, chain[i].Marshal()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) sendBatchRange(conn *Conn, start, end core.Hash) error {
	if start == end {
		return nil
	}
	var chain []*core.RequestBlock
	cur := end
	for !cur.IsZero() && cur != start {
		rb, err := s.store.GetRequestBlock(cur)
		if err != nil {
			break
		}
		chain = append(chain, rb)
		cur = rb.Previous
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := conn.SendBlockFrame(FrameBatchBlock, chain[i].Marshal()); err != nil {
			return err
		}
	}
	return nil
}

// handleBulkPush admits every block frame a peer sends until it signals
// not_a_block. Admitted blocks go through the normal Add* path (async
// signature + content verification via the block cache), exactly as if
// they had arrived over the p2p transport.
func (s *Server) handleBulkPush(conn *Conn) {
	for {
		frameType, body, err := conn.ReadBlockFrame()
		if err != nil {
			return
		}
		if frameType == FrameNotABlock {
			return
		}
		switch frameType {
		case FrameEpochBlock:
			if eb, err := core.UnmarshalEpochBlock(body); err == nil {
				s.cache.AddEpochBlock(eb)
			}
		case FrameMicroBlock:
			if mb, err := core.UnmarshalMicroBlock(body); err == nil {
				s.cache.AddMicroBlock(mb)
			}
		case FrameBatchBlock:
			if rb, err := core.UnmarshalRequestBlock(body); err == nil {
				s.cache.AddRequestBlock(rb)
			}
		}
	}
}
