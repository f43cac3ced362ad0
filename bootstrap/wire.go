// Package bootstrap implements spec.md §4.4: bringing this node's store
// up to the network tip by exchanging frontiers with a chosen peer and
// scheduling pulls/pushes over a bounded pool of connections.
//
// Wire framing (spec.md §6.1) is adapted from the teacher's
// network/peer.go length-prefixed message shape, replacing its 4-byte
// length + JSON body with the bit-exact 8-byte header and fixed-size
// binary payloads the bootstrap protocol actually specifies.
package bootstrap

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/logos-network/blockcore/core"
)

// Magic identifies the Logos bootstrap wire protocol.
const Magic uint16 = 0x4c42 // "LB"

// Protocol version carried in every header; there is exactly one
// version in this implementation.
const (
	VersionMax   = 1
	VersionUsing = 1
	VersionMin   = 1
)

// Header message types (spec.md §6.1). These share a byte range with,
// but are a distinct namespace from, the stream FrameXxx type bytes
// below — bulk_pull and not_a_block both happen to be 6.
const (
	TypeBulkPull       uint8 = 6
	TypeBulkPush       uint8 = 7
	TypeFrontierReq    uint8 = 8
	TypeBulkPullBlocks uint8 = 9
)

// Block-frame type bytes used in a bulk_pull response stream.
const (
	FrameBatchBlock uint8 = 1
	FrameMicroBlock uint8 = 2
	FrameEpochBlock uint8 = 3
	FrameNotABlock  uint8 = 6
)

// Header is the common 8-byte prefix on every bootstrap message.
type Header struct {
	VersionMax   uint8
	VersionUsing uint8
	VersionMin   uint8
	Type         uint8
	Extensions   uint16
}

func defaultHeader(msgType uint8) Header {
	return Header{VersionMax: VersionMax, VersionUsing: VersionUsing, VersionMin: VersionMin, Type: msgType}
}

func writeHeader(w io.Writer, h Header) error {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = h.VersionMax
	buf[3] = h.VersionUsing
	buf[4] = h.VersionMin
	buf[5] = h.Type
	binary.LittleEndian.PutUint16(buf[6:8], h.Extensions)
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (Header, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	if magic := binary.BigEndian.Uint16(buf[0:2]); magic != Magic {
		return Header{}, fmt.Errorf("bootstrap: bad magic %#x", magic)
	}
	return Header{
		VersionMax:   buf[2],
		VersionUsing: buf[3],
		VersionMin:   buf[4],
		Type:         buf[5],
		Extensions:   binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}

// BulkPullRequest is the bulk_pull payload of spec.md §6.1.
type BulkPullRequest struct {
	Start           core.Hash // 32B account
	End             core.Hash // 32B hash
	TimestampStart  uint64
	TimestampEnd    uint64
	DelegateID      int32
	SeqStart        uint32
	SeqEnd          uint32
	EStart, EEnd    core.Hash
	MStart, MEnd    core.Hash
	BStart, BEnd    core.Hash
}

func (p BulkPullRequest) marshal() []byte {
	buf := make([]byte, 0, 32*8+8+8+4+4+4)
	buf = append(buf, p.Start[:]...)
	buf = append(buf, p.End[:]...)
	buf = appendLE64(buf, p.TimestampStart)
	buf = appendLE64(buf, p.TimestampEnd)
	buf = appendLE32(buf, uint32(p.DelegateID))
	buf = appendLE32(buf, p.SeqStart)
	buf = appendLE32(buf, p.SeqEnd)
	buf = append(buf, p.EStart[:]...)
	buf = append(buf, p.EEnd[:]...)
	buf = append(buf, p.MStart[:]...)
	buf = append(buf, p.MEnd[:]...)
	buf = append(buf, p.BStart[:]...)
	buf = append(buf, p.BEnd[:]...)
	return buf
}

func unmarshalBulkPull(data []byte) (BulkPullRequest, error) {
	const want = 32*8 + 8 + 8 + 4 + 4 + 4
	if len(data) != want {
		return BulkPullRequest{}, fmt.Errorf("bootstrap: bulk_pull size %d, want %d", len(data), want)
	}
	var p BulkPullRequest
	off := 0
	readHash := func() core.Hash {
		var h core.Hash
		copy(h[:], data[off:off+32])
		off += 32
		return h
	}
	p.Start = readHash()
	p.End = readHash()
	p.TimestampStart = binary.LittleEndian.Uint64(data[off:])
	off += 8
	p.TimestampEnd = binary.LittleEndian.Uint64(data[off:])
	off += 8
	p.DelegateID = int32(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	p.SeqStart = binary.LittleEndian.Uint32(data[off:])
	off += 4
	p.SeqEnd = binary.LittleEndian.Uint32(data[off:])
	off += 4
	p.EStart = readHash()
	p.EEnd = readHash()
	p.MStart = readHash()
	p.MEnd = readHash()
	p.BStart = readHash()
	p.BEnd = readHash()
	return p, nil
}

// FrontierReq is the frontier_req payload.
type FrontierReq struct {
	Start      core.Hash
	Age        uint32
	Count      uint32
	NrDelegate uint32
}

func (f FrontierReq) marshal() []byte {
	buf := make([]byte, 0, 32+4+4+4)
	buf = append(buf, f.Start[:]...)
	buf = appendLE32(buf, f.Age)
	buf = appendLE32(buf, f.Count)
	buf = appendLE32(buf, f.NrDelegate)
	return buf
}

func unmarshalFrontierReq(data []byte) (FrontierReq, error) {
	const want = 32 + 4 + 4 + 4
	if len(data) != want {
		return FrontierReq{}, fmt.Errorf("bootstrap: frontier_req size %d, want %d", len(data), want)
	}
	var f FrontierReq
	copy(f.Start[:], data[0:32])
	f.Age = binary.LittleEndian.Uint32(data[32:36])
	f.Count = binary.LittleEndian.Uint32(data[36:40])
	f.NrDelegate = binary.LittleEndian.Uint32(data[40:44])
	return f, nil
}

// FrontierResponse is one per-delegate entry of the 32-message
// frontier_response stream.
type FrontierResponse struct {
	TimestampStart, TimestampEnd uint64
	DelegateID                   uint32
	EpochTip, MicroTip, BatchTip core.Hash
	EpochSeq, MicroSeq, BatchSeq uint32
}

func (f FrontierResponse) marshal() []byte {
	buf := make([]byte, 0, 8+8+4+32*3+4+4+4)
	buf = appendLE64(buf, f.TimestampStart)
	buf = appendLE64(buf, f.TimestampEnd)
	buf = appendLE32(buf, f.DelegateID)
	buf = append(buf, f.EpochTip[:]...)
	buf = append(buf, f.MicroTip[:]...)
	buf = append(buf, f.BatchTip[:]...)
	buf = appendLE32(buf, f.EpochSeq)
	buf = appendLE32(buf, f.MicroSeq)
	buf = appendLE32(buf, f.BatchSeq)
	return buf
}

// FrontierResponseSize is the fixed wire size of one FrontierResponse.
const FrontierResponseSize = 8 + 8 + 4 + 32*3 + 4 + 4 + 4

func unmarshalFrontierResponse(data []byte) (FrontierResponse, error) {
	const want = FrontierResponseSize
	if len(data) != want {
		return FrontierResponse{}, fmt.Errorf("bootstrap: frontier_response size %d, want %d", len(data), want)
	}
	var f FrontierResponse
	off := 0
	f.TimestampStart = binary.LittleEndian.Uint64(data[off:])
	off += 8
	f.TimestampEnd = binary.LittleEndian.Uint64(data[off:])
	off += 8
	f.DelegateID = binary.LittleEndian.Uint32(data[off:])
	off += 4
	copy(f.EpochTip[:], data[off:off+32])
	off += 32
	copy(f.MicroTip[:], data[off:off+32])
	off += 32
	copy(f.BatchTip[:], data[off:off+32])
	off += 32
	f.EpochSeq = binary.LittleEndian.Uint32(data[off:])
	off += 4
	f.MicroSeq = binary.LittleEndian.Uint32(data[off:])
	off += 4
	f.BatchSeq = binary.LittleEndian.Uint32(data[off:])
	return f, nil
}

func appendLE32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendLE64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
