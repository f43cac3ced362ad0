package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Block serialization uses network (big-endian) byte order for
// multi-byte integers inside the block, per spec.md §6.1. Encodings are
// not fixed-size: an RB carries a variable number of requests, and every
// kind ends with a length-prefixed aggregate signature.
// Everything outside this file treats the encoded bytes as opaque — used
// only to compute a block's hash and to move it across the wire or into
// storage.

func writeHash(buf *bytes.Buffer, h Hash) { buf.Write(h[:]) }

func readHash(r io.Reader) (Hash, error) {
	var h Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

func writeBytesLP(buf *bytes.Buffer, b []byte) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readBytesLP(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func writeTip(buf *bytes.Buffer, t Tip) {
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], t.Epoch)
	buf.Write(u32[:])
	binary.BigEndian.PutUint32(u32[:], t.Sequence)
	buf.Write(u32[:])
	writeHash(buf, t.Digest)
}

func readTip(r io.Reader) (Tip, error) {
	var t Tip
	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return t, err
	}
	t.Epoch = binary.BigEndian.Uint32(u32[:])
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return t, err
	}
	t.Sequence = binary.BigEndian.Uint32(u32[:])
	h, err := readHash(r)
	if err != nil {
		return t, err
	}
	t.Digest = h
	return t, nil
}

// MarshalSigningBody returns the bytes covered by a request block's
// aggregate signature: every field except the signature and the hash
// itself (which is computed over this body).
func (b *RequestBlock) MarshalSigningBody() []byte {
	var buf bytes.Buffer
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], b.EpochNumber)
	buf.Write(u32[:])
	buf.WriteByte(b.PrimaryDelegate)
	binary.BigEndian.PutUint32(u32[:], b.Sequence)
	buf.Write(u32[:])
	writeHash(&buf, b.Previous)
	binary.BigEndian.PutUint32(u32[:], uint32(len(b.Requests)))
	buf.Write(u32[:])
	for _, req := range b.Requests {
		writeHash(&buf, req.Previous)
		writeHash(&buf, req.Origin)
		var u64 [8]byte
		binary.BigEndian.PutUint64(u64[:], req.Fee)
		buf.Write(u64[:])
		writeHash(&buf, req.Hash)
	}
	return buf.Bytes()
}

// Marshal encodes the full on-wire/on-disk representation of b.
func (b *RequestBlock) Marshal() []byte {
	var buf bytes.Buffer
	writeHash(&buf, b.Hash)
	buf.Write(b.MarshalSigningBody())
	writeBytesLP(&buf, b.AggSignature)
	return buf.Bytes()
}

// UnmarshalRequestBlock decodes bytes produced by (*RequestBlock).Marshal.
func UnmarshalRequestBlock(data []byte) (*RequestBlock, error) {
	r := bytes.NewReader(data)
	b := &RequestBlock{}
	var err error
	if b.Hash, err = readHash(r); err != nil {
		return nil, fmt.Errorf("rb: hash: %w", err)
	}
	var u32 [4]byte
	if _, err = io.ReadFull(r, u32[:]); err != nil {
		return nil, fmt.Errorf("rb: epoch: %w", err)
	}
	b.EpochNumber = binary.BigEndian.Uint32(u32[:])
	var delByte [1]byte
	if _, err = io.ReadFull(r, delByte[:]); err != nil {
		return nil, fmt.Errorf("rb: delegate: %w", err)
	}
	b.PrimaryDelegate = delByte[0]
	if _, err = io.ReadFull(r, u32[:]); err != nil {
		return nil, fmt.Errorf("rb: sequence: %w", err)
	}
	b.Sequence = binary.BigEndian.Uint32(u32[:])
	if b.Previous, err = readHash(r); err != nil {
		return nil, fmt.Errorf("rb: previous: %w", err)
	}
	if _, err = io.ReadFull(r, u32[:]); err != nil {
		return nil, fmt.Errorf("rb: request count: %w", err)
	}
	n := binary.BigEndian.Uint32(u32[:])
	b.Requests = make([]Request, n)
	for i := range b.Requests {
		req := &b.Requests[i]
		if req.Previous, err = readHash(r); err != nil {
			return nil, fmt.Errorf("rb: request[%d].previous: %w", i, err)
		}
		if req.Origin, err = readHash(r); err != nil {
			return nil, fmt.Errorf("rb: request[%d].origin: %w", i, err)
		}
		var u64 [8]byte
		if _, err = io.ReadFull(r, u64[:]); err != nil {
			return nil, fmt.Errorf("rb: request[%d].fee: %w", i, err)
		}
		req.Fee = binary.BigEndian.Uint64(u64[:])
		if req.Hash, err = readHash(r); err != nil {
			return nil, fmt.Errorf("rb: request[%d].hash: %w", i, err)
		}
	}
	if b.AggSignature, err = readBytesLP(r); err != nil {
		return nil, fmt.Errorf("rb: agg_signature: %w", err)
	}
	return b, nil
}

// MarshalSigningBody returns the bytes covered by a micro block's
// aggregate signature.
func (b *MicroBlock) MarshalSigningBody() []byte {
	var buf bytes.Buffer
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], b.EpochNumber)
	buf.Write(u32[:])
	buf.WriteByte(b.PrimaryDelegate)
	binary.BigEndian.PutUint32(u32[:], b.Sequence)
	buf.Write(u32[:])
	writeHash(&buf, b.Previous)
	if b.LastMicroBlock {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	for _, t := range b.Tips {
		writeTip(&buf, t)
	}
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], b.NumberBatchBlocks)
	buf.Write(u64[:])
	return buf.Bytes()
}

// Marshal encodes the full on-wire/on-disk representation of b.
func (b *MicroBlock) Marshal() []byte {
	var buf bytes.Buffer
	writeHash(&buf, b.Hash)
	buf.Write(b.MarshalSigningBody())
	writeBytesLP(&buf, b.AggSignature)
	return buf.Bytes()
}

// UnmarshalMicroBlock decodes bytes produced by (*MicroBlock).Marshal.
func UnmarshalMicroBlock(data []byte) (*MicroBlock, error) {
	r := bytes.NewReader(data)
	b := &MicroBlock{}
	var err error
	if b.Hash, err = readHash(r); err != nil {
		return nil, fmt.Errorf("mb: hash: %w", err)
	}
	var u32 [4]byte
	if _, err = io.ReadFull(r, u32[:]); err != nil {
		return nil, fmt.Errorf("mb: epoch: %w", err)
	}
	b.EpochNumber = binary.BigEndian.Uint32(u32[:])
	var delByte [1]byte
	if _, err = io.ReadFull(r, delByte[:]); err != nil {
		return nil, fmt.Errorf("mb: delegate: %w", err)
	}
	b.PrimaryDelegate = delByte[0]
	if _, err = io.ReadFull(r, u32[:]); err != nil {
		return nil, fmt.Errorf("mb: sequence: %w", err)
	}
	b.Sequence = binary.BigEndian.Uint32(u32[:])
	if b.Previous, err = readHash(r); err != nil {
		return nil, fmt.Errorf("mb: previous: %w", err)
	}
	var flag [1]byte
	if _, err = io.ReadFull(r, flag[:]); err != nil {
		return nil, fmt.Errorf("mb: last_micro_block: %w", err)
	}
	b.LastMicroBlock = flag[0] != 0
	for i := range b.Tips {
		if b.Tips[i], err = readTip(r); err != nil {
			return nil, fmt.Errorf("mb: tips[%d]: %w", i, err)
		}
	}
	var u64 [8]byte
	if _, err = io.ReadFull(r, u64[:]); err != nil {
		return nil, fmt.Errorf("mb: number_batch_blocks: %w", err)
	}
	b.NumberBatchBlocks = binary.BigEndian.Uint64(u64[:])
	if b.AggSignature, err = readBytesLP(r); err != nil {
		return nil, fmt.Errorf("mb: agg_signature: %w", err)
	}
	return b, nil
}

// MarshalSigningBody returns the bytes covered by an epoch block's
// aggregate signature.
func (b *EpochBlock) MarshalSigningBody() []byte {
	var buf bytes.Buffer
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], b.EpochNumber)
	buf.Write(u32[:])
	buf.WriteByte(b.PrimaryDelegate)
	binary.BigEndian.PutUint32(u32[:], b.Sequence)
	buf.Write(u32[:])
	writeHash(&buf, b.Previous)
	writeTip(&buf, b.MicroBlockTip)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], b.TotalRBs)
	buf.Write(u64[:])
	buf.Write(b.TotalSupply[:])
	buf.Write(b.TransactionFeePool[:])
	for _, d := range b.Delegates {
		writeHash(&buf, d.Account)
		writeBytesLP(&buf, d.ConsensusKey)
		writeBytesLP(&buf, d.EciesKey)
		binary.BigEndian.PutUint64(u64[:], d.VoteWeight)
		buf.Write(u64[:])
		binary.BigEndian.PutUint64(u64[:], d.Stake)
		buf.Write(u64[:])
		binary.BigEndian.PutUint32(u32[:], d.StartingTerm)
		buf.Write(u32[:])
	}
	if b.IsExtension {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// Marshal encodes the full on-wire/on-disk representation of b.
func (b *EpochBlock) Marshal() []byte {
	var buf bytes.Buffer
	writeHash(&buf, b.Hash)
	buf.Write(b.MarshalSigningBody())
	writeBytesLP(&buf, b.AggSignature)
	return buf.Bytes()
}

// UnmarshalEpochBlock decodes bytes produced by (*EpochBlock).Marshal.
func UnmarshalEpochBlock(data []byte) (*EpochBlock, error) {
	r := bytes.NewReader(data)
	b := &EpochBlock{}
	var err error
	if b.Hash, err = readHash(r); err != nil {
		return nil, fmt.Errorf("eb: hash: %w", err)
	}
	var u32 [4]byte
	if _, err = io.ReadFull(r, u32[:]); err != nil {
		return nil, fmt.Errorf("eb: epoch: %w", err)
	}
	b.EpochNumber = binary.BigEndian.Uint32(u32[:])
	var delByte [1]byte
	if _, err = io.ReadFull(r, delByte[:]); err != nil {
		return nil, fmt.Errorf("eb: delegate: %w", err)
	}
	b.PrimaryDelegate = delByte[0]
	if _, err = io.ReadFull(r, u32[:]); err != nil {
		return nil, fmt.Errorf("eb: sequence: %w", err)
	}
	b.Sequence = binary.BigEndian.Uint32(u32[:])
	if b.Previous, err = readHash(r); err != nil {
		return nil, fmt.Errorf("eb: previous: %w", err)
	}
	if b.MicroBlockTip, err = readTip(r); err != nil {
		return nil, fmt.Errorf("eb: micro_block_tip: %w", err)
	}
	var u64 [8]byte
	if _, err = io.ReadFull(r, u64[:]); err != nil {
		return nil, fmt.Errorf("eb: total_rbs: %w", err)
	}
	b.TotalRBs = binary.BigEndian.Uint64(u64[:])
	if _, err = io.ReadFull(r, b.TotalSupply[:]); err != nil {
		return nil, fmt.Errorf("eb: total_supply: %w", err)
	}
	if _, err = io.ReadFull(r, b.TransactionFeePool[:]); err != nil {
		return nil, fmt.Errorf("eb: transaction_fee_pool: %w", err)
	}
	for i := range b.Delegates {
		d := &b.Delegates[i]
		if d.Account, err = readHash(r); err != nil {
			return nil, fmt.Errorf("eb: delegates[%d].account: %w", i, err)
		}
		if d.ConsensusKey, err = readBytesLP(r); err != nil {
			return nil, fmt.Errorf("eb: delegates[%d].consensus_key: %w", i, err)
		}
		if d.EciesKey, err = readBytesLP(r); err != nil {
			return nil, fmt.Errorf("eb: delegates[%d].ecies_key: %w", i, err)
		}
		if _, err = io.ReadFull(r, u64[:]); err != nil {
			return nil, fmt.Errorf("eb: delegates[%d].vote_weight: %w", i, err)
		}
		d.VoteWeight = binary.BigEndian.Uint64(u64[:])
		if _, err = io.ReadFull(r, u64[:]); err != nil {
			return nil, fmt.Errorf("eb: delegates[%d].stake: %w", i, err)
		}
		d.Stake = binary.BigEndian.Uint64(u64[:])
		if _, err = io.ReadFull(r, u32[:]); err != nil {
			return nil, fmt.Errorf("eb: delegates[%d].starting_term: %w", i, err)
		}
		d.StartingTerm = binary.BigEndian.Uint32(u32[:])
	}
	var flag [1]byte
	if _, err = io.ReadFull(r, flag[:]); err != nil {
		return nil, fmt.Errorf("eb: is_extension: %w", err)
	}
	b.IsExtension = flag[0] != 0
	if b.AggSignature, err = readBytesLP(r); err != nil {
		return nil, fmt.Errorf("eb: agg_signature: %w", err)
	}
	return b, nil
}
