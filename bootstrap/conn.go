package bootstrap

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

func putBE32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func beUint32(b []byte) uint32   { return binary.BigEndian.Uint32(b) }

// readDeadline bounds how long Conn.ReadHeader and Conn.ReadBlockFrame
// wait for a peer,
// mirroring network/peer.go's 30-second stall guard.
const readDeadline = 30 * time.Second

// Conn wraps one bootstrap TCP connection. Unlike the teacher's
// network.Peer (length-prefixed JSON), frames here are the bit-exact
// binary messages of spec.md §6.1: an 8-byte header followed by a
// fixed-size payload whose length the caller already knows from the
// message type.
type Conn struct {
	Addr string

	conn   net.Conn
	mu     sync.Mutex
	closed bool
}

// Dial connects to addr, optionally over TLS.
func Dial(addr string, tlsCfg *tls.Config) (*Conn, error) {
	var c net.Conn
	var err error
	if tlsCfg != nil {
		c, err = tls.Dial("tcp", addr, tlsCfg)
	} else {
		c, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap: dial %s: %w", addr, err)
	}
	return &Conn{Addr: addr, conn: c}, nil
}

// Accept wraps an already-accepted connection.
func Accept(raw net.Conn) *Conn {
	return &Conn{Addr: raw.RemoteAddr().String(), conn: raw}
}

// SendMessage writes a header of the given type followed by payload.
func (c *Conn) SendMessage(msgType uint8, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("bootstrap: connection to %s closed", c.Addr)
	}
	if err := writeHeader(c.conn, defaultHeader(msgType)); err != nil {
		return err
	}
	_, err := c.conn.Write(payload)
	return err
}

// ReadHeader reads the next 8-byte message header.
func (c *Conn) ReadHeader() (Header, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	return readHeader(c.conn)
}

// ReadPayload reads exactly n bytes following a header.
func (c *Conn) ReadPayload(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// SendBlockFrame writes one block-carrying stream frame: type byte,
// 4-byte big-endian length, then the block's binary encoding. Block
// payloads are variable length (a variable number of requests, a
// variable-length aggregate signature) so, unlike the idealized
// fixed-size-per-kind framing of spec.md §6.1, each frame here is
// self-describing via this length prefix.
func (c *Conn) SendBlockFrame(frameType uint8, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("bootstrap: connection to %s closed", c.Addr)
	}
	var header [5]byte
	header[0] = frameType
	putBE32(header[1:], uint32(len(payload)))
	if _, err := c.conn.Write(header[:]); err != nil {
		return err
	}
	_, err := c.conn.Write(payload)
	return err
}

// SendNotABlock writes the stream terminator frame: a lone type byte.
func (c *Conn) SendNotABlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("bootstrap: connection to %s closed", c.Addr)
	}
	_, err := c.conn.Write([]byte{FrameNotABlock})
	return err
}

// ReadBlockFrame reads one stream frame and returns its type and
// payload (payload is nil for not_a_block).
func (c *Conn) ReadBlockFrame() (uint8, []byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	var t [1]byte
	if _, err := io.ReadFull(c.conn, t[:]); err != nil {
		return 0, nil, err
	}
	if t[0] == FrameNotABlock {
		return t[0], nil, nil
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := beUint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return 0, nil, err
	}
	return t[0], payload, nil
}

// Close terminates the connection. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.conn.Close()
	}
}
