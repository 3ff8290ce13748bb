// Package stream provides the byte cursor every wire decoder in this
// module reads from. It replaces the teacher's panic-prone
// index-past-the-end reads with offset-tracked, error-returning ones, so
// a truncated or malformed field surfaces as a bgp.WireError carrying the
// offset it failed at (spec.md §4.1).
package stream

import (
	"encoding/binary"

	"bgpd/bgp"
)

// Cursor reads sequentially through a byte slice, tracking how far in it is.
type Cursor struct {
	buf []byte
	pos int
}

// New wraps b in a Cursor starting at offset 0.
func New(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Pos returns the current offset from the start of the buffer.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns how many bytes are left to read.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Rest returns every remaining byte without consuming it.
func (c *Cursor) Rest() []byte { return c.buf[c.pos:] }

// Bytes consumes and returns the next n bytes.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, bgp.NewWireError(c.pos, "unexpected end of buffer")
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Byte consumes and returns the next single byte.
func (c *Cursor) Byte() (byte, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 consumes and returns the next 2 bytes, big-endian.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 consumes and returns the next 4 bytes, big-endian.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// PutUint16 appends v to dst, big-endian.
func PutUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// PutUint32 appends v to dst, big-endian.
func PutUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}
