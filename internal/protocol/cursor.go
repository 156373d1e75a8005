package protocol

import (
	"encoding/binary"
	"math"

	"github.com/danmuck/thriftsniff/internal/protocol/varint"
)

// Cursor is a read position over an immutable buffer. Every read is bounds
// checked; the position only moves forward and never passes len(buf).
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

func (c *Cursor) Offset() int {
	return c.pos
}

func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

func (c *Cursor) Exhausted() bool {
	return c.pos >= len(c.buf)
}

// Next returns the next n bytes without copying.
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, ErrTruncated
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrTruncated
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadDoubleLE reads a little-endian IEEE 754 double (Compact encoding).
func (c *Cursor) ReadDoubleLE() (float64, error) {
	b, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadUvarint reads one varint; the cursor does not move on failure.
func (c *Cursor) ReadUvarint() (uint64, error) {
	v, n, err := varint.Uvarint(c.buf[c.pos:])
	if err != nil {
		return 0, mapVarintErr(err)
	}
	c.pos += n
	return v, nil
}

// ReadZigZag32 reads a zigzag varint that must fit in 32 bits.
func (c *Cursor) ReadZigZag32() (int32, error) {
	u, err := c.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, ErrVarintOverflow
	}
	return varint.UnZigZag32(uint32(u)), nil
}

func (c *Cursor) ReadZigZag64() (int64, error) {
	u, err := c.ReadUvarint()
	if err != nil {
		return 0, err
	}
	return varint.UnZigZag64(u), nil
}
