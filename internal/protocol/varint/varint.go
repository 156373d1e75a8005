// Package varint implements the base-128 varint and zigzag primitives used by
// the Thrift Compact protocol.
package varint

import (
	"encoding/binary"
	"errors"
)

// MaxLen64 is the longest valid encoding of a 64-bit value.
const MaxLen64 = 10

var (
	ErrTruncated = errors.New("varint: truncated")
	ErrOverflow  = errors.New("varint: overflow")
)

// Uvarint decodes one varint from the start of b and returns the value and
// the number of bytes consumed. Bytes are 7-bit groups, least significant
// first, with the high bit set on every byte except the last.
func Uvarint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < MaxLen64; i++ {
		if i >= len(b) {
			return 0, 0, ErrTruncated
		}
		c := b[i]
		// The tenth byte holds only bit 63.
		if i == MaxLen64-1 && c > 1 {
			return 0, 0, ErrOverflow
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrOverflow
}

// AppendUvarint appends the varint encoding of v to dst.
func AppendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// ZigZag64 maps signed values onto unsigned ones so that small magnitudes
// stay short: 0, -1, 1, -2 -> 0, 1, 2, 3.
func ZigZag64(n int64) uint64 {
	return uint64(n<<1) ^ uint64(n>>63)
}

// UnZigZag64 reverses ZigZag64.
func UnZigZag64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func ZigZag32(n int32) uint32 {
	return uint32(n<<1) ^ uint32(n>>31)
}

func UnZigZag32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}
