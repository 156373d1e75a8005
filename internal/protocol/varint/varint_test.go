package varint

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestZigZagRoundTrip64(t *testing.T) {
	samples := []int64{0, -1, 1, -2, 2, 63, -64, 300, -300, math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64}
	for _, n := range samples {
		buf := AppendUvarint(nil, ZigZag64(n))
		u, used, err := Uvarint(buf)
		if err != nil {
			t.Fatalf("decode %d: %v", n, err)
		}
		if used != len(buf) {
			t.Fatalf("decode %d: consumed %d of %d bytes", n, used, len(buf))
		}
		if got := UnZigZag64(u); got != n {
			t.Fatalf("round trip %d: got %d", n, got)
		}
	}
}

func TestZigZagRoundTrip32(t *testing.T) {
	samples := []int32{0, -1, 1, -5, 7, 1024, math.MaxInt32, math.MinInt32}
	for _, n := range samples {
		buf := AppendUvarint(nil, uint64(ZigZag32(n)))
		u, _, err := Uvarint(buf)
		if err != nil {
			t.Fatalf("decode %d: %v", n, err)
		}
		if u > math.MaxUint32 {
			t.Fatalf("decode %d: value %d exceeds 32 bits", n, u)
		}
		if got := UnZigZag32(uint32(u)); got != n {
			t.Fatalf("round trip %d: got %d", n, got)
		}
	}
}

func TestZigZagKnownValues(t *testing.T) {
	cases := map[int64]uint64{0: 0, -1: 1, 1: 2, -2: 3, 2: 4, -5: 9}
	for in, want := range cases {
		if got := ZigZag64(in); got != want {
			t.Fatalf("zigzag(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestUvarintMultiByte(t *testing.T) {
	v, n, err := Uvarint([]byte{0xac, 0x02, 0xff})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v != 300 || n != 2 {
		t.Fatalf("unexpected decode: v=%d n=%d", v, n)
	}
}

func TestUvarintTruncated(t *testing.T) {
	for _, in := range [][]byte{nil, {0x80}, {0xff, 0xff}} {
		if _, _, err := Uvarint(in); !errors.Is(err, ErrTruncated) {
			t.Fatalf("input %x: expected ErrTruncated, got %v", in, err)
		}
	}
}

func TestUvarintOverflow(t *testing.T) {
	in := make([]byte, MaxLen64+1)
	for i := range in {
		in[i] = 0x80
	}
	if _, _, err := Uvarint(in); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestUvarintMaxUint64(t *testing.T) {
	buf := AppendUvarint(nil, math.MaxUint64)
	if len(buf) != MaxLen64 {
		t.Fatalf("unexpected encoded length: %d", len(buf))
	}
	v, n, err := Uvarint(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v != math.MaxUint64 || n != MaxLen64 {
		t.Fatalf("unexpected decode: v=%d n=%d", v, n)
	}
}

func TestUvarintTenthByteOverflow(t *testing.T) {
	in := bytes.Repeat([]byte{0xff}, MaxLen64-1)
	for _, last := range []byte{0x02, 0x7f} {
		if _, _, err := Uvarint(append(append([]byte{}, in...), last)); !errors.Is(err, ErrOverflow) {
			t.Fatalf("last byte %#x: expected ErrOverflow, got %v", last, err)
		}
	}
	v, n, err := Uvarint(append(append([]byte{}, in...), 0x01))
	if err != nil || v != math.MaxUint64 || n != MaxLen64 {
		t.Fatalf("unexpected decode: v=%d n=%d err=%v", v, n, err)
	}
}
