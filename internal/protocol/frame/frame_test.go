package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/danmuck/thriftsniff/internal/testutil/testlog"
)

// ping is a Binary-protocol call "ping" with seq id 7 and an empty field list.
var ping = []byte{
	0x80, 0x01, 0x00, 0x01,
	0x00, 0x00, 0x00, 0x04, 'p', 'i', 'n', 'g',
	0x00, 0x00, 0x00, 0x07,
	0x00,
}

func TestStripPassThrough(t *testing.T) {
	testlog.Start(t)
	res, err := Strip(ping)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if res.Kind != KindNone || !bytes.Equal(res.Payload, ping) || res.Offset != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestStripUnknownBytesPassThrough(t *testing.T) {
	testlog.Start(t)
	in := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	res, err := Strip(in)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if res.Kind != KindNone || !bytes.Equal(res.Payload, in) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestStripFramed(t *testing.T) {
	testlog.Start(t)
	framed := append(WrapFramed(ping), 0xaa, 0xbb)
	res, err := Strip(framed)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if res.Kind != KindFramed {
		t.Fatalf("unexpected kind: %s", res.Kind)
	}
	if !bytes.Equal(res.Payload, ping) {
		t.Fatalf("unexpected payload: %x", res.Payload)
	}
	if res.Partial || res.Trailing != 2 || res.Offset != 4 {
		t.Fatalf("unexpected framing info: %+v", res)
	}
}

func TestStripFramedPartial(t *testing.T) {
	testlog.Start(t)
	framed := WrapFramed(ping)
	cut := framed[:len(framed)-3]
	res, err := Strip(cut)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if !res.Partial {
		t.Fatalf("expected partial frame")
	}
	if !bytes.Equal(res.Payload, ping[:len(ping)-3]) {
		t.Fatalf("unexpected payload: %x", res.Payload)
	}
}

func TestStripTHeaderBinary(t *testing.T) {
	testlog.Start(t)
	wrapped := WrapTHeader(ping, THeaderOptions{
		SeqID:   99,
		Headers: map[string]string{"caller": "volo-example", "env": "test"},
	})
	if wrapped[4] != 0x0f || wrapped[5] != 0xff {
		t.Fatalf("missing theader magic: %x", wrapped[:6])
	}
	res, err := Strip(wrapped)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if res.Kind != KindTHeader {
		t.Fatalf("unexpected kind: %s", res.Kind)
	}
	if !bytes.Equal(res.Payload, ping) {
		t.Fatalf("unexpected payload: %x", res.Payload)
	}
	if res.THeader == nil || res.THeader.SeqID != 99 || res.THeader.ProtocolID != uint64(ProtocolBinary) {
		t.Fatalf("unexpected header info: %+v", res.THeader)
	}
	if res.THeader.Headers["caller"] != "volo-example" || res.THeader.Headers["env"] != "test" {
		t.Fatalf("unexpected info headers: %+v", res.THeader.Headers)
	}
	if res.Partial || res.Trailing != 0 {
		t.Fatalf("unexpected framing info: %+v", res)
	}
}

func TestStripTHeaderCompactProtocolID(t *testing.T) {
	testlog.Start(t)
	compact := []byte{0x82, 0x21, 0x0e, 0x04, 'p', 'i', 'n', 'g', 0x00}
	wrapped := WrapTHeader(compact, THeaderOptions{ProtocolID: ProtocolCompact})
	res, err := Strip(wrapped)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if !bytes.Equal(res.Payload, compact) {
		t.Fatalf("unexpected payload: %x", res.Payload)
	}
}

func TestStripTHeaderScansPastPadding(t *testing.T) {
	testlog.Start(t)
	wrapped := WrapTHeader(ping, THeaderOptions{})
	// Claim one fewer header word so the scan has to walk over padding.
	words := binary.BigEndian.Uint16(wrapped[12:14])
	binary.BigEndian.PutUint16(wrapped[12:14], words-1)
	res, err := Strip(wrapped)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if !bytes.Equal(res.Payload, ping) {
		t.Fatalf("unexpected payload: %x", res.Payload)
	}
}

func TestStripTHeaderTruncated(t *testing.T) {
	testlog.Start(t)
	wrapped := WrapTHeader(ping, THeaderOptions{})
	_, err := Strip(wrapped[:10])
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}

	huge := append([]byte(nil), wrapped...)
	binary.BigEndian.PutUint16(huge[12:14], 0x4000)
	_, err = Strip(huge)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for oversized header, got %v", err)
	}
}

func TestStripTHeaderNoMarker(t *testing.T) {
	testlog.Start(t)
	wrapped := WrapTHeader([]byte{0x01, 0x02, 0x03, 0x04}, THeaderOptions{})
	_, err := Strip(wrapped)
	if !errors.Is(err, ErrUnrecognizedEnvelope) {
		t.Fatalf("expected ErrUnrecognizedEnvelope, got %v", err)
	}
}

func TestHasMessageMarker(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in   []byte
		want bool
	}{
		{[]byte{0x80, 0x01}, true},
		{[]byte{0x82, 0x21}, true},
		{[]byte{0x82, 0x41}, true},
		{[]byte{0x82, 0x02}, false},
		{[]byte{0x80, 0x02}, false},
		{[]byte{0x80}, false},
	}
	for _, tc := range cases {
		if got := HasMessageMarker(tc.in); got != tc.want {
			t.Fatalf("HasMessageMarker(%x) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestStripShortEnvelopePrefixIsTruncated(t *testing.T) {
	testlog.Start(t)
	for name, full := range map[string][]byte{
		"framed":  WrapFramed(ping),
		"theader": WrapTHeader(ping, THeaderOptions{}),
	} {
		for _, n := range []int{4, 5} {
			if _, err := Strip(full[:n]); !errors.Is(err, ErrTruncated) {
				t.Fatalf("%s prefix %d: expected ErrTruncated, got %v", name, n, err)
			}
		}
	}

	// Five bytes whose last byte cannot start an envelope pass through.
	in := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	res, err := Strip(in)
	if err != nil || res.Kind != KindNone {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
}
