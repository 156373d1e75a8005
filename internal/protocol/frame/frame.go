package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/danmuck/thriftsniff/internal/protocol/varint"
)

const (
	// THeaderMagic occupies bytes 4..5 of a THeader frame.
	THeaderMagic   uint16 = 0x0FFF
	THeaderBaseLen        = 14

	// THeader protocol ids.
	ProtocolBinary  uint8 = 0
	ProtocolCompact uint8 = 2

	binaryMarker       byte = 0x80
	binaryVersion      byte = 0x01
	compactMarker      byte = 0x82
	compactVersion     byte = 0x01
	compactVersionMask byte = 0x1f

	infoKeyValue uint64 = 1
)

var (
	ErrTruncated            = errors.New("frame: truncated envelope")
	ErrUnrecognizedEnvelope = errors.New("frame: wrapped message not found")
)

// Kind names the transport envelope found around a message.
type Kind int

const (
	KindNone Kind = iota
	KindFramed
	KindTHeader
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFramed:
		return "framed"
	case KindTHeader:
		return "theader"
	default:
		return "unknown"
	}
}

// THeaderInfo is the part of a THeader envelope that could be interpreted.
// Only the fixed fields are guaranteed; the rest is best effort.
type THeaderInfo struct {
	Flags       uint16
	SeqID       uint32
	HeaderWords uint16
	ProtocolID  uint64
	Transforms  []uint64
	Headers     map[string]string
}

// Result is the outcome of stripping one payload.
type Result struct {
	Kind        Kind
	Payload     []byte
	Offset      int
	DeclaredLen uint32
	Partial     bool
	Trailing    int
	THeader     *THeaderInfo
}

// HasMessageMarker reports whether b starts with a Binary (0x8001) or
// Compact (0x82, version 1) message header.
func HasMessageMarker(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	if b[0] == binaryMarker && b[1] == binaryVersion {
		return true
	}
	return b[0] == compactMarker && b[1]&compactVersionMask == compactVersion
}

// Strip removes an optional THeader or framed-transport envelope. Buffers
// that carry neither are passed through unchanged.
func Strip(buf []byte) (Result, error) {
	if HasMessageMarker(buf) {
		return Result{Kind: KindNone, Payload: buf}, nil
	}
	if envelopePrefix(buf) {
		return Result{}, ErrTruncated
	}
	if len(buf) >= 6 && binary.BigEndian.Uint16(buf[4:6]) == THeaderMagic {
		return stripTHeader(buf)
	}
	if len(buf) > 4 && HasMessageMarker(buf[4:]) {
		return stripFramed(buf), nil
	}
	return Result{Kind: KindNone, Payload: buf}, nil
}

// envelopePrefix reports whether buf is too short to show an envelope
// header yet could still be the start of one: a bare 4-byte length, or a
// length followed by the first byte of the THeader magic or of a message
// marker.
func envelopePrefix(buf []byte) bool {
	switch len(buf) {
	case 4:
		return true
	case 5:
		b := buf[4]
		return b == byte(THeaderMagic>>8) || b == binaryMarker || b == compactMarker
	}
	return false
}

func stripFramed(buf []byte) Result {
	declared := binary.BigEndian.Uint32(buf[0:4])
	avail := uint64(len(buf) - 4)
	res := Result{Kind: KindFramed, Offset: 4, DeclaredLen: declared}
	if uint64(declared) > avail {
		res.Partial = true
		res.Payload = buf[4:]
		return res
	}
	end := 4 + int(declared)
	res.Payload = buf[4:end]
	res.Trailing = len(buf) - end
	return res
}

func stripTHeader(buf []byte) (Result, error) {
	if len(buf) < THeaderBaseLen {
		return Result{}, ErrTruncated
	}
	info := &THeaderInfo{
		Flags:       binary.BigEndian.Uint16(buf[6:8]),
		SeqID:       binary.BigEndian.Uint32(buf[8:12]),
		HeaderWords: binary.BigEndian.Uint16(buf[12:14]),
	}
	total := THeaderBaseLen + int(info.HeaderWords)*4
	if total >= len(buf) {
		return Result{}, ErrTruncated
	}
	parseInfo(buf[THeaderBaseLen:total], info)

	marker := binaryMarker
	if info.ProtocolID == uint64(ProtocolCompact) {
		marker = compactMarker
	}
	idx := bytes.IndexByte(buf[total:], marker)
	if idx < 0 {
		return Result{}, ErrUnrecognizedEnvelope
	}
	start := total + idx

	declared := binary.BigEndian.Uint32(buf[0:4])
	res := Result{Kind: KindTHeader, Offset: start, DeclaredLen: declared, THeader: info}
	end := len(buf)
	if frameEnd := 4 + uint64(declared); frameEnd <= uint64(len(buf)) {
		end = int(frameEnd)
		res.Trailing = len(buf) - end
	} else {
		res.Partial = true
	}
	if start >= end {
		return Result{}, ErrUnrecognizedEnvelope
	}
	res.Payload = buf[start:end]
	return res, nil
}

type infoReader struct {
	b   []byte
	pos int
}

func (r *infoReader) uvarint() (uint64, bool) {
	v, n, err := varint.Uvarint(r.b[r.pos:])
	if err != nil {
		return 0, false
	}
	r.pos += n
	return v, true
}

func (r *infoReader) str() (string, bool) {
	n, ok := r.uvarint()
	if !ok || n > uint64(len(r.b)-r.pos) {
		return "", false
	}
	s := string(r.b[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, true
}

// parseInfo fills protocol id, transforms and key/value headers. It stops
// silently at the first thing it cannot interpret.
func parseInfo(hdr []byte, info *THeaderInfo) {
	r := &infoReader{b: hdr}
	proto, ok := r.uvarint()
	if !ok {
		return
	}
	info.ProtocolID = proto
	count, ok := r.uvarint()
	if !ok {
		return
	}
	for i := uint64(0); i < count; i++ {
		id, ok := r.uvarint()
		if !ok {
			return
		}
		info.Transforms = append(info.Transforms, id)
	}
	for r.pos < len(r.b) {
		kind, ok := r.uvarint()
		if !ok || kind != infoKeyValue {
			return
		}
		pairs, ok := r.uvarint()
		if !ok {
			return
		}
		for i := uint64(0); i < pairs; i++ {
			k, ok := r.str()
			if !ok {
				return
			}
			v, ok := r.str()
			if !ok {
				return
			}
			if info.Headers == nil {
				info.Headers = make(map[string]string)
			}
			info.Headers[k] = v
		}
	}
}

// WrapFramed prefixes msg with its 4-byte big-endian length.
func WrapFramed(msg []byte) []byte {
	out := make([]byte, 4, 4+len(msg))
	binary.BigEndian.PutUint32(out, uint32(len(msg)))
	return append(out, msg...)
}

// THeaderOptions controls WrapTHeader.
type THeaderOptions struct {
	Flags      uint16
	SeqID      uint32
	ProtocolID uint8
	Headers    map[string]string
}

// WrapTHeader builds a THeader envelope around msg, padding the header
// block to a whole number of 4-byte words.
func WrapTHeader(msg []byte, opts THeaderOptions) []byte {
	hdr := varint.AppendUvarint(nil, uint64(opts.ProtocolID))
	hdr = varint.AppendUvarint(hdr, 0)
	if len(opts.Headers) > 0 {
		keys := make([]string, 0, len(opts.Headers))
		for k := range opts.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		hdr = varint.AppendUvarint(hdr, infoKeyValue)
		hdr = varint.AppendUvarint(hdr, uint64(len(keys)))
		for _, k := range keys {
			hdr = appendString(hdr, k)
			hdr = appendString(hdr, opts.Headers[k])
		}
	}
	for len(hdr)%4 != 0 {
		hdr = append(hdr, 0)
	}

	out := make([]byte, THeaderBaseLen, THeaderBaseLen+len(hdr)+len(msg))
	binary.BigEndian.PutUint32(out[0:4], uint32(THeaderBaseLen-4+len(hdr)+len(msg)))
	binary.BigEndian.PutUint16(out[4:6], THeaderMagic)
	binary.BigEndian.PutUint16(out[6:8], opts.Flags)
	binary.BigEndian.PutUint32(out[8:12], opts.SeqID)
	binary.BigEndian.PutUint16(out[12:14], uint16(len(hdr)/4))
	out = append(out, hdr...)
	return append(out, msg...)
}

func appendString(dst []byte, s string) []byte {
	dst = varint.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}
