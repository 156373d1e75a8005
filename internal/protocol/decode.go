package protocol

import (
	"github.com/danmuck/thriftsniff/internal/protocol/frame"
)

// DefaultMaxDepth bounds container nesting during decode.
const DefaultMaxDepth = 64

// SeqIDEncoding selects how the Compact header carries the sequence id.
type SeqIDEncoding int

const (
	// SeqIDZigZag reads the seq id as a zigzag varint.
	SeqIDZigZag SeqIDEncoding = iota
	// SeqIDVarint reads the seq id as a plain unsigned varint, as Apache
	// Thrift writes it.
	SeqIDVarint
)

func (e SeqIDEncoding) String() string {
	if e == SeqIDVarint {
		return "varint"
	}
	return "zigzag"
}

// ParseSeqIDEncoding accepts "zigzag" or "varint"; empty means zigzag.
func ParseSeqIDEncoding(s string) (SeqIDEncoding, bool) {
	switch s {
	case "", "zigzag":
		return SeqIDZigZag, true
	case "varint":
		return SeqIDVarint, true
	default:
		return SeqIDZigZag, false
	}
}

// Options tune decoding and encoding.
type Options struct {
	MaxDepth int
	// RequireStop rejects a top-level field list that runs out of bytes
	// before its STOP byte. Nested structs always require STOP.
	RequireStop  bool
	CompactSeqID SeqIDEncoding
}

func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth}
}

// Decoder turns captured payloads into Messages. It holds no per-payload
// state and is safe for concurrent use.
type Decoder struct {
	opts Options
}

func NewDecoder(opts Options) *Decoder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Decoder{opts: opts}
}

func (d *Decoder) Options() Options {
	return d.opts
}

var defaultDecoder = NewDecoder(DefaultOptions())

// Decode decodes payload with the default options.
func Decode(payload []byte) (*Message, error) {
	return defaultDecoder.Decode(payload)
}

// Decode strips any transport envelope, detects the protocol variant and
// decodes one message. Once the variant is known the returned Message is
// non-nil even on error and holds everything decoded before the failure.
func (d *Decoder) Decode(payload []byte) (*Message, error) {
	env, err := frame.Strip(payload)
	if err != nil {
		return nil, &DecodeError{Stage: StageEnvelope, Err: mapFrameErr(err)}
	}

	variant, err := Detect(env.Payload)
	if err != nil {
		return nil, &DecodeError{Stage: StageDetect, Offset: env.Offset, Err: err}
	}

	msg := &Message{
		Envelope: env.Kind,
		THeader:  env.THeader,
		Partial:  env.Partial,
		Trailing: env.Trailing,
		Variant:  variant,
	}
	c := NewCursor(env.Payload)
	if err := readMessageHeader(c, msg, d.opts); err != nil {
		return msg, &DecodeError{Stage: StageHeader, Offset: env.Offset + c.Offset(), Err: err}
	}

	r := &valueReader{c: c, variant: variant, maxDepth: d.opts.MaxDepth}
	fields, err := r.readFields(true, d.opts.RequireStop)
	msg.Fields = fields
	if err != nil {
		return msg, &DecodeError{Stage: StageFields, Offset: env.Offset + c.Offset(), Err: err}
	}
	return msg, nil
}
