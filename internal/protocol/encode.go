package protocol

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/danmuck/thriftsniff/internal/protocol/varint"
)

var ErrNilMessage = errors.New("protocol: nil message")

// Encoder writes Messages in their Variant's wire format. The output has no
// transport envelope; see frame.WrapFramed and frame.WrapTHeader.
type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

var defaultEncoder = NewEncoder(DefaultOptions())

// Encode encodes msg with the default options.
func Encode(msg *Message) ([]byte, error) {
	return defaultEncoder.Encode(msg)
}

func (e *Encoder) Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	w := &writer{variant: msg.Variant, buf: make([]byte, 0, 64)}
	switch msg.Variant {
	case VariantBinary:
		w.buf = binary.BigEndian.AppendUint32(w.buf, binaryVersion1|uint32(msg.Kind))
		w.appendBinaryBytes([]byte(msg.Method))
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(msg.SeqID))
	case VariantCompact:
		w.buf = append(w.buf, compactMarker, byte(msg.Kind)<<compactTypeShift|compactVersion)
		if e.opts.CompactSeqID == SeqIDVarint {
			w.buf = varint.AppendUvarint(w.buf, uint64(uint32(msg.SeqID)))
		} else {
			w.buf = varint.AppendUvarint(w.buf, uint64(varint.ZigZag32(msg.SeqID)))
		}
		w.appendCompactBytes([]byte(msg.Method))
	default:
		return nil, ErrUnsupportedVersion
	}
	if err := w.writeFields(msg.Fields); err != nil {
		return nil, err
	}
	return w.buf, nil
}

type writer struct {
	variant Variant
	buf     []byte
}

func (w *writer) writeFields(fields []Field) error {
	var lastID int16
	for _, f := range fields {
		t := f.Value.Type
		if !t.valid() {
			return ErrUnsupportedFieldType
		}
		if w.variant == VariantBinary {
			w.buf = append(w.buf, byte(t))
			w.buf = binary.BigEndian.AppendUint16(w.buf, f.ID)
			if err := w.writeValue(f.Value); err != nil {
				return err
			}
			continue
		}

		ct := typeToCompact(t)
		if t == TypeBool && !f.Value.Bool {
			ct = compactBoolFalse
		}
		id := int16(f.ID)
		if delta := int(id) - int(lastID); delta > 0 && delta <= 15 {
			w.buf = append(w.buf, byte(delta)<<4|ct)
		} else {
			w.buf = append(w.buf, ct)
			w.buf = varint.AppendUvarint(w.buf, uint64(varint.ZigZag32(int32(id))))
		}
		lastID = id
		if t == TypeBool {
			continue
		}
		if err := w.writeValue(f.Value); err != nil {
			return err
		}
	}
	w.buf = append(w.buf, byte(TypeStop))
	return nil
}

func (w *writer) writeValue(v Value) error {
	compact := w.variant == VariantCompact
	switch v.Type {
	case TypeBool:
		switch {
		case compact && v.Bool:
			w.buf = append(w.buf, compactBoolTrue)
		case compact:
			w.buf = append(w.buf, compactBoolFalse)
		case v.Bool:
			w.buf = append(w.buf, 1)
		default:
			w.buf = append(w.buf, 0)
		}
	case TypeByte:
		w.buf = append(w.buf, byte(v.Byte))
	case TypeI16:
		if compact {
			w.appendZigZag32(int32(v.I16))
		} else {
			w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v.I16))
		}
	case TypeI32:
		if compact {
			w.appendZigZag32(v.I32)
		} else {
			w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v.I32))
		}
	case TypeI64:
		if compact {
			w.buf = varint.AppendUvarint(w.buf, varint.ZigZag64(v.I64))
		} else {
			w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v.I64))
		}
	case TypeDouble:
		bits := math.Float64bits(v.Double)
		if compact {
			w.buf = binary.LittleEndian.AppendUint64(w.buf, bits)
		} else {
			w.buf = binary.BigEndian.AppendUint64(w.buf, bits)
		}
	case TypeString:
		raw := v.Bytes
		if raw == nil {
			raw = []byte(v.String)
		}
		if compact {
			w.appendCompactBytes(raw)
		} else {
			w.appendBinaryBytes(raw)
		}
	case TypeStruct:
		return w.writeFields(v.Fields)
	case TypeList, TypeSet:
		return w.writeList(v)
	case TypeMap:
		return w.writeMap(v)
	default:
		return ErrUnsupportedFieldType
	}
	return nil
}

func (w *writer) writeList(v Value) error {
	if !v.ElemType.valid() {
		return ErrUnsupportedFieldType
	}
	n := len(v.Elems)
	if w.variant == VariantCompact {
		ct := typeToCompact(v.ElemType)
		if n < int(compactLongListSize) {
			w.buf = append(w.buf, byte(n)<<4|ct)
		} else {
			w.buf = append(w.buf, compactLongListSize<<4|ct)
			w.buf = varint.AppendUvarint(w.buf, uint64(n))
		}
	} else {
		w.buf = append(w.buf, byte(v.ElemType))
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
	for _, e := range v.Elems {
		if e.Type != v.ElemType {
			return ErrUnsupportedFieldType
		}
		if err := w.writeValue(e); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) writeMap(v Value) error {
	n := len(v.Pairs)
	if n > 0 && (!v.KeyType.valid() || !v.ValueType.valid()) {
		return ErrUnsupportedFieldType
	}
	if w.variant == VariantCompact {
		w.buf = varint.AppendUvarint(w.buf, uint64(n))
		if n == 0 {
			return nil
		}
		w.buf = append(w.buf, typeToCompact(v.KeyType)<<4|typeToCompact(v.ValueType))
	} else {
		w.buf = append(w.buf, byte(v.KeyType), byte(v.ValueType))
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
	for _, p := range v.Pairs {
		if p.Key.Type != v.KeyType || p.Value.Type != v.ValueType {
			return ErrUnsupportedFieldType
		}
		if err := w.writeValue(p.Key); err != nil {
			return err
		}
		if err := w.writeValue(p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) appendZigZag32(n int32) {
	w.buf = varint.AppendUvarint(w.buf, uint64(varint.ZigZag32(n)))
}

func (w *writer) appendBinaryBytes(b []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) appendCompactBytes(b []byte) {
	w.buf = varint.AppendUvarint(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
}
