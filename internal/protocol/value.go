package protocol

import (
	"math"
)

// Compact protocol type ids.
const (
	compactBoolTrue  byte = 0x01
	compactBoolFalse byte = 0x02
	compactByte      byte = 0x03
	compactI16       byte = 0x04
	compactI32       byte = 0x05
	compactI64       byte = 0x06
	compactDouble    byte = 0x07
	compactBinary    byte = 0x08
	compactList      byte = 0x09
	compactSet       byte = 0x0A
	compactMap       byte = 0x0B
	compactStruct    byte = 0x0C

	compactLongListSize byte = 0x0f
)

func compactToType(ct byte) (Type, bool) {
	switch ct {
	case compactBoolTrue, compactBoolFalse:
		return TypeBool, true
	case compactByte:
		return TypeByte, true
	case compactI16:
		return TypeI16, true
	case compactI32:
		return TypeI32, true
	case compactI64:
		return TypeI64, true
	case compactDouble:
		return TypeDouble, true
	case compactBinary:
		return TypeString, true
	case compactList:
		return TypeList, true
	case compactSet:
		return TypeSet, true
	case compactMap:
		return TypeMap, true
	case compactStruct:
		return TypeStruct, true
	default:
		return TypeStop, false
	}
}

func typeToCompact(t Type) byte {
	switch t {
	case TypeBool:
		return compactBoolTrue
	case TypeByte:
		return compactByte
	case TypeI16:
		return compactI16
	case TypeI32:
		return compactI32
	case TypeI64:
		return compactI64
	case TypeDouble:
		return compactDouble
	case TypeString:
		return compactBinary
	case TypeList:
		return compactList
	case TypeSet:
		return compactSet
	case TypeMap:
		return compactMap
	case TypeStruct:
		return compactStruct
	default:
		return 0
	}
}

// minWireSize is the smallest number of bytes one value of t can occupy.
// Container counts are checked against it before anything is allocated.
func minWireSize(v Variant, t Type) uint64 {
	if v == VariantCompact {
		if t == TypeDouble {
			return 8
		}
		return 1
	}
	switch t {
	case TypeI16:
		return 2
	case TypeI32, TypeString:
		return 4
	case TypeI64, TypeDouble:
		return 8
	case TypeList, TypeSet:
		return 5
	case TypeMap:
		return 6
	default:
		return 1
	}
}

type valueReader struct {
	c        *Cursor
	variant  Variant
	maxDepth int
	depth    int
}

func (r *valueReader) enter() error {
	if r.depth >= r.maxDepth {
		return ErrRecursionLimitExceeded
	}
	r.depth++
	return nil
}

func (r *valueReader) leave() {
	r.depth--
}

// readFields decodes a field list up to its STOP byte. Running out of bytes
// is accepted only for the top-level list and only when requireStop is off.
// On failure the fields decoded so far are returned with the error.
func (r *valueReader) readFields(top, requireStop bool) ([]Field, error) {
	var fields []Field
	var lastID int16
	for {
		if r.c.Exhausted() {
			if top && !requireStop {
				return fields, nil
			}
			return fields, ErrMissingStop
		}
		b, err := r.c.ReadByte()
		if err != nil {
			return fields, err
		}
		if b == byte(TypeStop) {
			return fields, nil
		}

		var (
			t  Type
			id uint16
			v  Value
		)
		if r.variant == VariantCompact {
			ct := b & 0x0f
			if delta := b >> 4; delta != 0 {
				lastID += int16(delta)
			} else {
				raw, err := r.c.ReadZigZag32()
				if err != nil {
					return fields, err
				}
				lastID = int16(raw)
			}
			id = uint16(lastID)
			var ok bool
			if t, ok = compactToType(ct); !ok {
				return fields, ErrUnsupportedFieldType
			}
			if t == TypeBool {
				// Compact bool fields carry their value in the type nibble.
				fields = append(fields, Field{ID: id, Value: NewBool(ct == compactBoolTrue)})
				continue
			}
		} else {
			t = Type(b)
			if id, err = r.c.ReadUint16(); err != nil {
				return fields, err
			}
			if !t.valid() {
				return fields, ErrUnsupportedFieldType
			}
		}

		v, err = r.readValue(t)
		if err != nil {
			if t.container() {
				fields = append(fields, Field{ID: id, Value: v})
			}
			return fields, err
		}
		fields = append(fields, Field{ID: id, Value: v})
	}
}

func (r *valueReader) readValue(t Type) (Value, error) {
	switch t {
	case TypeBool:
		b, err := r.c.ReadByte()
		if err != nil {
			return Value{}, err
		}
		if r.variant == VariantCompact {
			return NewBool(b == compactBoolTrue), nil
		}
		return NewBool(b != 0), nil
	case TypeByte:
		b, err := r.c.ReadByte()
		if err != nil {
			return Value{}, err
		}
		return NewByte(int8(b)), nil
	case TypeI16:
		if r.variant == VariantCompact {
			n, err := r.c.ReadZigZag32()
			if err != nil {
				return Value{}, err
			}
			return NewI16(int16(n)), nil
		}
		n, err := r.c.ReadUint16()
		if err != nil {
			return Value{}, err
		}
		return NewI16(int16(n)), nil
	case TypeI32:
		if r.variant == VariantCompact {
			n, err := r.c.ReadZigZag32()
			if err != nil {
				return Value{}, err
			}
			return NewI32(n), nil
		}
		n, err := r.c.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		return NewI32(int32(n)), nil
	case TypeI64:
		if r.variant == VariantCompact {
			n, err := r.c.ReadZigZag64()
			if err != nil {
				return Value{}, err
			}
			return NewI64(n), nil
		}
		n, err := r.c.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		return NewI64(int64(n)), nil
	case TypeDouble:
		if r.variant == VariantCompact {
			f, err := r.c.ReadDoubleLE()
			if err != nil {
				return Value{}, err
			}
			return NewDouble(f), nil
		}
		bits, err := r.c.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		return NewDouble(math.Float64frombits(bits)), nil
	case TypeString:
		var (
			raw []byte
			err error
		)
		if r.variant == VariantCompact {
			raw, err = readCompactBytes(r.c)
		} else {
			raw, err = readBinaryBytes(r.c)
		}
		if err != nil {
			return Value{}, err
		}
		return NewBinary(raw), nil
	case TypeStruct:
		v := Value{Type: TypeStruct}
		if err := r.enter(); err != nil {
			return v, err
		}
		defer r.leave()
		fields, err := r.readFields(false, true)
		v.Fields = fields
		return v, err
	case TypeList, TypeSet:
		return r.readList(t)
	case TypeMap:
		return r.readMap()
	default:
		return Value{}, ErrUnsupportedFieldType
	}
}

func (r *valueReader) readList(kind Type) (Value, error) {
	v := Value{Type: kind}
	if err := r.enter(); err != nil {
		return v, err
	}
	defer r.leave()

	elem, count, err := r.readListHeader()
	if err != nil {
		return v, err
	}
	v.ElemType = elem
	if err := r.checkCount(count, minWireSize(r.variant, elem)); err != nil {
		return v, err
	}
	v.Elems = make([]Value, 0, count)
	for i := uint64(0); i < count; i++ {
		e, err := r.readValue(elem)
		if err != nil {
			if elem.container() {
				v.Elems = append(v.Elems, e)
			}
			return v, err
		}
		v.Elems = append(v.Elems, e)
	}
	return v, nil
}

func (r *valueReader) readListHeader() (Type, uint64, error) {
	if r.variant == VariantCompact {
		b, err := r.c.ReadByte()
		if err != nil {
			return TypeStop, 0, err
		}
		elem, ok := compactToType(b & 0x0f)
		if !ok {
			return TypeStop, 0, ErrUnsupportedFieldType
		}
		count := uint64(b >> 4)
		if b>>4 == compactLongListSize {
			if count, err = r.c.ReadUvarint(); err != nil {
				return elem, 0, err
			}
		}
		return elem, count, nil
	}

	b, err := r.c.ReadByte()
	if err != nil {
		return TypeStop, 0, err
	}
	elem := Type(b)
	if !elem.valid() {
		return elem, 0, ErrUnsupportedFieldType
	}
	n, err := r.c.ReadUint32()
	if err != nil {
		return elem, 0, err
	}
	if int32(n) < 0 {
		return elem, 0, ErrCountOverflow
	}
	return elem, uint64(n), nil
}

func (r *valueReader) readMap() (Value, error) {
	v := Value{Type: TypeMap}
	if err := r.enter(); err != nil {
		return v, err
	}
	defer r.leave()

	key, val, count, err := r.readMapHeader()
	if err != nil {
		return v, err
	}
	v.KeyType, v.ValueType = key, val
	if count == 0 {
		return v, nil
	}
	if !key.valid() || !val.valid() {
		return v, ErrUnsupportedFieldType
	}
	if err := r.checkCount(count, minWireSize(r.variant, key)+minWireSize(r.variant, val)); err != nil {
		return v, err
	}
	v.Pairs = make([]Pair, 0, count)
	for i := uint64(0); i < count; i++ {
		k, err := r.readValue(key)
		if err != nil {
			return v, err
		}
		e, err := r.readValue(val)
		if err != nil {
			if val.container() {
				v.Pairs = append(v.Pairs, Pair{Key: k, Value: e})
			}
			return v, err
		}
		v.Pairs = append(v.Pairs, Pair{Key: k, Value: e})
	}
	return v, nil
}

func (r *valueReader) readMapHeader() (Type, Type, uint64, error) {
	if r.variant == VariantCompact {
		count, err := r.c.ReadUvarint()
		if err != nil || count == 0 {
			return TypeStop, TypeStop, 0, err
		}
		b, err := r.c.ReadByte()
		if err != nil {
			return TypeStop, TypeStop, 0, err
		}
		key, okKey := compactToType(b >> 4)
		val, okVal := compactToType(b & 0x0f)
		if !okKey || !okVal {
			return key, val, 0, ErrUnsupportedFieldType
		}
		return key, val, count, nil
	}

	kb, err := r.c.ReadByte()
	if err != nil {
		return TypeStop, TypeStop, 0, err
	}
	vb, err := r.c.ReadByte()
	if err != nil {
		return Type(kb), TypeStop, 0, err
	}
	n, err := r.c.ReadUint32()
	if err != nil {
		return Type(kb), Type(vb), 0, err
	}
	if int32(n) < 0 {
		return Type(kb), Type(vb), 0, ErrCountOverflow
	}
	return Type(kb), Type(vb), uint64(n), nil
}

// checkCount rejects counts that cannot possibly fit in the remaining bytes.
func (r *valueReader) checkCount(count, minSize uint64) error {
	if minSize == 0 {
		minSize = 1
	}
	if count > uint64(r.c.Remaining())/minSize {
		return ErrCountOverflow
	}
	return nil
}
