package protocol

import "strings"

// NewBool creates a bool value.
func NewBool(v bool) Value {
	return Value{Type: TypeBool, Bool: v}
}

// NewByte creates a byte value.
func NewByte(v int8) Value {
	return Value{Type: TypeByte, Byte: v}
}

// NewI16 creates an i16 value.
func NewI16(v int16) Value {
	return Value{Type: TypeI16, I16: v}
}

// NewI32 creates an i32 value.
func NewI32(v int32) Value {
	return Value{Type: TypeI32, I32: v}
}

// NewI64 creates an i64 value.
func NewI64(v int64) Value {
	return Value{Type: TypeI64, I64: v}
}

// NewDouble creates a double value.
func NewDouble(v float64) Value {
	return Value{Type: TypeDouble, Double: v}
}

// NewString creates a string value.
func NewString(v string) Value {
	return Value{Type: TypeString, String: v, Bytes: []byte(v)}
}

// NewBinary creates a string value from raw bytes, decoding them the same
// lossy way the decoder does.
func NewBinary(v []byte) Value {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Value{Type: TypeString, String: lossyString(buf), Bytes: buf}
}

// NewStruct creates a struct value.
func NewStruct(fields ...Field) Value {
	return Value{Type: TypeStruct, Fields: fields}
}

// NewList creates a list value.
func NewList(elem Type, elems ...Value) Value {
	return Value{Type: TypeList, ElemType: elem, Elems: elems}
}

// NewSet creates a set value.
func NewSet(elem Type, elems ...Value) Value {
	return Value{Type: TypeSet, ElemType: elem, Elems: elems}
}

// NewMap creates a map value.
func NewMap(key, val Type, pairs ...Pair) Value {
	return Value{Type: TypeMap, KeyType: key, ValueType: val, Pairs: pairs}
}

// NewField pairs an id with a value.
func NewField(id uint16, v Value) Field {
	return Field{ID: id, Value: v}
}

// AsString returns the value as string.
func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", ErrUnsupportedFieldType
	}
	return v.String, nil
}

// AsI64 widens any integer value to int64.
func (v Value) AsI64() (int64, error) {
	switch v.Type {
	case TypeByte:
		return int64(v.Byte), nil
	case TypeI16:
		return int64(v.I16), nil
	case TypeI32:
		return int64(v.I32), nil
	case TypeI64:
		return v.I64, nil
	default:
		return 0, ErrUnsupportedFieldType
	}
}

// AsStruct returns the struct members.
func (v Value) AsStruct() ([]Field, error) {
	if v.Type != TypeStruct {
		return nil, ErrUnsupportedFieldType
	}
	return v.Fields, nil
}

// lossyString decodes b as UTF-8, replacing invalid sequences with U+FFFD.
func lossyString(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
