package protocol

import (
	"fmt"
	"strings"

	"github.com/danmuck/thriftsniff/internal/protocol/frame"
)

// Variant is the wire encoding of a message.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantBinary
	VariantCompact
)

func (v Variant) String() string {
	switch v {
	case VariantBinary:
		return "binary"
	case VariantCompact:
		return "compact"
	default:
		return "unknown"
	}
}

// ParseVariant accepts the names produced by Variant.String.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "binary":
		return VariantBinary, nil
	case "compact":
		return VariantCompact, nil
	default:
		return VariantUnknown, fmt.Errorf("protocol: unknown variant %q", s)
	}
}

// MessageKind is the Thrift message type.
type MessageKind uint8

const (
	KindUnknown   MessageKind = 0
	KindCall      MessageKind = 1
	KindReply     MessageKind = 2
	KindException MessageKind = 3
	KindOneway    MessageKind = 4
)

func messageKindOf(raw uint8) MessageKind {
	k := MessageKind(raw)
	if k < KindCall || k > KindOneway {
		return KindUnknown
	}
	return k
}

func (k MessageKind) String() string {
	switch k {
	case KindCall:
		return "CALL"
	case KindReply:
		return "REPLY"
	case KindException:
		return "EXCEPTION"
	case KindOneway:
		return "ONEWAY"
	default:
		return "UNKNOWN"
	}
}

// Type is a Thrift field type tag as used by the Binary protocol. Compact
// type ids are translated to these on decode.
type Type uint8

const (
	TypeStop   Type = 0x00
	TypeVoid   Type = 0x01
	TypeBool   Type = 0x02
	TypeByte   Type = 0x03
	TypeDouble Type = 0x04
	TypeI16    Type = 0x06
	TypeI32    Type = 0x08
	TypeI64    Type = 0x0A
	TypeString Type = 0x0B
	TypeStruct Type = 0x0C
	TypeMap    Type = 0x0D
	TypeSet    Type = 0x0E
	TypeList   Type = 0x0F
)

func (t Type) String() string {
	switch t {
	case TypeStop:
		return "STOP"
	case TypeVoid:
		return "VOID"
	case TypeBool:
		return "BOOL"
	case TypeByte:
		return "BYTE"
	case TypeDouble:
		return "DOUBLE"
	case TypeI16:
		return "I16"
	case TypeI32:
		return "I32"
	case TypeI64:
		return "I64"
	case TypeString:
		return "STRING"
	case TypeStruct:
		return "STRUCT"
	case TypeMap:
		return "MAP"
	case TypeSet:
		return "SET"
	case TypeList:
		return "LIST"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// ParseType maps a lower- or upper-case type name to its tag.
func ParseType(s string) (Type, bool) {
	for t := TypeStop; t <= TypeList; t++ {
		if !t.valid() {
			continue
		}
		if strings.EqualFold(t.String(), s) {
			return t, true
		}
	}
	return TypeStop, false
}

func (t Type) valid() bool {
	switch t {
	case TypeBool, TypeByte, TypeDouble, TypeI16, TypeI32, TypeI64,
		TypeString, TypeStruct, TypeMap, TypeSet, TypeList:
		return true
	}
	return false
}

func (t Type) container() bool {
	return t == TypeStruct || t == TypeMap || t == TypeSet || t == TypeList
}

// Message is one decoded Thrift message. It is built fresh for every
// payload and never mutated after Decode returns.
type Message struct {
	Envelope frame.Kind
	THeader  *frame.THeaderInfo
	// Partial is set when the envelope declared more bytes than were captured.
	Partial  bool
	Trailing int
	Variant  Variant
	Kind     MessageKind
	Method   string
	SeqID    int32
	Fields   []Field
}

// Field is one struct member.
type Field struct {
	ID    uint16
	Value Value
}

// Value is a tagged union over the Thrift value kinds; Type selects which
// members are meaningful.
type Value struct {
	Type   Type
	Bool   bool
	Byte   int8
	I16    int16
	I32    int32
	I64    int64
	Double float64
	String string
	Bytes  []byte

	// Struct
	Fields []Field

	// List and Set
	ElemType Type
	Elems    []Value

	// Map
	KeyType   Type
	ValueType Type
	Pairs     []Pair
}

// Pair is one map entry.
type Pair struct {
	Key   Value
	Value Value
}

// FieldByID returns the first field with id.
func FieldByID(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
