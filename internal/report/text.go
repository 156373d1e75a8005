package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/protocol/schema"
)

type TextOptions struct {
	HexDump bool
}

// WriteMessage writes a human-readable rendering of ev: a flow line, an
// optional hex dump, the message header, the field tree and any decode or
// schema problems.
func WriteMessage(w io.Writer, ev Event, opts TextOptions) error {
	var b strings.Builder
	p := ev.Payload
	fmt.Fprintf(&b, "#%d %s len=%d id=%s\n", p.Index, p.Flow(), len(p.Data), ev.ID)
	if opts.HexDump {
		b.WriteString("Full Payload (hex bytes):\n")
		b.WriteString(HexDump(p.Data))
	}

	if msg := ev.Message; msg != nil {
		fmt.Fprintf(&b, "envelope=%s variant=%s kind=%s method=%s seq=%d",
			msg.Envelope, msg.Variant, msg.Kind, msg.Method, msg.SeqID)
		if msg.Partial {
			b.WriteString(" partial=true")
		}
		if msg.Trailing > 0 {
			fmt.Fprintf(&b, " trailing=%d", msg.Trailing)
		}
		b.WriteByte('\n')
		if msg.THeader != nil && len(msg.THeader.Headers) > 0 {
			fmt.Fprintf(&b, "headers=%v\n", msg.THeader.Headers)
		}
		writeFields(&b, 1, fieldsOf(ev))
	}

	if ev.Err != nil {
		b.WriteString(errorLine(ev.Err))
		b.WriteByte('\n')
	}
	if ev.Annotation != nil {
		for _, prob := range ev.Annotation.Problems {
			fmt.Fprintf(&b, "%s\n", prob.Error())
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func errorLine(err error) string {
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		return fmt.Sprintf("error: stage=%s offset=%d class=%s: %v", de.Stage, de.Offset, protocol.Class(err), de.Err)
	}
	return fmt.Sprintf("error: class=%s: %v", protocol.Class(err), err)
}

// fieldsOf prefers schema-annotated fields so names show up.
func fieldsOf(ev Event) []schema.AnnotatedField {
	if ev.Annotation != nil {
		return ev.Annotation.Fields
	}
	if ev.Message == nil {
		return nil
	}
	return unnamed(ev.Message.Fields)
}

func unnamed(fields []protocol.Field) []schema.AnnotatedField {
	out := make([]schema.AnnotatedField, 0, len(fields))
	for _, f := range fields {
		out = append(out, schema.AnnotatedField{ID: f.ID, Value: f.Value})
	}
	return out
}

func childrenOf(f schema.AnnotatedField) []schema.AnnotatedField {
	if f.Children != nil {
		return f.Children
	}
	return unnamed(f.Value.Fields)
}

func writeFields(b *strings.Builder, depth int, fields []schema.AnnotatedField) {
	for _, f := range fields {
		indent(b, depth)
		fmt.Fprintf(b, "[%d]", f.ID)
		if f.Name != "" {
			fmt.Fprintf(b, " %s", f.Name)
		}
		b.WriteString(": ")
		writeValue(b, depth, f.Value, childrenOf(f))
	}
}

func writeValue(b *strings.Builder, depth int, v protocol.Value, children []schema.AnnotatedField) {
	switch v.Type {
	case protocol.TypeStruct:
		b.WriteString("STRUCT\n")
		writeFields(b, depth+1, children)
	case protocol.TypeList, protocol.TypeSet:
		fmt.Fprintf(b, "%s<%s> (%d)\n", v.Type, v.ElemType, len(v.Elems))
		for _, e := range v.Elems {
			indent(b, depth+1)
			b.WriteString("- ")
			writeValue(b, depth+1, e, unnamed(e.Fields))
		}
	case protocol.TypeMap:
		fmt.Fprintf(b, "MAP<%s,%s> (%d)\n", v.KeyType, v.ValueType, len(v.Pairs))
		for _, p := range v.Pairs {
			indent(b, depth+1)
			fmt.Fprintf(b, "%s => ", Scalar(p.Key))
			writeValue(b, depth+1, p.Value, unnamed(p.Value.Fields))
		}
	default:
		fmt.Fprintf(b, "%s = %s\n", v.Type, Scalar(v))
	}
}

// Scalar formats a non-container value; containers render as their type
// and size.
func Scalar(v protocol.Value) string {
	switch v.Type {
	case protocol.TypeBool:
		return strconv.FormatBool(v.Bool)
	case protocol.TypeByte:
		return strconv.Itoa(int(v.Byte))
	case protocol.TypeI16:
		return strconv.Itoa(int(v.I16))
	case protocol.TypeI32:
		return strconv.Itoa(int(v.I32))
	case protocol.TypeI64:
		return strconv.FormatInt(v.I64, 10)
	case protocol.TypeDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case protocol.TypeString:
		return strconv.Quote(v.String)
	case protocol.TypeStruct:
		return fmt.Sprintf("STRUCT{%d}", len(v.Fields))
	case protocol.TypeList, protocol.TypeSet:
		return fmt.Sprintf("%s<%s>[%d]", v.Type, v.ElemType, len(v.Elems))
	case protocol.TypeMap:
		return fmt.Sprintf("MAP<%s,%s>[%d]", v.KeyType, v.ValueType, len(v.Pairs))
	default:
		return v.Type.String()
	}
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}
