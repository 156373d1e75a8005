package report

import (
	"errors"
	"time"

	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/protocol/schema"
)

// Document is the JSON view of an Event used by the structured sinks.
type Document struct {
	ID       string            `json:"id"`
	Time     time.Time         `json:"time"`
	Flow     string            `json:"flow"`
	Index    uint64            `json:"index"`
	Size     int               `json:"size"`
	Envelope string            `json:"envelope,omitempty"`
	Variant  string            `json:"variant,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Method   string            `json:"method,omitempty"`
	SeqID    int32             `json:"seq_id"`
	Headers  map[string]string `json:"headers,omitempty"`
	Fields   []FieldDoc        `json:"fields,omitempty"`
	Error    *ErrorDoc         `json:"error,omitempty"`
	Problems []string          `json:"problems,omitempty"`
}

type FieldDoc struct {
	ID    uint16 `json:"id"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type ErrorDoc struct {
	Stage   string `json:"stage,omitempty"`
	Offset  int    `json:"offset"`
	Class   string `json:"class"`
	Message string `json:"message"`
}

type collectionDoc struct {
	Elem  string `json:"elem"`
	Items []any  `json:"items"`
}

type mapDoc struct {
	Key   string   `json:"key"`
	Value string   `json:"value"`
	Pairs [][2]any `json:"pairs"`
}

func NewDocument(ev Event) Document {
	doc := Document{
		ID:    ev.ID.String(),
		Time:  ev.Payload.Time,
		Flow:  ev.Payload.Flow(),
		Index: ev.Payload.Index,
		Size:  len(ev.Payload.Data),
	}
	if msg := ev.Message; msg != nil {
		doc.Envelope = msg.Envelope.String()
		doc.Variant = msg.Variant.String()
		doc.Kind = msg.Kind.String()
		doc.Method = msg.Method
		doc.SeqID = msg.SeqID
		if msg.THeader != nil {
			doc.Headers = msg.THeader.Headers
		}
		doc.Fields = fieldDocs(fieldsOf(ev))
	}
	if ev.Err != nil {
		ed := &ErrorDoc{Class: protocol.Class(ev.Err), Message: ev.Err.Error()}
		var de *protocol.DecodeError
		if errors.As(ev.Err, &de) {
			ed.Stage = de.Stage.String()
			ed.Offset = de.Offset
		}
		doc.Error = ed
	}
	if ev.Annotation != nil {
		for _, p := range ev.Annotation.Problems {
			doc.Problems = append(doc.Problems, p.Error())
		}
	}
	return doc
}

func fieldDocs(fields []schema.AnnotatedField) []FieldDoc {
	out := make([]FieldDoc, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldDoc{
			ID:    f.ID,
			Name:  f.Name,
			Type:  f.Value.Type.String(),
			Value: valueDoc(f.Value, childrenOf(f)),
		})
	}
	return out
}

func valueDoc(v protocol.Value, children []schema.AnnotatedField) any {
	switch v.Type {
	case protocol.TypeBool:
		return v.Bool
	case protocol.TypeByte:
		return v.Byte
	case protocol.TypeI16:
		return v.I16
	case protocol.TypeI32:
		return v.I32
	case protocol.TypeI64:
		return v.I64
	case protocol.TypeDouble:
		return v.Double
	case protocol.TypeString:
		return v.String
	case protocol.TypeStruct:
		return fieldDocs(children)
	case protocol.TypeList, protocol.TypeSet:
		items := make([]any, 0, len(v.Elems))
		for _, e := range v.Elems {
			items = append(items, valueDoc(e, unnamed(e.Fields)))
		}
		return collectionDoc{Elem: v.ElemType.String(), Items: items}
	case protocol.TypeMap:
		pairs := make([][2]any, 0, len(v.Pairs))
		for _, p := range v.Pairs {
			pairs = append(pairs, [2]any{
				valueDoc(p.Key, unnamed(p.Key.Fields)),
				valueDoc(p.Value, unnamed(p.Value.Fields)),
			})
		}
		return mapDoc{Key: v.KeyType.String(), Value: v.ValueType.String(), Pairs: pairs}
	default:
		return nil
	}
}
