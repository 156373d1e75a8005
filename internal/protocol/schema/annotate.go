package schema

import (
	"strconv"

	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/protocol"
)

// exceptionFields describes the TApplicationException carried by every
// EXCEPTION message.
var exceptionFields = []FieldSpec{
	{ID: 1, Name: "message", Type: protocol.TypeString},
	{ID: 2, Name: "type", Type: protocol.TypeI32},
}

// AnnotatedField is a decoded field with its schema name, if known.
// Children is set for struct values whose struct spec is known.
type AnnotatedField struct {
	ID       uint16
	Name     string
	Value    protocol.Value
	Children []AnnotatedField
}

type Annotation struct {
	Method   string
	Known    bool
	Fields   []AnnotatedField
	Problems []ValidationError
}

// Annotate names the fields of msg and reports missing required fields and
// type mismatches. Fields with no spec are kept unnamed. msg is not modified.
func (r *Registry) Annotate(msg *protocol.Message) Annotation {
	ann := Annotation{Method: msg.Method}
	logs.Debugf("schema.Registry.Annotate method=%s kind=%s fields=%d", msg.Method, msg.Kind, len(msg.Fields))

	var specs []FieldSpec
	switch msg.Kind {
	case protocol.KindException:
		specs = exceptionFields
		ann.Known = true
	default:
		m, ok := r.methods[msg.Method]
		if !ok {
			ann.Fields = r.annotateFields(&ann, "", nil, msg.Fields)
			ann.Problems = append(ann.Problems, ValidationError{Method: msg.Method, Reason: ReasonUnknownMethod})
			return ann
		}
		ann.Known = true
		specs = m.Args
		if msg.Kind == protocol.KindReply {
			specs = m.Result
		}
	}

	ann.Fields = r.annotateFields(&ann, "", specs, msg.Fields)
	if len(ann.Problems) > 0 {
		logs.Warnf("schema.Registry.Annotate method=%s problems=%d first=%q", msg.Method, len(ann.Problems), ann.Problems[0].Error())
	}
	return ann
}

func (r *Registry) annotateFields(ann *Annotation, prefix string, specs []FieldSpec, fields []protocol.Field) []AnnotatedField {
	out := make([]AnnotatedField, 0, len(fields))
	seen := make(map[uint16]struct{}, len(fields))
	for _, f := range fields {
		seen[f.ID] = struct{}{}
		af := AnnotatedField{ID: f.ID, Value: f.Value}
		spec, ok := findSpec(specs, f.ID)
		if !ok {
			out = append(out, af)
			continue
		}
		af.Name = spec.Name
		path := joinPath(prefix, spec.Name)
		if f.Value.Type != spec.Type {
			ann.Problems = append(ann.Problems, ValidationError{
				Method:  ann.Method,
				Path:    path,
				FieldID: f.ID,
				Reason:  ReasonTypeMismatch + ": got " + f.Value.Type.String() + " want " + spec.Type.String(),
			})
			out = append(out, af)
			continue
		}
		if spec.Struct != "" {
			if st, ok := r.structs[spec.Struct]; ok {
				af.Children = r.annotateFields(ann, path, st.Fields, f.Value.Fields)
			}
		}
		out = append(out, af)
	}

	for _, spec := range specs {
		if !spec.Required {
			continue
		}
		if _, ok := seen[spec.ID]; ok {
			continue
		}
		ann.Problems = append(ann.Problems, ValidationError{
			Method:  ann.Method,
			Path:    joinPath(prefix, spec.Name),
			FieldID: spec.ID,
			Reason:  ReasonMissing,
		})
	}
	return out
}

func findSpec(specs []FieldSpec, id uint16) (FieldSpec, bool) {
	for _, s := range specs {
		if s.ID == id {
			return s, true
		}
	}
	return FieldSpec{}, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Label returns the field name, or its numeric id when unnamed.
func (f AnnotatedField) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return strconv.Itoa(int(f.ID))
}
