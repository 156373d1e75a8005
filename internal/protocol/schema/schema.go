// Package schema names the fields of decoded messages. A Registry maps
// method names to argument and result field specs loaded from TOML, and
// Annotate checks a decoded message against them.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/protocol"
)

//go:embed item_service.toml
var builtinSchema string

// Validation reasons.
const (
	ReasonMissing       = "missing required field"
	ReasonTypeMismatch  = "type mismatch"
	ReasonUnknownMethod = "unknown method"
	ReasonUnknownStruct = "unknown struct"
)

type FieldSpec struct {
	ID       uint16
	Name     string
	Type     protocol.Type
	Struct   string
	Required bool
}

type StructSpec struct {
	Name   string
	Fields []FieldSpec
}

type MethodSpec struct {
	Name   string
	Args   []FieldSpec
	Result []FieldSpec
}

// Registry is immutable once built and safe for concurrent use.
type Registry struct {
	Service string
	structs map[string]StructSpec
	methods map[string]MethodSpec
}

type ValidationError struct {
	Method  string
	Path    string
	FieldID uint16
	Reason  string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema: method=%s: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("schema: method=%s field=%s id=%d: %s", e.Method, e.Path, e.FieldID, e.Reason)
}

type fileField struct {
	ID       int    `toml:"id"`
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Struct   string `toml:"struct"`
	Required bool   `toml:"required"`
}

type fileStruct struct {
	Fields []fileField `toml:"fields"`
}

type fileMethod struct {
	Args   []fileField `toml:"args"`
	Result []fileField `toml:"result"`
}

type fileSchema struct {
	Service string                `toml:"service"`
	Structs map[string]fileStruct `toml:"structs"`
	Methods map[string]fileMethod `toml:"methods"`
}

// Builtin returns the registry for the bundled ItemService.
func Builtin() *Registry {
	reg, err := Parse(builtinSchema)
	if err != nil {
		panic(fmt.Sprintf("schema: builtin schema invalid: %v", err))
	}
	return reg
}

// Load reads a schema file.
func Load(path string) (*Registry, error) {
	var raw fileSchema
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	reg, err := build(raw)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	logs.Infof("schema.Load path=%s service=%s methods=%d structs=%d", path, reg.Service, len(reg.methods), len(reg.structs))
	return reg, nil
}

// Parse reads a schema from TOML text.
func Parse(data string) (*Registry, error) {
	var raw fileSchema
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return build(raw)
}

func checkUndecoded(meta toml.MetaData) error {
	keys := meta.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}
	return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
}

func build(raw fileSchema) (*Registry, error) {
	reg := &Registry{
		Service: strings.TrimSpace(raw.Service),
		structs: make(map[string]StructSpec, len(raw.Structs)),
		methods: make(map[string]MethodSpec, len(raw.Methods)),
	}
	for name, st := range raw.Structs {
		fields, err := buildFields("struct "+name, st.Fields)
		if err != nil {
			return nil, err
		}
		reg.structs[name] = StructSpec{Name: name, Fields: fields}
	}
	for name, m := range raw.Methods {
		args, err := buildFields("method "+name+" args", m.Args)
		if err != nil {
			return nil, err
		}
		result, err := buildFields("method "+name+" result", m.Result)
		if err != nil {
			return nil, err
		}
		reg.methods[name] = MethodSpec{Name: name, Args: args, Result: result}
	}

	// Struct references are resolved after everything is loaded so specs
	// may refer to each other in any order.
	for _, st := range reg.structs {
		if err := reg.checkRefs("struct "+st.Name, st.Fields); err != nil {
			return nil, err
		}
	}
	for _, m := range reg.methods {
		if err := reg.checkRefs("method "+m.Name, m.Args); err != nil {
			return nil, err
		}
		if err := reg.checkRefs("method "+m.Name, m.Result); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildFields(where string, raw []fileField) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(raw))
	seen := make(map[uint16]struct{}, len(raw))
	for _, f := range raw {
		if f.ID < 0 || f.ID > 0xffff {
			return nil, fmt.Errorf("%s: field id %d out of range", where, f.ID)
		}
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("%s: field %d has no name", where, f.ID)
		}
		t, ok := protocol.ParseType(strings.TrimSpace(f.Type))
		if !ok || t == protocol.TypeStop || t == protocol.TypeVoid {
			return nil, fmt.Errorf("%s: field %s has unknown type %q", where, name, f.Type)
		}
		if f.Struct != "" && t != protocol.TypeStruct {
			return nil, fmt.Errorf("%s: field %s names struct %q but has type %s", where, name, f.Struct, t)
		}
		id := uint16(f.ID)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%s: duplicate field id %d", where, id)
		}
		seen[id] = struct{}{}
		out = append(out, FieldSpec{ID: id, Name: name, Type: t, Struct: f.Struct, Required: f.Required})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Registry) checkRefs(where string, fields []FieldSpec) error {
	for _, f := range fields {
		if f.Struct == "" {
			continue
		}
		if _, ok := r.structs[f.Struct]; !ok {
			return fmt.Errorf("%s: field %s: %s %q", where, f.Name, ReasonUnknownStruct, f.Struct)
		}
	}
	return nil
}

func (r *Registry) Method(name string) (MethodSpec, bool) {
	m, ok := r.methods[name]
	return m, ok
}

func (r *Registry) Struct(name string) (StructSpec, bool) {
	s, ok := r.structs[name]
	return s, ok
}

// Methods returns the known method names in sorted order.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.methods))
	for name := range r.methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
