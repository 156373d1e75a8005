package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/testutil/testlog"
)

func getItemCall(id int64) *protocol.Message {
	return &protocol.Message{
		Variant: protocol.VariantBinary,
		Kind:    protocol.KindCall,
		Method:  "GetItem",
		SeqID:   1,
		Fields: []protocol.Field{
			protocol.NewField(1, protocol.NewStruct(protocol.NewField(1, protocol.NewI64(id)))),
		},
	}
}

func TestBuiltinDescribesItemService(t *testing.T) {
	testlog.Start(t)
	reg := Builtin()
	if reg.Service != "ItemService" {
		t.Fatalf("unexpected service: %q", reg.Service)
	}
	if got := reg.Methods(); len(got) != 1 || got[0] != "GetItem" {
		t.Fatalf("unexpected methods: %v", got)
	}
	item, ok := reg.Struct("Item")
	if !ok || len(item.Fields) != 4 || item.Fields[3].Name != "extra" || item.Fields[3].ID != 10 {
		t.Fatalf("unexpected Item spec: %+v", item)
	}
}

func TestAnnotateNamesNestedFields(t *testing.T) {
	testlog.Start(t)
	ann := Builtin().Annotate(getItemCall(1024))
	if !ann.Known || len(ann.Problems) != 0 {
		t.Fatalf("unexpected annotation: %+v", ann)
	}
	if len(ann.Fields) != 1 || ann.Fields[0].Name != "req" {
		t.Fatalf("unexpected fields: %+v", ann.Fields)
	}
	kids := ann.Fields[0].Children
	if len(kids) != 1 || kids[0].Name != "id" || kids[0].Value.I64 != 1024 {
		t.Fatalf("unexpected children: %+v", kids)
	}
}

func TestAnnotateReplyReportsMissingRequired(t *testing.T) {
	testlog.Start(t)
	reply := &protocol.Message{
		Kind:   protocol.KindReply,
		Method: "GetItem",
		Fields: []protocol.Field{
			protocol.NewField(0, protocol.NewStruct(
				protocol.NewField(1, protocol.NewStruct(
					protocol.NewField(1, protocol.NewI64(1)),
					protocol.NewField(2, protocol.NewString("Item 1")),
				)),
			)),
		},
	}
	ann := Builtin().Annotate(reply)
	if len(ann.Problems) != 1 {
		t.Fatalf("expected one problem, got %+v", ann.Problems)
	}
	p := ann.Problems[0]
	if p.Path != "success.item.content" || p.FieldID != 3 || p.Reason != ReasonMissing {
		t.Fatalf("unexpected problem: %+v", p)
	}
}

func TestAnnotateTypeMismatchAndUnknownField(t *testing.T) {
	testlog.Start(t)
	msg := &protocol.Message{
		Kind:   protocol.KindCall,
		Method: "GetItem",
		Fields: []protocol.Field{
			protocol.NewField(1, protocol.NewString("not a struct")),
			protocol.NewField(99, protocol.NewI32(3)),
		},
	}
	ann := Builtin().Annotate(msg)
	if len(ann.Fields) != 2 || ann.Fields[1].Name != "" || ann.Fields[1].Label() != "99" {
		t.Fatalf("unexpected fields: %+v", ann.Fields)
	}
	if len(ann.Problems) != 1 || !strings.HasPrefix(ann.Problems[0].Reason, ReasonTypeMismatch) {
		t.Fatalf("unexpected problems: %+v", ann.Problems)
	}
}

func TestAnnotateUnknownMethod(t *testing.T) {
	testlog.Start(t)
	msg := getItemCall(1)
	msg.Method = "DeleteItem"
	ann := Builtin().Annotate(msg)
	if ann.Known || len(ann.Problems) != 1 || ann.Problems[0].Reason != ReasonUnknownMethod {
		t.Fatalf("unexpected annotation: %+v", ann)
	}
	if len(ann.Fields) != 1 || ann.Fields[0].Name != "" {
		t.Fatalf("fields should be kept unnamed: %+v", ann.Fields)
	}
}

func TestAnnotateException(t *testing.T) {
	testlog.Start(t)
	msg := &protocol.Message{
		Kind:   protocol.KindException,
		Method: "Anything",
		Fields: []protocol.Field{
			protocol.NewField(1, protocol.NewString("boom")),
			protocol.NewField(2, protocol.NewI32(6)),
		},
	}
	ann := Builtin().Annotate(msg)
	if !ann.Known || ann.Fields[0].Name != "message" || ann.Fields[1].Name != "type" {
		t.Fatalf("unexpected annotation: %+v", ann)
	}
}

func TestLoadSchemaFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "calc.toml")
	body := `
service = "Calculator"

[structs.Work]
fields = [
  { id = 1, name = "num1", type = "i32", required = true },
  { id = 2, name = "num2", type = "I32" },
]

[methods.calculate]
args = [{ id = 1, name = "logid", type = "i32" }, { id = 2, name = "w", type = "struct", struct = "Work" }]
result = [{ id = 0, name = "success", type = "i32" }]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m, ok := reg.Method("calculate")
	if !ok || len(m.Args) != 2 || m.Args[1].Struct != "Work" {
		t.Fatalf("unexpected method: %+v", m)
	}
}

func TestParseRejectsBadSchemas(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"unknown key":    "service = \"x\"\nbogus = 1\n",
		"unknown type":   "[structs.A]\nfields = [{ id = 1, name = \"a\", type = \"uuid\" }]\n",
		"missing struct": "[structs.A]\nfields = [{ id = 1, name = \"a\", type = \"struct\", struct = \"B\" }]\n",
		"duplicate id":   "[structs.A]\nfields = [{ id = 1, name = \"a\", type = \"i32\" }, { id = 1, name = \"b\", type = \"i32\" }]\n",
		"id range":       "[structs.A]\nfields = [{ id = 70000, name = \"a\", type = \"i32\" }]\n",
		"no name":        "[structs.A]\nfields = [{ id = 1, type = \"i32\" }]\n",
	}
	for name, body := range cases {
		if _, err := Parse(body); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidationErrorFormatting(t *testing.T) {
	testlog.Start(t)
	err := ValidationError{Method: "GetItem", Path: "req.id", FieldID: 1, Reason: ReasonMissing}
	if err.Error() != "schema: method=GetItem field=req.id id=1: missing required field" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if (ValidationError{Method: "X", Reason: ReasonUnknownMethod}).Error() != "schema: method=X: unknown method" {
		t.Fatalf("unexpected method-level error string")
	}
}
