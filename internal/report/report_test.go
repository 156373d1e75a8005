package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/thriftsniff/internal/capture"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/protocol/schema"
	"github.com/danmuck/thriftsniff/internal/testutil/testlog"
)

func samplePayload(data []byte) capture.Payload {
	return capture.Payload{
		Index:   3,
		Time:    time.Unix(1700000000, 0).UTC(),
		SrcIP:   netip.MustParseAddr("10.0.0.1"),
		DstIP:   netip.MustParseAddr("10.0.0.2"),
		SrcPort: 50000,
		DstPort: 9090,
		Data:    data,
	}
}

func decodedEvent(t *testing.T) Event {
	t.Helper()
	raw, err := protocol.Encode(&protocol.Message{
		Variant: protocol.VariantBinary,
		Kind:    protocol.KindCall,
		Method:  "GetItem",
		SeqID:   7,
		Fields: []protocol.Field{
			protocol.NewField(1, protocol.NewStruct(protocol.NewField(1, protocol.NewI64(1024)))),
			protocol.NewField(5, protocol.NewList(protocol.TypeString, protocol.NewString("a"))),
			protocol.NewField(6, protocol.NewMap(protocol.TypeString, protocol.TypeI32,
				protocol.Pair{Key: protocol.NewString("k"), Value: protocol.NewI32(1)})),
		},
	})
	require.NoError(t, err)
	msg, err := protocol.Decode(raw)
	require.NoError(t, err)
	ev := NewEvent(samplePayload(raw), msg, nil)
	ann := schema.Builtin().Annotate(msg)
	ev.Annotation = &ann
	return ev
}

func TestHexDumpRows(t *testing.T) {
	testlog.Start(t)
	data := make([]byte, 17)
	for i := range data {
		data[i] = byte(i)
	}
	want := "00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F\n10\n"
	assert.Equal(t, want, HexDump(data))
	assert.Equal(t, "", HexDump(nil))
}

func TestWriteMessageFieldTree(t *testing.T) {
	testlog.Start(t)
	ev := decodedEvent(t)
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, ev, TextOptions{HexDump: true}))
	out := buf.String()

	assert.Contains(t, out, "#3 10.0.0.1:50000 -> 10.0.0.2:9090")
	assert.Contains(t, out, "Full Payload (hex bytes):\n80 01 00 01")
	assert.Contains(t, out, "variant=binary kind=CALL method=GetItem seq=7")
	assert.Contains(t, out, "  [1] req: STRUCT\n    [1] id: I64 = 1024\n")
	assert.Contains(t, out, "[5]: LIST<STRING> (1)\n    - STRING = \"a\"\n")
	assert.Contains(t, out, "[6]: MAP<STRING,I32> (1)\n    \"k\" => I32 = 1\n")
	assert.NotContains(t, out, "error:")
}

func TestWriteMessageReportsErrors(t *testing.T) {
	testlog.Start(t)
	raw := []byte{0x80, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 'G'}
	msg, err := protocol.Decode(raw)
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewEvent(samplePayload(raw), msg, err), TextOptions{}))
	assert.Contains(t, buf.String(), "error: stage=header offset=8 class=truncated")

	buf.Reset()
	require.NoError(t, WriteMessage(&buf, NewEvent(samplePayload(raw), nil, errors.New("boom")), TextOptions{}))
	assert.Contains(t, buf.String(), "error: class=other: boom")
}

func TestDocumentJSON(t *testing.T) {
	testlog.Start(t)
	ev := decodedEvent(t)
	doc := NewDocument(ev)
	assert.Equal(t, "GetItem", doc.Method)
	assert.Equal(t, "CALL", doc.Kind)
	require.Len(t, doc.Fields, 3)
	assert.Equal(t, "req", doc.Fields[0].Name)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	fields := back["fields"].([]any)
	req := fields[0].(map[string]any)
	inner := req["value"].([]any)[0].(map[string]any)
	assert.Equal(t, "id", inner["name"])
	assert.EqualValues(t, 1024, inner["value"])
	assert.Nil(t, back["error"])
}

func TestDocumentError(t *testing.T) {
	testlog.Start(t)
	_, err := protocol.Decode([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	doc := NewDocument(NewEvent(samplePayload(nil), nil, err))
	require.NotNil(t, doc.Error)
	assert.Equal(t, "detect", doc.Error.Stage)
	assert.Equal(t, "unsupported_version", doc.Error.Class)
	assert.Empty(t, doc.Method)
}

func TestWriteSummary(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	WriteSummary(&buf, Summary{
		Payloads: 3,
		Decoded:  2,
		Failed:   1,
		Methods:  map[string]uint64{"GetItem": 2, "": 1},
		Kinds:    map[string]uint64{"CALL": 1, "REPLY": 1},
		Errors:   map[string]uint64{"truncated": 1},
	})
	out := buf.String()
	for _, want := range []string{"GetItem", "(none)", "REPLY", "truncated", "decoded"} {
		assert.True(t, strings.Contains(out, want), "missing %q in:\n%s", want, out)
	}
}
