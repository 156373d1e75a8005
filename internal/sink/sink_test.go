package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/thriftsniff/internal/capture"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/report"
	"github.com/danmuck/thriftsniff/internal/testutil/testlog"
)

func testEvent(t *testing.T, method string) report.Event {
	t.Helper()
	raw, err := protocol.Encode(&protocol.Message{
		Variant: protocol.VariantCompact,
		Kind:    protocol.KindCall,
		Method:  method,
		SeqID:   1,
		Fields:  []protocol.Field{protocol.NewField(1, protocol.NewI32(5))},
	})
	require.NoError(t, err)
	msg, err := protocol.Decode(raw)
	require.NoError(t, err)
	return report.NewEvent(capture.Payload{
		SrcIP:   netip.MustParseAddr("10.0.0.1"),
		DstIP:   netip.MustParseAddr("10.0.0.2"),
		SrcPort: 40000,
		DstPort: 9090,
		Data:    raw,
	}, msg, nil)
}

type recordedPublish struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	published []recordedPublish
	err       error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, recordedPublish{subject: subject, data: data})
	return nil
}

type fakeRedis struct {
	hashes map[string]map[string]int64
	lists  map[string][]string
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: map[string]map[string]int64{}, lists: map[string][]string{}}
}

func (f *fakeRedis) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]int64{}
	}
	f.hashes[key][field] += incr
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.hashes[key][field])
	return cmd
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append([]string{string(v.([]byte))}, f.lists[key]...)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedis) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	l := f.lists[key]
	if int(stop)+1 < len(l) {
		f.lists[key] = l[start : stop+1]
	}
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestReportSinkWritesText(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	s := NewReportSink(&buf, report.TextOptions{})
	require.NoError(t, s.Emit(context.Background(), testEvent(t, "ping")))
	assert.Contains(t, buf.String(), "method=ping")
	assert.Equal(t, "report", s.Name())
}

func TestLogSinkFields(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s := NewLogSink(&logger)
	require.NoError(t, s.Emit(context.Background(), testEvent(t, "GetItem")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "GetItem", line["method"])
	assert.Equal(t, "compact", line["variant"])
	assert.Equal(t, "info", line["level"])

	buf.Reset()
	ev := testEvent(t, "GetItem")
	ev.Err = protocol.ErrTruncated
	require.NoError(t, s.Emit(context.Background(), ev))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "truncated", line["class"])
}

func TestNATSSinkSubjects(t *testing.T) {
	testlog.Start(t)
	pub := &fakePublisher{}
	s := NewNATSSink(pub, "thrift.", nil)
	require.NoError(t, s.Emit(context.Background(), testEvent(t, "svc.Get Item")))

	require.Len(t, pub.published, 2)
	assert.Equal(t, "thrift.call.svc_Get_Item", pub.published[0].subject)
	assert.Equal(t, "thrift.all", pub.published[1].subject)

	var doc report.Document
	require.NoError(t, json.Unmarshal(pub.published[0].data, &doc))
	assert.Equal(t, "svc.Get Item", doc.Method)

	pub.err = errors.New("nats down")
	assert.Error(t, s.Emit(context.Background(), testEvent(t, "x")))
}

func TestRedisSinkCountersAndRecent(t *testing.T) {
	testlog.Start(t)
	client := newFakeRedis()
	s := NewRedisSink(client, "ts", 2)
	ctx := context.Background()

	for _, m := range []string{"a", "b", "a"} {
		require.NoError(t, s.Emit(ctx, testEvent(t, m)))
	}
	bad := report.NewEvent(capture.Payload{}, nil, protocol.ErrUnsupportedVersion)
	require.NoError(t, s.Emit(ctx, bad))

	assert.Equal(t, int64(2), client.hashes["ts:methods"]["a"])
	assert.Equal(t, int64(1), client.hashes["ts:methods"]["b"])
	assert.Equal(t, int64(1), client.hashes["ts:errors"]["unsupported_version"])
	require.Len(t, client.lists["ts:recent"], 2)

	var newest report.Document
	require.NoError(t, json.Unmarshal([]byte(client.lists["ts:recent"][0]), &newest))
	require.NotNil(t, newest.Error)

	require.NoError(t, s.Close())
	assert.True(t, client.closed)
}

type failingSink struct{ closed bool }

func (f *failingSink) Name() string { return "failing" }
func (f *failingSink) Emit(context.Context, report.Event) error {
	return errors.New("emit failed")
}
func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiKeepsGoing(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	bad := &failingSink{}
	m := Multi{bad, NewReportSink(&buf, report.TextOptions{})}
	err := m.Emit(context.Background(), testEvent(t, "ping"))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "method=ping")
	require.NoError(t, m.Close())
	assert.True(t, bad.closed)
}
