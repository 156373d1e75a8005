package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/report"
)

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every event document as JSON on
// "<subject>.<kind>.<method>" and on "<subject>.all".
type NATSSink struct {
	pub     Publisher
	subject string
	closeFn func()
}

// DialNATS connects to url, retrying with DefaultBackoff, and returns a
// sink owning the connection.
func DialNATS(ctx context.Context, url, subject string) (*NATSSink, error) {
	var conn *nats.Conn
	err := retry(ctx, DefaultBackoff(), "nats "+url, func(context.Context) error {
		var err error
		conn, err = nats.Connect(url, nats.Name("thriftsniff"), nats.MaxReconnects(-1))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sink: connect nats %s: %w", url, err)
	}
	logs.Infof("sink.DialNATS url=%s subject=%s", url, subject)
	return NewNATSSink(conn, subject, func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}), nil
}

func NewNATSSink(pub Publisher, subject string, closeFn func()) *NATSSink {
	return &NATSSink{pub: pub, subject: strings.TrimSuffix(subject, "."), closeFn: closeFn}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Emit(_ context.Context, ev report.Event) error {
	data, err := json.Marshal(report.NewDocument(ev))
	if err != nil {
		return fmt.Errorf("sink: encode event %s: %w", ev.ID, err)
	}
	subject := s.subject + "." + token(strings.ToLower(ev.Kind().String())) + "." + token(ev.Method())
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("sink: publish %s: %w", subject, err)
	}
	if err := s.pub.Publish(s.subject+".all", data); err != nil {
		return fmt.Errorf("sink: publish %s.all: %w", s.subject, err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// token makes s usable as a single NATS subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
