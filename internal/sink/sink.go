// Package sink delivers decode events to their destinations: a text
// report, the structured log, NATS and Redis.
package sink

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/danmuck/thriftsniff/internal/report"
)

// Sink receives events in capture order from a single goroutine.
type Sink interface {
	Name() string
	Emit(ctx context.Context, ev report.Event) error
	Close() error
}

// ReportSink writes the text rendering of every event to w.
type ReportSink struct {
	mu   sync.Mutex
	w    io.Writer
	opts report.TextOptions
}

func NewReportSink(w io.Writer, opts report.TextOptions) *ReportSink {
	return &ReportSink{w: w, opts: opts}
}

func (s *ReportSink) Name() string { return "report" }

func (s *ReportSink) Emit(_ context.Context, ev report.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.WriteMessage(s.w, ev, s.opts)
}

func (s *ReportSink) Close() error { return nil }

// Multi fans an event out to every sink. One failing sink does not stop
// the others; their errors are joined.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Emit(ctx context.Context, ev report.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
