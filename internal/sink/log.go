package sink

import (
	"context"

	"github.com/rs/zerolog"

	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/report"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zerolog.Logger
}

// NewLogSink logs through logger, or the process logger when nil.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	if logger == nil {
		logger = logs.Logger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Emit(_ context.Context, ev report.Event) error {
	var e *zerolog.Event
	if ev.Err != nil {
		e = s.logger.Warn().Err(ev.Err).Str("class", protocol.Class(ev.Err))
	} else {
		e = s.logger.Info()
	}
	e = e.Str("id", ev.ID.String()).
		Str("flow", ev.Payload.Flow()).
		Int("size", len(ev.Payload.Data))
	if msg := ev.Message; msg != nil {
		e = e.Str("variant", msg.Variant.String()).
			Str("envelope", msg.Envelope.String()).
			Str("kind", msg.Kind.String()).
			Str("method", msg.Method).
			Int32("seq", msg.SeqID).
			Int("fields", len(msg.Fields))
	}
	if ev.Annotation != nil && len(ev.Annotation.Problems) > 0 {
		e = e.Int("problems", len(ev.Annotation.Problems))
	}
	e.Msg("sink.LogSink.Emit")
	return nil
}

func (s *LogSink) Close() error { return nil }
