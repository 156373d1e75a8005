// Package sniffer runs the capture -> decode -> sink pipeline. Payloads are
// decoded by a pool of workers and dispatched to sinks in capture order.
package sniffer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danmuck/thriftsniff/internal/capture"
	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/observability"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/protocol/schema"
	"github.com/danmuck/thriftsniff/internal/report"
	"github.com/danmuck/thriftsniff/internal/sink"
)

var ErrPayloadTooLarge = errors.New("sniffer: payload exceeds max_payload")

// Source yields captured payloads. Next returns io.EOF when done.
type Source interface {
	Next(ctx context.Context) (capture.Payload, error)
}

type Config struct {
	Workers int
	Queue   int
	// MaxPayload skips decoding of larger payloads; 0 disables the check.
	MaxPayload int
	// Schema annotates successfully decoded messages when set.
	Schema *schema.Registry
}

func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), Queue: 256}
}

type Sniffer struct {
	cfg     Config
	decoder *protocol.Decoder
	sinks   []sink.Sink
	stats   *Stats
}

func New(cfg Config, decoder *protocol.Decoder, sinks ...sink.Sink) *Sniffer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Queue <= 0 {
		cfg.Queue = cfg.Workers
	}
	if decoder == nil {
		decoder = protocol.NewDecoder(protocol.DefaultOptions())
	}
	return &Sniffer{cfg: cfg, decoder: decoder, sinks: sinks, stats: NewStats()}
}

func (s *Sniffer) Stats() *Stats {
	return s.stats
}

type job struct {
	seq     uint64
	payload capture.Payload
}

type result struct {
	seq uint64
	ev  report.Event
}

// Run consumes src until it is exhausted or ctx is done. Decode failures
// are reported as events and never end the run; a source error does.
// Cancellation of ctx is a clean stop and returns nil.
func (s *Sniffer) Run(ctx context.Context, src Source) error {
	logs.Infof("sniffer.Sniffer.Run start workers=%d queue=%d sinks=%d", s.cfg.Workers, s.cfg.Queue, len(s.sinks))
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, s.cfg.Queue)
	results := make(chan result, s.cfg.Queue)

	g.Go(func() error {
		defer close(jobs)
		var seq uint64
		for {
			p, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				logs.Errf("sniffer.Sniffer.Run source failed after=%d err=%v", seq, err)
				return fmt.Errorf("sniffer: read source: %w", err)
			}
			select {
			case jobs <- job{seq: seq, payload: p}:
				seq++
			case <-gctx.Done():
				return nil
			}
		}
	})

	var workers sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				select {
				case results <- result{seq: j.seq, ev: s.Process(j.payload)}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	g.Go(func() error {
		pending := make(map[uint64]report.Event)
		var next uint64
		for r := range results {
			pending[r.seq] = r.ev
			for {
				ev, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				s.dispatch(gctx, ev)
			}
		}
		return nil
	})

	err := g.Wait()
	snap := s.stats.Snapshot()
	logs.Infof("sniffer.Sniffer.Run done payloads=%d decoded=%d failed=%d", snap.Payloads, snap.Decoded, snap.Failed)
	return err
}

// Process decodes one payload into an event. It is safe to call
// concurrently.
func (s *Sniffer) Process(p capture.Payload) report.Event {
	if s.cfg.MaxPayload > 0 && len(p.Data) > s.cfg.MaxPayload {
		return report.NewEvent(p, nil, ErrPayloadTooLarge)
	}
	start := time.Now()
	msg, err := s.decoder.Decode(p.Data)
	ev := report.NewEvent(p, msg, err)
	ev.Elapsed = time.Since(start)
	logs.Tracef("sniffer.Sniffer.Process index=%d size=%d elapsed=%s err=%v", p.Index, len(p.Data), ev.Elapsed, err)
	if err == nil && s.cfg.Schema != nil {
		ann := s.cfg.Schema.Annotate(msg)
		ev.Annotation = &ann
	}
	return ev
}

func (s *Sniffer) dispatch(ctx context.Context, ev report.Event) {
	s.stats.record(ev)
	recordMetrics(ev)
	if ev.Err != nil {
		logs.Debugf("sniffer.Sniffer.dispatch decode failed index=%d flow=%q err=%v", ev.Payload.Index, ev.Payload.Flow(), ev.Err)
	}
	for _, sk := range s.sinks {
		if err := sk.Emit(ctx, ev); err != nil {
			observability.RecordSinkError(sk.Name())
			logs.Warnf("sniffer.Sniffer.dispatch sink=%s id=%s err=%v", sk.Name(), ev.ID, err)
		}
	}
}

func recordMetrics(ev report.Event) {
	variant := protocol.VariantUnknown
	if ev.Message != nil {
		variant = ev.Message.Variant
	}
	observability.RecordPayload(variant.String(), len(ev.Payload.Data), ev.Elapsed)
	if msg := ev.Message; msg != nil {
		observability.RecordMessage(msg.Variant.String(), msg.Envelope.String(), msg.Kind.String(), msg.Method)
	}
	if ev.Err != nil {
		stage := protocol.StageOf(ev.Err).String()
		observability.RecordDecodeError(stage, protocol.Class(ev.Err))
	}
}

// Close closes every sink.
func (s *Sniffer) Close() error {
	var errs []error
	for _, sk := range s.sinks {
		if err := sk.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", sk.Name(), err))
		}
	}
	return errors.Join(errs...)
}
