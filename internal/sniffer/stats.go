package sniffer

import (
	"sync"

	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/report"
)

// Stats counts events as they are dispatched. It is safe for concurrent
// reads while a run is in progress.
type Stats struct {
	mu       sync.Mutex
	payloads uint64
	decoded  uint64
	failed   uint64
	methods  map[string]uint64
	kinds    map[string]uint64
	errors   map[string]uint64
}

func NewStats() *Stats {
	return &Stats{
		methods: make(map[string]uint64),
		kinds:   make(map[string]uint64),
		errors:  make(map[string]uint64),
	}
}

func (s *Stats) record(ev report.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads++
	if ev.Err != nil {
		s.failed++
		s.errors[protocol.Class(ev.Err)]++
	} else {
		s.decoded++
	}
	if ev.Message != nil {
		s.methods[ev.Message.Method]++
		s.kinds[ev.Message.Kind.String()]++
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() report.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.Summary{
		Payloads: s.payloads,
		Decoded:  s.decoded,
		Failed:   s.failed,
		Methods:  copyCounts(s.methods),
		Kinds:    copyCounts(s.kinds),
		Errors:   copyCounts(s.errors),
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
