package sink

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	logs "github.com/danmuck/thriftsniff/internal/logging"
)

// Backoff is the dial retry schedule of the NATS and Redis sinks. The wait
// starts at Initial and doubles after every failed attempt up to Max.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	// Jitter spreads each wait over [wait/2, 3*wait/2] so several sniffers
	// restarted together do not hit the broker in lockstep.
	Jitter bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		Attempts: 4,
		Initial:  250 * time.Millisecond,
		Max:      5 * time.Second,
		Jitter:   true,
	}
}

// wait is swapped in tests to record the schedule without sleeping.
var wait = time.After

// retry dials with fn until it succeeds, the attempts run out or ctx
// ends. The last dial error is returned.
func retry(ctx context.Context, b Backoff, backend string, fn func(context.Context) error) error {
	attempts := max(b.Attempts, 1)
	next := b.Initial
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logs.Infof("sink.retry %s connected attempt=%d", backend, attempt)
			}
			return nil
		}
		if attempt >= attempts {
			return err
		}

		d := max(next, 0)
		if b.Jitter && d > 0 {
			d = d/2 + rand.N(d+1)
		}
		logs.Warnf("sink.retry %s attempt=%d/%d wait=%s err=%v", backend, attempt, attempts, d, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-wait(d):
		}

		next *= 2
		if b.Max > 0 && next > b.Max {
			next = b.Max
		}
	}
}
