package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Jitter bounds added to every throttled wait so that retries from
// several operations never line up against the upstream provider.
const (
	defaultJitterMin = 100 * time.Millisecond
	defaultJitterMax = 400 * time.Millisecond
)

// Gate enforces a minimum interval between successive calls of one
// throttled operation. Concurrent callers serialize on the internal
// mutex, forming a single queue per operation; jitter is drawn
// independently for each call. A Gate never fails, it only delays —
// except when the caller's context ends first.
//
// This is a process-local discipline. Multiple running instances do not
// coordinate.
type Gate struct {
	interval  time.Duration
	jitterMin time.Duration
	jitterMax time.Duration

	// test seams
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu   sync.Mutex
	last time.Time
}

func NewGate(interval time.Duration) *Gate {
	return &Gate{
		interval:  interval,
		jitterMin: defaultJitterMin,
		jitterMax: defaultJitterMax,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Acquire blocks until at least the configured interval has elapsed
// since the previous acquisition completed, then records the new
// last-called instant.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil || g.interval <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.last.IsZero() {
		if wait := g.interval - g.now().Sub(g.last); wait > 0 {
			wait += g.jitter()
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	g.last = g.now()
	return nil
}

func (g *Gate) jitter() time.Duration {
	span := g.jitterMax - g.jitterMin
	if span <= 0 {
		return g.jitterMin
	}
	return g.jitterMin + time.Duration(rand.Int63n(int64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
