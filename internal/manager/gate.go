package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gate bounds concurrent streams and implements the one-way drain.
type Gate struct {
	sem  *semaphore.Weighted
	max  int
	held atomic.Int64

	drainOnce sync.Once
	drainCh   chan struct{}
	grace     time.Duration
	graceCh   chan struct{}
}

// NewGate returns an armed gate admitting at most max concurrent holders.
func NewGate(max int, grace time.Duration) *Gate {
	if max <= 0 {
		max = defaultMaxConcurrent
	}
	return &Gate{
		sem:     semaphore.NewWeighted(int64(max)),
		max:     max,
		drainCh: make(chan struct{}),
		grace:   grace,
		graceCh: make(chan struct{}),
	}
}

// Acquire blocks until a slot is free. It fails immediately with ErrDraining
// once draining has started, including for callers already waiting. The
// returned release func is idempotent.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if g.Draining() {
		return nil, ErrDraining
	}
	if !g.sem.TryAcquire(1) {
		actx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-g.drainCh:
				cancel()
			case <-actx.Done():
			}
		}()
		if err := g.sem.Acquire(actx, 1); err != nil {
			if g.Draining() && ctx.Err() == nil {
				return nil, ErrDraining
			}
			return nil, err
		}
	}
	g.held.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			g.held.Add(-1)
			g.sem.Release(1)
		})
	}, nil
}

// StartDrain flips the gate to draining. It is idempotent and irreversible.
// The returned channel closes when the grace window has elapsed; nothing
// waits on in-flight work.
func (g *Gate) StartDrain() <-chan struct{} {
	g.drainOnce.Do(func() {
		close(g.drainCh)
		time.AfterFunc(g.grace, func() { close(g.graceCh) })
	})
	return g.graceCh
}

// Draining reports whether StartDrain has been called.
func (g *Gate) Draining() bool {
	select {
	case <-g.drainCh:
		return true
	default:
		return false
	}
}

// InFlight returns the number of held slots.
func (g *Gate) InFlight() int { return int(g.held.Load()) }

// Max returns the configured slot count.
func (g *Gate) Max() int { return g.max }
