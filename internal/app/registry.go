package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/outqueue/internal/ports"
)

// DefaultUnloadPause bounds how long an unload waits for queues to empty.
const DefaultUnloadPause = 500 * time.Millisecond

// idlePoll is how often WaitIdle re-reads occupancy.
const idlePoll = 10 * time.Millisecond

// Flushable is a queue the registry can observe and flush.
type Flushable interface {
	Key() string
	Pending() int
	BufferSize() int
	Flush(ctx context.Context) error
}

// Registry tracks every live queue so the host can flush them on a timer
// and hold shutdown while events are still pending. It is passed to each
// manager explicitly instead of living in package state.
type Registry struct {
	mu     sync.RWMutex
	queues []Flushable
	logger ports.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger ports.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds q. Registering the same queue twice is a no-op.
func (r *Registry) Register(q Flushable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.queues {
		if existing == q {
			return
		}
	}
	r.queues = append(r.queues, q)
}

// Unregister removes q.
func (r *Registry) Unregister(q Flushable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.queues {
		if existing == q {
			r.queues = append(r.queues[:i], r.queues[i+1:]...)
			return
		}
	}
}

func (r *Registry) snapshot() []Flushable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Flushable, len(r.queues))
	copy(out, r.queues)
	return out
}

// Len returns the number of registered queues.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// Pending returns the number of undelivered events across all queues.
func (r *Registry) Pending() int {
	total := 0
	for _, q := range r.snapshot() {
		total += q.Pending()
	}
	return total
}

// FlushBuffers flushes the queues that batch (buffer size above one).
// These are the only ones that can hold events between enqueues, so they
// are the ones a periodic timer needs to visit.
func (r *Registry) FlushBuffers(ctx context.Context) {
	for _, q := range r.snapshot() {
		if q.BufferSize() <= 1 {
			continue
		}
		if err := q.Flush(ctx); err != nil {
			r.logger.Warn("periodic flush failed", ports.Queue(q.Key()), ports.Err(err))
		}
	}
}

// FlushAll flushes every registered queue concurrently and returns the
// joined errors.
func (r *Registry) FlushAll(ctx context.Context) error {
	queues := r.snapshot()
	errs := make([]error, len(queues))

	var g errgroup.Group
	for i, q := range queues {
		i, q := i, q
		g.Go(func() error {
			errs[i] = q.Flush(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// WaitIdle blocks until no events are pending, pause elapses or ctx ends.
// It reports whether everything was delivered.
func (r *Registry) WaitIdle(ctx context.Context, pause time.Duration) bool {
	if r.Pending() == 0 {
		return true
	}
	deadline := time.NewTimer(pause)
	defer deadline.Stop()
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.Pending() == 0
		case <-deadline.C:
			return r.Pending() == 0
		case <-ticker.C:
			if r.Pending() == 0 {
				return true
			}
		}
	}
}

// Unload is the last-chance flush: flush every queue, then wait up to
// pause for them to empty.
func (r *Registry) Unload(ctx context.Context, pause time.Duration) bool {
	if err := r.FlushAll(ctx); err != nil {
		r.logger.Warn("unload flush failed", ports.Err(err))
	}
	delivered := r.WaitIdle(ctx, pause)
	if !delivered {
		r.logger.Warn("unload finished with events pending", ports.Int("pending", r.Pending()))
	}
	return delivered
}

// RunFlushTicker calls FlushBuffers every interval until ctx is done.
func (r *Registry) RunFlushTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.FlushBuffers(ctx)
		}
	}
}
