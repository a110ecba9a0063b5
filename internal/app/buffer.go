package app

import (
	"context"
	"errors"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/outqueue/internal/domain"
	"github.com/bft-labs/outqueue/internal/ports"
)

// Buffer is the persistent side of a queue. It never fails loudly: a bad
// stored value loads as an empty queue and a failed write reports false.
type Buffer struct {
	store  ports.KVStore
	logger ports.Logger

	probeOnce sync.Once
	available bool
}

// NewBuffer wraps store. A nil store yields a buffer that is never
// available.
func NewBuffer(store ports.KVStore, logger ports.Logger) *Buffer {
	return &Buffer{store: store, logger: logger}
}

// Available probes the store on first use and caches the answer.
func (b *Buffer) Available(ctx context.Context) bool {
	b.probeOnce.Do(func() {
		if b.store == nil {
			return
		}
		if err := b.store.Probe(ctx); err != nil {
			b.logger.Warn("persistent storage unavailable", ports.Err(err))
			return
		}
		b.available = true
	})
	return b.available
}

// Load reads the queue stored under key. A missing key, unparsable JSON or
// a value that is not a list all load as an empty queue. List elements
// that are not envelope objects are kept as invalid placeholders so that
// compaction can drop them in order.
func (b *Buffer) Load(ctx context.Context, key string) domain.Queue {
	if !b.Available(ctx) {
		return domain.Queue{}
	}

	raw, ok, err := b.store.Get(ctx, key)
	if err != nil {
		b.logger.Warn("failed to read persisted queue", ports.Queue(key), ports.Err(err))
		return domain.Queue{}
	}
	if !ok || raw == "" {
		return domain.Queue{}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		b.logger.Warn("discarding unreadable persisted queue", ports.Queue(key), ports.Err(err))
		return domain.Queue{}
	}

	q := make(domain.Queue, 0, len(elems))
	for _, elem := range elems {
		var e domain.Envelope
		if err := json.Unmarshal(elem, &e); err != nil {
			q = append(q, domain.Envelope{Bytes: -1})
			continue
		}
		q = append(q, e)
	}
	return q
}

// Save writes q under key and reports whether the write happened.
func (b *Buffer) Save(ctx context.Context, key string, q domain.Queue) bool {
	if !b.Available(ctx) {
		return false
	}

	if q == nil {
		q = domain.Queue{}
	}
	data, err := json.Marshal(q)
	if err != nil {
		b.logger.Warn("failed to encode queue", ports.Queue(key), ports.Err(err))
		return false
	}

	if err := b.store.Set(ctx, key, string(data)); err != nil {
		if errors.Is(err, ports.ErrQuotaExceeded) {
			b.logger.Warn("persistent storage full", ports.Queue(key), ports.Events(q.Len()))
		} else {
			b.logger.Warn("failed to persist queue", ports.Queue(key), ports.Err(err))
		}
		return false
	}
	return true
}
