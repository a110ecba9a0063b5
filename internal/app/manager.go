package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/outqueue/internal/batch"
	"github.com/bft-labs/outqueue/internal/bytesize"
	"github.com/bft-labs/outqueue/internal/domain"
	"github.com/bft-labs/outqueue/internal/ports"
	"github.com/bft-labs/outqueue/pkg/log"
)

// Defaults for the queue manager.
const (
	DefaultMaxBatchBytes  = 40000
	DefaultRequestTimeout = time.Second
	DefaultHostScheme     = "https"
)

// Config contains configuration for a queue manager.
type Config struct {
	// Key identifies the queue in the persistent buffer.
	Key domain.QueueKey

	// BufferSize is the queue length at which an enqueue triggers a drain.
	// Values below 1 are treated as 1.
	BufferSize int

	// MaxBatchBytes is the byte budget of one POST. Events whose size
	// reaches it are never queued.
	MaxBatchBytes int

	// UsePersistence mirrors the queue into the store after each change.
	UsePersistence bool

	// SecureCredentials attaches credentials on drains started by Flush
	// and Enqueue.
	SecureCredentials bool

	// APIKey is sent as x-api-key when not empty.
	APIKey string

	// RequestTimeout bounds each POST.
	RequestTimeout time.Duration

	// ForceSecure and ForceInsecure pick the collector scheme in
	// SetCollectorURL. ForceSecure wins when both are set.
	ForceSecure   bool
	ForceInsecure bool

	// HostScheme is used when neither force flag is set.
	HostScheme string
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Key:            domain.NewQueueKey("snowplow", "default"),
		BufferSize:     1,
		MaxBatchBytes:  DefaultMaxBatchBytes,
		UsePersistence: true,
		RequestTimeout: DefaultRequestTimeout,
		HostScheme:     DefaultHostScheme,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxBatchBytes <= 0 {
		return fmt.Errorf("%w: max batch bytes must be positive", domain.ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.Key.FunctionName == "" {
		return fmt.Errorf("%w: function name is required", domain.ErrInvalidConfig)
	}
	switch c.HostScheme {
	case "", "http", "https":
	default:
		return fmt.Errorf("%w: host scheme must be http or https, got %q", domain.ErrInvalidConfig, c.HostScheme)
	}
	return nil
}

// SendEventEmitter is called on send success or failure.
type SendEventEmitter interface {
	OnSendSuccess(eventCount, bytesSent int, duration time.Duration)
	OnSendError(err error, eventCount int, retryable bool)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore sets the persistent buffer backend.
func WithStore(store ports.KVStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithTransport sets the transport. Without one, oversize events are
// dropped and drains keep events queued.
func WithTransport(t ports.Transport) ManagerOption {
	return func(m *Manager) {
		m.transport = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEmitter sets the send event emitter.
func WithEmitter(e SendEventEmitter) ManagerOption {
	return func(m *Manager) {
		m.emitter = e
	}
}

// WithRegistry registers the manager with an unload registry.
func WithRegistry(r *Registry) ManagerOption {
	return func(m *Manager) {
		m.registry = r
	}
}

// Manager owns one outbound queue. Enqueue admits events, Drain sends them
// in byte-bounded batches with at most one request in flight, and the
// queue is mirrored into the persistent buffer after every change.
type Manager struct {
	cfg        Config
	key        string
	bufferSize int
	persist    bool

	store     ports.KVStore
	buffer    *Buffer
	transport ports.Transport
	logger    ports.Logger
	emitter   SendEventEmitter
	registry  *Registry

	mu           sync.Mutex
	queue        domain.Queue
	draining     bool
	idle         chan struct{}
	collectorURL string
	closed       bool

	pending atomic.Int64

	// ctx scopes every request; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager and loads any queue persisted under its key.
func NewManager(ctx context.Context, cfg Config, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HostScheme == "" {
		cfg.HostScheme = DefaultHostScheme
	}

	m := &Manager{
		cfg:    cfg,
		key:    cfg.Key.String(),
		logger: log.NewNoopLogger(),
		idle:   closedChan(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.buffer = NewBuffer(m.store, m.logger)
	m.persist = cfg.UsePersistence && m.buffer.Available(ctx)

	m.bufferSize = cfg.BufferSize
	if m.bufferSize < 1 || !m.persist {
		m.bufferSize = 1
	}

	if m.persist {
		m.queue = m.buffer.Load(ctx, m.key)
	} else {
		m.queue = domain.Queue{}
	}
	m.setPending()

	m.ctx, m.cancel = context.WithCancel(context.Background())

	if m.registry != nil {
		m.registry.Register(m)
	}

	m.logger.Debug("queue manager created",
		ports.Queue(m.key),
		ports.Int("buffer_size", m.bufferSize),
		ports.Bool("persist", m.persist),
		ports.Int("loaded", m.queue.Len()),
	)
	return m, nil
}

// Key returns the persistence key.
func (m *Manager) Key() string {
	return m.key
}

// BufferSize returns the effective drain threshold.
func (m *Manager) BufferSize() int {
	return m.bufferSize
}

// Persistent reports whether the queue is mirrored into a store.
func (m *Manager) Persistent() bool {
	return m.persist
}

// Pending returns the number of queued events. It does not take the
// queue lock and can be polled from any goroutine.
func (m *Manager) Pending() int {
	return int(m.pending.Load())
}

// Draining reports whether a drain is in progress.
func (m *Manager) Draining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draining
}

// CollectorURL returns the full endpoint drains post to.
func (m *Manager) CollectorURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectorURL
}

// SetCollectorURL sets the collector from a host (and optional path)
// without scheme. The scheme comes from ForceSecure, then ForceInsecure,
// then HostScheme.
func (m *Manager) SetCollectorURL(raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectorURL = m.asCollectorBase(raw) + domain.CollectorPath
}

func (m *Manager) asCollectorBase(raw string) string {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	raw = strings.TrimRight(raw, "/")
	switch {
	case m.cfg.ForceSecure:
		return "https://" + raw
	case m.cfg.ForceInsecure:
		return "http://" + raw
	default:
		return m.cfg.HostScheme + "://" + raw
	}
}

// Enqueue admits event for the configured collector. The event is
// serialized to JSON once; json.RawMessage and []byte values are taken as
// already serialized.
//
// An event whose size reaches MaxBatchBytes is not queued. It is sent on
// its own, dropped when no transport is configured, and dropped with
// ErrNoCollector when no collector is set. Otherwise the event
// is appended, persisted, and a drain starts when the write failed or the
// queue reached BufferSize. ErrNoCollector is returned when that drain
// cannot start; the event stays queued.
func (m *Manager) Enqueue(ctx context.Context, event any) error {
	return m.enqueue(ctx, event, "", m.cfg.SecureCredentials)
}

// EnqueueTo is Enqueue with an explicit collector base URL such as
// "https://collector.example.com". The URL replaces the configured one.
func (m *Manager) EnqueueTo(ctx context.Context, event any, collectorBase string, secureCredentials bool) error {
	if collectorBase == "" {
		return fmt.Errorf("%w: empty collector url", domain.ErrInvalidConfig)
	}
	return m.enqueue(ctx, event, strings.TrimRight(collectorBase, "/")+domain.CollectorPath, secureCredentials)
}

func (m *Manager) enqueue(ctx context.Context, event any, url string, creds bool) error {
	data, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	env := domain.Envelope{Event: data, Bytes: bytesize.Estimate(string(data))}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrClosed
	}
	if url != "" {
		m.collectorURL = url
	}

	if env.Bytes >= m.cfg.MaxBatchBytes {
		err := m.sendOversizeLocked(env, creds)
		m.mu.Unlock()
		return err
	}

	m.queue = append(m.queue, env)
	saved := false
	if m.persist {
		saved = m.saveLocked(ctx)
	}
	m.setPending()
	shouldDrain := !m.draining && (!saved || m.queue.Len() >= m.bufferSize)
	m.mu.Unlock()

	eventsEnqueuedTotal.WithLabelValues(m.key).Inc()

	if shouldDrain {
		return m.Drain(ctx, creds)
	}
	return nil
}

func marshalEvent(event any) (json.RawMessage, error) {
	switch v := event.(type) {
	case json.RawMessage:
		return compactJSON(v)
	case []byte:
		return compactJSON(v)
	default:
		return json.Marshal(event)
	}
}

func compactJSON(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sendOversizeLocked fires one isolated single-event request. It never
// touches the queue or the draining flag. Callers hold m.mu, so Close
// cannot slip between the closed check and wg.Add.
func (m *Manager) sendOversizeLocked(env domain.Envelope, creds bool) error {
	eventsOversizeTotal.WithLabelValues(m.key).Inc()
	m.logger.Warn("event is too long",
		ports.Queue(m.key),
		ports.Bytes(env.Bytes),
		ports.Int("max_bytes", m.cfg.MaxBatchBytes),
	)

	if m.collectorURL == "" {
		eventsDroppedTotal.WithLabelValues(m.key, "oversize").Inc()
		m.logger.Warn("dropping oversize event, no collector", ports.Queue(m.key))
		return domain.ErrNoCollector
	}
	if m.transport == nil {
		eventsDroppedTotal.WithLabelValues(m.key, "oversize").Inc()
		m.logger.Warn("dropping oversize event, no transport", ports.Queue(m.key))
		return nil
	}

	req := ports.Request{
		URL:               m.collectorURL,
		Events:            []json.RawMessage{env.Event},
		SecureCredentials: creds,
		APIKey:            m.cfg.APIKey,
	}
	m.wg.Add(1)
	go m.sendAlone(req, env.Bytes)
	return nil
}

func (m *Manager) sendAlone(req ports.Request, size int) {
	defer m.wg.Done()
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	res := m.transport.Send(ctx, req)
	m.observe(res, time.Since(start))
	if res.Outcome != ports.OutcomeSuccess {
		m.logger.Warn("oversize event send failed",
			ports.Queue(m.key),
			ports.String("outcome", res.Outcome.String()),
			ports.Err(res.Err),
		)
		if m.emitter != nil {
			m.emitter.OnSendError(res.Err, 1, false)
		}
		return
	}
	eventsSentTotal.WithLabelValues(m.key).Inc()
	if m.emitter != nil {
		m.emitter.OnSendSuccess(1, size, time.Since(start))
	}
}

// Flush drains with the configured credentials flag.
func (m *Manager) Flush(ctx context.Context) error {
	return m.Drain(ctx, m.cfg.SecureCredentials)
}

// Drain starts sending queued events. Malformed entries at the head are
// dropped first. It returns ErrNoCollector when events are pending but no
// collector is set, and nil when the queue is empty or a drain is already
// running. The sends themselves happen on a background goroutine.
func (m *Manager) Drain(ctx context.Context, secureCredentials bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return domain.ErrClosed
	}
	if m.draining {
		return nil
	}

	m.compactLocked(ctx)
	if m.queue.Empty() {
		return nil
	}
	if m.collectorURL == "" {
		return domain.ErrNoCollector
	}
	if m.transport == nil {
		m.logger.Warn("no transport configured, events stay queued", ports.Queue(m.key))
		return nil
	}

	m.draining = true
	m.idle = make(chan struct{})
	m.wg.Add(1)
	go m.drainLoop(secureCredentials)
	return nil
}

func (m *Manager) drainLoop(creds bool) {
	defer m.wg.Done()
	defer m.finishDrain()

	for {
		m.mu.Lock()
		m.compactLocked(m.ctx)
		if m.closed || m.queue.Empty() {
			m.mu.Unlock()
			return
		}
		plan := batch.NewPlan(m.queue, m.cfg.MaxBatchBytes)
		req := ports.Request{
			URL:               m.collectorURL,
			Events:            plan.Payloads,
			SecureCredentials: creds,
			APIKey:            m.cfg.APIKey,
		}
		m.mu.Unlock()

		if plan.Empty() {
			return
		}
		if plan.Oversize {
			m.logger.Warn("queued event exceeds batch budget, sending alone",
				ports.Queue(m.key),
				ports.Bytes(plan.Bytes),
			)
		}

		if !m.send(req, plan) {
			return
		}
	}
}

// send issues one request for plan and reports whether the loop should
// continue.
func (m *Manager) send(req ports.Request, plan batch.Plan) bool {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	res := m.transport.Send(ctx, req)
	if res.Outcome == ports.OutcomeAmbiguous {
		// No status: nothing is known until the deadline.
		<-ctx.Done()
	}
	duration := time.Since(start)
	m.observe(res, duration)

	switch res.Outcome {
	case ports.OutcomeSuccess:
		m.mu.Lock()
		m.queue = m.queue.PopFront(plan.Count)
		if m.persist {
			m.saveLocked(m.ctx)
		}
		m.setPending()
		m.mu.Unlock()

		eventsSentTotal.WithLabelValues(m.key).Add(float64(plan.Count))
		m.logger.Debug("sent batch",
			ports.Queue(m.key),
			ports.Events(plan.Count),
			ports.Bytes(plan.Bytes),
			ports.Duration("duration", duration),
		)
		if m.emitter != nil {
			m.emitter.OnSendSuccess(plan.Count, plan.Bytes, duration)
		}
		return true

	case ports.OutcomeFailure:
		m.logger.Warn("collector rejected batch",
			ports.Queue(m.key),
			ports.Status(res.StatusCode),
			ports.Events(plan.Count),
		)

	default:
		m.logger.Warn("batch not acknowledged before timeout",
			ports.Queue(m.key),
			ports.String("outcome", res.Outcome.String()),
			ports.Duration("timeout", m.cfg.RequestTimeout),
			ports.Events(plan.Count),
			ports.Err(res.Err),
		)
	}

	if m.emitter != nil {
		err := res.Err
		if err == nil {
			err = fmt.Errorf("send %s", res.Outcome)
		}
		m.emitter.OnSendError(err, plan.Count, true)
	}
	return false
}

func (m *Manager) finishDrain() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draining = false
	close(m.idle)
}

func (m *Manager) observe(res ports.Result, d time.Duration) {
	requestsTotal.WithLabelValues(m.key, res.Outcome.String()).Inc()
	requestDuration.WithLabelValues(m.key).Observe(d.Seconds())
}

// compactLocked drops malformed head entries. Callers hold m.mu.
func (m *Manager) compactLocked(ctx context.Context) {
	q, dropped := m.queue.Compact()
	if dropped == 0 {
		return
	}
	m.queue = q
	eventsDroppedTotal.WithLabelValues(m.key, "malformed").Add(float64(dropped))
	m.logger.Warn("dropped malformed queue entries", ports.Queue(m.key), ports.Int("count", dropped))
	if m.persist {
		m.saveLocked(ctx)
	}
	m.setPending()
}

// saveLocked persists the queue. Callers hold m.mu.
func (m *Manager) saveLocked(ctx context.Context) bool {
	if m.buffer.Save(ctx, m.key, m.queue) {
		return true
	}
	persistFailuresTotal.WithLabelValues(m.key).Inc()
	return false
}

func (m *Manager) setPending() {
	n := m.queue.Len()
	m.pending.Store(int64(n))
	pendingEvents.WithLabelValues(m.key).Set(float64(n))
}

// Wait blocks until no drain is running or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, aborts any in-flight request and waits for
// background sends to exit. Queued events stay in the persistent buffer.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	if m.registry != nil {
		m.registry.Unregister(m)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return domain.ErrShutdownTimeout
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
