package outqueue

import (
	"context"
	"net/http"
	"sync"
	"time"

	httpAdapter "github.com/bft-labs/outqueue/internal/adapters/http"
	"github.com/bft-labs/outqueue/internal/adapters/store"
	"github.com/bft-labs/outqueue/internal/app"
	"github.com/bft-labs/outqueue/internal/domain"
	"github.com/bft-labs/outqueue/internal/ports"
	"github.com/bft-labs/outqueue/pkg/log"
)

// Queue is an outbound event queue that can be embedded in other
// applications. Use New() to create an instance, Track() to submit events
// and Start() to run the periodic flush and plugins.
type Queue struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	manager   *app.Manager
	registry  *Registry
	logger    ports.Logger

	plugins []Plugin

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Queue with the given configuration. Events persisted under
// the same function name and namespace are loaded immediately. The
// instance is created in StateStopped; Track works in any state until
// Close.
func New(cfg Config, opts ...Option) (*Queue, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		httpClient: &http.Client{},
		logger:     log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}
	if o.store == nil && cfg.UseLocalStorage {
		o.store = store.NewMemory(0)
	}
	if o.registry == nil {
		o.registry = app.NewRegistry(o.logger)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	transport := httpAdapter.NewTransport(o.httpClient, o.logger,
		httpAdapter.WithCookieJar(o.cookieJar),
		httpAdapter.WithGzip(cfg.Compression),
	)

	manager, err := app.NewManager(context.Background(), cfg.managerConfig(),
		app.WithStore(o.store),
		app.WithTransport(transport),
		app.WithLogger(o.logger),
		app.WithEmitter(emitter),
		app.WithRegistry(o.registry),
	)
	if err != nil {
		return nil, err
	}
	if cfg.Collector != "" {
		manager.SetCollectorURL(cfg.Collector)
	}

	return &Queue{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(o.logger, emitter),
		manager:   manager,
		registry:  o.registry,
		logger:    o.logger,
		plugins:   o.plugins,
	}, nil
}

// Track admits one event. Structs and maps are serialized as JSON;
// json.RawMessage and []byte are taken as already serialized.
// ErrNoCollector is returned when a send is due but no collector is set;
// the event stays queued.
func (q *Queue) Track(ctx context.Context, event any) error {
	return q.manager.Enqueue(ctx, event)
}

// TrackTo admits one event for an explicit collector base URL such as
// "https://collector.example.com", which becomes the queue's collector.
func (q *Queue) TrackTo(ctx context.Context, event any, collectorURL string) error {
	return q.manager.EnqueueTo(ctx, event, collectorURL, q.config.SecureCredentials)
}

// Flush sends everything queued.
func (q *Queue) Flush(ctx context.Context) error {
	return q.manager.Flush(ctx)
}

// SetCollectorURL changes the collector host. The scheme follows the force
// flags, then HostScheme.
func (q *Queue) SetCollectorURL(raw string) {
	q.manager.SetCollectorURL(raw)
}

// CollectorURL returns the full endpoint events are posted to.
func (q *Queue) CollectorURL() string {
	return q.manager.CollectorURL()
}

// Pending returns the number of undelivered events.
func (q *Queue) Pending() int {
	return q.manager.Pending()
}

// Key returns the persistence key.
func (q *Queue) Key() string {
	return q.manager.Key()
}

// BufferSize returns the effective send threshold. It is 1 when no store
// is usable.
func (q *Queue) BufferSize() int {
	return q.manager.BufferSize()
}

// Registry returns the registry the queue is registered with.
func (q *Queue) Registry() *Registry {
	return q.registry
}

// Wait blocks until no send is in progress.
func (q *Queue) Wait(ctx context.Context) error {
	return q.manager.Wait(ctx)
}

// Start initializes plugins and starts the periodic flush. Returns
// immediately. The provided context bounds the background work.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := q.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		Key:       q.manager.Key(),
		Collector: q.config.Collector,
		Tracker:   q,
		Logger:    q.logger,
	}
	for _, p := range q.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			q.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			_ = q.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		q.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	// Only batching queues hold events between enqueues.
	if q.config.FlushInterval > 0 && q.manager.BufferSize() > 1 {
		interval := q.config.FlushInterval
		q.lifecycle.Go(func() {
			q.registry.RunFlushTicker(runCtx, interval)
		})
	}

	return q.lifecycle.TransitionTo(app.StateRunning, "started")
}

// Stop flushes the queue, waits up to PageUnloadTimer for delivery, and
// shuts down plugins in reverse order. Events still pending stay in the
// store. Returns ErrShutdownTimeout if background work did not exit within
// the shutdown timeout.
func (q *Queue) Stop() error {
	q.mu.Lock()
	if !q.lifecycle.CanStop() {
		q.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := q.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		q.mu.Unlock()
		return err
	}
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	err := q.lifecycle.Wait(waitCtx)

	q.unload(waitCtx)

	for i := len(q.plugins) - 1; i >= 0; i-- {
		p := q.plugins[i]
		if shutdownErr := p.Shutdown(waitCtx); shutdownErr != nil {
			q.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(shutdownErr))
		} else {
			q.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}

	if err != nil {
		_ = q.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = q.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// unload is the last-chance flush of this queue.
func (q *Queue) unload(ctx context.Context) {
	if err := q.manager.Flush(ctx); err != nil {
		q.logger.Warn("unload flush failed", ports.Err(err))
	}
	pauseCtx, cancel := context.WithTimeout(ctx, q.config.PageUnloadTimer)
	defer cancel()
	if err := q.manager.Wait(pauseCtx); err != nil || q.manager.Pending() > 0 {
		q.logger.Warn("stopped with events pending",
			ports.Int("pending", q.manager.Pending()),
			ports.Duration("unload_timer", q.config.PageUnloadTimer),
		)
	}
}

// Close stops the queue if running and releases it. Pending events remain
// in the store for the next instance with the same key.
func (q *Queue) Close(ctx context.Context) error {
	if q.Status().CanStop() {
		if err := q.Stop(); err != nil {
			q.logger.Warn("stop during close failed", ports.Err(err))
		}
	}
	return q.manager.Close(ctx)
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (q *Queue) Status() State {
	return convertState(q.lifecycle.State())
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnSendSuccess(eventCount, bytesSent int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendSuccess(SendSuccessEvent{
		EventCount: eventCount,
		BytesSent:  bytesSent,
		Duration:   duration,
	})
}

func (e *eventEmitterWrapper) OnSendError(err error, eventCount int, retryable bool) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendError(SendErrorEvent{
		Error:      err,
		EventCount: eventCount,
		Retryable:  retryable,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
