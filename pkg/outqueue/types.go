package outqueue

import (
	"context"
	"time"

	"github.com/bft-labs/outqueue/internal/domain"
	"github.com/bft-labs/outqueue/internal/ports"
)

// Errors returned by the public API. Check them with errors.Is.
var (
	ErrNoCollector     = domain.ErrNoCollector
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrClosed          = domain.ErrClosed
)

// Logger is the interface for structured logging.
type Logger = ports.Logger

// LogField represents a structured log field.
type LogField = ports.Field

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Store is the key-value capability behind persistence.
type Store = ports.KVStore

// State is the lifecycle state of a Queue.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// CanStart reports whether Start may be called in this state.
func (s State) CanStart() bool {
	return s == StateStopped || s == StateCrashed
}

// CanStop reports whether Stop may be called in this state.
func (s State) CanStop() bool {
	return s == StateStarting || s == StateRunning
}

// IsRunning reports whether background work is active.
func (s State) IsRunning() bool {
	return s == StateRunning
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// SendSuccessEvent describes a delivered batch.
type SendSuccessEvent struct {
	EventCount int
	BytesSent  int
	Duration   time.Duration
}

// SendErrorEvent describes a batch that was not delivered. Retryable
// batches stay queued.
type SendErrorEvent struct {
	Error      error
	EventCount int
	Retryable  bool
}

// EventHandler receives notifications about queue operations.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnSendSuccess(event SendSuccessEvent)
	OnSendError(event SendErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the callbacks you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnSendSuccess(SendSuccessEvent) {}
func (BaseEventHandler) OnSendError(SendErrorEvent)     {}

// Tracker accepts events. *Queue implements it.
type Tracker interface {
	Track(ctx context.Context, event any) error
}

// PluginConfig is handed to plugins on Start.
type PluginConfig struct {
	// Key is the persistence key of the queue.
	Key string

	// Collector is the configured collector host.
	Collector string

	// Tracker accepts events into the queue.
	Tracker Tracker

	Logger Logger
}

// Plugin extends a Queue with optional behavior started and stopped with
// it. Plugins are initialized in registration order and shut down in
// reverse order.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// BasePlugin implements Plugin with no-ops.
type BasePlugin struct{}

func (BasePlugin) Name() string                                   { return "base" }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }
