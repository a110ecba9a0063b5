package outqueue

import (
	"fmt"
	"time"

	"github.com/bft-labs/outqueue/internal/app"
	"github.com/bft-labs/outqueue/internal/domain"
)

// Config holds the configuration of a Queue.
type Config struct {
	// Collector is the collector host (and optional path) without scheme.
	Collector string

	// FunctionName and Namespace form the persistence key.
	FunctionName string
	Namespace    string

	// BufferSize is the number of queued events that triggers a send.
	BufferSize int

	// MaxPostBytes is the byte budget of one POST.
	MaxPostBytes int

	// UseLocalStorage mirrors the queue into the configured store.
	UseLocalStorage bool

	// SecureCredentials attaches cookies from the cookie jar.
	SecureCredentials bool

	// APIKey is sent as x-api-key when not empty.
	APIKey string

	// RequestTimeout bounds each POST.
	RequestTimeout time.Duration

	// PageUnloadTimer bounds how long Stop waits for pending events.
	PageUnloadTimer time.Duration

	// FlushInterval is the period of buffer flushes while running.
	// Zero disables the timer.
	FlushInterval time.Duration

	// ForceSecureTracker and ForceUnsecureTracker override HostScheme.
	ForceSecureTracker   bool
	ForceUnsecureTracker bool

	// HostScheme is "http" or "https".
	HostScheme string

	// Compression gzips request bodies.
	Compression bool
}

// Defaults.
const (
	DefaultFunctionName    = "snowplow"
	DefaultNamespace       = "default"
	DefaultMaxPostBytes    = app.DefaultMaxBatchBytes
	DefaultRequestTimeout  = app.DefaultRequestTimeout
	DefaultPageUnloadTimer = app.DefaultUnloadPause
	DefaultFlushInterval   = 10 * time.Second
)

// DefaultConfig returns a Config with sensible default values.
// At minimum, Collector must be set before events can be sent.
func DefaultConfig() Config {
	cfg := Config{UseLocalStorage: true}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	if c.FunctionName == "" {
		c.FunctionName = DefaultFunctionName
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.BufferSize == 0 {
		c.BufferSize = 1
	}
	if c.MaxPostBytes == 0 {
		c.MaxPostBytes = DefaultMaxPostBytes
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.PageUnloadTimer == 0 {
		c.PageUnloadTimer = DefaultPageUnloadTimer
	}
	if c.HostScheme == "" {
		c.HostScheme = app.DefaultHostScheme
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BufferSize < 1 {
		return fmt.Errorf("%w: buffer size must be at least 1", domain.ErrInvalidConfig)
	}
	if c.PageUnloadTimer < 0 || c.FlushInterval < 0 {
		return fmt.Errorf("%w: durations must not be negative", domain.ErrInvalidConfig)
	}
	return c.managerConfig().Validate()
}

func (c Config) managerConfig() app.Config {
	return app.Config{
		Key:               domain.NewQueueKey(c.FunctionName, c.Namespace),
		BufferSize:        c.BufferSize,
		MaxBatchBytes:     c.MaxPostBytes,
		UsePersistence:    c.UseLocalStorage,
		SecureCredentials: c.SecureCredentials,
		APIKey:            c.APIKey,
		RequestTimeout:    c.RequestTimeout,
		ForceSecure:       c.ForceSecureTracker,
		ForceInsecure:     c.ForceUnsecureTracker,
		HostScheme:        c.HostScheme,
	}
}
