package domain

import "errors"

// Domain errors represent error conditions in the outqueue domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrNoCollector is returned when a drain runs before a collector URL is set.
	ErrNoCollector = errors.New("outqueue: no collector configured, cannot track")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("outqueue: invalid configuration")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("outqueue: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("outqueue: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("outqueue: shutdown timeout")

	// ErrClosed is returned by operations on a closed queue manager.
	ErrClosed = errors.New("outqueue: queue closed")
)
