package ports

import "github.com/bft-labs/outqueue/pkg/log"

// Logger is the structured logger used by the application layer.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported for adapters.
var (
	String   = log.String
	Int      = log.Int
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Queue    = log.Queue
	Events   = log.Events
	Bytes    = log.Bytes
	Status   = log.Status
)
