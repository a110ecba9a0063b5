package log

import "time"

// Logger is the sink for every log line the queue, the CLI and the plugins
// write. NewZerologAdapter and NewNoopLogger are the two implementations.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one structured key/value attached to a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err attaches err under "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any is rendered through the adapter's generic encoder.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Queue tags a line with the persistence key of the queue it concerns.
func Queue(key string) Field {
	return Field{Key: "queue", Value: key}
}

// Events is the number of events a line is about.
func Events(n int) Field {
	return Field{Key: "events", Value: n}
}

// Bytes is an estimated wire size.
func Bytes(n int) Field {
	return Field{Key: "bytes", Value: n}
}

// Status is the collector's HTTP status code.
func Status(code int) Field {
	return Field{Key: "status", Value: code}
}
