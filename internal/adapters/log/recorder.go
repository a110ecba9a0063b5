package log

import (
	"sync"

	"github.com/bft-labs/outqueue/internal/ports"
)

// Entry is one recorded log call.
type Entry struct {
	Level  string
	Msg    string
	Fields []ports.Field
}

// Recorder implements ports.Logger by keeping every entry in memory.
// Tests use it to assert on warnings.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(level, msg string, fields []ports.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

// Debug records the message.
func (r *Recorder) Debug(msg string, fields ...ports.Field) { r.add("debug", msg, fields) }

// Info records the message.
func (r *Recorder) Info(msg string, fields ...ports.Field) { r.add("info", msg, fields) }

// Warn records the message.
func (r *Recorder) Warn(msg string, fields ...ports.Field) { r.add("warn", msg, fields) }

// Error records the message.
func (r *Recorder) Error(msg string, fields ...ports.Field) { r.add("error", msg, fields) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many entries were recorded at level.
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Contains reports whether any entry at level has msg.
func (r *Recorder) Contains(level, msg string) bool {
	for _, e := range r.Entries() {
		if e.Level == level && e.Msg == msg {
			return true
		}
	}
	return false
}
