package domain

import (
	json "github.com/goccy/go-json"
)

// Envelope is one pending outbound event plus its wire size.
// The JSON shape {"evt": ..., "bytes": n} is the persisted record format.
type Envelope struct {
	// Event is the serialized event payload.
	Event json.RawMessage `json:"evt"`

	// Bytes is the UTF-8 length of Event, computed once at admission.
	Bytes int `json:"bytes"`
}

// Valid reports whether e holds an admitted event. Any well-formed JSON
// value is an event, null and bare scalars included. Entries read back
// from a store without an "evt" field, or that failed to decode
// (Bytes -1), are not.
func (e Envelope) Valid() bool {
	if e.Bytes < 0 || len(e.Event) == 0 {
		return false
	}
	return json.Valid(e.Event)
}

// Queue is the ordered sequence of pending envelopes. Insertion order is
// send order.
type Queue []Envelope

// Len returns the number of pending envelopes.
func (q Queue) Len() int {
	return len(q)
}

// Empty reports whether nothing is pending.
func (q Queue) Empty() bool {
	return len(q) == 0
}

// TotalBytes returns the summed wire size of every envelope.
func (q Queue) TotalBytes() int {
	total := 0
	for _, e := range q {
		total += e.Bytes
	}
	return total
}

// Compact drops leading entries that are not well-formed envelopes and
// returns the trimmed queue and the number of entries dropped.
func (q Queue) Compact() (Queue, int) {
	n := 0
	for n < len(q) && !q[n].Valid() {
		n++
	}
	return q[n:], n
}

// PopFront removes the first n envelopes. n is clamped to the queue length.
func (q Queue) PopFront(n int) Queue {
	if n <= 0 {
		return q
	}
	if n >= len(q) {
		return Queue{}
	}
	// Copy so the backing array of delivered events can be released.
	rest := make(Queue, len(q)-n)
	copy(rest, q[n:])
	return rest
}

// Payloads returns the raw events of the first n envelopes.
func (q Queue) Payloads(n int) []json.RawMessage {
	if n > len(q) {
		n = len(q)
	}
	out := make([]json.RawMessage, n)
	for i := 0; i < n; i++ {
		out[i] = q[i].Event
	}
	return out
}
