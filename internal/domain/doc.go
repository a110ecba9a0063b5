// Package domain contains the core entities of the outbound event queue.
//
// This package is the innermost layer. It has no dependencies on HTTP, the
// persistence backends or logging and holds only the data model:
//
//   - [Envelope]: one pending event plus its precomputed wire size
//   - [Queue]: the ordered FIFO of envelopes mirrored to the persistent buffer
//   - [QueueKey]: the identity used to address the persistent buffer
package domain
