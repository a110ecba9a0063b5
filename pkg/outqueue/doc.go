// Package outqueue provides an embeddable outbound analytics event queue.
//
// Events handed to [Queue.Track] are buffered (optionally in a persistent
// store), grouped into byte-bounded batches and POSTed as JSON arrays to a
// Snowplow-compatible collector at
// <collector>/com.snowplowanalytics.snowplow/tp2. A failed batch stays
// queued and is retried on the next trigger; delivery is at-least-once.
//
// # Basic Usage
//
//	cfg := outqueue.DefaultConfig()
//	cfg.Collector = "collector.example.com"
//	cfg.BufferSize = 10
//
//	q, err := outqueue.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := q.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = q.Track(ctx, map[string]string{"e": "pv", "url": "https://example.com"})
//
//	// Stop flushes and waits up to PageUnloadTimer for delivery.
//	_ = q.Stop()
//
// # Triggers
//
// A batch is sent when the queue reaches BufferSize, when the persistent
// store rejects a write, every FlushInterval (for BufferSize above one), on
// [Queue.Flush], and on Stop.
//
// # Persistence
//
// Pass a store with [WithStore] to keep undelivered events across restarts.
// Without a usable store the queue sends every event immediately.
//
// # Event Handling
//
// Implement [EventHandler] (embed [BaseEventHandler] for defaults) and pass
// it via [WithEventHandler]. Handlers are called synchronously from the
// sending goroutine and should return quickly.
//
// # Lifecycle States
//
// A Queue can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Queue.Status] to
// query the current state.
package outqueue
