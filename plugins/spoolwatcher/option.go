package spoolwatcher

import "github.com/bft-labs/outqueue/pkg/outqueue"

// WithSpoolWatcher returns an outqueue Option that feeds the queue from a
// spool directory.
//
// Usage:
//
//	q, err := outqueue.New(cfg,
//	    spoolwatcher.WithSpoolWatcher(spoolwatcher.Config{
//	        Dir: "/var/spool/outqueue",
//	    }),
//	)
func WithSpoolWatcher(cfg Config) outqueue.Option {
	return outqueue.WithPlugin(New(cfg))
}
