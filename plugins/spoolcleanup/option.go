package spoolcleanup

import "github.com/bft-labs/outqueue/pkg/outqueue"

// WithSpoolCleanup returns an outqueue Option that enables pruning of
// retired spool files.
//
// Usage:
//
//	q, err := outqueue.New(cfg,
//	    spoolcleanup.WithSpoolCleanup(spoolcleanup.Config{
//	        Dir:           "/var/spool/outqueue",
//	        HighWatermark: 64 << 20,
//	    }),
//	)
func WithSpoolCleanup(cfg Config) outqueue.Option {
	return outqueue.WithPlugin(New(cfg))
}
