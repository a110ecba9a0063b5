package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/outqueue/internal/admin"
	"github.com/bft-labs/outqueue/internal/cliconfig"
	"github.com/bft-labs/outqueue/internal/ingest"
	"github.com/bft-labs/outqueue/pkg/log"
	"github.com/bft-labs/outqueue/pkg/outqueue"
	"github.com/bft-labs/outqueue/plugins/spoolcleanup"
	"github.com/bft-labs/outqueue/plugins/spoolwatcher"
)

const longHelp = `Ship analytics events to a Snowplow-style collector.

Events are newline-delimited JSON objects read from files, stdin or a spool
directory. They are queued (optionally in a file or redis store so they
survive restarts), batched under a byte budget and POSTed to
<collector>/com.snowplowanalytics.snowplow/tp2. Failed batches stay queued
and are retried on the next trigger.`

var exampleUsage = strings.TrimSpace(`
  tail -F events.ndjson | outqueue --collector collector.example.com
  outqueue --collector c.example.com --buffer-size 20 --store file events-*.ndjson
  outqueue --config $HOME/.outqueue/config.yaml --spool-dir /var/spool/outqueue
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "outqueue [files...]",
		Short:   "Ship NDJSON analytics events to a collector",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file, flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.NewZerologAdapter(log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			logger.Info("configuration", log.Any("config", cfg.Masked()))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, args, cmd.InOrStdin(), logger)
		},
	}
	root.SilenceUsage = true

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to TOML or YAML config file (default: $HOME/.outqueue/config.toml)")
	f.StringVar(&cfg.Collector, "collector", cfg.Collector, "collector host, with or without scheme")
	f.StringVar(&cfg.FunctionName, "function-name", cfg.FunctionName, "tracker function name (part of the queue key)")
	f.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "tracker namespace (part of the queue key)")

	f.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "queued events that trigger a send")
	f.IntVar(&cfg.MaxPostBytes, "max-post-bytes", cfg.MaxPostBytes, "byte budget of one POST")
	f.BoolVar(&cfg.UseLocalStorage, "use-local-storage", cfg.UseLocalStorage, "mirror the queue into the store")
	f.BoolVar(&cfg.SecureCredentials, "secure-credentials", cfg.SecureCredentials, "send collector cookies with requests")
	f.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "value of the x-api-key header")
	f.BoolVar(&cfg.ForceSecure, "force-secure", cfg.ForceSecure, "always use https")
	f.BoolVar(&cfg.ForceInsecure, "force-insecure", cfg.ForceInsecure, "always use http")
	f.StringVar(&cfg.HostScheme, "host-scheme", cfg.HostScheme, "scheme used when no force flag is set")
	f.BoolVar(&cfg.Compression, "compression", cfg.Compression, "gzip request bodies")

	f.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "timeout of one POST")
	f.DurationVar(&cfg.PageUnloadTimer, "page-unload-timer", cfg.PageUnloadTimer, "how long shutdown waits for pending events")
	f.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "periodic flush of partly filled buffers (0 disables)")

	f.StringVar(&cfg.Store, "store", cfg.Store, "queue store: memory, file or redis")
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory of the file store (default: $HOME/.outqueue/state)")
	f.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis:// URL or host:port of the redis store")
	f.StringVar(&cfg.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "key prefix in the redis store")

	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "listen address of /metrics, /healthz and /flush (empty disables)")
	f.StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "watch this directory for *.ndjson files instead of reading stdin")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// run ships events until the input is exhausted or, in spool mode, until
// ctx is cancelled. Pending events get one unload flush before exit.
func run(ctx context.Context, cfg cliconfig.Config, args []string, stdin io.Reader, logger *log.ZerologAdapter) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := outqueue.NewRegistry(logger)
	opts := []outqueue.Option{
		outqueue.WithLogger(logger),
		outqueue.WithRegistry(registry),
	}
	if store != nil {
		opts = append(opts, outqueue.WithStore(store))
	}
	if cfg.SecureCredentials {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return err
		}
		opts = append(opts, outqueue.WithCookieJar(jar))
	}
	if cfg.SpoolDir != "" {
		opts = append(opts,
			spoolwatcher.WithSpoolWatcher(spoolwatcher.Config{Dir: cfg.SpoolDir}),
			spoolcleanup.WithSpoolCleanup(spoolcleanup.Config{Dir: cfg.SpoolDir}),
		)
	}

	q, err := outqueue.New(cfg.QueueConfig(), opts...)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer func() {
		if err := q.Close(context.Background()); err != nil {
			logger.Warn("close queue", log.Err(err))
		}
	}()

	if err := q.Start(ctx); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}
	if pending := q.Pending(); pending > 0 {
		logger.Info("resuming stored events", log.Int("pending", pending), log.Queue(q.Key()))
	}

	adminCtx, stopAdmin := context.WithCancel(ctx)
	defer stopAdmin()
	g, gctx := errgroup.WithContext(adminCtx)
	if cfg.MetricsAddr != "" {
		srv := admin.NewServer(cfg.MetricsAddr, admin.NewRouter(registry, nil), logger)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	// A blocked stdin read cannot be interrupted, so the reader is not
	// waited for once ctx ends.
	readDone := make(chan error, 1)
	if cfg.SpoolDir == "" || len(args) > 0 {
		go func() { readDone <- readInputs(gctx, args, stdin, q, logger) }()
	}

	var runErr error
	select {
	case runErr = <-readDone:
	case <-gctx.Done():
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	logger.Info("stopping", log.Int("pending", q.Pending()))
	if err := q.Stop(); err != nil && !errors.Is(err, outqueue.ErrNotRunning) {
		logger.Warn("stop queue", log.Err(err))
	}

	stopAdmin()
	if err := g.Wait(); err != nil && runErr == nil && !errors.Is(err, context.Canceled) {
		runErr = fmt.Errorf("admin server: %w", err)
	}
	return runErr
}

func readInputs(ctx context.Context, args []string, stdin io.Reader, q *outqueue.Queue, logger *log.ZerologAdapter) error {
	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, name := range args {
		var r io.Reader = stdin
		var f *os.File
		if name != "-" {
			var err error
			if f, err = os.Open(name); err != nil {
				return err
			}
			r = f
		}
		stats, err := ingest.ReadAll(ctx, r, q, logger)
		if f != nil {
			f.Close()
		}
		logger.Info("input read",
			log.String("input", name),
			log.Int("tracked", stats.Tracked),
			log.Int("invalid", stats.Invalid))
		if err != nil {
			return err
		}
	}
	return nil
}

func openStore(cfg cliconfig.Config) (outqueue.Store, func(), error) {
	noop := func() {}
	if !cfg.UseLocalStorage {
		return nil, noop, nil
	}
	switch cfg.Store {
	case cliconfig.StoreFile:
		return outqueue.NewFileStore(cfg.StateDir, 0), noop, nil
	case cliconfig.StoreRedis:
		client, err := outqueue.ConnectRedis(cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return outqueue.NewRedisStore(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
	default:
		return outqueue.NewMemoryStore(0), noop, nil
	}
}
