// Package spoolwatcher feeds a Queue from a spool directory. Producers drop
// newline-delimited JSON files into the directory (write elsewhere, then
// rename in); each file is tracked line by line and renamed with a .done
// suffix once read.
package spoolwatcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/outqueue/internal/ingest"
	"github.com/bft-labs/outqueue/pkg/log"
	"github.com/bft-labs/outqueue/pkg/outqueue"
)

// DoneSuffix is appended to spool files that have been read.
const DoneSuffix = ".done"

// Config holds configuration options for the spool watcher plugin.
type Config struct {
	// Dir is the spool directory. The plugin is disabled when empty.
	Dir string

	// Pattern selects spool files by base name.
	// Default: *.ndjson
	Pattern string

	// DebounceDelay is how long a file must be quiet before it is read.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Remove deletes files after reading instead of renaming them.
	Remove bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Pattern:       "*.ndjson",
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin watches the spool directory.
type Plugin struct {
	mu sync.Mutex

	cfg     Config
	tracker outqueue.Tracker
	logger  outqueue.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timers  map[string]*time.Timer
	readMu  sync.Mutex
}

// New creates a spool watcher with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.Pattern == "" {
		cfg.Pattern = "*.ndjson"
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{cfg: cfg, timers: make(map[string]*time.Timer)}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "spoolwatcher"
}

// Initialize reads files already in the spool and starts watching it.
func (p *Plugin) Initialize(ctx context.Context, cfg outqueue.PluginConfig) error {
	p.mu.Lock()
	p.tracker = cfg.Tracker
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.cfg.Dir == "" || p.tracker == nil {
		p.logger.Warn("spool watcher disabled: no spool directory")
		return nil
	}
	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(p.cfg.Dir); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("spool watcher initialized", log.String("dir", p.cfg.Dir))
	return nil
}

// Shutdown stops watching. A file being read is finished first.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	for name, t := range p.timers {
		if t.Stop() {
			p.wg.Done()
		}
		delete(p.timers, name)
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	p.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !p.matches(event.Name) {
				continue
			}
			p.debounceIngest(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("spool watcher error", log.Err(err))
		}
	}
}

// scan reads the files already present, oldest name first.
func (p *Plugin) scan(ctx context.Context) {
	matches, err := filepath.Glob(filepath.Join(p.cfg.Dir, p.cfg.Pattern))
	if err != nil {
		p.logger.Error("spool scan failed", log.Err(err))
		return
	}
	sort.Strings(matches)
	for _, path := range matches {
		if ctx.Err() != nil {
			return
		}
		p.ingestFile(ctx, path)
	}
}

func (p *Plugin) matches(path string) bool {
	ok, err := filepath.Match(p.cfg.Pattern, filepath.Base(path))
	return err == nil && ok
}

func (p *Plugin) debounceIngest(ctx context.Context, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[path]; ok && t.Stop() {
		p.wg.Done()
	}
	p.wg.Add(1)
	p.timers[path] = time.AfterFunc(p.cfg.DebounceDelay, func() {
		defer p.wg.Done()
		p.mu.Lock()
		delete(p.timers, path)
		p.mu.Unlock()
		if ctx.Err() == nil {
			p.ingestFile(ctx, path)
		}
	})
}

// ingestFile tracks every line of path, then retires the file.
func (p *Plugin) ingestFile(ctx context.Context, path string) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		p.logger.Warn("open spool file failed",
			log.String("file", path),
			log.Err(err))
		return
	}
	stats, err := ingest.ReadAll(ctx, f, p.tracker, p.logger)
	f.Close()
	if err != nil {
		p.logger.Warn("spool file partially read",
			log.String("file", path),
			log.Int("tracked", stats.Tracked),
			log.Err(err))
		return
	}

	if p.cfg.Remove {
		err = os.Remove(path)
	} else {
		err = os.Rename(path, path+DoneSuffix)
	}
	if err != nil {
		p.logger.Warn("retire spool file failed",
			log.String("file", path),
			log.Err(err))
		return
	}
	p.logger.Info("spool file ingested",
		log.String("file", path),
		log.Int("tracked", stats.Tracked),
		log.Int("invalid", stats.Invalid))
}

// Ensure Plugin implements outqueue.Plugin.
var _ outqueue.Plugin = (*Plugin)(nil)
