// Package spoolcleanup prunes spool files that have already been read.
// When enabled, it periodically removes the oldest retired files to keep
// the spool directory under a size budget.
package spoolcleanup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/outqueue/pkg/log"
	"github.com/bft-labs/outqueue/pkg/outqueue"
	"github.com/bft-labs/outqueue/plugins/spoolwatcher"
)

// Plugin implements spool cleanup.
// It periodically checks the size of retired files and removes the oldest
// when it exceeds the high watermark.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	dir           string
	checkInterval time.Duration
	highWatermark int64
	lowWatermark  int64

	// Runtime state
	logger outqueue.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration options for the spool cleanup plugin.
type Config struct {
	// Dir is the spool directory. The plugin is disabled when empty.
	Dir string

	// CheckInterval is how often to check the retired files.
	// Default: 1 hour
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which cleanup begins.
	// Default: 256 MiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after cleanup.
	// Default: 192 MiB
	LowWatermark int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Hour,
		HighWatermark: 256 << 20,
		LowWatermark:  192 << 20,
	}
}

// New creates a new spool cleanup plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = def.HighWatermark
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark * 3 / 4
	}

	return &Plugin{
		dir:           cfg.Dir,
		checkInterval: cfg.CheckInterval,
		highWatermark: cfg.HighWatermark,
		lowWatermark:  cfg.LowWatermark,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "spoolcleanup"
}

// Initialize starts the cleanup loop.
func (p *Plugin) Initialize(ctx context.Context, cfg outqueue.PluginConfig) error {
	p.mu.Lock()
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.dir == "" {
		p.logger.Warn("spool cleanup disabled: no spool directory")
		return nil
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("spool cleanup plugin initialized", log.String("dir", p.dir))

	p.wg.Add(1)
	go p.cleanupLoop(cleanupCtx)

	return nil
}

// Shutdown stops the cleanup loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	p.cleanupOnce(ctx)

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanupOnce(ctx)
		}
	}
}

type retiredFile struct {
	path    string
	size    int64
	modTime time.Time
}

// cleanupOnce performs a single cleanup check. It returns the number of
// bytes removed.
func (p *Plugin) cleanupOnce(ctx context.Context) int64 {
	files, total, err := retiredFiles(p.dir)
	if err != nil {
		p.logger.Error("spool cleanup: list failed", log.Err(err))
		return 0
	}
	if total <= p.highWatermark {
		return 0
	}

	removed := int64(0)
	for _, f := range files {
		if ctx.Err() != nil || total <= p.lowWatermark {
			break
		}
		if err := os.Remove(f.path); err != nil {
			p.logger.Error("spool cleanup: remove failed", log.String("file", f.path), log.Err(err))
			continue
		}
		total -= f.size
		removed += f.size
	}

	if removed > 0 {
		p.logger.Info("spool cleanup completed",
			log.Int64("removed_bytes", removed),
			log.Int64("remaining_bytes", total))
	}
	return removed
}

// retiredFiles lists the .done files in dir, oldest first.
func retiredFiles(dir string) ([]retiredFile, int64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}
	var (
		files []retiredFile
		total int64
	)
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), spoolwatcher.DoneSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, retiredFile{
			path:    filepath.Join(dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})
	return files, total, nil
}

// Ensure Plugin implements outqueue.Plugin.
var _ outqueue.Plugin = (*Plugin)(nil)
