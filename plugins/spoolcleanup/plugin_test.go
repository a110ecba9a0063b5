package spoolcleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/outqueue/pkg/log"
	"github.com/bft-labs/outqueue/pkg/outqueue"
)

func writeRetired(t *testing.T, dir, name string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCleanupOnce_RemovesOldestUntilLowWatermark(t *testing.T) {
	dir := t.TempDir()
	oldest := writeRetired(t, dir, "a.ndjson.done", 100, 3*time.Hour)
	middle := writeRetired(t, dir, "b.ndjson.done", 100, 2*time.Hour)
	newest := writeRetired(t, dir, "c.ndjson.done", 100, time.Hour)
	live := writeRetired(t, dir, "d.ndjson", 500, 4*time.Hour)

	p := New(Config{Dir: dir, HighWatermark: 250, LowWatermark: 150})
	p.logger = log.NewNoopLogger()

	if removed := p.cleanupOnce(context.Background()); removed != 200 {
		t.Errorf("removed = %d, want 200", removed)
	}
	if exists(oldest) || exists(middle) {
		t.Error("oldest retired files should be removed")
	}
	if !exists(newest) {
		t.Error("newest retired file should be kept")
	}
	if !exists(live) {
		t.Error("unread spool file must never be removed")
	}
}

func TestCleanupOnce_BelowHighWatermark(t *testing.T) {
	dir := t.TempDir()
	path := writeRetired(t, dir, "a.ndjson.done", 100, time.Hour)

	p := New(Config{Dir: dir, HighWatermark: 1000})
	p.logger = log.NewNoopLogger()

	if removed := p.cleanupOnce(context.Background()); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if !exists(path) {
		t.Error("file removed below watermark")
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{HighWatermark: 400, LowWatermark: 800})
	if p.lowWatermark != 300 {
		t.Errorf("lowWatermark = %d, want 300", p.lowWatermark)
	}
	if p.checkInterval != time.Hour {
		t.Errorf("checkInterval = %v", p.checkInterval)
	}
}

func TestPlugin_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	path := writeRetired(t, dir, "a.ndjson.done", 100, time.Hour)

	p := New(Config{Dir: dir, HighWatermark: 10, LowWatermark: 1, CheckInterval: time.Hour})
	if err := p.Initialize(context.Background(), outqueue.PluginConfig{Logger: log.NewNoopLogger()}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for exists(path) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if exists(path) {
		t.Error("startup cleanup did not run")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_DisabledWithoutDir(t *testing.T) {
	p := New(DefaultConfig())
	if err := p.Initialize(context.Background(), outqueue.PluginConfig{Logger: log.NewNoopLogger()}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
