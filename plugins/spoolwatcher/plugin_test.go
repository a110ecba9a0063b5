package spoolwatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/outqueue/pkg/log"
	"github.com/bft-labs/outqueue/pkg/outqueue"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []map[string]any
}

func (r *recordingTracker) Track(_ context.Context, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.(map[string]any))
	return nil
}

func (r *recordingTracker) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func writeSpool(t *testing.T, dir, name, content string) string {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		t.Fatalf("write spool file: %v", err)
	}
	dst := filepath.Join(dir, name)
	if err := os.Rename(tmp, dst); err != nil {
		t.Fatalf("move spool file: %v", err)
	}
	return dst
}

func start(t *testing.T, cfg Config, tr outqueue.Tracker) *Plugin {
	t.Helper()
	p := New(cfg)
	err := p.Initialize(context.Background(), outqueue.PluginConfig{
		Key:     "test",
		Tracker: tr,
		Logger:  log.NewNoopLogger(),
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestPlugin_IngestsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeSpool(t, dir, "a.ndjson", "{\"e\":\"pv\"}\n{\"e\":\"se\"}\n")
	second := writeSpool(t, dir, "b.ndjson", "{\"e\":\"ue\"}\n")
	writeSpool(t, dir, "ignored.txt", "{\"e\":\"xx\"}\n")

	tr := &recordingTracker{}
	start(t, Config{Dir: dir, DebounceDelay: 10 * time.Millisecond}, tr)

	waitFor(t, "existing files", func() bool { return tr.Len() == 3 })

	tr.mu.Lock()
	got := []string{tr.events[0]["e"].(string), tr.events[1]["e"].(string), tr.events[2]["e"].(string)}
	tr.mu.Unlock()
	if got[0] != "pv" || got[1] != "se" || got[2] != "ue" {
		t.Errorf("order = %v, want pv,se,ue", got)
	}

	for _, path := range []string{first, second} {
		waitFor(t, "retired "+path, func() bool {
			_, err := os.Stat(path + DoneSuffix)
			return err == nil
		})
	}
	if _, err := os.Stat(filepath.Join(dir, "ignored.txt")); err != nil {
		t.Errorf("non-matching file touched: %v", err)
	}
}

func TestPlugin_IngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	tr := &recordingTracker{}
	start(t, Config{Dir: dir, DebounceDelay: 10 * time.Millisecond, Remove: true}, tr)

	path := writeSpool(t, dir, "new.ndjson", "{\"e\":\"pv\"}\n")

	waitFor(t, "new file", func() bool { return tr.Len() == 1 })
	waitFor(t, "file removed", func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	})

	tr.mu.Lock()
	eid, _ := tr.events[0]["eid"].(string)
	tr.mu.Unlock()
	if eid == "" {
		t.Error("event id not stamped")
	}
}

func TestPlugin_DisabledWithoutDir(t *testing.T) {
	p := New(DefaultConfig())
	err := p.Initialize(context.Background(), outqueue.PluginConfig{
		Tracker: &recordingTracker{},
		Logger:  log.NewNoopLogger(),
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_ShutdownIsPrompt(t *testing.T) {
	dir := t.TempDir()
	p := start(t, Config{Dir: dir, DebounceDelay: time.Hour}, &recordingTracker{})

	writeSpool(t, dir, "pending.ndjson", "{}\n")
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = p.Shutdown(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown blocked on a pending debounce timer")
	}
}

func TestPlugin_WithQueue(t *testing.T) {
	dir := t.TempDir()
	writeSpool(t, dir, "events.ndjson", "{\"e\":\"pv\"}\n{\"e\":\"pp\"}\n")

	cfg := outqueue.DefaultConfig()
	cfg.Namespace = "spool"
	cfg.BufferSize = 100
	q, err := outqueue.New(cfg, WithSpoolWatcher(Config{Dir: dir, DebounceDelay: 10 * time.Millisecond}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer q.Close(context.Background())

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "queued events", func() bool { return q.Pending() == 2 })
}
