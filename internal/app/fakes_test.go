package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/outqueue/internal/ports"
)

// fakeTransport records requests and answers from a script. When gate is
// set every call blocks until gate is closed or ctx ends.
type fakeTransport struct {
	mu          sync.Mutex
	calls       [][]string
	inFlight    int
	maxInFlight int

	gate    chan struct{}
	respond func(call int) ports.Result
}

func (f *fakeTransport) Send(ctx context.Context, req ports.Request) ports.Result {
	events := make([]string, len(req.Events))
	for i, e := range req.Events {
		events[i] = string(e)
	}

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	call := len(f.calls)
	f.calls = append(f.calls, events)
	gate, respond := f.gate, f.respond
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ports.Result{Outcome: ports.OutcomeTimeout, Err: ctx.Err()}
		}
	}
	if respond != nil {
		return respond(call)
	}
	return ports.Result{Outcome: ports.OutcomeSuccess, StatusCode: 200}
}

func (f *fakeTransport) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTransport) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

func (f *fakeTransport) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// mockSendEmitter counts send callbacks.
type mockSendEmitter struct {
	mu        sync.Mutex
	successes int
	failures  int
	sent      int
	retryable []bool
}

func (m *mockSendEmitter) OnSendSuccess(eventCount, bytesSent int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
	m.sent += eventCount
}

func (m *mockSendEmitter) OnSendError(err error, eventCount int, retryable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	m.retryable = append(m.retryable, retryable)
}

func (m *mockSendEmitter) counts() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.successes, m.failures, m.sent
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
