package admin

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/outqueue/pkg/log"
)

type fakeFlusher struct {
	flushes atomic.Int32
	err     error
	pending int
}

func (f *fakeFlusher) FlushAll(context.Context) error {
	f.flushes.Add(1)
	return f.err
}
func (f *fakeFlusher) Pending() int { return f.pending }
func (f *fakeFlusher) Len() int     { return 2 }

func do(t *testing.T, h http.Handler, method, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestRouter_Healthz(t *testing.T) {
	h := NewRouter(&fakeFlusher{pending: 3}, prometheus.NewRegistry())
	code, body := do(t, h, http.MethodGet, "/healthz")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, `"queues":2`) || !strings.Contains(body, `"pending":3`) {
		t.Errorf("body = %s", body)
	}
}

func TestRouter_Flush(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"collector missing", errors.New("no collector url"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFlusher{err: tt.err}
			h := NewRouter(f, prometheus.NewRegistry())
			code, body := do(t, h, http.MethodPost, "/flush")
			if code != tt.want {
				t.Errorf("status = %d, want %d (%s)", code, tt.want, body)
			}
			if f.flushes.Load() != 1 {
				t.Errorf("flushes = %d, want 1", f.flushes.Load())
			}
		})
	}
}

func TestRouter_FlushRequiresPost(t *testing.T) {
	f := &fakeFlusher{}
	code, _ := do(t, NewRouter(f, prometheus.NewRegistry()), http.MethodGet, "/flush")
	if code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", code)
	}
	if f.flushes.Load() != 0 {
		t.Error("GET must not flush")
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "outqueue_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	code, body := do(t, NewRouter(&fakeFlusher{}, reg), http.MethodGet, "/metrics")
	if code != http.StatusOK || !strings.Contains(body, "outqueue_test_total 1") {
		t.Errorf("status = %d body = %s", code, body)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(ln.Addr().String(), NewRouter(&fakeFlusher{}, prometheus.NewRegistry()), log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
