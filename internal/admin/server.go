// Package admin serves the operator endpoints of the outqueue binary:
// Prometheus metrics, a health probe and a manual flush trigger.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/outqueue/internal/ports"
)

// Flusher is the part of the queue registry the admin server drives.
type Flusher interface {
	FlushAll(ctx context.Context) error
	Pending() int
	Len() int
}

type response struct {
	Status  string `json:"status"`
	Queues  int    `json:"queues"`
	Pending int    `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// NewRouter builds the admin routes.
func NewRouter(flusher Flusher, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, snapshot(flusher, "ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Post("/flush", func(w http.ResponseWriter, req *http.Request) {
		if err := flusher.FlushAll(req.Context()); err != nil {
			resp := snapshot(flusher, "error")
			resp.Error = err.Error()
			writeJSON(w, http.StatusBadGateway, resp)
			return
		}
		writeJSON(w, http.StatusAccepted, snapshot(flusher, "flushing"))
	})
	return r
}

func snapshot(f Flusher, status string) response {
	return response{Status: status, Queues: f.Len(), Pending: f.Pending()}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Server runs the admin router on its own listener.
type Server struct {
	srv    *http.Server
	logger ports.Logger
}

// NewServer creates a server for addr. It does not listen until Serve.
func NewServer(addr string, handler http.Handler, logger ports.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts the
// server down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()
	s.logger.Info("admin server listening", ports.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
