// Package ops serves the operational HTTP surface: liveness, runtime
// stats and Prometheus metrics. The daemon has no business API; the
// feed is its only functional interface.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/singpath/progressd/pkg/logger"
	"github.com/singpath/progressd/pkg/metrics"
)

// StatsProvider exposes a point-in-time view of the daemon internals.
type StatsProvider interface {
	Stats() map[string]any
}

// Server is the operational HTTP listener.
type Server struct {
	addr  string
	log   logger.Logger
	stats StatsProvider
	srv   *http.Server
}

// NewServer creates the ops server listening on addr.
func NewServer(addr string, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		addr:  addr,
		log:   logger.Get().Named("ops"),
		stats: stats,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.Register(mux)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Register attaches the ops routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

// Start serves until ctx ends or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "ops server listening", logger.String("addr", s.addr))
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats := map[string]any{}
	if s.stats != nil {
		stats = s.stats.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
