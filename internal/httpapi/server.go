// Package httpapi is the read-only operational surface: health, engine
// status and Prometheus metrics. It never mutates the book.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/horizon/internal/alloc"
	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/metrics"
)

// StatusSource is what the server reads from the running engine.
type StatusSource interface {
	Positions() []domain.Position
}

type AllocSource interface {
	Summary() alloc.Snapshot
}

type Server struct {
	server *http.Server
	start  time.Time
}

func NewServer(addr string, engine StatusSource, allocator AllocSource, reg *metrics.Registry) *Server {
	s := &Server{start: time.Now()}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus(engine, allocator)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.start).Seconds()),
	})
}

// statusResponse is the full engine view: allocation books, equity and
// the open positions.
type statusResponse struct {
	Allocation alloc.Snapshot    `json:"allocation"`
	Positions  []domain.Position `json:"positions"`
}

func (s *Server) handleStatus(engine StatusSource, allocator AllocSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{
			Allocation: allocator.Summary(),
			Positions:  engine.Positions(),
		}
		if resp.Positions == nil {
			resp.Positions = []domain.Position{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
