package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudops-tools/quota-notifier/pkg/model"
	"github.com/cloudops-tools/quota-notifier/pkg/throttle"
)

// StatsSource exposes the most recent pass summary.
type StatsSource interface {
	Stats() (model.PassStats, bool)
}

// Server provides read-only ops endpoints: health, last pass status, and the
// current throttle records.
type Server struct {
	stats  StatsSource
	store  throttle.Store
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates an ops API server.
func NewServer(stats StatsSource, store throttle.Store, logger *slog.Logger) *Server {
	s := &Server{
		stats:  stats,
		store:  store,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/throttle", s.handleThrottle)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats, ok := s.stats.Stats()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		json.NewEncoder(w).Encode(map[string]string{"status": "no pass completed yet"})
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleThrottle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	records, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("list throttle records", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.ThrottleRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
