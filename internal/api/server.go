// Package api serves the breadth and trend series over HTTP.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BreadthSentinel/internal/breadth"
)

// ProgressTracker records the latest engine progress report so clients can
// poll it while a long crunch runs.
type ProgressTracker struct {
	mu      sync.Mutex
	Percent int
	Message string
}

// Update is a breadth.Progress callback.
func (p *ProgressTracker) Update(percent int, message string) {
	p.mu.Lock()
	p.Percent = percent
	p.Message = message
	p.mu.Unlock()
}

func (p *ProgressTracker) snapshot() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Percent, p.Message
}

// Server exposes the engine over HTTP.
type Server struct {
	engine   *breadth.Engine
	progress *ProgressTracker
}

func NewServer(engine *breadth.Engine, progress *ProgressTracker) *Server {
	return &Server{engine: engine, progress: progress}
}

// Router sets up HTTP routes for the API server.
func (s *Server) Router(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/breadth", s.handleBreadth)
	mux.HandleFunc("/api/v1/trend", s.handleTrend)
	mux.HandleFunc("/api/v1/progress", s.handleProgress)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

// handleBreadth returns the breadth series, refreshing it first when stale.
// A fresh cache makes this cheap; a cold start can take minutes and is
// cancelled if the client goes away.
func (s *Server) handleBreadth(w http.ResponseWriter, r *http.Request) {
	series, err := s.engine.Current(r.Context(), s.progress.Update)
	if err != nil {
		log.Printf("[ERROR] breadth request: %v", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, series)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	points, err := s.engine.TrendSeries()
	if err != nil {
		log.Printf("[ERROR] trend request: %v", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, points)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	percent, message := s.progress.snapshot()
	writeJSON(w, map[string]interface{}{
		"percent": percent,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
