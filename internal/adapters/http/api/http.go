// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/soundshape/panelsync/internal/adapters/samplecache"
	"github.com/soundshape/panelsync/internal/app"
	"github.com/soundshape/panelsync/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Update runs one composition update through the sync pipeline.
	Update(ctx context.Context, proposed model.CompositionSnapshot) (app.Result, error)

	// Composition returns the currently committed snapshot.
	Composition(ctx context.Context) model.CompositionSnapshot

	// StoreAudio caches an uploaded raw sample buffer and returns the
	// session id and content fingerprint.
	StoreAudio(ctx context.Context, sourceLabel string, samples []float32) (string, string)

	// CacheStats exposes sample-cache introspection.
	CacheStats(ctx context.Context) samplecache.Stats
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	audioHandler       *AudioHandler
	compositionHandler *CompositionHandler
	cacheStatsHandler  *CacheStatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		audioHandler:       NewAudioHandler(deps),
		compositionHandler: NewCompositionHandler(deps),
		cacheStatsHandler:  NewCacheStatsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/audio", MetricsMiddleware(s.audioHandler.HandlePostAudio, "audio"))
	mux.HandleFunc("/composition", MetricsMiddleware(s.compositionHandler.HandleComposition, "composition"))
	mux.HandleFunc("/cache/stats", MetricsMiddleware(s.cacheStatsHandler.HandleCacheStats, "cache_stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
