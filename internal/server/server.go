// Package server exposes the survey map viewer: a small JSON API over the
// store plus an embedded single-page Leaflet viewer.
package server

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/export"
	"github.com/trackside-analytics/railscan-cli/internal/model"
	"github.com/trackside-analytics/railscan-cli/internal/store"
)

//go:embed static
var staticFS embed.FS

// Config holds viewer server settings. Listener setup and shutdown belong
// to the caller; the server only builds the handler.
type Config struct {
	RateLimitRPS float64
}

// Server serves the viewer API backed by a store.
type Server struct {
	store  store.Store
	styles map[model.Category]export.MarkerStyle
	cfg    Config
}

// New creates a Server. A nil styles map falls back to the default marker
// styles.
func New(st store.Store, styles map[model.Category]export.MarkerStyle, cfg Config) *Server {
	if styles == nil {
		styles = export.DefaultStyles
	}
	return &Server{store: st, styles: styles, cfg: cfg}
}

// Handler builds the full HTTP handler: API routes, rate limiting, CORS and
// the embedded static viewer.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	if s.cfg.RateLimitRPS > 0 {
		r.Use(rateLimit(s.cfg.RateLimitRPS, int(s.cfg.RateLimitRPS)*2))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/features", s.handleFeatures)
		r.Get("/runs", s.handleRuns)
		r.Get("/points", s.handlePoints)
		r.Get("/segments/{index}", s.handleSegment)
	})

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // embed layout is fixed at build time
	}
	r.Handle("/*", http.FileServer(http.FS(static)))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// styledFeature is a reference feature plus its marker rendering hints.
type styledFeature struct {
	model.Feature
	Style export.MarkerStyle `json:"style"`
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := s.store.ListFeatures(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]styledFeature, 0, len(features))
	for _, f := range features {
		out = append(out, styledFeature{Feature: f, Style: export.Style(s.styles, f.Category)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = model.RunStatus(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.New("server: invalid limit"))
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// styledPoint is a labeled track point plus its marker rendering hints.
type styledPoint struct {
	model.LabeledPoint
	Style export.MarkerStyle `json:"style"`
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		writeError(w, http.StatusBadRequest, eris.New("server: run query parameter is required"))
		return
	}
	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	points, err := s.store.ListLabeledPoints(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]styledPoint, 0, len(points))
	for _, p := range points {
		out = append(out, styledPoint{LabeledPoint: p, Style: export.Style(s.styles, p.Label)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		writeError(w, http.StatusBadRequest, eris.New("server: run query parameter is required"))
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.New("server: invalid segment index"))
		return
	}

	seg, err := s.store.GetSegment(r.Context(), runID, index)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
