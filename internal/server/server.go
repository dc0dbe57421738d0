// Package server exposes pipeline results over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/inspection"
	"github.com/sells-group/dining-cli/internal/loader"
	"github.com/sells-group/dining-cli/internal/model"
	"github.com/sells-group/dining-cli/internal/pipeline"
	"github.com/sells-group/dining-cli/internal/store"
)

// Record paging limits.
const (
	DefaultRecordLimit = 100
	MaxRecordLimit     = 1000
)

// Runner computes (or returns a cached) pipeline result.
type Runner interface {
	Run(ctx context.Context, src loader.Source, cfg pipeline.Config) (*pipeline.Result, error)
	Cache() *pipeline.Cache
}

// Options configures the API.
type Options struct {
	Source         loader.Source
	Config         pipeline.Config
	AllowedOrigins []string
	// Store is optional; the /runs endpoints answer 503 without it.
	Store store.Store
}

// Server serves the clustering API.
type Server struct {
	runner Runner
	opts   Options
	router chi.Router
}

// New creates a Server and registers its routes.
func New(runner Runner, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{runner: runner, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/palette", s.handlePalette)
	r.Get("/records", s.handleRecords)
	r.Get("/records/{id}/history", s.handleHistory)
	r.Get("/clusters/{metric}", s.handleClusters)
	r.Get("/cache", s.handleCacheStats)
	r.Post("/cache/invalidate", s.handleInvalidate)
	r.Get("/runs", s.handleListRuns)
	r.Post("/runs", s.handleSaveRun)
	r.Get("/runs/{id}", s.handleGetRun)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	res, err := s.runner.Run(r.Context(), s.opts.Source, s.opts.Config)
	if err != nil {
		zap.L().Error("server: pipeline failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return res, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePalette(w http.ResponseWriter, _ *http.Request) {
	out := make(map[aggregate.Color][]int, len(aggregate.Colors))
	for _, c := range aggregate.Colors {
		rgba := c.RGBA()
		out[c] = []int{int(rgba[0]), int(rgba[1]), int(rgba[2]), int(rgba[3])}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", DefaultRecordLimit)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit == 0 || limit > MaxRecordLimit {
		limit = MaxRecordLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	res, ok := s.result(w, r)
	if !ok {
		return
	}

	total := len(res.Current)
	start := min(offset, total)
	end := min(start+limit, total)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"records": res.Current[start:end],
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok := s.result(w, r)
	if !ok {
		return
	}
	var history []model.InspectionRecord
	if res.Records != nil {
		history = inspection.History(res.Records.Records, id)
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, "establishment not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"camis": id, "inspections": history})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	name, asGeoJSON := strings.CutSuffix(chi.URLParam(r, "metric"), ".geojson")
	metric, err := dbscan.ParseMetric(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown metric")
		return
	}
	colors, err := aggregate.ParseColors(r.URL.Query().Get("colors"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := s.result(w, r)
	if !ok {
		return
	}
	mr, ok := res.Run(metric)
	if !ok {
		writeError(w, http.StatusNotFound, "metric not clustered")
		return
	}
	summaries := aggregate.FilterColors(mr.Summaries, colors)

	if asGeoJSON {
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(aggregate.FeatureCollection(summaries))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   res.ID,
		"metric":   mr.Metric,
		"eps":      mr.Eps,
		"stats":    mr.Stats,
		"clusters": summaries,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Cache().Stats())
}

func (s *Server) handleInvalidate(w http.ResponseWriter, _ *http.Request) {
	purged := s.runner.Cache().Purge()
	zap.L().Info("server: cache purged", zap.Int("entries", purged))
	writeJSON(w, http.StatusOK, map[string]int{"purged": purged})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.opts.Store.ListRuns(r.Context(), store.RunFilter{
		SourceKey: r.URL.Query().Get("source_key"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	run, err := s.opts.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleSaveRun persists the current pipeline result. A result that is
// already stored (served from the cache) answers 200 with its id.
func (s *Server) handleSaveRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	res, ok := s.result(w, r)
	if !ok {
		return
	}
	existing, err := s.opts.Store.GetRun(r.Context(), res.ID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"id": existing.ID})
		return
	case !errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec, err := store.FromResult(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.opts.Store.SaveRun(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
