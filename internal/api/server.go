// Package api exposes on-demand evaluation and run history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/dataset"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/pipeline"
	"github.com/sells-group/compliance-cli/internal/store"
)

// Evaluator runs a loaded dataset through the pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, ds *model.Dataset) (*pipeline.Outcome, error)
}

// RunReader is the read side of store.Store.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	CountRuns(ctx context.Context) (map[model.RunStatus]int, error)
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)
}

// Server serves the HTTP API. A nil RunReader disables the run endpoints.
type Server struct {
	eval      Evaluator
	runs      RunReader
	gatherer  prometheus.Gatherer
	limiter   *rate.Limiter
	maxUpload int64
	origins   []string
}

// NewServer creates a Server.
func NewServer(cfg config.ServerConfig, eval Evaluator, runs RunReader, gatherer prometheus.Gatherer) *Server {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxUpload := cfg.MaxUploadMB << 20
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		eval:      eval,
		runs:      runs,
		gatherer:  gatherer,
		limiter:   rate.NewLimiter(limit, burst),
		maxUpload: maxUpload,
		origins:   cfg.AllowedOrigin,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.With(s.rateLimit).Post("/evaluate", s.handleEvaluate)

	r.Route("/runs", func(r chi.Router) {
		r.Use(s.requireStore)
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
	})
	r.With(s.requireStore).Get("/stats", s.handleStats)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.runs == nil {
			writeError(w, http.StatusServiceUnavailable, "run history is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvaluate accepts a multipart upload in field "file" and evaluates it synchronously.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(header.Filename)
	if !dataset.Supported(name) {
		writeError(w, http.StatusUnsupportedMediaType, "only .csv and .xlsx files are supported")
		return
	}

	ds, err := loadUpload(r.Context(), name, file)
	if err != nil {
		zap.L().Warn("api: upload not loadable", zap.String("file", name), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out, err := s.eval.Evaluate(r.Context(), ds)
	if err != nil && out.Report == nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		zap.L().Warn("api: evaluation artifacts incomplete", zap.String("file", name), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, out)
}

// loadUpload spools the upload to a temp file so both CSV and XLSX readers can open it.
func loadUpload(ctx context.Context, name string, src io.Reader) (*model.Dataset, error) {
	dir, err := os.MkdirTemp("", "compliance-upload-*")
	if err != nil {
		return nil, eris.Wrap(err, "api: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrap(err, "api: create temp file")
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "api: spool upload")
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "api: close temp file")
	}
	return dataset.Load(ctx, path)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		File:   q.Get("file"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	phases, err := s.runs.ListPhases(r.Context(), id)
	if err != nil {
		zap.L().Error("api: list phases", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list phases")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*model.Run
		Phases []model.RunPhase `json:"phases"`
	}{Run: run, Phases: phases})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.runs.CountRuns(r.Context())
	if err != nil {
		zap.L().Error("api: count runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "by_status": counts})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("api: invalid integer %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
