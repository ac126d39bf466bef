// Package dispatcher implements the HTTP surface: job creation and
// retrieval, health checks, metrics exposition, and API documentation.
package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kklingenberg/docker-job-dispatcher/internal/engine"
	"github.com/kklingenberg/docker-job-dispatcher/internal/filter"
	"github.com/kklingenberg/docker-job-dispatcher/internal/metrics"
)

// JobSummary is the HTTP response shape for a job.
type JobSummary struct {
	ID      string  `json:"id"`
	Created *int64  `json:"created,omitempty"`
	Status  *string `json:"status,omitempty"`
}

// Service holds everything a dispatcher handler needs: the engine, the
// compiled filter, the namespace it operates under, and whether it
// should start containers inline after creating them (true in
// "unlimited concurrency" mode; false when the Scheduler Loop owns
// starting).
type Service struct {
	Engine       engine.Ops
	Filter       *filter.Runtime
	Metrics      *metrics.Registry
	Namespace    string
	StartInline  bool
	Logger       *zap.Logger
}

// Router builds the full route table described in SPEC_FULL.md §4.6.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)

	r.Post("/job", s.handleCreateJob)
	r.Post("/job/*", s.handleCreateJob)
	r.Get("/job/{id}", s.handleGetJob)
	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/docs", s.handleDocs)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("no such route"))
	})

	return r
}

func requestPath(r *http.Request) string {
	if r.URL.Path == "/job" {
		return ""
	}
	if p := chi.URLParam(r, "*"); p != "" {
		return p
	}
	return strings.TrimPrefix(r.URL.Path, "/job/")
}

func (s *Service) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	path := requestPath(r)
	s.Logger.Debug("job creation request", zap.Any("body", body), zap.String("path", path))

	raw, err, produced := filter.FirstResult(s.Filter, body, path)
	if !produced {
		writeError(w, http.StatusBadRequest, errors.New("Filter didn't produce results"))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	options, cfg, err := decodeManifest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.Engine.Create(r.Context(), options.Name, options.Platform, cfg, s.Namespace)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	if result != nil {
		s.Logger.Info("created job", zap.String("id", options.Name))
		if s.StartInline {
			if err := s.Engine.Start(r.Context(), options.Name); err != nil {
				writeError(w, http.StatusBadGateway, err)
				return
			}
		}
		writeJSON(w, http.StatusCreated, JobSummary{ID: options.Name})
		return
	}

	s.Logger.Info("pre-existing job", zap.String("id", options.Name))
	writeJSON(w, http.StatusOK, JobSummary{ID: options.Name})
}

func (s *Service) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := s.Engine.Get(r.Context(), id, s.Namespace)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, errors.New("the specified job doesn't exist"))
		return
	}
	s.Logger.Info("fetched job", zap.String("id", id))

	created := summary.Created
	status := summary.Status
	writeJSON(w, http.StatusOK, JobSummary{ID: id, Created: &created, Status: &status})
}

func (s *Service) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.Metrics.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
