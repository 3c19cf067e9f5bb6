// Package httpapi serves the loaded metamodel, its validation result and the
// snapshot history over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"metacore/internal/export"
	"metacore/internal/persistence"
	persistencecore "metacore/internal/persistence/core"
	"metacore/pkg/facet"
	"metacore/pkg/metamodel"
	"metacore/pkg/metamodel/validation"
)

// Metamodel is the part of *metamodel.Loader the server reads. Lazy
// loaders build domain types on request.
type Metamodel interface {
	metamodel.View
	LoadKey(ctx context.Context, key string) (*metamodel.Specification, error)
	LoadDomain(ctx context.Context, selects func(key string) bool) error
	Validate(ctx context.Context) (*validation.Failures, error)
	Generation() uint64
	Mode() metamodel.Mode
	Deployment() facet.DeploymentType
}

var _ Metamodel = (*metamodel.Loader)(nil)

// FailureGauge receives per-severity failure counts after each validation.
type FailureGauge interface {
	SetFailures(bySeverity map[string]int)
}

// Options configures a Server. Everything but the logger is optional.
type Options struct {
	History persistence.Store
	Metrics http.Handler
	Gauge   FailureGauge
	Logger  *logrus.Entry
	// Select filters the exported type keys.
	Select func(key string) bool
	Now    func() time.Time
}

// Server is the HTTP surface.
type Server struct {
	model   Metamodel
	history persistence.Store
	metrics http.Handler
	gauge   FailureGauge
	log     *logrus.Entry
	selects func(string) bool
	now     func() time.Time
}

// New constructs a server over model.
func New(model Metamodel, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		base := logrus.New()
		base.SetOutput(io.Discard)
		logger = logrus.NewEntry(base)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		model:   model,
		history: opts.History,
		metrics: opts.Metrics,
		gauge:   opts.Gauge,
		log:     logger.WithField("component", "httpapi"),
		selects: opts.Select,
		now:     now,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/metamodel", s.snapshot)
	r.Get("/metamodel/types/*", s.typeByKey)
	r.Get("/validation", s.validation)
	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", s.listSnapshots)
		r.Get("/{id}", s.getSnapshot)
		r.Get("/{id}/diff", s.diffSnapshot)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"generation": s.model.Generation(),
		"types":      len(s.model.Specifications()),
	})
}

func (s *Server) validate(ctx context.Context) (*validation.Failures, error) {
	if err := s.model.LoadDomain(ctx, s.selects); err != nil {
		return nil, err
	}
	failures, err := s.model.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if s.gauge != nil {
		counts := map[string]int{}
		for _, f := range failures.Items() {
			counts[string(f.Severity)]++
		}
		s.gauge.SetFailures(counts)
	}
	return failures, nil
}

func (s *Server) build(ctx context.Context) (*export.Snapshot, error) {
	failures, err := s.validate(ctx)
	if err != nil {
		return nil, err
	}
	return export.Build(ctx, s.model, failures, export.Options{
		Mode:       string(s.model.Mode()),
		Deployment: string(s.model.Deployment()),
		Select:     s.selects,
		Now:        s.now,
	})
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := s.build(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := export.Marshal(snap, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("ETag", strconv.Quote(snap.Fingerprint))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) typeByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, http.StatusBadRequest, errors.New("type key is required"))
		return
	}
	if _, err := s.model.LoadKey(r.Context(), key); err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.build(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, ok := snap.Type(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("type %s is not loaded", key))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type validationResponse struct {
	Generation uint64           `json:"generation"`
	Blocking   bool             `json:"blocking"`
	Counts     map[string]int   `json:"counts"`
	Failures   []export.Failure `json:"failures"`
}

func (s *Server) validation(w http.ResponseWriter, r *http.Request) {
	failures, err := s.validate(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := validationResponse{
		Generation: s.model.Generation(),
		Blocking:   failures.HasBlocking(),
		Counts:     map[string]int{},
		Failures:   []export.Failure{},
	}
	for _, f := range failures.Items() {
		resp.Counts[string(f.Severity)]++
		resp.Failures = append(resp.Failures, export.Failure{
			Identifier: f.Identifier.String(),
			Severity:   string(f.Severity),
			Message:    f.Message,
			Source:     f.Factory,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, export.ErrNoHistory)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if records == nil {
		records = []persistence.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) recorded(r *http.Request) (*export.Snapshot, error) {
	p := export.Publisher{History: s.history}
	if id := chi.URLParam(r, "id"); id != "latest" {
		return p.Load(r.Context(), id)
	}
	return p.Latest(r.Context())
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.recorded(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// diffSnapshot compares a recorded snapshot with the live metamodel.
func (s *Server) diffSnapshot(w http.ResponseWriter, r *http.Request) {
	from, err := s.recorded(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := s.build(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := export.Diff(from, to)
	if res.Changes == nil {
		res.Changes = []export.Change{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":     res.From,
		"to":       res.To,
		"breaking": res.HasBreaking(),
		"changes":  res.Changes,
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, persistencecore.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, export.ErrNoHistory), errors.Is(err, metamodel.ErrUnknownType):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(err.Error())})
}
