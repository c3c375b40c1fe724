// Package api exposes the killmail store over HTTP: ingestion at
// /killmail/save, per-subject queries under /api/, Prometheus metrics
// at /metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zkb-tools/zkbinfo/pkg/killmail"
	"github.com/zkb-tools/zkbinfo/pkg/store"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// Store is the slice of the storage engine the server needs. An
// interface so handler tests can run against fakes.
type Store interface {
	Insert(ctx context.Context, km *killmail.Killmail) error
	History(ctx context.Context, kind store.SubjectKind, id int64, lookback time.Duration) ([]store.ParticipationRow, error)
	Relations(ctx context.Context, kind store.SubjectKind, id int64, rel store.RelationKind, lookback time.Duration) ([]store.RelationCount, error)
	Activity(ctx context.Context, kind store.SubjectKind, id int64, lookback time.Duration) ([]store.HourCount, error)
	IDsForDate(ctx context.Context, day time.Time) ([]int64, error)
}

// Server encapsulates the HTTP service layer.
type Server struct {
	store    Store
	counters *Counters
	lookback time.Duration
	server   *http.Server
}

// NewServer wires routes, middleware, and timeouts. lookback bounds
// every read query's trailing window (default 30 days when zero).
func NewServer(st Store, counters *Counters, lookback time.Duration, addr string) *Server {
	if counters == nil {
		counters = NewCounters()
	}
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}

	s := &Server{
		store:    st,
		counters: counters,
		lookback: lookback,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /killmail/save", s.handleSave)
	mux.HandleFunc("GET /api/statistic", s.handleStatistic)
	mux.HandleFunc("GET /api/killmail/ids/{date}/{$}", s.handleIDsForDate)
	mux.HandleFunc("GET /api/{subject}/activity/{id}/{$}", s.handleActivity)
	mux.HandleFunc("GET /api/{subject}/activity/hourly/{id}/{$}", s.handleActivityHourly)
	mux.HandleFunc("GET /api/{subject}/{polarity}/{grouping}/{id}/{$}", s.handleRelations)

	handler := withLogging(withRecovery(mux))

	if addr == "" {
		addr = ":8080"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Handler returns the middleware-wrapped handler, for httptest use.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server (blocking).
func (s *Server) Start() error {
	fmt.Printf(`{"level":"info","msg":"server_starting","addr":"%s"}`+"\n", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSave ingests one killmail. Malformed payloads are rejected
// before any store access; store failures are reported, never retried
// here (the feed clients own retry policy).
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.counters.Inc("save")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", killmail.ErrMalformed, err))
		return
	}

	km, err := killmail.Decode(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.store.Insert(r.Context(), km); err != nil {
		writeError(w, r, err)
		return
	}

	savedKillmails.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Success",
		"killmail_id": km.KillmailID,
	})
}

func (s *Server) handleStatistic(w http.ResponseWriter, r *http.Request) {
	s.counters.Inc("statistic")
	writeJSON(w, http.StatusOK, s.counters.Snapshot())
}

func (s *Server) handleIDsForDate(w http.ResponseWriter, r *http.Request) {
	s.counters.Inc("killmail_ids")

	raw := r.PathValue("date")
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: date %q: %v", store.ErrBadParam, raw, err))
		return
	}

	ids, err := s.store.IDsForDate(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	kind, id, err := subjectParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.counters.Inc("activity:" + kind.String())
	queryTotal.WithLabelValues("activity", kind.String()).Inc()

	rows, err := s.store.History(r.Context(), kind, id, s.lookback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BuildActivityReport(id, rows))
}

func (s *Server) handleActivityHourly(w http.ResponseWriter, r *http.Request) {
	kind, id, err := subjectParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.counters.Inc("activity_hourly:" + kind.String())
	queryTotal.WithLabelValues("activity_hourly", kind.String()).Inc()

	buckets, err := s.store.Activity(r.Context(), kind, id, s.lookback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DensifyHours(buckets))
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request) {
	kind, id, err := subjectParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rel, err := store.ParseRelation(r.PathValue("polarity"), r.PathValue("grouping"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.counters.Inc(r.PathValue("polarity") + "_" + r.PathValue("grouping") + ":" + kind.String())
	queryTotal.WithLabelValues("relations", kind.String()).Inc()

	rels, err := s.store.Relations(r.Context(), kind, id, rel, s.lookback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RelationsMap(rels))
}

// subjectParams extracts the subject kind and id path segments.
func subjectParams(r *http.Request) (store.SubjectKind, int64, error) {
	kind, err := store.ParseSubject(r.PathValue("subject"))
	if err != nil {
		return 0, 0, err
	}
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, fmt.Errorf("%w: subject id %q", store.ErrBadParam, raw)
	}
	return kind, id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the store error taxonomy to HTTP statuses. Every
// failure mode stays distinguishable; "store busy" is never folded
// into an empty success.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var class string
	switch {
	case errors.Is(err, killmail.ErrMalformed):
		status, class = http.StatusBadRequest, "malformed"
	case errors.Is(err, store.ErrBadParam):
		status, class = http.StatusBadRequest, "bad_param"
	case errors.Is(err, store.ErrBusy):
		status, class = http.StatusServiceUnavailable, "busy"
	case errors.Is(err, store.ErrConstraint):
		status, class = http.StatusInternalServerError, "constraint"
	default:
		status, class = http.StatusInternalServerError, "internal"
	}
	requestErrors.WithLabelValues(class).Inc()
	fmt.Printf(`{"level":"error","msg":"request_failed","trace_id":"%s","class":"%s","error":"%v"}`+"\n",
		getTraceID(r.Context()), class, err)
	writeJSON(w, status, map[string]string{"error": class, "message": err.Error()})
}

// Middleware: panic recovery.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":"%v","path":"%s"}`+"\n", err, r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: request logging with trace IDs.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures the HTTP status code for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
