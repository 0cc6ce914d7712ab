// Package api exposes the audit pipeline over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/models"
	"call-audit-go/internal/processor"
	"call-audit-go/internal/storage"
)

const (
	ownerHeader     = "X-Owner-ID"
	requestIDHeader = "X-Request-ID"
)

type Server struct {
	proc        *processor.Processor
	models      *models.Pool
	store       storage.Store
	log         *logger.Logger
	metrics     *metrics.Metrics
	maxFileSize int64
}

func NewServer(proc *processor.Processor, pool *models.Pool, store storage.Store, maxFileSize int64, log *logger.Logger) *Server {
	if maxFileSize <= 0 {
		maxFileSize = 25 << 20
	}
	return &Server{
		proc:        proc,
		models:      pool,
		store:       store,
		log:         log.WithComponent("api"),
		metrics:     metrics.Default,
		maxFileSize: maxFileSize,
	}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "POST /api/transcribe/", "transcribe", s.handleTranscribe)
	s.handle(mux, "POST /api/analyze/", "analyze", s.handleAnalyze)
	s.handle(mux, "POST /api/audit/", "audit", s.handleAudit)
	s.handle(mux, "GET /api/recordings", "recordings", s.handleRecordings)
	s.handle(mux, "GET /api/recordings/stats", "stats", s.handleStats)
	s.handle(mux, "GET /healthz", "healthz", s.handleHealth)
	s.handle(mux, "GET /readyz", "readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// handle registers h under pattern, and under pattern without its trailing
// slash so clients posting to /api/audit are not redirected.
func (s *Server) handle(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	wrapped := s.instrument(endpoint, h)
	mux.Handle(pattern, wrapped)
	if n := len(pattern); pattern[n-1] == '/' {
		mux.Handle(pattern[:n-1], wrapped)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		// every later WithRequest on r logs this same id
		id := logger.RequestID(r)
		r.Header.Set(requestIDHeader, id)
		w.Header().Set(requestIDHeader, id)

		h(rec, r)

		d := time.Since(start)
		s.metrics.RecordRequest(endpoint, strconv.Itoa(rec.status), d)
		entry := s.log.WithRequest(r).
			WithField("status", rec.status).
			WithField("duration_ms", d.Milliseconds())
		if rec.status >= 500 {
			entry.Warn("request failed")
		} else {
			entry.Info("request served")
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func ownerID(r *http.Request) string {
	return r.Header.Get(ownerHeader)
}
