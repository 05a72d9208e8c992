// Package backend hosts the Feed Fetchers, Aggregation Engine, and
// Attestation Signer behind an internal HTTP listener spec §2 calls the
// "backend" — one process serving one route per asset pair, consolidating
// original_source's one-Python-process-per-port-9100-9107 topology into a
// single Go process per spec §2's explicit note that Go's goroutine-per-
// request model makes that consolidation idiomatic.
package backend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/myceliasignal/slo/internal/aggregate"
	"github.com/myceliasignal/slo/internal/logging"
	"github.com/myceliasignal/slo/internal/metrics"
	"github.com/myceliasignal/slo/internal/signer"
)

// Station binds one route to the Engine that serves it and the signing
// scheme its bundles are signed with. The scheme is fixed per station (see
// stations in cmd/oracled/serve.go); the backend does not know which payment
// rail the proxy put in front of the route.
type Station struct {
	Path   string
	Engine *aggregate.Engine
	Scheme signer.Scheme
}

// Server is the backend's chi-routed HTTP handler.
type Server struct {
	stations []Station
	signer   *signer.Signer
	logger   logging.Logger
	metrics  metrics.Recorder
	started  time.Time
}

func New(stations []Station, s *signer.Signer, logger logging.Logger, rec metrics.Recorder) *Server {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Server{stations: stations, signer: s, logger: logger, metrics: rec, started: time.Now()}
}

// Handler builds the routed http.Handler, mirroring
// fox-one-compound/handler/server.go's chi wiring (recoverer, CORS, request
// ID, access log) with one GET route per station plus a health check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)

	for _, st := range s.stations {
		st := st
		r.Get(st.Path, s.handleStation(st))
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

func (s *Server) handleStation(st Station) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assertion, err := st.Engine.Aggregate(r.Context())
		if err != nil {
			s.logger.Error("aggregation failed", map[string]any{"path": st.Path, "error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "insufficient_quorum", "message": err.Error()})
			return
		}

		bundle, err := s.signer.Sign(assertion, st.Scheme)
		if err != nil {
			s.logger.Error("signing failed", map[string]any{"path": st.Path, "error": err.Error()})
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "signer_failure", "message": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, bundle)
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
