// Package controlplane implements the REST surface spec §6 describes:
// rule-family CRUD, recorder query/replay, and stats/analytics, served on
// a separate port from data-plane traffic.
package controlplane

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dev-console/proxyd/internal/latency"
	"github.com/dev-console/proxyd/internal/latencyrule"
	"github.com/dev-console/proxyd/internal/modifier"
	"github.com/dev-console/proxyd/internal/modifierrule"
	"github.com/dev-console/proxyd/internal/mockrule"
	"github.com/dev-console/proxyd/internal/pipeline"
	"github.com/dev-console/proxyd/internal/ratelimiter"
	"github.com/dev-console/proxyd/internal/ratelimitrule"
	"github.com/dev-console/proxyd/internal/recorder"
)

// Server holds every collaborator the control-plane handlers need.
type Server struct {
	mocks       *mockrule.Store
	modifiers   *modifierrule.Store
	rateLimits  *ratelimitrule.Store
	latencies   *latencyrule.Store
	rateLimiter *ratelimiter.RateLimiter
	latencyInj  *latency.Injector
	modifierC   *modifier.Modifier
	recorder    *recorder.Recorder
	pipeline    *pipeline.Pipeline
	logger      *zap.Logger
	startedAt   time.Time
}

// New builds a Server; Router builds its gorilla/mux router. logger may be
// nil.
func New(
	mocks *mockrule.Store,
	modifiers *modifierrule.Store,
	rateLimits *ratelimitrule.Store,
	latencies *latencyrule.Store,
	rl *ratelimiter.RateLimiter,
	inj *latency.Injector,
	mod *modifier.Modifier,
	rec *recorder.Recorder,
	pl *pipeline.Pipeline,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		mocks: mocks, modifiers: modifiers, rateLimits: rateLimits, latencies: latencies,
		rateLimiter: rl, latencyInj: inj, modifierC: mod, recorder: rec, pipeline: pl, logger: logger,
		startedAt: time.Now(),
	}
}

// Router builds the gorilla/mux router exposing every endpoint in spec
// §6's table, plus the supplemented /health endpoint. /metrics is mounted
// by main.go on the same router via promhttp.HandlerFor.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/recordings", s.listRecordings).Methods(http.MethodGet)
	r.HandleFunc("/api/recordings", s.clearRecordings).Methods(http.MethodDelete)
	r.HandleFunc("/api/recordings/{id}", s.getRecording).Methods(http.MethodGet)
	r.HandleFunc("/api/recordings/{id}/replay", s.replayRecording).Methods(http.MethodPost)
	r.HandleFunc("/api/stats", s.getStats).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics", s.getAnalytics).Methods(http.MethodGet)

	s.registerMockRoutes(r)
	s.registerModifierRoutes(r)
	s.registerRateLimitRoutes(r)
	s.registerLatencyRoutes(r)

	return r
}

type healthWire struct {
	Status          string  `json:"status"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	RecorderSize    int     `json:"recorder_size"`
	RecorderCap     int     `json:"recorder_capacity"`
	RateLimitBuckets int    `json:"rate_limit_buckets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthWire{
		Status:           "ok",
		UptimeSeconds:    time.Since(s.startedAt).Seconds(),
		RecorderSize:     s.recorder.Size(),
		RecorderCap:      s.recorder.Capacity(),
		RateLimitBuckets: s.rateLimiter.Stats().TotalBuckets,
	})
}

func newRuleID() string { return uuid.NewString() }
