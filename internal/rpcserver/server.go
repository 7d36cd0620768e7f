// Package rpcserver is the optional HTTP shim over the governance engines.
// Everything in this module is reachable through the cmd/aeterna CLI without
// a server running at all; this package exists for deployments that want a
// long-lived process fronting the same engines over HTTP instead of
// shelling out to the CLI per call.
package rpcserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kikokikok/aeterna-sub000/internal/httpserver"
	"github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/approval"
	"github.com/kikokikok/aeterna-sub000/pkg/backup"
	"github.com/kikokikok/aeterna-sub000/pkg/confirmation"
	"github.com/kikokikok/aeterna-sub000/pkg/graph"
	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

// Config holds the parameters NewServer needs, decoupled from the CLI's
// top-level configuration struct.
type Config struct {
	CORSAllowedOrigins []string
}

// Engines bundles the domain services the shim mounts routes against. Any
// of these may be nil; handlers that depend on a nil engine return 503
// rather than panicking, so a deployment can run a partial shim (e.g. graph
// reads only, no backup) without wiring every engine.
type Engines struct {
	Graph        *graph.Service
	Policies     *metapolicy.Service
	Approvals    *approval.Service
	Confirmation *confirmation.Service
	Backup       *backup.Service
}

// Server holds the HTTP server dependencies.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router
	Logger    *slog.Logger
	DB        *store.Store
	Redis     *redis.Client
	Metrics   *prometheus.Registry
	engines   Engines
	startedAt time.Time
}

// NewServer wires request-ID, logging, metrics and recovery middleware,
// mounts the Tenant Context middleware in place of an authentication
// scheme (authentication is a Non-goal), exposes health/ready/metrics
// endpoints, and mounts the approval, confirmation and graph routes under
// /api/v1, whose router is kept as APIRouter.
func NewServer(cfg Config, logger *slog.Logger, db *store.Store, rdb *redis.Client, metricsReg *prometheus.Registry, engines Engines) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		engines:   engines,
		startedAt: time.Now(),
	}

	s.Router.Use(httpserver.RequestID)
	s.Router.Use(httpserver.Logger(logger))
	s.Router.Use(httpserver.Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Tenant-Id", "X-Principal-Id", "X-Principal-Kind"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(tenant.Middleware)
		s.mountApprovals(r)
		s.mountConfirmations(r)
		s.mountGraph(r)
		s.APIRouter = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	type checkResult struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	var checks []checkResult
	allOK := true

	if err := s.DB.DB.PingContext(ctx); err != nil {
		s.Logger.Error("readiness check: store ping failed", "error", err)
		checks = append(checks, checkResult{Name: "store", Status: "fail", Error: err.Error()})
		allOK = false
	} else {
		checks = append(checks, checkResult{Name: "store", Status: "ok"})
	}

	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			s.Logger.Error("readiness check: redis ping failed", "error", err)
			checks = append(checks, checkResult{Name: "redis", Status: "fail", Error: err.Error()})
			allOK = false
		} else {
			checks = append(checks, checkResult{Name: "redis", Status: "ok"})
		}
	}

	status := http.StatusOK
	overall := "ok"
	if !allOK {
		status = http.StatusServiceUnavailable
		overall = "fail"
	}
	httpserver.Respond(w, status, map[string]any{"status": overall, "checks": checks})
}

// requireTenant extracts the Tenant Context a request must carry, writing a
// 400 and returning false if it is absent or incomplete.
func requireTenant(w http.ResponseWriter, r *http.Request) (tenant.Context, bool) {
	tc := tenant.FromContext(r.Context())
	if tc == nil || tc.TenantID == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_tenant_context", "X-Tenant-Id header is required")
		return tenant.Context{}, false
	}
	return *tc, true
}

func unavailable(w http.ResponseWriter, engine string) {
	httpserver.RespondError(w, http.StatusServiceUnavailable, "engine_unavailable", engine+" engine is not configured on this server")
}
