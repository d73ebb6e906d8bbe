package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/pullsheet/internal/metrics"
	"github.com/vbonduro/pullsheet/internal/service"
	"github.com/vbonduro/pullsheet/internal/session"
)

type Server struct {
	gate    *session.Gate
	pull    *service.PullService
	admin   *service.AdminService
	metrics *metrics.Metrics
	mux     *http.ServeMux
	logger  *slog.Logger
}

func NewServer(
	gate *session.Gate,
	pull *service.PullService,
	admin *service.AdminService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	s := &Server{
		gate:    gate,
		pull:    pull,
		admin:   admin,
		metrics: m,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("POST /api/signup", s.handleSignUp)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)

	s.mux.Handle("GET /api/me", s.authed(s.handleMe))
	s.mux.Handle("GET /api/catalog", s.authed(s.handleCatalog))
	s.mux.Handle("GET /api/items", s.authed(s.handleItems))
	s.mux.Handle("GET /api/filters", s.authed(s.handleGetFilters))
	s.mux.Handle("PUT /api/filters", s.authed(s.handleSaveFilters))
	s.mux.Handle("POST /api/items/{category}/{item}/press", s.authed(s.handlePress))
	s.mux.Handle("POST /api/items/{category}/{item}/release", s.authed(s.handleRelease))
	s.mux.Handle("POST /api/items/{category}/{item}/step", s.authed(s.handleStep))
	s.mux.Handle("PUT /api/items/{category}/{item}/quantity", s.authed(s.handleSetQuantity))
	s.mux.Handle("PUT /api/items/{category}/{item}/restock", s.authed(s.handleSetRestock))
	s.mux.Handle("POST /api/clear", s.authed(s.handleClear))
	s.mux.Handle("GET /api/summary", s.authed(s.handleSummary))
	s.mux.Handle("GET /api/summary/text", s.authed(s.handleSummaryText))

	s.mux.Handle("GET /api/admin/dashboard", s.adminOnly(s.handleDashboard))
	s.mux.Handle("GET /api/admin/profiles", s.adminOnly(s.handleListProfiles))
	s.mux.Handle("POST /api/admin/profiles/{id}/toggle", s.adminOnly(s.handleToggleActive))
	s.mux.Handle("PUT /api/admin/profiles/{id}/role", s.adminOnly(s.handleSetRole))
	s.mux.Handle("POST /api/admin/invite", s.adminOnly(s.handleInvite))
	s.mux.Handle("GET /api/admin/users", s.adminOnly(s.handleListUsers))
	s.mux.Handle("GET /api/admin/logs", s.adminOnly(s.handleListLogs))
	s.mux.Handle("GET /api/admin/logs.csv", s.adminOnly(s.handleExportLogs))
	s.mux.Handle("POST /api/admin/logs/archive", s.adminOnly(s.handleArchiveLogs))
	s.mux.Handle("DELETE /api/admin/logs", s.adminOnly(s.handleClearLogs))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		m.ObserveRequest(r.Method, rec.status, elapsed)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, s.metrics, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// NewHTTPServer wraps s with the timeouts used in production.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
