// Package diag implements Televoodoo's diagnostic HTTP surface:
// /health, /api/session, and /metrics. It follows the same
// construction/registerRoutes/Run split and jsonErrorHandler shape as
// the teacher's server/api.go APIServer, swapping room/store state for
// a session status snapshot and a Prometheus registry.
package diag

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"log/slog"

	"televoodoo/metrics"
)

// SessionStatus is a point-in-time snapshot of the active transport
// session, if any.
type SessionStatus struct {
	Connected bool      `json:"connected"`
	Transport string    `json:"transport,omitempty"`
	Name      string    `json:"name,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
}

// StatusProvider is implemented by whatever owns the live session
// (SessionHandle in the root package) so diag never needs to reach
// into transport internals directly.
type StatusProvider interface {
	SessionStatus() SessionStatus
}

// Server is the diagnostic HTTP surface.
type Server struct {
	echo    *echo.Echo
	metrics *metrics.Metrics
	status  StatusProvider
}

// New builds a Server and registers its routes. Call Run to serve.
func New(m *metrics.Metrics, status StatusProvider) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("diag request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.HTTPErrorHandler = jsonErrorHandler

	s := &Server{echo: e, metrics: m, status: status}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/session", s.handleSession)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
}

// Run starts serving on addr and blocks until ctx is canceled, then
// shuts down with a bounded grace period (spec §5's "joins worker
// threads with a 1-second budget" scaled up slightly for HTTP drain).
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("diag server error", "error", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		slog.Warn("diag shutdown", "error", err)
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

func (s *Server) handleHealth(c echo.Context) error {
	status := s.status.SessionStatus()
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Connected: status.Connected})
}

func (s *Server) handleSession(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status.SessionStatus())
}

// jsonErrorHandler ensures all error responses have a consistent JSON
// body: {"error": "message"}.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
