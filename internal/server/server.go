// Package server exposes the simulation and optimization engine over HTTP.
// Simulations run synchronously; optimizations run asynchronously through an
// in-memory run registry with a WebSocket progress stream per run.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"defi-strategy-lab/internal/observability"
)

// Options holds the HTTP listener settings.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MetricsPath is where Prometheus exposition is served. Empty disables
	// the endpoint.
	MetricsPath string

	Logger *zerolog.Logger
}

// Server wraps an Echo instance configured with the API routes.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger zerolog.Logger
}

// New creates a Server serving the handler's routes plus health and metrics.
func New(h *Handler, opts Options) *Server {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	e.Use(Recover(logger))
	e.Use(RequestLogging(logger))
	e.Use(RequestMetrics())

	h.RegisterRoutes(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.MetricsPath != "" {
		e.GET(opts.MetricsPath, echo.WrapHandler(observability.Handler()))
	}

	return &Server{
		echo:   e,
		addr:   opts.Addr,
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance, used by tests to serve the
// routes from an httptest server.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
