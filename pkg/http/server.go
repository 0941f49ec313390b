package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"MarketSignal/pkg/http/middleware"
	applogger "MarketSignal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler mounts a group of routes on the echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

type ServerOption func(*ServerConfig)

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SlowRequest     time.Duration
	MetricsPath     string
	CORS            bool
	Middleware      []echo.MiddlewareFunc
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	l      *applogger.Logger
}

// NewServer builds the echo instance and registers every handler.
func NewServer(l *applogger.Logger, handlers []Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SlowRequest:     2 * time.Second,
		MetricsPath:     "/metrics",
		CORS:            true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(l))
	e.Use(middleware.RequestLogging(l))
	e.Use(middleware.Metrics(l, cfg.SlowRequest))
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderXRequestID},
			MaxAge:        600,
		}))
	}
	e.Use(cfg.Middleware...)

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{echo: e, config: cfg, l: l}
}

// Start listens in the background. Listener errors are sent on the returned channel.
func (s *Server) Start() <-chan error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	errCh := make(chan error, 1)
	go func() {
		s.l.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.l.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func WithAddress(host string, port int) ServerOption {
	return func(c *ServerConfig) {
		if host != "" {
			c.Host = host
		}
		c.Port = port
	}
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithMetricsPath sets the promhttp route. Empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = path }
}

// WithMiddleware appends middleware after the built-in chain.
func WithMiddleware(mw ...echo.MiddlewareFunc) ServerOption {
	return func(c *ServerConfig) { c.Middleware = append(c.Middleware, mw...) }
}
