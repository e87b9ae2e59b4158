// Package admin read and evict HTTP API over the service registry, for
// administrative tooling
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KOMKZ/go-fit-framework/health"
	"github.com/KOMKZ/go-fit-framework/httpx"
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/KOMKZ/go-fit-framework/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Server admin HTTP server
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	boundAddr  string
	health     *health.Aggregator
	log        *logger.CtxZapLogger
}

// Option configures a Server
type Option func(*options)

type options struct {
	traceService string
}

// WithTracing opens an OpenTelemetry span per request under serviceName
func WithTracing(serviceName string) Option {
	return func(o *options) {
		o.traceService = serviceName
	}
}

// NewServer builds the engine and registers routes; agg may be nil
func NewServer(cfg Config, reg Registry, agg *health.Aggregator, log *logger.CtxZapLogger, opts ...Option) *Server {
	cfg.ApplyDefaults()
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.GetLogger("admin")
	}
	gin.SetMode(cfg.Mode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	// the span must exist before TraceID reads it
	if o.traceService != "" {
		engine.Use(otelgin.Middleware(o.traceService))
	}
	// trace id before the access log so log lines carry it
	engine.Use(middleware.TraceID(middleware.DefaultTraceConfig()))
	engine.Use(middleware.RequestLog(log, middleware.RequestLogConfig{SkipPaths: []string{cfg.HealthPath}}))
	engine.Use(httpx.ErrorLoggingMiddleware(cfg.ErrorLogging))
	engine.Use(middleware.Recovery(log))
	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())

	s := &Server{config: cfg, engine: engine, health: agg, log: log}
	s.routes(&handler{registry: reg, server: s})
	return s
}

func (s *Server) routes(h *handler) {
	s.engine.GET(s.config.HealthPath, h.health)

	fit := s.engine.Group("/fit")
	fit.GET("/services", httpx.Wrap(h.listServices))
	fit.GET("/services/generic/:genericId", httpx.Wrap(h.servicesByGeneric))
	fit.GET("/services/stale", httpx.Wrap(h.staleServices))
	fit.GET("/fitables/:genericId/instances", httpx.Wrap(h.fitableInstances))
	fit.GET("/workers", httpx.Wrap(h.listWorkers))
	fit.GET("/workers/:workerId", httpx.Wrap(h.workerDetail))
	fit.DELETE("/workers/:workerId", httpx.Wrap(h.evictWorker))
}

// Enabled whether the config asks for the server to be started
func (s *Server) Enabled() bool {
	return s.config.Enabled
}

// Addr bound address once started, the configured one before
func (s *Server) Addr() string {
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.config.Addr
}

// Handler the gin engine, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens in the background; returns once the port is bound
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", s.config.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Admin server stopped", zap.Error(err))
		}
	}()

	s.boundAddr = ln.Addr().String()
	s.log.Info("Admin server started", zap.String("addr", s.boundAddr))
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	s.log.Debug("Admin server closed")
	return nil
}

// ShutdownWithTimeout Shutdown bounded by timeout
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
