// Package api serves query building, validation, quality assessment,
// vocabulary lookups and stored runs over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/metrics"
	"github.com/prisma-miner/internal/middleware"
	"github.com/prisma-miner/internal/pipeline"
	"github.com/prisma-miner/internal/quality"
	"github.com/prisma-miner/internal/query"
	"github.com/prisma-miner/internal/store"
	"github.com/prisma-miner/internal/vocabulary"
	"github.com/prisma-miner/pkg/ncbi"
)

// Version is reported by /health.
var Version = "dev"

// HealthChecker reports the health of a backing service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Option configures a Server
type Option func(*Server)

// WithRunStore enables the /runs routes.
func WithRunStore(s store.RunStore) Option {
	return func(srv *Server) { srv.runs = s }
}

// Runner executes mining runs.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResult, error)
}

// WithRunner enables POST /runs. defaults fill the quality settings a
// request leaves unset.
func WithRunner(r Runner, defaults domain.PipelineConfig) Option {
	return func(srv *Server) {
		srv.runner = r
		srv.runDefaults = defaults
	}
}

// WithHealthCheck adds a named dependency to /health.
func WithHealthCheck(name string, hc HealthChecker) Option {
	return func(srv *Server) { srv.checks[name] = hc }
}

// WithMetrics enables /metrics and request metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(srv *Server) { srv.metrics = c }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(srv *Server) { srv.logger = logger }
}

// Server represents the HTTP server
type Server struct {
	cfg      domain.ServerConfig
	router   *gin.Engine
	server   *http.Server
	vocab    *vocabulary.Registry
	builder  *query.Builder
	assessor *quality.Assessor
	runs     store.RunStore
	checks   map[string]HealthChecker
	metrics  *metrics.Collector
	logger   *logrus.Logger

	runner      Runner
	runDefaults domain.PipelineConfig
}

// NewServer creates a new HTTP server instance
func NewServer(cfg domain.ServerConfig, vocab *vocabulary.Registry, opts ...Option) (*Server, error) {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	assessor, err := quality.NewAssessor(vocab)
	if err != nil {
		return nil, fmt.Errorf("failed to create assessor: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		vocab:    vocab,
		builder:  query.NewBuilder(vocab),
		assessor: assessor,
		checks:   make(map[string]HealthChecker),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var observe middleware.Observer
	if s.metrics != nil {
		observe = s.metrics.ObserveHTTP
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(s.logger, observe))
	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.SecurityHeaders())
	s.router = router

	s.setupRoutes()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/query", s.handleBuildQuery)
		v1.POST("/query/validate", s.handleValidateQuery)
		v1.POST("/assess", s.handleAssess)
		v1.GET("/vocabulary/expand", s.handleExpand)
		v1.GET("/vocabulary/:kind", s.handleVocabulary)
		if s.runner != nil {
			v1.POST("/runs", s.handleStartRun)
		}
		if s.runs != nil {
			v1.GET("/runs", s.handleListRuns)
			v1.GET("/runs/:id", s.handleGetRun)
		}
	}
}

// abort writes err as an APIError with a status derived from its type.
func (s *Server) abort(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, domain.ErrInternalServer
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		status, code = http.StatusBadRequest, domain.ErrValidation
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, domain.ErrNotFoundCode
	case errors.Is(err, ncbi.ErrCircuitOpen):
		status, code = http.StatusServiceUnavailable, domain.ErrExternalAPI
	}
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, "", middleware.GetRequestID(c)))
}

func (s *Server) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest,
		domain.NewAPIError(domain.ErrInvalidInput, "invalid request body", err.Error(), middleware.GetRequestID(c)))
}
