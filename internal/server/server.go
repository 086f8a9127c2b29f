// Package server exposes the HTTP API: registration and login, statement
// uploads, transaction CRUD, statistics, and CSV exports.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/parsea-dev/parsea/internal/auth"
	"github.com/parsea-dev/parsea/internal/cancel"
	"github.com/parsea-dev/parsea/internal/model"
	"github.com/parsea-dev/parsea/internal/service"
)

// UploadProcessor runs one statement upload end to end.
type UploadProcessor interface {
	Process(ctx context.Context, data []byte, fileType, userID string) (*model.UploadOutcome, error)
}

// Config holds HTTP server settings.
type Config struct {
	Addr          string
	MaxUploadSize int64
}

const defaultMaxUploadSize = 10 << 20 // 10 MiB

// Server wires the HTTP layer to the application services.
type Server struct {
	echo      *echo.Echo
	storage   service.Storage
	processor UploadProcessor
	registry  cancel.Registry
	tokens    *auth.TokenService
	logger    *slog.Logger
	cfg       Config
}

// New creates the HTTP server and registers all routes.
func New(cfg Config, storage service.Storage, processor UploadProcessor,
	registry cancel.Registry, tokens *auth.TokenService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	s := &Server{
		echo:      e,
		storage:   storage,
		processor: processor,
		registry:  registry,
		tokens:    tokens,
		logger:    logger,
		cfg:       cfg,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api/v1")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.requireAuth)
	authed.POST("/transactions/upload", s.handleUpload)
	authed.GET("/transactions", s.handleListTransactions)
	authed.GET("/transactions/:id", s.handleGetTransaction)
	authed.PUT("/transactions/:id", s.handleUpdateTransaction)
	authed.DELETE("/transactions/:id", s.handleDeleteTransaction)
	authed.GET("/transactions/statistics/summary", s.handleStatistics)
	authed.POST("/transactions/cancel-processing", s.handleCancelProcessing)
	authed.GET("/export/transactions", s.handleExportTransactions)
	authed.GET("/export/business-expenses", s.handleExportBusinessExpenses)
	authed.GET("/export/summary-report", s.handleExportSummary)
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.cfg.Addr)
	if err := s.echo.Start(s.cfg.Addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancelFn := context.WithTimeout(ctx, 10*time.Second)
	defer cancelFn()
	return s.echo.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
