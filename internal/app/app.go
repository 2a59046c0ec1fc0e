// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bissquit/incident-desk/internal/audit"
	"github.com/bissquit/incident-desk/internal/config"
	"github.com/bissquit/incident-desk/internal/incidents"
	"github.com/bissquit/incident-desk/internal/incidents/memory"
	"github.com/bissquit/incident-desk/internal/pkg/clock"
	"github.com/bissquit/incident-desk/internal/pkg/httputil"
	"github.com/bissquit/incident-desk/internal/sla"
	"github.com/bissquit/incident-desk/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance: the incident service, its SLA
// sweeper and the ops HTTP listener.
type App struct {
	config    *config.Config
	logger    *slog.Logger
	service   *incidents.Service
	sweeper   *incidents.Sweeper
	opsServer *http.Server
}

// New creates a new application instance.
func New(cfg *config.Config) *App {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	clk := clock.Real{}
	service := incidents.NewService(
		memory.NewRepository(),
		audit.NewLog(clk),
		sla.New(cfg.SLA.Windows()),
		clk,
	)
	sweeper := incidents.NewSweeper(service, cfg.Sweep.Interval)

	app := &App{
		config:  cfg,
		logger:  logger,
		service: service,
		sweeper: sweeper,
	}

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", app.healthzHandler)
	router.Get("/version", app.versionHandler)

	app.opsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app
}

// Service returns the incident service. Presentation layers drive the
// incident lifecycle through it.
func (a *App) Service() *incidents.Service {
	return a.service
}

// Run starts the SLA sweeper and the ops HTTP server. It blocks until the
// server stops.
func (a *App) Run() error {
	if err := a.sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}

	a.logger.Info("starting ops server",
		"host", a.config.Server.Host,
		"port", a.config.Server.MetricsPort,
	)

	if err := a.opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ops server error: %w", err)
	}

	return nil
}

// Shutdown stops the sweeper and gracefully shuts down the ops server.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.sweeper.Stop()

	if err := a.opsServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}

	return nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
