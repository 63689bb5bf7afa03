package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sectorfolio/sectorfolio/internal/app"
	"github.com/sectorfolio/sectorfolio/internal/config"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/mcp"
	"github.com/sectorfolio/sectorfolio/internal/scheduler"
	"github.com/sectorfolio/sectorfolio/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting sectorfolio", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "mode", cfg.Agent.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, err := app.Migrate(ctx, cfg, logger); err != nil {
		// Non-fatal so the API can still start against an already migrated database.
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	} else if n > 0 {
		logger.Info("migrations applied", "count", n)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	refresher := scheduler.NewReferenceRefresher(a.Reference, cfg.Reference.RefreshInterval, logger)
	go refresher.Start(ctx)
	defer refresher.Stop()

	handler := a.Handler()
	mux := muxWithMCP(handler, mcp.NewServer(a.Registry, logger, mcp.WithObserver(a.Metrics)))

	srv := server.New(cfg.Server, logger, mux)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
