package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sectorfolio/sectorfolio/internal/app"
	"github.com/sectorfolio/sectorfolio/internal/config"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/mcp"
	"github.com/sectorfolio/sectorfolio/internal/server"
)

func main() {
	transport := flag.String("transport", "stdio", "stdio or http")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// stdout carries the protocol on stdio; logs go to stderr.
	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	s := mcp.NewServer(a.Registry, logger, mcp.WithObserver(a.Metrics))
	logger.Info("starting MCP server", "transport", *transport, "tools", len(a.Registry.Names()))

	switch *transport {
	case "stdio":
		err = s.ServeStdio(ctx, os.Stdin, os.Stdout)
	case "http":
		mux := http.NewServeMux()
		mux.Handle("/mcp", s)
		mux.Handle("/", s)
		mux.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}` + "\n"))
		}))
		err = server.New(cfg.Server, logger, mux).Run(ctx)
	default:
		logger.Error("unknown transport", "transport", *transport)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}
