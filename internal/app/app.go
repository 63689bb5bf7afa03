// Package app wires configuration into the running services shared by the
// server, MCP and CLI binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/sectorfolio/sectorfolio/internal/advisor"
	"github.com/sectorfolio/sectorfolio/internal/api"
	"github.com/sectorfolio/sectorfolio/internal/auth"
	"github.com/sectorfolio/sectorfolio/internal/config"
	"github.com/sectorfolio/sectorfolio/internal/database"
	"github.com/sectorfolio/sectorfolio/internal/llm"
	"github.com/sectorfolio/sectorfolio/internal/metrics"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/news"
	"github.com/sectorfolio/sectorfolio/internal/reference"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

// App holds the long-lived services built from one Config.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	DB         *sql.DB
	Metrics    *metrics.Collector
	Reference  *reference.Store
	Market     *database.MarketRepository
	ModelCalls *database.ModelCallRepository
	News       *news.Service
	Registry   *tools.Registry
	Models     *llm.Factory
	Advisor    *advisor.Advisor
}

// New connects to the database, loads the reference snapshot and builds
// the tool registry, model factory and advisor. A missing embedder only
// disables the news tools.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	dbCfg, err := database.ConfigFrom(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}
	logger.Info("connecting to database", "url", database.RedactURL(dbCfg.URL))
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger, db *sql.DB) (*App, error) {
	collector, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Metrics:    collector,
		Reference:  reference.NewStore(database.NewCompanyRepository(db), logger),
		Market:     database.NewMarketRepository(db),
		ModelCalls: database.NewModelCallRepository(db),
	}

	if _, err := a.Reference.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	a.News, err = newsService(cfg, db, logger)
	if err != nil {
		logger.Warn("news index disabled", "error", err)
	}

	var index tools.NewsIndex
	if a.News != nil {
		index = a.News
	}
	a.Registry, err = tools.Build(tools.NewMarketTools(a.Reference, a.Market), index)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	a.Models = llm.NewFactory(cfg.LLM, a.ModelCalls, collector, logger)
	a.Advisor = advisor.New(a.Registry, a.Reference, a.Models, advisor.Config{
		MaxIterations:        cfg.Agent.MaxIterations,
		SpecialistIterations: cfg.Agent.SpecialistIterations,
		ParallelTools:        cfg.Agent.ParallelTools,
		WeightTolerance:      cfg.Agent.WeightTolerance,
		DefaultMode:          models.AnalysisMode(cfg.Agent.Mode),
	}, logger,
		advisor.WithPrices(a.Market),
		advisor.WithObserver(collector),
	)

	logger.Info("services ready",
		"companies", len(a.Reference.Current().Companies),
		"tools", len(a.Registry.Names()),
		"news", a.News != nil,
		"model", a.Models.DefaultModel(),
	)
	return a, nil
}

func newsService(cfg config.Config, db *sql.DB, logger *slog.Logger) (*news.Service, error) {
	var embedder news.Embedder
	switch cfg.Vector.Embedder {
	case "ollama":
		embedder = news.NewOllamaEmbedder(cfg.Vector.OllamaURL, cfg.Vector.EmbeddingModel, cfg.LLM.Timeout)
	default:
		e, err := news.NewOpenAIEmbedder(cfg.LLM.OpenAIAPIKey, "", cfg.Vector.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		embedder = e
	}

	var store news.VectorStore
	switch cfg.Vector.Backend {
	case "qdrant":
		store = news.NewQdrantStore(cfg.Vector.QdrantURL, cfg.Vector.QdrantAPIKey, cfg.Vector.Collection, cfg.LLM.Timeout)
	default:
		store = news.NewMemoryStore()
	}

	return news.NewService(embedder, store, cfg.Vector.Dimension, logger,
		news.WithArchive(database.NewNewsRepository(db)),
	), nil
}

// Handler returns the instrumented HTTP API.
func (a *App) Handler() http.Handler {
	deps := api.Dependencies{
		Advisor:      a.Advisor,
		Reference:    a.Reference,
		Stats:        a.ModelCalls,
		Auth:         auth.New(a.Config.Auth),
		Models:       llm.Catalog,
		DefaultModel: a.Models.DefaultModel(),
		Health: func(ctx context.Context) error {
			return database.HealthCheck(ctx, a.DB)
		},
		Metrics: a.Metrics.Handler(),
	}
	if a.News != nil {
		deps.News = a.News
	}
	return a.Metrics.InstrumentHandler(api.NewRouter(deps, a.Logger))
}

// Migrate applies pending migrations from the configured directory.
func Migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) (int, error) {
	dbCfg, err := database.ConfigFrom(cfg.Database)
	if err != nil {
		return 0, fmt.Errorf("database config: %w", err)
	}
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := os.Stat(cfg.Database.MigrationsDir); err != nil {
		return 0, fmt.Errorf("migrations directory: %w", err)
	}
	return database.RunMigrations(ctx, db, os.DirFS(cfg.Database.MigrationsDir), logger)
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// ErrNoNews is returned by commands that need the news index when no
// embedder could be configured.
var ErrNoNews = errors.New("news index is not configured")
