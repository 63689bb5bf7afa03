// Package api exposes the advisor, reference data and admin operations
// over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sectorfolio/sectorfolio/internal/advisor"
	"github.com/sectorfolio/sectorfolio/internal/auth"
	"github.com/sectorfolio/sectorfolio/internal/llm"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/news"
	"github.com/sectorfolio/sectorfolio/internal/reference"
)

// Analyzer runs one portfolio analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req models.PortfolioRequest) (*advisor.Result, error)
}

// NewsIngester stores a batch of articles in the news index.
type NewsIngester interface {
	Ingest(ctx context.Context, articles []models.NewsArticle) (news.IngestStats, error)
}

// ModelCallStats aggregates the model-call audit log.
type ModelCallStats interface {
	GetStats(ctx context.Context, q models.ModelCallQuery) (*models.ModelCallStats, error)
}

// Dependencies are the services behind the routes. News and Stats may be
// nil; their admin routes then answer 503.
type Dependencies struct {
	Advisor      Analyzer
	Reference    *reference.Store
	News         NewsIngester
	Stats        ModelCallStats
	Auth         *auth.Authenticator
	Models       []llm.ModelInfo
	DefaultModel string
	Health       func(ctx context.Context) error
	Metrics      http.Handler
}

// NewRouter registers every route on a new mux.
func NewRouter(deps Dependencies, logger *slog.Logger) http.Handler {
	h := NewHandler(deps, logger)
	admin := NewAdminHandler(deps, logger)
	login := NewAuthHandler(deps.Auth, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("GET /api/sectors", h.ListSectors)
	mux.HandleFunc("GET /api/stocks", h.ListStocks)
	mux.HandleFunc("GET /api/models", h.ListModels)
	mux.HandleFunc("POST /api/analyze", h.Analyze)

	mux.HandleFunc("POST /api/auth/login", login.Login)

	protect := deps.Auth.Middleware
	mux.Handle("POST /api/admin/reference/reload", protect(http.HandlerFunc(admin.ReloadReference)))
	mux.Handle("POST /api/admin/news", protect(http.HandlerFunc(admin.IngestNews)))
	mux.Handle("GET /api/admin/model-calls/stats", protect(http.HandlerFunc(admin.ModelCallStats)))

	return enableCORS(mux)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
