package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/llm"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/reference"
)

const healthTimeout = 2 * time.Second

// Handler serves the public routes.
type Handler struct {
	advisor      Analyzer
	reference    *reference.Store
	models       []llm.ModelInfo
	defaultModel string
	health       func(ctx context.Context) error
	logger       *slog.Logger
	startTime    time.Time
}

func NewHandler(deps Dependencies, logger *slog.Logger) *Handler {
	return &Handler{
		advisor:      deps.Advisor,
		reference:    deps.Reference,
		models:       deps.Models,
		defaultModel: deps.DefaultModel,
		health:       deps.Health,
		logger:       logging.Component(logger, "api"),
		startTime:    time.Now(),
	}
}

// HealthResponse reports liveness and reference data freshness.
type HealthResponse struct {
	Status           string  `json:"status"`
	Database         string  `json:"database,omitempty"`
	ReferenceLoaded  bool    `json:"reference_loaded"`
	ReferenceVersion int64   `json:"reference_version"`
	ReferenceAgeSec  float64 `json:"reference_age_seconds,omitempty"`
	UptimeSec        float64 `json:"uptime_seconds"`
}

// Health handles GET /healthz. A failing database or a reference store
// that never loaded is reported as 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		UptimeSec: time.Since(h.startTime).Seconds(),
	}
	status := http.StatusOK

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	snap := h.reference.Current()
	resp.ReferenceLoaded = h.reference.Loaded()
	resp.ReferenceVersion = snap.Version
	if resp.ReferenceLoaded {
		resp.ReferenceAgeSec = h.reference.Age().Seconds()
	} else {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, status, resp)
}

// SectorInfo describes one supported sector.
type SectorInfo struct {
	Code      models.SectorCode `json:"code"`
	Label     string            `json:"label"`
	Trend     string            `json:"trend"`
	Companies int               `json:"companies"`
}

// ListSectors handles GET /api/sectors.
func (h *Handler) ListSectors(w http.ResponseWriter, r *http.Request) {
	snap := h.reference.Current()
	out := make([]SectorInfo, 0, len(models.AllSectors()))
	for _, code := range models.AllSectors() {
		out = append(out, SectorInfo{
			Code:      code,
			Label:     code.Label(),
			Trend:     code.IndustryTrend(),
			Companies: len(snap.CompaniesBySector(code)),
		})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"sectors": out, "count": len(out)})
}

// ListStocks handles GET /api/stocks?sector=반도체. Without a sector it
// lists every active company.
func (h *Handler) ListStocks(w http.ResponseWriter, r *http.Request) {
	snap := h.reference.Current()
	companies := snap.Companies

	if raw := r.URL.Query().Get("sector"); raw != "" {
		code, ok := models.SectorCodeForLabel(raw)
		if !ok {
			writeError(w, h.logger, http.StatusBadRequest, "unknown sector: "+raw)
			return
		}
		companies = snap.CompaniesBySector(code)
	}
	if companies == nil {
		companies = []models.Company{}
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{"stocks": companies, "count": len(companies)})
}

// ListModels handles GET /api/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"models":  h.models,
		"default": h.defaultModel,
	})
}

// Analyze handles POST /api/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.PortfolioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.advisor.Analyze(r.Context(), req)
	if err != nil {
		h.writeAnalyzeError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *Handler) writeAnalyzeError(w http.ResponseWriter, err error) {
	var verr models.ValidationError
	var mce *agent.ModelClientError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, h.logger, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, h.logger, http.StatusGatewayTimeout, "analysis timed out")
	case errors.Is(err, context.Canceled):
		// The client went away; nothing useful can be written.
		h.logger.Info("analysis canceled by client")
	case errors.As(err, &mce):
		h.logger.Error("model client failed", "error", err)
		writeError(w, h.logger, http.StatusBadGateway, "model provider error")
	default:
		h.logger.Error("analysis failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}
