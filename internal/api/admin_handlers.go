package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/reference"
)

const maxIngestBatch = 500

// AdminHandler serves the authenticated maintenance routes.
type AdminHandler struct {
	reference *reference.Store
	news      NewsIngester
	stats     ModelCallStats
	logger    *slog.Logger
}

func NewAdminHandler(deps Dependencies, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		reference: deps.Reference,
		news:      deps.News,
		stats:     deps.Stats,
		logger:    logging.Component(logger, "admin"),
	}
}

// ReloadResponse describes the snapshot now being served.
type ReloadResponse struct {
	Version   int64     `json:"version"`
	Companies int       `json:"companies"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// ReloadReference handles POST /api/admin/reference/reload.
func (h *AdminHandler) ReloadReference(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reference.Reload(r.Context())
	if err != nil {
		h.logger.Error("reference reload failed", "error", err)
		writeError(w, h.logger, http.StatusBadGateway, "reference reload failed")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ReloadResponse{
		Version:   snap.Version,
		Companies: len(snap.Companies),
		LoadedAt:  snap.LoadedAt,
	})
}

// IngestRequest carries a batch of articles.
type IngestRequest struct {
	Articles []models.NewsArticle `json:"articles"`
}

// IngestNews handles POST /api/admin/news.
func (h *AdminHandler) IngestNews(w http.ResponseWriter, r *http.Request) {
	if h.news == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "news index is not configured")
		return
	}

	var req IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Articles) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "articles must not be empty")
		return
	}
	if len(req.Articles) > maxIngestBatch {
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("at most %d articles per request", maxIngestBatch))
		return
	}

	stats, err := h.news.Ingest(r.Context(), req.Articles)
	if err != nil {
		h.logger.Error("news ingest failed", "error", err, "articles", len(req.Articles))
		writeError(w, h.logger, http.StatusBadGateway, "news ingest failed")
		return
	}
	h.logger.Info("news ingested", "received", stats.Received, "ingested", stats.Ingested, "skipped", stats.Skipped)
	writeJSON(w, h.logger, http.StatusOK, stats)
}

// ModelCallStats handles GET /api/admin/model-calls/stats.
func (h *AdminHandler) ModelCallStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "model-call audit log is not configured")
		return
	}

	q, err := parseModelCallQuery(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.stats.GetStats(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to load model-call stats", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

// parseModelCallQuery reads run_id, provider, operation, status and since
// (RFC3339, or hours=N for a trailing window).
func parseModelCallQuery(r *http.Request) (models.ModelCallQuery, error) {
	values := r.URL.Query()
	q := models.ModelCallQuery{
		RunID:     values.Get("run_id"),
		Provider:  values.Get("provider"),
		Operation: values.Get("operation"),
		Status:    values.Get("status"),
	}

	if raw := values.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, fmt.Errorf("invalid since: %w", err)
		}
		q.Since = &t
	}
	if raw := values.Get("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return q, fmt.Errorf("invalid hours %q", raw)
		}
		since := time.Now().Add(-time.Duration(hours) * time.Hour)
		q.Since = &since
	}
	return q, nil
}
