package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// ModelCallRepository stores the audit trail of model invocations.
type ModelCallRepository struct {
	db *sql.DB
}

// NewModelCallRepository creates a new repository
func NewModelCallRepository(db *sql.DB) *ModelCallRepository {
	return &ModelCallRepository{db: db}
}

// Create records one model call.
func (r *ModelCallRepository) Create(ctx context.Context, call models.ModelCall) error {
	query := `
		INSERT INTO model_calls (
			run_id, provider, model, operation, tokens_used, input_tokens, output_tokens,
			cost_usd, latency_ms, status, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, '')::jsonb)
	`

	_, err := r.db.ExecContext(ctx, query,
		call.RunID,
		call.Provider,
		call.Model,
		call.Operation,
		call.TokensUsed,
		call.InputTokens,
		call.OutputTokens,
		call.CostUSD,
		call.LatencyMs,
		call.Status,
		call.ErrorMessage,
		call.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert model call: %w", err)
	}
	return nil
}

// List retrieves model calls with optional filtering, newest first.
func (r *ModelCallRepository) List(ctx context.Context, q models.ModelCallQuery) ([]models.ModelCall, error) {
	where, args := modelCallFilter(q)
	sqlQuery := `
		SELECT id, run_id, provider, model, operation, tokens_used, input_tokens, output_tokens,
		       cost_usd, latency_ms, status, error_message, COALESCE(metadata::text, ''), created_at
		FROM model_calls
	` + where + " ORDER BY created_at DESC"

	if q.Limit > 0 {
		args = append(args, q.Limit)
		sqlQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model calls: %w", err)
	}
	defer rows.Close()

	var calls []models.ModelCall
	for rows.Next() {
		var c models.ModelCall
		err := rows.Scan(
			&c.ID,
			&c.RunID,
			&c.Provider,
			&c.Model,
			&c.Operation,
			&c.TokensUsed,
			&c.InputTokens,
			&c.OutputTokens,
			&c.CostUSD,
			&c.LatencyMs,
			&c.Status,
			&c.ErrorMessage,
			&c.Metadata,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model call: %w", err)
		}
		calls = append(calls, c)
	}

	return calls, rows.Err()
}

// GetStats aggregates calls matching the filter (limit is ignored).
func (r *ModelCallRepository) GetStats(ctx context.Context, q models.ModelCallQuery) (*models.ModelCallStats, error) {
	where, args := modelCallFilter(q)
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM model_calls
	` + where

	var stats models.ModelCallStats
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalCalls,
		&stats.TotalTokens,
		&stats.TotalCostUSD,
		&stats.SuccessfulCalls,
		&stats.FailedCalls,
		&stats.AvgLatencyMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get model call stats: %w", err)
	}

	return &stats, nil
}

// modelCallFilter builds the WHERE clause and positional args for q.
func modelCallFilter(q models.ModelCallQuery) (string, []any) {
	clause := " WHERE 1=1"
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		clause += fmt.Sprintf(" AND %s $%d", column, len(args))
	}

	if q.RunID != "" {
		add("run_id =", q.RunID)
	}
	if q.Provider != "" {
		add("provider =", q.Provider)
	}
	if q.Operation != "" {
		add("operation =", q.Operation)
	}
	if q.Status != "" {
		add("status =", q.Status)
	}
	if q.Since != nil {
		add("created_at >=", q.Since.UTC().Truncate(time.Second))
	}

	return clause, args
}
