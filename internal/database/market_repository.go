package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// MarketRepository reads prices, fundamentals and technical signals.
type MarketRepository struct {
	db *sql.DB
}

// NewMarketRepository creates a new repository
func NewMarketRepository(db *sql.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// RecentPrices returns up to days most recent bars in ascending date order.
func (r *MarketRepository) RecentPrices(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	query := `
		SELECT ticker, date, open, high, low, close, volume
		FROM (
			SELECT ticker, date, open, high, low, close, volume
			FROM prices_daily
			WHERE ticker = $1
			ORDER BY date DESC
			LIMIT $2
		) recent
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ticker, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		var open, high, low sql.NullFloat64
		var volume sql.NullInt64
		if err := rows.Scan(&b.Ticker, &b.Date, &open, &high, &low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		b.Open, b.High, b.Low = open.Float64, high.Float64, low.Float64
		b.Volume = volume.Int64
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prices: %w", err)
	}

	return bars, nil
}

// LatestCloses returns the most recent close per ticker. Tickers without
// price rows are absent from the map.
func (r *MarketRepository) LatestCloses(ctx context.Context, tickers []string) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (ticker) ticker, close
		FROM prices_daily
		WHERE ticker = ANY($1)
		ORDER BY ticker, date DESC
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(tickers))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest closes: %w", err)
	}
	defer rows.Close()

	closes := make(map[string]float64, len(tickers))
	for rows.Next() {
		var ticker string
		var price float64
		if err := rows.Scan(&ticker, &price); err != nil {
			return nil, fmt.Errorf("failed to scan latest close: %w", err)
		}
		closes[ticker] = price
	}

	return closes, rows.Err()
}

// LatestFinancials returns up to quarters quarterly rows, newest first.
func (r *MarketRepository) LatestFinancials(ctx context.Context, ticker string, quarters int) ([]models.FinancialMetric, error) {
	query := `
		SELECT ticker, fiscal_date, freq, roe, opm, debt_ratio, roa, rev_growth_yoy
		FROM fin_metrics
		WHERE ticker = $1 AND freq = 'Q'
		ORDER BY fiscal_date DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, ticker, quarters)
	if err != nil {
		return nil, fmt.Errorf("failed to query financial metrics for %s: %w", ticker, err)
	}
	defer rows.Close()

	var metrics []models.FinancialMetric
	for rows.Next() {
		var m models.FinancialMetric
		var roe, opm, debt, roa, growth sql.NullFloat64
		if err := rows.Scan(&m.Ticker, &m.FiscalDate, &m.Freq, &roe, &opm, &debt, &roa, &growth); err != nil {
			return nil, fmt.Errorf("failed to scan financial metric: %w", err)
		}
		m.ROE, m.OPM, m.DebtRatio = nullFloat(roe), nullFloat(opm), nullFloat(debt)
		m.ROA, m.RevGrowthYoY = nullFloat(roa), nullFloat(growth)
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate financial metrics: %w", err)
	}

	return metrics, nil
}

// LatestSignal returns the signals_latest row for a ticker.
func (r *MarketRepository) LatestSignal(ctx context.Context, ticker string) (*models.TechnicalSignal, error) {
	query := `
		SELECT ticker, asof, ma20, ma60, rsi14, atr14, momentum_20d, vol_20d
		FROM signals_latest
		WHERE ticker = $1
	`

	var s models.TechnicalSignal
	var ma20, ma60, rsi, atr, mom, vol sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, ticker).Scan(&s.Ticker, &s.AsOf, &ma20, &ma60, &rsi, &atr, &mom, &vol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signals for %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for %s: %w", ticker, err)
	}

	s.MA20, s.MA60, s.RSI14 = nullFloat(ma20), nullFloat(ma60), nullFloat(rsi)
	s.ATR14, s.Momentum20D, s.Vol20D = nullFloat(atr), nullFloat(mom), nullFloat(vol)
	return &s, nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
