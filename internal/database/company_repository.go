package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// CompanyRepository reads and seeds the companies registry.
type CompanyRepository struct {
	db *sql.DB
}

// NewCompanyRepository creates a new repository
func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// ListActive returns every active company ordered by sector then ticker.
func (r *CompanyRepository) ListActive(ctx context.Context) ([]models.Company, error) {
	query := `
		SELECT ticker, krx_code, name_kr, market, COALESCE(industry, ''), is_active
		FROM companies
		WHERE is_active = TRUE
		ORDER BY industry, ticker
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}

	return companies, nil
}

// GetByTicker returns one company, active or not.
func (r *CompanyRepository) GetByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	query := `
		SELECT ticker, krx_code, name_kr, market, COALESCE(industry, ''), is_active
		FROM companies
		WHERE ticker = $1
	`

	c, err := scanCompany(r.db.QueryRowContext(ctx, query, ticker))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert inserts or updates a company keyed by ticker.
func (r *CompanyRepository) Upsert(ctx context.Context, c models.Company) error {
	query := `
		INSERT INTO companies (ticker, krx_code, name_kr, market, industry, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker) DO UPDATE SET
			krx_code = EXCLUDED.krx_code,
			name_kr = EXCLUDED.name_kr,
			market = EXCLUDED.market,
			industry = EXCLUDED.industry,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, c.Ticker, c.KRXCode, c.Name, c.Market, string(c.SectorCode), c.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", c.Ticker, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (models.Company, error) {
	var c models.Company
	var sector string
	if err := row.Scan(&c.Ticker, &c.KRXCode, &c.Name, &c.Market, &sector, &c.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan company: %w", err)
	}
	c.SectorCode = models.SectorCode(sector)
	return c, nil
}
