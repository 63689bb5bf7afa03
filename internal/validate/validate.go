// Package validate reconciles a model-proposed portfolio against the
// company registry and live prices.
package validate

import (
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// DefaultTolerance is the allowed deviation of the weight sum from 1.
const DefaultTolerance = 0.05

// CompanyLookup is the authoritative registry.
type CompanyLookup interface {
	CompanyByTicker(ticker string) (models.Company, bool)
}

// PriceLookup returns the latest close of a ticker.
type PriceLookup interface {
	LatestPrice(ticker string) (float64, bool)
}

// Prices is a PriceLookup over a prefetched ticker→close map.
type Prices map[string]float64

func (p Prices) LatestPrice(ticker string) (float64, bool) {
	v, ok := p[ticker]
	return v, ok
}

// Drop records an allocation entry removed during validation.
type Drop struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

const (
	ReasonEmptyTicker    = "empty ticker"
	ReasonUnknownTicker  = "unknown ticker"
	ReasonInactive       = "inactive company"
	ReasonDuplicate      = "duplicate ticker"
	ReasonNegativeWeight = "negative weight"
)

// Options tune validation. Budget, when positive, re-derives amounts from
// the weights after a renormalization.
type Options struct {
	Tolerance float64
	Budget    int64
}

type Validator struct {
	companies CompanyLookup
	prices    PriceLookup
	opts      Options
	logger    *slog.Logger
}

func New(companies CompanyLookup, prices PriceLookup, opts Options, logger *slog.Logger) *Validator {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{companies: companies, prices: prices, opts: opts, logger: logger}
}

// Validate applies the default options.
func Validate(report models.Report, companies CompanyLookup, prices PriceLookup) (models.Report, []Drop) {
	return New(companies, prices, Options{}, nil).Validate(report)
}

// Validate returns a copy of report in which every entry names a known,
// active company with registry name and sector, and weights sum to 1
// within the tolerance.
func (v *Validator) Validate(report models.Report) (models.Report, []Drop) {
	out := report
	out.PortfolioAllocation = make([]models.AllocationEntry, 0, len(report.PortfolioAllocation))

	var drops []Drop
	seen := make(map[string]bool, len(report.PortfolioAllocation))
	drop := func(ticker, reason string) {
		drops = append(drops, Drop{Ticker: ticker, Reason: reason})
		v.logger.Warn("dropped allocation entry", "ticker", ticker, "reason", reason)
	}

	for _, e := range report.PortfolioAllocation {
		e.Ticker = models.NormalizeTicker(e.Ticker)
		if e.Ticker == "" {
			drop(e.Ticker, ReasonEmptyTicker)
			continue
		}
		company, ok := v.companies.CompanyByTicker(e.Ticker)
		if !ok {
			drop(e.Ticker, ReasonUnknownTicker)
			continue
		}
		if !company.IsActive {
			drop(e.Ticker, ReasonInactive)
			continue
		}
		if seen[e.Ticker] {
			drop(e.Ticker, ReasonDuplicate)
			continue
		}
		if e.Weight < 0 {
			drop(e.Ticker, ReasonNegativeWeight)
			continue
		}
		seen[e.Ticker] = true

		e.Name = company.Name
		e.Sector = company.Sector()
		out.PortfolioAllocation = append(out.PortfolioAllocation, e)
	}

	renormalized := v.renormalize(out.PortfolioAllocation)
	if renormalized && v.opts.Budget > 0 {
		for i := range out.PortfolioAllocation {
			e := &out.PortfolioAllocation[i]
			e.Amount = decimal.NewFromInt(v.opts.Budget).Mul(decimal.NewFromFloat(e.Weight)).Round(0).IntPart()
		}
	}

	for i := range out.PortfolioAllocation {
		v.applyPrice(&out.PortfolioAllocation[i])
	}

	if len(report.ChartData.Sunburst) == 0 || len(drops) > 0 || renormalized {
		out.ChartData.Sunburst = Sunburst(out.PortfolioAllocation)
	}
	return out, drops
}

// renormalize scales weights to sum to 1 when they deviate by more than
// the tolerance. All-zero weights become equal weights.
func (v *Validator) renormalize(entries []models.AllocationEntry) bool {
	if len(entries) == 0 {
		return false
	}

	var total float64
	for _, e := range entries {
		total += e.Weight
	}
	if math.Abs(total-1) <= v.opts.Tolerance {
		return false
	}

	for i := range entries {
		if total > 0 {
			entries[i].Weight /= total
		} else {
			entries[i].Weight = 1 / float64(len(entries))
		}
	}
	v.logger.Info("renormalized portfolio weights", "previous_total", total, "entries", len(entries))
	return true
}

func (v *Validator) applyPrice(e *models.AllocationEntry) {
	if v.prices == nil {
		return
	}
	price, ok := v.prices.LatestPrice(e.Ticker)
	if !ok {
		return
	}
	e.CurrentPrice = price
	if price > 0 {
		e.Shares = SharesFor(e.Amount, price)
	}
}

// SharesFor is floor(amount / price) in exact decimal arithmetic.
func SharesFor(amount int64, price float64) int64 {
	if price <= 0 || amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Div(decimal.NewFromFloat(price)).Floor().IntPart()
}

// Sunburst builds sector root nodes followed by holding nodes.
func Sunburst(entries []models.AllocationEntry) []models.SunburstNode {
	nodes := []models.SunburstNode{}
	var order []string
	sums := map[string]float64{}
	for _, e := range entries {
		sector := e.Sector
		if sector == "" {
			sector = "기타"
		}
		if _, ok := sums[sector]; !ok {
			order = append(order, sector)
		}
		sums[sector] += e.Weight
	}

	for _, sector := range order {
		nodes = append(nodes, models.SunburstNode{Name: sector, Value: round4(sums[sector])})
	}
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.Ticker
		}
		parent := e.Sector
		if parent == "" {
			parent = "기타"
		}
		nodes = append(nodes, models.SunburstNode{Name: name, Value: round4(e.Weight), Parent: parent})
	}
	return nodes
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
