package models

import (
	"strings"
	"time"
)

// Company is a row of the authoritative company registry.
type Company struct {
	Ticker     string     `json:"ticker"`
	KRXCode    string     `json:"krx_code"`
	Name       string     `json:"name"`
	Market     string     `json:"market"`
	SectorCode SectorCode `json:"sector_code"`
	IsActive   bool       `json:"is_active"`
}

// Sector returns the display label of the company's sector.
func (c Company) Sector() string {
	return c.SectorCode.Label()
}

// PriceBar is one daily OHLCV row.
type PriceBar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// FinancialMetric is one quarterly fundamentals row. Nil fields were not reported.
type FinancialMetric struct {
	Ticker       string    `json:"ticker"`
	FiscalDate   time.Time `json:"fiscal_date"`
	Freq         string    `json:"freq"`
	ROE          *float64  `json:"roe"`
	OPM          *float64  `json:"opm"`
	DebtRatio    *float64  `json:"debt_ratio"`
	ROA          *float64  `json:"roa"`
	RevGrowthYoY *float64  `json:"rev_growth_yoy"`
}

// TechnicalSignal is the latest computed indicator set for a ticker.
type TechnicalSignal struct {
	Ticker      string    `json:"ticker"`
	AsOf        time.Time `json:"asof"`
	MA20        *float64  `json:"ma20"`
	MA60        *float64  `json:"ma60"`
	RSI14       *float64  `json:"rsi14"`
	ATR14       *float64  `json:"atr14"`
	Momentum20D *float64  `json:"momentum_20d"`
	Vol20D      *float64  `json:"vol_20d"`
}

// Float returns the pointed value or zero.
func Float(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// NormalizeTicker upper-cases a ticker and appends the KOSPI suffix to a
// bare six-digit KRX code.
func NormalizeTicker(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if len(t) == 6 && isDigits(t) {
		return t + ".KS"
	}
	return t
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
