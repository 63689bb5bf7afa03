package models

import (
	"fmt"
	"strings"
)

// MinBudget is the smallest budget accepted, in KRW.
const MinBudget int64 = 1_000_000

// RiskProfile is the investor's risk appetite.
type RiskProfile string

const (
	RiskConservative RiskProfile = "안정"
	RiskNeutral      RiskProfile = "중립"
	RiskAggressive   RiskProfile = "공격"
)

// InvestmentPeriod is the intended holding horizon.
type InvestmentPeriod string

const (
	PeriodShort  InvestmentPeriod = "단기"
	PeriodMedium InvestmentPeriod = "중기"
	PeriodLong   InvestmentPeriod = "장기"
)

// AnalysisMode selects the single-loop or the specialist fan-out pipeline.
type AnalysisMode string

const (
	ModeSingle AnalysisMode = "single"
	ModeMulti  AnalysisMode = "multi"
)

// InvestmentTargets are the sectors (labels) and tickers the user picked.
type InvestmentTargets struct {
	Sectors []string `json:"sectors"`
	Tickers []string `json:"tickers"`
}

// PortfolioRequest is an analysis request.
type PortfolioRequest struct {
	Budget            int64             `json:"budget"`
	InvestmentTargets InvestmentTargets `json:"investment_targets"`
	RiskProfile       RiskProfile       `json:"risk_profile"`
	InvestmentPeriod  InvestmentPeriod  `json:"investment_period"`
	AdditionalPrompt  string            `json:"additional_prompt,omitempty"`
	Model             string            `json:"model_name,omitempty"`
	Mode              AnalysisMode      `json:"mode,omitempty"`
}

// ValidationError represents a field-level request validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize trims inputs and applies defaults for omitted optional fields.
func (r *PortfolioRequest) Normalize() {
	r.InvestmentTargets.Sectors = trimAll(r.InvestmentTargets.Sectors)
	r.InvestmentTargets.Tickers = trimAll(r.InvestmentTargets.Tickers)
	r.AdditionalPrompt = strings.TrimSpace(r.AdditionalPrompt)
	if r.RiskProfile == "" {
		r.RiskProfile = RiskNeutral
	}
	if r.InvestmentPeriod == "" {
		r.InvestmentPeriod = PeriodMedium
	}
}

// Validate checks the request. It does not consult the company registry.
func (r PortfolioRequest) Validate() error {
	if r.Budget < MinBudget {
		return ValidationError{Field: "budget", Message: fmt.Sprintf("must be at least %d", MinBudget)}
	}

	if len(r.InvestmentTargets.Sectors) == 0 && len(r.InvestmentTargets.Tickers) == 0 {
		return ValidationError{Field: "investment_targets", Message: "at least one sector or ticker is required"}
	}

	for _, s := range r.InvestmentTargets.Sectors {
		if _, ok := SectorCodeForLabel(s); !ok {
			return ValidationError{Field: "investment_targets.sectors", Message: fmt.Sprintf("unknown sector %q", s)}
		}
	}

	switch r.RiskProfile {
	case RiskConservative, RiskNeutral, RiskAggressive:
	default:
		return ValidationError{Field: "risk_profile", Message: "must be one of 안정, 중립, 공격"}
	}

	switch r.InvestmentPeriod {
	case PeriodShort, PeriodMedium, PeriodLong:
	default:
		return ValidationError{Field: "investment_period", Message: "must be one of 단기, 중기, 장기"}
	}

	switch r.Mode {
	case "", ModeSingle, ModeMulti:
	default:
		return ValidationError{Field: "mode", Message: "must be 'single' or 'multi'"}
	}

	return nil
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
