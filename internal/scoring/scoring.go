// Package scoring holds the heuristic score blends and return statistics
// used by the data tools. The weights are policy, not financial truth.
package scoring

import "math"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// FinancialWeights blends the four fundamentals sub-scores.
type FinancialWeights struct {
	ROE    float64
	OPM    float64
	Debt   float64
	Growth float64
}

// DefaultFinancialWeights is the 30/20/30/20 blend.
func DefaultFinancialWeights() FinancialWeights {
	return FinancialWeights{ROE: 0.3, OPM: 0.2, Debt: 0.3, Growth: 0.2}
}

// FinancialInputs are percentages as stored in fin_metrics.
type FinancialInputs struct {
	ROE       float64
	OPM       float64
	DebtRatio float64
	RevGrowth float64
}

// FinancialScore is the breakdown of a fundamentals score.
type FinancialScore struct {
	ROEScore    float64 `json:"roe_score"`
	OPMScore    float64 `json:"opm_score"`
	DebtScore   float64 `json:"debt_score"`
	GrowthScore float64 `json:"growth_score"`
	Total       float64 `json:"financial_score"`
}

// Financial scores fundamentals: ROE 15% and OPM 10% saturate at 100, debt
// ratio subtracts from 100, revenue growth of 20% saturates at 100.
func Financial(in FinancialInputs, w FinancialWeights) FinancialScore {
	s := FinancialScore{
		ROEScore:    Clamp(in.ROE/15*100, 0, 100),
		OPMScore:    Clamp(in.OPM/10*100, 0, 100),
		DebtScore:   Clamp(100-in.DebtRatio, 0, 100),
		GrowthScore: Clamp(in.RevGrowth/20*100, 0, 100),
	}
	s.Total = Clamp(s.ROEScore*w.ROE+s.OPMScore*w.OPM+s.DebtScore*w.Debt+s.GrowthScore*w.Growth, 0, 100)
	return s
}

// TechnicalWeights blends the technical sub-scores.
type TechnicalWeights struct {
	RSI        float64
	Momentum   float64
	Volatility float64
}

// DefaultTechnicalWeights is the 40/40/20 blend.
func DefaultTechnicalWeights() TechnicalWeights {
	return TechnicalWeights{RSI: 0.4, Momentum: 0.4, Volatility: 0.2}
}

// TechnicalInputs come from signals_latest. Momentum is a fraction
// (0.05 = +5%), volatility is the 20-day daily stdev in percent.
type TechnicalInputs struct {
	RSI        float64
	Momentum   float64
	Volatility float64
}

// Signal labels.
const (
	SignalBullish = "강세"
	SignalNeutral = "중립"
	SignalBearish = "약세"
)

// TechnicalScore is the breakdown of a technical score.
type TechnicalScore struct {
	RSIScore        float64 `json:"rsi_score"`
	MomentumScore   float64 `json:"momentum_score"`
	VolatilityScore float64 `json:"volatility_score"`
	Total           float64 `json:"technical_score"`
	Signal          string  `json:"signal"`
}

// Technical scores RSI bands, momentum and volatility.
func Technical(in TechnicalInputs, w TechnicalWeights) TechnicalScore {
	var s TechnicalScore
	switch {
	case in.RSI >= 30 && in.RSI <= 70:
		s.RSIScore = 100
	case in.RSI >= 20 && in.RSI <= 80:
		s.RSIScore = 50
	default:
		s.RSIScore = 20
	}

	s.MomentumScore = Clamp((in.Momentum*100+10)/0.2, 0, 100)
	s.VolatilityScore = Clamp(50-in.Volatility*10, 0, 100)
	s.Total = Clamp(s.RSIScore*w.RSI+s.MomentumScore*w.Momentum+s.VolatilityScore*w.Volatility, 0, 100)
	s.Signal = SignalFor(s.Total)
	return s
}

// SignalFor maps a technical score to a label.
func SignalFor(score float64) string {
	switch {
	case score > 60:
		return SignalBullish
	case score < 40:
		return SignalBearish
	default:
		return SignalNeutral
	}
}
