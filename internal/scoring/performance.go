package scoring

import (
	"errors"
	"fmt"
	"math"
)

// PerformanceAssumptions are the reference rates in percent.
type PerformanceAssumptions struct {
	RiskFreeRate    float64
	BenchmarkReturn float64
	DrawdownFactor  float64
	WeightTolerance float64
}

// DefaultPerformanceAssumptions uses a 3.5% risk-free rate and an 8% benchmark.
func DefaultPerformanceAssumptions() PerformanceAssumptions {
	return PerformanceAssumptions{
		RiskFreeRate:    3.5,
		BenchmarkReturn: 8.0,
		DrawdownFactor:  1.5,
		WeightTolerance: 0.01,
	}
}

// Performance is a rough portfolio projection in percent.
type Performance struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	BenchmarkAlpha float64 `json:"benchmark_alpha"`
}

// PortfolioPerformance projects return and risk from each holding's daily
// returns. Volatility ignores covariance: sqrt(sum(vol_i^2 * w_i^2)).
func PortfolioPerformance(returns [][]float64, weights []float64, a PerformanceAssumptions) (Performance, error) {
	if len(returns) == 0 {
		return Performance{}, errors.New("no holdings")
	}
	if len(returns) != len(weights) {
		return Performance{}, fmt.Errorf("got %d return series for %d weights", len(returns), len(weights))
	}

	var total float64
	for _, w := range weights {
		if w < 0 {
			return Performance{}, errors.New("weights must be non-negative")
		}
		total += w
	}
	if math.Abs(total-1) > a.WeightTolerance {
		return Performance{}, fmt.Errorf("weights sum to %.4f, expected 1.0", total)
	}

	var expected, variance float64
	for i, r := range returns {
		expected += Mean(r) * TradingDays * 100 * weights[i]
		vol := AnnualizedVolatility(r)
		variance += vol * vol * weights[i] * weights[i]
	}

	p := Performance{
		ExpectedReturn: expected,
		Volatility:     math.Sqrt(variance),
	}
	if p.Volatility > 0 {
		p.SharpeRatio = (p.ExpectedReturn - a.RiskFreeRate) / p.Volatility
	}
	p.MaxDrawdown = -p.Volatility * a.DrawdownFactor
	p.BenchmarkAlpha = p.ExpectedReturn - a.BenchmarkReturn
	return p, nil
}
