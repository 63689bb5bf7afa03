package models

// Scores are the per-entry component scores, each in [0,100].
type Scores struct {
	DataAnalysis float64 `json:"data_analysis"`
	Financial    float64 `json:"financial"`
	News         float64 `json:"news"`
}

// AllocationEntry is one line of a proposed portfolio.
type AllocationEntry struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Sector       string  `json:"sector"`
	Weight       float64 `json:"weight"`
	Amount       int64   `json:"amount"`
	Shares       int64   `json:"shares"`
	CurrentPrice float64 `json:"current_price"`
	TargetPrice  float64 `json:"target_price"`
	StopLoss     float64 `json:"stop_loss"`
	Scores       Scores  `json:"scores"`
}

// PerformanceMetrics are nil when the model did not provide them.
type PerformanceMetrics struct {
	ExpectedReturn *float64 `json:"expected_return"`
	MaxDrawdown    *float64 `json:"max_drawdown"`
	SharpeRatio    *float64 `json:"sharpe_ratio"`
	BenchmarkAlpha *float64 `json:"benchmark_alpha"`
}

// SunburstNode is a sector root (no parent) or a holding under its sector.
type SunburstNode struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Parent string  `json:"parent,omitempty"`
}

// ExpectedPerformance is projected cumulative return (%) per horizon month.
type ExpectedPerformance struct {
	Months    []int     `json:"months"`
	Portfolio []float64 `json:"portfolio"`
	Benchmark []float64 `json:"benchmark"`
}

// ChartData holds the hierarchical weight breakdown and projected returns.
type ChartData struct {
	Sunburst            []SunburstNode      `json:"sunburst"`
	ExpectedPerformance ExpectedPerformance `json:"expected_performance"`
}

// Report is the boundary document returned for an analysis.
type Report struct {
	AISummary           string             `json:"ai_summary"`
	PortfolioAllocation []AllocationEntry  `json:"portfolio_allocation"`
	PerformanceMetrics  PerformanceMetrics `json:"performance_metrics"`
	ChartData           ChartData          `json:"chart_data"`
}

// DefaultHorizonMonths are the projection points shown in charts.
var DefaultHorizonMonths = []int{1, 3, 6, 12}

// TotalWeight sums the entry weights.
func (r Report) TotalWeight() float64 {
	var total float64
	for _, e := range r.PortfolioAllocation {
		total += e.Weight
	}
	return total
}
