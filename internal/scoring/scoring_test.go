package scoring

import (
	"math"
	"testing"
)

func TestFinancialSaturatesAndClamps(t *testing.T) {
	tests := []struct {
		name string
		in   FinancialInputs
		want FinancialScore
	}{
		{
			name: "strong",
			in:   FinancialInputs{ROE: 30, OPM: 20, DebtRatio: 40, RevGrowth: 25},
			want: FinancialScore{ROEScore: 100, OPMScore: 100, DebtScore: 60, GrowthScore: 100, Total: 88},
		},
		{
			name: "negative fundamentals floor at zero",
			in:   FinancialInputs{ROE: -5, OPM: -2, DebtRatio: 250, RevGrowth: -10},
			want: FinancialScore{},
		},
		{
			name: "half of each threshold",
			in:   FinancialInputs{ROE: 7.5, OPM: 5, DebtRatio: 50, RevGrowth: 10},
			want: FinancialScore{ROEScore: 50, OPMScore: 50, DebtScore: 50, GrowthScore: 50, Total: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Financial(tt.in, DefaultFinancialWeights())
			if !near(got.ROEScore, tt.want.ROEScore) || !near(got.OPMScore, tt.want.OPMScore) ||
				!near(got.DebtScore, tt.want.DebtScore) || !near(got.GrowthScore, tt.want.GrowthScore) ||
				!near(got.Total, tt.want.Total) {
				t.Fatalf("Financial(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTechnicalBandsAndSignal(t *testing.T) {
	tests := []struct {
		name      string
		in        TechnicalInputs
		wantRSI   float64
		wantSig   string
		wantTotal float64
	}{
		{"healthy uptrend", TechnicalInputs{RSI: 55, Momentum: 0.10, Volatility: 1}, 100, SignalBullish, 88},
		{"overbought", TechnicalInputs{RSI: 75, Momentum: 0, Volatility: 2}, 50, SignalNeutral, 46},
		{"collapse", TechnicalInputs{RSI: 10, Momentum: -0.15, Volatility: 6}, 20, SignalBearish, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Technical(tt.in, DefaultTechnicalWeights())
			if got.RSIScore != tt.wantRSI {
				t.Errorf("rsi score = %v, want %v", got.RSIScore, tt.wantRSI)
			}
			if got.Signal != tt.wantSig {
				t.Errorf("signal = %q, want %q", got.Signal, tt.wantSig)
			}
			if !near(got.Total, tt.wantTotal) {
				t.Errorf("total = %v, want %v", got.Total, tt.wantTotal)
			}
		})
	}
}

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	c := []float64{5, 4, 3, 2, 1}

	if got, err := Correlation(a, b); err != nil || !near(got, 1) {
		t.Fatalf("Correlation(a, b) = %v, %v; want 1", got, err)
	}
	if got, err := Correlation(a, c); err != nil || !near(got, -1) {
		t.Fatalf("Correlation(a, c) = %v, %v; want -1", got, err)
	}
	if _, err := Correlation(a, b[:3]); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
	if _, err := Correlation([]float64{1, 1, 1}, []float64{1, 2, 3}); err == nil {
		t.Fatal("expected error for constant series")
	}
}

func TestAverageCorrelationUsesCommonTail(t *testing.T) {
	long := []float64{9, 9, 1, 2, 3, 4}
	short := []float64{2, 4, 6, 8}

	got, err := AverageCorrelation([][]float64{long, short})
	if err != nil {
		t.Fatalf("AverageCorrelation returned error: %v", err)
	}
	if !near(got, 1) {
		t.Fatalf("expected perfect correlation on aligned tail, got %v", got)
	}
	if DiversificationBenefit(got) != "낮음" {
		t.Fatalf("unexpected benefit label %q", DiversificationBenefit(got))
	}
}

func TestDiversificationBenefit(t *testing.T) {
	tests := map[float64]string{
		-0.2: "높음",
		0.29: "높음",
		0.3:  "중간",
		0.69: "중간",
		0.7:  "낮음",
	}
	for in, want := range tests {
		if got := DiversificationBenefit(in); got != want {
			t.Errorf("DiversificationBenefit(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPortfolioPerformance(t *testing.T) {
	flat := []float64{0.001, 0.001, 0.001, 0.001}
	volatile := []float64{0.02, -0.01, 0.02, -0.01}

	p, err := PortfolioPerformance([][]float64{flat, volatile}, []float64{0.5, 0.5}, DefaultPerformanceAssumptions())
	if err != nil {
		t.Fatalf("PortfolioPerformance returned error: %v", err)
	}

	wantReturn := 0.001*252*100*0.5 + 0.005*252*100*0.5
	if !near(p.ExpectedReturn, wantReturn) {
		t.Errorf("expected return = %v, want %v", p.ExpectedReturn, wantReturn)
	}
	wantVol := AnnualizedVolatility(volatile) * 0.5
	if !near(p.Volatility, wantVol) {
		t.Errorf("volatility = %v, want %v", p.Volatility, wantVol)
	}
	if !near(p.MaxDrawdown, -wantVol*1.5) {
		t.Errorf("max drawdown = %v, want %v", p.MaxDrawdown, -wantVol*1.5)
	}
	if !near(p.BenchmarkAlpha, wantReturn-8) {
		t.Errorf("alpha = %v, want %v", p.BenchmarkAlpha, wantReturn-8)
	}
}

func TestPortfolioPerformanceRejectsBadWeights(t *testing.T) {
	series := [][]float64{{0.01, 0.02}, {0.01, 0.03}}
	cases := map[string][]float64{
		"length mismatch": {1},
		"sum too low":     {0.3, 0.3},
		"negative":        {1.5, -0.5},
	}

	for name, weights := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := PortfolioPerformance(series, weights, DefaultPerformanceAssumptions()); err == nil {
				t.Fatalf("expected error for weights %v", weights)
			}
		})
	}
}

func TestReturnsSkipsNonPositivePrices(t *testing.T) {
	got := Returns([]float64{0, 100, 110, 99})
	if len(got) != 2 {
		t.Fatalf("expected 2 returns, got %v", got)
	}
	if !near(got[0], 0.1) || !near(got[1], -0.1) {
		t.Fatalf("unexpected returns %v", got)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
