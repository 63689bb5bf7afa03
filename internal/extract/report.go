package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// FallbackSummary is shown when the final answer could not be parsed.
const FallbackSummary = "최종 포트폴리오 생성 실패"

// Fallback is the report returned when extraction fails.
func Fallback(reason string) models.Report {
	if reason == "" {
		reason = FallbackSummary
	}
	return models.Report{
		AISummary:           reason,
		PortfolioAllocation: []models.AllocationEntry{},
		ChartData: models.ChartData{
			Sunburst: []models.SunburstNode{},
			ExpectedPerformance: models.ExpectedPerformance{
				Months:    append([]int(nil), models.DefaultHorizonMonths...),
				Portfolio: []float64{},
				Benchmark: []float64{},
			},
		},
	}
}

// DecodeReport maps a payload onto the report document. Models often emit
// numbers as strings ("1,500,000", "12.5%"); those are accepted.
// Malformed entries are skipped rather than failing the report.
func DecodeReport(p Payload) models.Report {
	r := Fallback("")
	r.AISummary = stringField(p, "ai_summary")

	if items, ok := p["portfolio_allocation"].([]any); ok {
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			r.PortfolioAllocation = append(r.PortfolioAllocation, decodeEntry(m))
		}
		scalePercentWeights(r.PortfolioAllocation)
	}

	if m, ok := p["performance_metrics"].(map[string]any); ok {
		r.PerformanceMetrics = models.PerformanceMetrics{
			ExpectedReturn: optionalNumber(m, "expected_return"),
			MaxDrawdown:    optionalNumber(m, "max_drawdown"),
			SharpeRatio:    optionalNumber(m, "sharpe_ratio"),
			BenchmarkAlpha: optionalNumber(m, "benchmark_alpha"),
		}
	}

	if chart, ok := p["chart_data"].(map[string]any); ok {
		if nodes, ok := chart["sunburst"].([]any); ok {
			for _, n := range nodes {
				m, ok := n.(map[string]any)
				if !ok {
					continue
				}
				name := stringField(m, "name")
				if name == "" {
					continue
				}
				r.ChartData.Sunburst = append(r.ChartData.Sunburst, models.SunburstNode{
					Name:   name,
					Value:  numberField(m, "value"),
					Parent: stringField(m, "parent"),
				})
			}
		}
		if perf, ok := chart["expected_performance"].(map[string]any); ok {
			if months := numberList(perf["months"]); len(months) > 0 {
				r.ChartData.ExpectedPerformance.Months = r.ChartData.ExpectedPerformance.Months[:0]
				for _, m := range months {
					r.ChartData.ExpectedPerformance.Months = append(r.ChartData.ExpectedPerformance.Months, int(m))
				}
			}
			r.ChartData.ExpectedPerformance.Portfolio = numberList(perf["portfolio"])
			r.ChartData.ExpectedPerformance.Benchmark = numberList(perf["benchmark"])
		}
	}
	return r
}

func decodeEntry(m map[string]any) models.AllocationEntry {
	e := models.AllocationEntry{
		Ticker:       decodeTicker(m["ticker"]),
		Name:         stringField(m, "name"),
		Sector:       stringField(m, "sector"),
		Weight:       numberField(m, "weight"),
		Amount:       int64(math.Round(numberField(m, "amount"))),
		Shares:       int64(math.Max(0, math.Floor(numberField(m, "shares")))),
		CurrentPrice: numberField(m, "current_price"),
		TargetPrice:  numberField(m, "target_price"),
		StopLoss:     numberField(m, "stop_loss"),
	}
	if s, ok := m["scores"].(map[string]any); ok {
		e.Scores = models.Scores{
			DataAnalysis: numberField(s, "data_analysis"),
			Financial:    numberField(s, "financial"),
			News:         numberField(s, "news"),
		}
	}
	return e
}

// scalePercentWeights converts an allocation written in percent to
// fractions. The scale is decided for the whole list so that holdings of
// 1% or less are converted along with the rest.
func scalePercentWeights(entries []models.AllocationEntry) {
	var percent bool
	for _, e := range entries {
		if e.Weight > 100 {
			return
		}
		if e.Weight > 1 {
			percent = true
		}
	}
	if !percent {
		return
	}
	for i := range entries {
		entries[i].Weight /= 100
	}
}

// decodeTicker restores the leading zeros of a code emitted as a number.
func decodeTicker(v any) string {
	if n, ok := v.(float64); ok && n >= 0 && n < 1_000_000 && n == math.Trunc(n) {
		return models.NormalizeTicker(fmt.Sprintf("%06d", int(n)))
	}
	s, _ := v.(string)
	return models.NormalizeTicker(strings.TrimSpace(s))
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, json.Number:
		n, _ := toNumber(v)
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}

func numberField(m map[string]any, key string) float64 {
	n, _ := toNumber(m[key])
	return n
}

func optionalNumber(m map[string]any, key string) *float64 {
	n, ok := toNumber(m[key])
	if !ok {
		return nil
	}
	return &n
}

func numberList(v any) []float64 {
	items, ok := v.([]any)
	if !ok {
		return []float64{}
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if n, ok := toNumber(item); ok {
			out = append(out, n)
		}
	}
	return out
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.NewReplacer(",", "", "%", "", "원", "", " ", "").Replace(n)
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
