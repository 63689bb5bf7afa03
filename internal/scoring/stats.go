package scoring

import (
	"errors"
	"math"
)

// TradingDays annualizes daily statistics.
const TradingDays = 252

// Returns computes simple daily returns; non-positive prices are skipped.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// Mean of xs, zero when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the sample standard deviation, zero for fewer than two points.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// AnnualizedVolatility of daily returns, in percent.
func AnnualizedVolatility(returns []float64) float64 {
	return StdDev(returns) * math.Sqrt(TradingDays) * 100
}

// Correlation is the Pearson coefficient of two equal-length series.
func Correlation(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New("series length mismatch")
	}
	if len(a) < 2 {
		return 0, errors.New("at least two observations required")
	}

	ma, mb := Mean(a), Mean(b)
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0, errors.New("constant series has no correlation")
	}
	return cov / math.Sqrt(va*vb), nil
}

// AverageCorrelation averages the pairwise correlations of the series,
// truncating each to the shortest common tail.
func AverageCorrelation(series [][]float64) (float64, error) {
	if len(series) < 2 {
		return 0, errors.New("at least two series required")
	}

	n := len(series[0])
	for _, s := range series[1:] {
		n = min(n, len(s))
	}

	var sum float64
	var pairs int
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			c, err := Correlation(tail(series[i], n), tail(series[j], n))
			if err != nil {
				return 0, err
			}
			sum += c
			pairs++
		}
	}
	return sum / float64(pairs), nil
}

// DiversificationBenefit labels an average correlation.
func DiversificationBenefit(avgCorrelation float64) string {
	switch {
	case avgCorrelation < 0.3:
		return "높음"
	case avgCorrelation < 0.7:
		return "중간"
	default:
		return "낮음"
	}
}

func tail(xs []float64, n int) []float64 {
	return xs[len(xs)-n:]
}
