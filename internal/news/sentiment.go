// Package news ingests sector news into a vector index and searches it.
package news

import (
	"math"
	"sort"
	"strings"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

// SentimentThreshold is the normalized score beyond which an article is
// positive or negative.
const SentimentThreshold = 0.15

// SentimentResult is a lexicon verdict for one text.
type SentimentResult struct {
	Label      models.Sentiment `json:"sentiment"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
	Positive   []string         `json:"positive_keywords,omitempty"`
	Negative   []string         `json:"negative_keywords,omitempty"`
}

// Analyzer scores text by weighted Korean financial keywords.
type Analyzer struct {
	positive map[string]float64
	negative map[string]float64
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		positive: map[string]float64{
			"상승": 1.0, "증가": 1.0, "성장": 1.0, "확대": 0.8, "호조": 1.2,
			"개선": 1.0, "회복": 1.0, "반등": 1.0, "급증": 1.5, "급등": 1.5,
			"최대": 1.2, "신고가": 1.5, "호실적": 1.5, "어닝서프라이즈": 1.8,
			"흑자": 1.5, "흑자전환": 2.0, "배당": 0.8, "수주": 1.0,
			"대규모수주": 1.5, "계약체결": 1.0, "양산": 1.2, "혁신": 1.0,
			"세계최초": 1.5,
		},
		negative: map[string]float64{
			"하락": 1.0, "감소": 1.0, "부진": 1.2, "악화": 1.2, "둔화": 0.8,
			"급락": 1.5, "폭락": 1.5, "어닝쇼크": 1.8, "적자": 1.5,
			"적자전환": 2.0, "영업손실": 1.5, "규제": 1.0, "제재": 1.5,
			"과징금": 1.2, "소송": 1.0, "리콜": 1.5, "결함": 1.2, "중단": 1.2,
			"경쟁심화": 0.8, "구조조정": 1.2,
		},
	}
}

// Analyze scores text. Each keyword counts once; whitespace is ignored so
// compound keywords also match their spaced forms.
func (a *Analyzer) Analyze(text string) SentimentResult {
	compact := strings.Join(strings.Fields(text), "")

	var pos, neg float64
	var result SentimentResult
	for kw, w := range a.positive {
		if strings.Contains(compact, kw) {
			pos += w
			result.Positive = append(result.Positive, kw)
		}
	}
	for kw, w := range a.negative {
		if strings.Contains(compact, kw) {
			neg += w
			result.Negative = append(result.Negative, kw)
		}
	}

	sort.Strings(result.Positive)
	sort.Strings(result.Negative)

	matches := len(result.Positive) + len(result.Negative)
	if matches == 0 || pos+neg == 0 {
		result.Label = models.SentimentNeutral
		return result
	}

	result.Score = (pos - neg) / (pos + neg)
	result.Confidence = math.Min(float64(matches)/10, 0.95)
	switch {
	case result.Score > SentimentThreshold:
		result.Label = models.SentimentPositive
	case result.Score < -SentimentThreshold:
		result.Label = models.SentimentNegative
	default:
		result.Label = models.SentimentNeutral
	}
	return result
}
