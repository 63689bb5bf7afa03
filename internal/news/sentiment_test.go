package news

import (
	"testing"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

func TestAnalyzerLabels(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name string
		text string
		want models.Sentiment
	}{
		{"positive", "삼성전자 3분기 호실적, 영업이익 급증하며 신고가 경신", models.SentimentPositive},
		{"negative", "배터리 리콜 여파로 주가 급락, 적자전환 우려", models.SentimentNegative},
		{"balanced", "매출은 증가했지만 이익은 감소", models.SentimentNeutral},
		{"no keywords", "오늘 주주총회가 열렸다", models.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.text)
			if got.Label != tt.want {
				t.Fatalf("Analyze(%q) = %s (score %.2f), want %s", tt.text, got.Label, got.Score, tt.want)
			}
		})
	}
}

func TestAnalyzerNoMatchesIsZero(t *testing.T) {
	got := NewAnalyzer().Analyze("특별한 내용 없음")
	if got.Score != 0 || got.Confidence != 0 {
		t.Fatalf("expected zero score and confidence, got %+v", got)
	}
}

func TestAnalyzerConfidenceCapped(t *testing.T) {
	text := "상승 증가 성장 확대 호조 개선 회복 반등 급증 급등 최대 신고가 흑자"
	got := NewAnalyzer().Analyze(text)
	if got.Confidence != 0.95 {
		t.Fatalf("expected confidence capped at 0.95, got %v", got.Confidence)
	}
	if got.Score != 1 {
		t.Fatalf("expected score 1 for purely positive text, got %v", got.Score)
	}
}

func TestAnalyzerMatchesSpacedCompounds(t *testing.T) {
	got := NewAnalyzer().Analyze("2분기 흑자 전환 성공")
	found := false
	for _, kw := range got.Positive {
		if kw == "흑자전환" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 흑자전환 to match spaced form, got %v", got.Positive)
	}
}
