package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sectorfolio/sectorfolio/internal/models"
)

const reportExample = "```json\n" + `{
  "ai_summary": "포트폴리오 구성, 기대수익과 위험, 기간별 운용 전략을 3~5문장으로 요약",
  "portfolio_allocation": [
    {
      "ticker": "005930.KS",
      "name": "삼성전자",
      "sector": "반도체",
      "weight": 0.30,
      "amount": 1500000,
      "shares": 21,
      "current_price": 71000,
      "target_price": 85000,
      "stop_loss": 64000,
      "scores": {"data_analysis": 85, "financial": 78, "news": 82}
    }
  ],
  "performance_metrics": {
    "expected_return": 18.5,
    "max_drawdown": -15.2,
    "sharpe_ratio": 1.15,
    "benchmark_alpha": 8.3
  },
  "chart_data": {
    "sunburst": [
      {"name": "반도체", "value": 0.30},
      {"name": "삼성전자", "value": 0.30, "parent": "반도체"}
    ],
    "expected_performance": {
      "months": [1, 3, 6, 12],
      "portfolio": [2.1, 6.5, 11.2, 18.5],
      "benchmark": [1.5, 4.2, 7.8, 12.0]
    }
  }
}` + "\n```"

const specialistExample = "```json\n" + `{
  "analysis_summary": "종합 의견 (2~3줄)",
  "ticker_scores": {
    "005930.KS": {"score": 85, "comment": "근거"}
  },
  "top_picks": ["005930.KS"],
  "risk_warnings": ["주의할 종목과 사유"]
}` + "\n```"

const repromptFinal = "최종 포트폴리오를 지정된 ```json 블록 형식으로만 다시 작성하세요."

func conditions(req models.PortfolioRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- 예산: %s원\n", formatKRW(req.Budget))
	fmt.Fprintf(&b, "- 투자 성향: %s (안정: 낮은 변동성 선호, 중립: 균형잡힌 접근, 공격: 높은 수익률 추구)\n", req.RiskProfile)
	fmt.Fprintf(&b, "- 투자 기간: %s (단기: 3개월 이하, 중기: 3개월~1년, 장기: 1년 이상)\n", req.InvestmentPeriod)
	if req.AdditionalPrompt != "" {
		fmt.Fprintf(&b, "- 추가 요구사항: %s\n", req.AdditionalPrompt)
	}
	return b.String()
}

func singlePrimer(req models.PortfolioRequest) string {
	return `당신은 전문 투자 분석가 AI입니다.

**데이터 무결성 규칙**
- 기업명과 섹터는 반드시 get_company_info 결과의 값을 그대로 사용하세요.
- 제공된 종목 목록에 없는 종목은 포트폴리오에 포함하지 마세요.

**투자 조건**
` + conditions(req) + `
**분석 절차**
1. 선택된 종목의 주가, 재무, 기술적 지표를 Tool로 수집합니다.
2. 종목별 데이터 분석, 재무, 뉴스 점수(0~100)를 산출합니다.
3. 투자 성향과 기간에 맞춰 비중(합계 1.0)과 금액을 정합니다.
4. calculate_portfolio_performance로 성과 지표를 계산합니다.
5. 목표가와 손절가를 제시합니다.

**최종 출력 형식 (반드시 ` + "```json" + ` 블록 안에 작성)**
` + reportExample
}

func universeContext(universe []models.Company) string {
	var b strings.Builder
	b.WriteString("**사전 정보**\n\n분석 대상 종목:\n")
	for _, c := range universe {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", c.Ticker, c.Name, c.Sector())
	}
	b.WriteString("\n위 조건으로 포트폴리오를 분석해주세요.")
	return b.String()
}

type specialistKind struct {
	slot     string
	topic    string
	role     string
	label    string
	task     string
	criteria string
}

var (
	financialSpecialist = specialistKind{
		slot:  slotFinancial,
		topic: "재무",
		role:  "재무 분석 전문가",
		label: "재무 전문가",
		task:  "각 종목의 재무 건전성과 수익성을 평가하고 0~100점의 재무 점수를 산출하세요.",
		criteria: `1. ROE: 15% 이상 우수 (가중치 30%)
2. 영업이익률: 10% 이상 우수 (가중치 20%)
3. 부채비율: 100% 이하 우수 (가중치 30%)
4. 매출성장률: 20% 이상 우수 (가중치 20%)`,
	}
	technicalSpecialist = specialistKind{
		slot:  slotTechnical,
		topic: "기술",
		role:  "기술 분석 전문가",
		label: "기술 전문가",
		task:  "각 종목의 기술적 지표를 분석하고 0~100점의 기술적 점수를 산출하세요.",
		criteria: `1. RSI(14): 30~70 범위가 안정적, 70 초과 과매수, 30 미만 과매도
2. 20일 모멘텀: 양수면 상승 추세
3. 이동평균: 현재가 > MA20 > MA60 이면 강한 상승 추세
4. 변동성: 낮을수록 안정적`,
	}
	newsSpecialist = specialistKind{
		slot:  slotNews,
		topic: "뉴스",
		role:  "뉴스 및 산업 동향 분석 전문가",
		label: "뉴스 전문가",
		task:  "각 종목의 산업 동향과 뉴스 전망을 분석하고 0~100점의 뉴스 점수를 산출하세요. 필요하면 search_sector_news로 관련 기사를 검색하세요.",
		criteria: `1. 산업 성장성 (가중치 40%)
2. 정책 지원 (가중치 20%)
3. 시장 수요 (가중치 25%)
4. 경쟁 환경 (가중치 15%)`,
	}
)

func specialistPrompt(kind specialistKind, req models.PortfolioRequest, data any) string {
	return fmt.Sprintf(`당신은 **%s**입니다.

**투자 조건**
- 투자 성향: %s
- 투자 기간: %s

**분석할 종목 데이터**
%s

**임무**
%s

**평가 기준**
%s

**출력 형식 (반드시 JSON)**
%s`, kind.role, req.RiskProfile, req.InvestmentPeriod, indentJSON(data), kind.task, kind.criteria, specialistExample)
}

func supervisorPrompt(req models.PortfolioRequest, sectorMap any, analyses map[string]SpecialistAnalysis) string {
	return `당신은 투자 포트폴리오 매니저(Supervisor)입니다.
세 명의 전문가 분석을 종합하여 최종 포트폴리오를 구성하세요.

**투자 조건**
` + conditions(req) + `
**종목-섹터 매핑 (반드시 이 이름과 섹터명을 사용)**
` + indentJSON(sectorMap) + `

**재무 분석 전문가**
` + indentJSON(analyses[slotFinancial]) + `

**기술 분석 전문가**
` + indentJSON(analyses[slotTechnical]) + `

**뉴스 분석 전문가**
` + indentJSON(analyses[slotNews]) + `

비중 합계는 1.0이어야 하며 예산 범위 안에서 금액을 배분하세요.
필요하면 calculate_portfolio_performance로 성과 지표를 계산하세요.

**최종 출력 형식 (반드시 ` + "```json" + ` 블록 안에 작성)**
` + reportExample
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// formatKRW renders 5000000 as 5,000,000.
func formatKRW(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
