package tools

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/scoring"
)

// CompanySource resolves tickers and sectors from reference data.
type CompanySource interface {
	CompanyByTicker(ticker string) (models.Company, bool)
	CompaniesBySector(code models.SectorCode) []models.Company
}

// MarketSource reads price, fundamentals and signal rows.
type MarketSource interface {
	RecentPrices(ctx context.Context, ticker string, days int) ([]models.PriceBar, error)
	LatestFinancials(ctx context.Context, ticker string, quarters int) ([]models.FinancialMetric, error)
	LatestSignal(ctx context.Context, ticker string) (*models.TechnicalSignal, error)
}

const (
	defaultPriceDays   = 250
	priceWindow        = 60
	defaultQuarters    = 4
	maxPriceDays       = 1000
	maxTickersPerQuery = 20
)

// MarketTools provides the read-only portfolio data tools.
type MarketTools struct {
	companies   CompanySource
	market      MarketSource
	financial   scoring.FinancialWeights
	technical   scoring.TechnicalWeights
	performance scoring.PerformanceAssumptions
}

func NewMarketTools(companies CompanySource, market MarketSource) *MarketTools {
	return &MarketTools{
		companies:   companies,
		market:      market,
		financial:   scoring.DefaultFinancialWeights(),
		technical:   scoring.DefaultTechnicalWeights(),
		performance: scoring.DefaultPerformanceAssumptions(),
	}
}

// WithWeights overrides the scoring policy.
func (t *MarketTools) WithWeights(f scoring.FinancialWeights, tw scoring.TechnicalWeights) *MarketTools {
	t.financial = f
	t.technical = tw
	return t
}

var tickerParam = ParamSpec{Name: "ticker", Type: TypeString, Required: true, Description: "종목 코드 (예: 005930.KS)"}

// Specs returns the tool definitions in the order they are advertised.
func (t *MarketTools) Specs() []ToolSpec {
	return []ToolSpec{
		{
			Name:        ToolCompanyInfo,
			Description: "기업 기본 정보(회사명, 섹터, 산업 동향)를 조회합니다.",
			Params:      []ParamSpec{tickerParam},
			Execute:     t.companyInfo,
		},
		{
			Name:        ToolStockPrices,
			Description: "최근 주가 데이터와 수익률, 연환산 변동성, 평균 거래량을 조회합니다.",
			Params: []ParamSpec{
				tickerParam,
				{Name: "days", Type: TypeInteger, Default: defaultPriceDays, Description: "조회할 거래일 수"},
			},
			Execute: t.stockPrices,
		},
		{
			Name:        ToolFinancialMetrics,
			Description: "최근 분기 재무지표(ROE, 영업이익률, 부채비율, 매출성장률)와 재무 점수를 조회합니다.",
			Params: []ParamSpec{
				tickerParam,
				{Name: "quarters", Type: TypeInteger, Default: defaultQuarters, Description: "조회할 분기 수"},
			},
			Execute: t.financialMetrics,
		},
		{
			Name:        ToolTechnicalSignals,
			Description: "이동평균, RSI, ATR, 모멘텀, 변동성과 기술적 점수 및 신호를 조회합니다.",
			Params:      []ParamSpec{tickerParam},
			Execute:     t.technicalSignals,
		},
		{
			Name:        ToolStocksBySector,
			Description: "섹터별 종목 목록을 조회합니다.",
			Params: []ParamSpec{
				{Name: "sectors", Type: TypeArray, Items: TypeString, Required: true, Description: "섹터 이름 목록 (예: 반도체, 조선)"},
			},
			Execute: t.stocksBySector,
		},
		{
			Name:        ToolCorrelation,
			Description: "종목 간 일간 수익률의 평균 상관계수와 분산 효과를 계산합니다.",
			Params: []ParamSpec{
				{Name: "tickers", Type: TypeArray, Items: TypeString, Required: true, Description: "2개 이상의 종목 코드"},
			},
			Execute: t.correlation,
		},
		{
			Name:        ToolPortfolioPerformance,
			Description: "비중에 따른 포트폴리오 기대수익률, 변동성, 샤프지수, 최대낙폭, 벤치마크 대비 알파를 계산합니다.",
			Params: []ParamSpec{
				{Name: "tickers", Type: TypeArray, Items: TypeString, Required: true, Description: "종목 코드 목록"},
				{Name: "weights", Type: TypeArray, Items: TypeNumber, Required: true, Description: "종목별 비중 (합계 1.0)"},
			},
			Execute: t.portfolioPerformance,
		},
	}
}

// Register adds the market tools to r.
func (t *MarketTools) Register(r *Registry) error {
	for _, spec := range t.Specs() {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

type companyInfo struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Sector        string `json:"sector"`
	IndustryTrend string `json:"industry_trend"`
}

func (t *MarketTools) company(ticker string) (models.Company, error) {
	c, ok := t.companies.CompanyByTicker(models.NormalizeTicker(ticker))
	if !ok {
		return models.Company{}, fmt.Errorf("'%s' 종목을 찾을 수 없습니다", ticker)
	}
	return c, nil
}

func (t *MarketTools) companyInfo(_ context.Context, args map[string]any) (any, error) {
	c, err := t.company(args["ticker"].(string))
	if err != nil {
		return nil, err
	}
	return companyInfo{
		Ticker:        c.Ticker,
		Name:          c.Name,
		Sector:        c.Sector(),
		IndustryTrend: c.SectorCode.IndustryTrend(),
	}, nil
}

type priceSummary struct {
	Ticker           string    `json:"ticker"`
	CurrentPrice     float64   `json:"current_price"`
	PeriodReturnPct  float64   `json:"period_return_pct"`
	VolatilityAnnual float64   `json:"volatility_annual"`
	AvgVolume        int64     `json:"avg_volume"`
	Days             int       `json:"days"`
	PriceData        []float64 `json:"price_data"`
}

func (t *MarketTools) stockPrices(ctx context.Context, args map[string]any) (any, error) {
	c, err := t.company(args["ticker"].(string))
	if err != nil {
		return nil, err
	}
	days := args["days"].(int)
	if days < 2 || days > maxPriceDays {
		return nil, fmt.Errorf("days must be between 2 and %d", maxPriceDays)
	}

	bars, err := t.market.RecentPrices(ctx, c.Ticker, days)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("'%s' 주가 데이터 없음", c.Ticker)
	}

	closes := make([]float64, len(bars))
	var volume int64
	for i, b := range bars {
		closes[i] = b.Close
		volume += b.Volume
	}

	returns := scoring.Returns(closes)
	window := returns[max(0, len(returns)-priceWindow):]

	s := priceSummary{
		Ticker:           c.Ticker,
		CurrentPrice:     closes[len(closes)-1],
		VolatilityAnnual: scoring.Round(scoring.AnnualizedVolatility(window), 2),
		AvgVolume:        volume / int64(len(bars)),
		Days:             len(bars),
		PriceData:        closes[max(0, len(closes)-priceWindow):],
	}
	if closes[0] > 0 {
		s.PeriodReturnPct = scoring.Round((closes[len(closes)-1]/closes[0]-1)*100, 2)
	}
	return s, nil
}

type financialSummary struct {
	Ticker       string   `json:"ticker"`
	FiscalDate   string   `json:"fiscal_date"`
	Quarters     int      `json:"quarters"`
	ROE          *float64 `json:"roe"`
	OPM          *float64 `json:"opm"`
	DebtRatio    *float64 `json:"debt_ratio"`
	ROA          *float64 `json:"roa"`
	RevGrowthYoY *float64 `json:"rev_growth_yoy"`
	scoring.FinancialScore
}

func (t *MarketTools) financialMetrics(ctx context.Context, args map[string]any) (any, error) {
	c, err := t.company(args["ticker"].(string))
	if err != nil {
		return nil, err
	}
	quarters := args["quarters"].(int)
	if quarters < 1 || quarters > 40 {
		return nil, errors.New("quarters must be between 1 and 40")
	}

	rows, err := t.market.LatestFinancials(ctx, c.Ticker, quarters)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("'%s' 재무 데이터 없음", c.Ticker)
	}

	latest := rows[0]
	score := t.financialScore(latest)
	return financialSummary{
		Ticker:         c.Ticker,
		FiscalDate:     latest.FiscalDate.Format("2006-01-02"),
		Quarters:       len(rows),
		ROE:            latest.ROE,
		OPM:            latest.OPM,
		DebtRatio:      latest.DebtRatio,
		ROA:            latest.ROA,
		RevGrowthYoY:   latest.RevGrowthYoY,
		FinancialScore: score,
	}, nil
}

func (t *MarketTools) financialScore(m models.FinancialMetric) scoring.FinancialScore {
	s := scoring.Financial(scoring.FinancialInputs{
		ROE:       models.Float(m.ROE),
		OPM:       models.Float(m.OPM),
		DebtRatio: models.Float(m.DebtRatio),
		RevGrowth: models.Float(m.RevGrowthYoY),
	}, t.financial)
	s.Total = scoring.Round(s.Total, 1)
	return s
}

type technicalSummary struct {
	Ticker      string   `json:"ticker"`
	AsOf        string   `json:"asof"`
	MA20        *float64 `json:"ma20"`
	MA60        *float64 `json:"ma60"`
	RSI14       *float64 `json:"rsi14"`
	ATR14       *float64 `json:"atr14"`
	Momentum20D float64  `json:"momentum_20d"`
	Vol20D      *float64 `json:"vol_20d"`
	scoring.TechnicalScore
}

func (t *MarketTools) technicalSignals(ctx context.Context, args map[string]any) (any, error) {
	c, err := t.company(args["ticker"].(string))
	if err != nil {
		return nil, err
	}

	sig, err := t.market.LatestSignal(ctx, c.Ticker)
	if err != nil {
		return nil, err
	}

	rsi := 50.0
	if sig.RSI14 != nil {
		rsi = *sig.RSI14
	}
	score := scoring.Technical(scoring.TechnicalInputs{
		RSI:        rsi,
		Momentum:   models.Float(sig.Momentum20D),
		Volatility: models.Float(sig.Vol20D),
	}, t.technical)
	score.Total = scoring.Round(score.Total, 1)

	return technicalSummary{
		Ticker:         c.Ticker,
		AsOf:           sig.AsOf.Format("2006-01-02"),
		MA20:           sig.MA20,
		MA60:           sig.MA60,
		RSI14:          sig.RSI14,
		ATR14:          sig.ATR14,
		Momentum20D:    scoring.Round(models.Float(sig.Momentum20D)*100, 2),
		Vol20D:         sig.Vol20D,
		TechnicalScore: score,
	}, nil
}

type sectorStock struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

func (t *MarketTools) stocksBySector(_ context.Context, args map[string]any) (any, error) {
	sectors := args["sectors"].([]string)
	if len(sectors) == 0 {
		return nil, errors.New("at least one sector is required")
	}

	out := make(map[string][]sectorStock, len(sectors))
	for _, label := range sectors {
		code, ok := models.SectorCodeForLabel(label)
		if !ok {
			return nil, fmt.Errorf("알 수 없는 섹터: %s", label)
		}
		stocks := []sectorStock{}
		for _, c := range t.companies.CompaniesBySector(code) {
			stocks = append(stocks, sectorStock{Ticker: c.Ticker, Name: c.Name})
		}
		out[code.Label()] = stocks
	}
	return out, nil
}

// returnSeries loads the daily returns of each ticker.
func (t *MarketTools) returnSeries(ctx context.Context, tickers []string) ([]string, [][]float64, error) {
	if len(tickers) > maxTickersPerQuery {
		return nil, nil, fmt.Errorf("at most %d tickers allowed", maxTickersPerQuery)
	}

	resolved := make([]string, len(tickers))
	series := make([][]float64, len(tickers))
	for i, raw := range tickers {
		c, err := t.company(raw)
		if err != nil {
			return nil, nil, err
		}
		bars, err := t.market.RecentPrices(ctx, c.Ticker, defaultPriceDays)
		if err != nil {
			return nil, nil, err
		}
		closes := make([]float64, len(bars))
		for j, b := range bars {
			closes[j] = b.Close
		}
		r := scoring.Returns(closes)
		if len(r) < 2 {
			return nil, nil, fmt.Errorf("'%s' 수익률 계산에 필요한 데이터 부족", c.Ticker)
		}
		resolved[i] = c.Ticker
		series[i] = r
	}
	return resolved, series, nil
}

type correlationSummary struct {
	Tickers                []string `json:"tickers"`
	AverageCorrelation     float64  `json:"average_correlation"`
	DiversificationBenefit string   `json:"diversification_benefit"`
}

func (t *MarketTools) correlation(ctx context.Context, args map[string]any) (any, error) {
	tickers := args["tickers"].([]string)
	if len(tickers) < 2 {
		return nil, errors.New("at least two tickers are required")
	}

	resolved, series, err := t.returnSeries(ctx, tickers)
	if err != nil {
		return nil, err
	}
	avg, err := scoring.AverageCorrelation(series)
	if err != nil {
		return nil, err
	}

	return correlationSummary{
		Tickers:                resolved,
		AverageCorrelation:     scoring.Round(avg, 3),
		DiversificationBenefit: scoring.DiversificationBenefit(avg),
	}, nil
}

func (t *MarketTools) portfolioPerformance(ctx context.Context, args map[string]any) (any, error) {
	tickers := args["tickers"].([]string)
	weights := args["weights"].([]float64)
	if len(tickers) == 0 {
		return nil, errors.New("at least one ticker is required")
	}
	if len(tickers) != len(weights) {
		return nil, fmt.Errorf("got %d weights for %d tickers", len(weights), len(tickers))
	}

	_, series, err := t.returnSeries(ctx, tickers)
	if err != nil {
		return nil, err
	}
	p, err := scoring.PortfolioPerformance(series, weights, t.performance)
	if err != nil {
		return nil, err
	}

	return scoring.Performance{
		ExpectedReturn: scoring.Round(p.ExpectedReturn, 2),
		Volatility:     scoring.Round(p.Volatility, 2),
		SharpeRatio:    roundFinite(p.SharpeRatio, 2),
		MaxDrawdown:    scoring.Round(p.MaxDrawdown, 2),
		BenchmarkAlpha: scoring.Round(p.BenchmarkAlpha, 2),
	}, nil
}

func roundFinite(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return scoring.Round(v, decimals)
}
