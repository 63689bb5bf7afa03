package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/news"
)

type fakeCompanies map[string]models.Company

func (f fakeCompanies) CompanyByTicker(ticker string) (models.Company, bool) {
	c, ok := f[ticker]
	return c, ok
}

func (f fakeCompanies) CompaniesBySector(code models.SectorCode) []models.Company {
	var out []models.Company
	for _, c := range f {
		if c.SectorCode == code {
			out = append(out, c)
		}
	}
	return out
}

type fakeMarket struct {
	closes     map[string][]float64
	financials map[string][]models.FinancialMetric
	signals    map[string]*models.TechnicalSignal
}

func (f *fakeMarket) RecentPrices(_ context.Context, ticker string, days int) ([]models.PriceBar, error) {
	closes := f.closes[ticker]
	if len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{Ticker: ticker, Date: start.AddDate(0, 0, i), Close: c, Volume: 1000}
	}
	return bars, nil
}

func (f *fakeMarket) LatestFinancials(_ context.Context, ticker string, quarters int) ([]models.FinancialMetric, error) {
	rows := f.financials[ticker]
	if len(rows) > quarters {
		rows = rows[:quarters]
	}
	return rows, nil
}

func (f *fakeMarket) LatestSignal(_ context.Context, ticker string) (*models.TechnicalSignal, error) {
	sig, ok := f.signals[ticker]
	if !ok {
		return nil, errors.New("not found")
	}
	return sig, nil
}

func ptr(v float64) *float64 { return &v }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	companies := fakeCompanies{
		"005930.KS": {Ticker: "005930.KS", Name: "삼성전자", SectorCode: models.SectorSemiconductor},
		"000660.KS": {Ticker: "000660.KS", Name: "SK하이닉스", SectorCode: models.SectorSemiconductor},
		"012450.KS": {Ticker: "012450.KS", Name: "한화에어로스페이스", SectorCode: models.SectorDefense},
	}
	market := &fakeMarket{
		closes: map[string][]float64{
			"005930.KS": {100, 102, 101, 104, 106, 105},
			"000660.KS": {200, 204, 202, 208, 212, 210},
			"012450.KS": {50, 49, 51, 50, 52, 51},
		},
		financials: map[string][]models.FinancialMetric{
			"005930.KS": {
				{Ticker: "005930.KS", FiscalDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), ROE: ptr(15), OPM: ptr(10), DebtRatio: ptr(30), RevGrowthYoY: ptr(20)},
				{Ticker: "005930.KS", FiscalDate: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), ROE: ptr(10)},
			},
		},
		signals: map[string]*models.TechnicalSignal{
			"005930.KS": {Ticker: "005930.KS", RSI14: ptr(55), Momentum20D: ptr(0.05), Vol20D: ptr(1.5)},
		},
	}

	r, err := Build(NewMarketTools(companies, market), &fakeIndex{})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return r
}

func TestBuildRegistersAllTools(t *testing.T) {
	r := newTestRegistry(t)
	want := []string{
		"get_company_info", "get_stock_prices", "get_financial_metrics", "get_technical_signals",
		"get_stocks_by_sector", "calculate_correlation", "calculate_portfolio_performance",
		"search_sector_news", "ingest_and_search_news",
	}
	got := r.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestCompanyInfoNormalizesTicker(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.Invoke(context.Background(), "get_company_info", map[string]any{"ticker": "005930"})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	info := got.(companyInfo)
	if info.Name != "삼성전자" || info.Sector != "반도체" || info.IndustryTrend == "" {
		t.Fatalf("unexpected company info %+v", info)
	}

	_, err = r.Invoke(context.Background(), "get_company_info", map[string]any{"ticker": "999999.KS"})
	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ToolExecutionError for unknown ticker, got %v", err)
	}
}

func TestStockPrices(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.Invoke(context.Background(), "get_stock_prices", map[string]any{"ticker": "005930.KS"})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	s := got.(priceSummary)
	if s.CurrentPrice != 105 || s.PeriodReturnPct != 5 || s.Days != 6 || len(s.PriceData) != 6 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.VolatilityAnnual <= 0 {
		t.Fatalf("expected positive volatility, got %v", s.VolatilityAnnual)
	}
}

func TestFinancialMetricsScoresLatestQuarter(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.Invoke(context.Background(), "get_financial_metrics", map[string]any{"ticker": "005930.KS", "quarters": 2})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	s := got.(financialSummary)
	if s.Quarters != 2 || s.FiscalDate != "2025-06-30" {
		t.Fatalf("unexpected summary %+v", s)
	}
	// 100*0.3 + 100*0.2 + 70*0.3 + 100*0.2
	if s.Total != 91 {
		t.Fatalf("expected financial score 91, got %v", s.Total)
	}

	if _, err := r.Invoke(context.Background(), "get_financial_metrics", map[string]any{"ticker": "000660.KS"}); err == nil {
		t.Fatal("expected error when no financial rows exist")
	}
}

func TestTechnicalSignals(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.Invoke(context.Background(), "get_technical_signals", map[string]any{"ticker": "005930.KS"})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	s := got.(technicalSummary)
	// rsi 100, momentum (5+10)/0.2=75, volatility 50-15=35
	if s.Total != 77 || s.Signal != "강세" || s.Momentum20D != 5 {
		t.Fatalf("unexpected technical summary %+v", s)
	}
}

func TestStocksBySector(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.Invoke(context.Background(), "get_stocks_by_sector", map[string]any{"sectors": []any{"반도체", "DEF"}})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	grouped := got.(map[string][]sectorStock)
	if len(grouped["반도체"]) != 2 || len(grouped["방산"]) != 1 {
		t.Fatalf("unexpected grouping %+v", grouped)
	}

	if _, err := r.Invoke(context.Background(), "get_stocks_by_sector", map[string]any{"sectors": []any{"우주"}}); err == nil {
		t.Fatal("expected error for unknown sector")
	}
}

func TestCorrelationAndPerformance(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.Invoke(context.Background(), "calculate_correlation", map[string]any{"tickers": []any{"005930.KS", "000660.KS"}})
	if err != nil {
		t.Fatalf("calculate_correlation returned error: %v", err)
	}
	corr := got.(correlationSummary)
	if corr.AverageCorrelation < 0.99 || corr.DiversificationBenefit != "낮음" {
		t.Fatalf("expected near-perfect correlation, got %+v", corr)
	}

	if _, err := r.Invoke(context.Background(), "calculate_correlation", map[string]any{"tickers": []any{"005930.KS"}}); err == nil {
		t.Fatal("expected error for a single ticker")
	}

	_, err = r.Invoke(context.Background(), "calculate_portfolio_performance", map[string]any{
		"tickers": []any{"005930.KS", "012450.KS"},
		"weights": []any{0.6, 0.4},
	})
	if err != nil {
		t.Fatalf("calculate_portfolio_performance returned error: %v", err)
	}

	_, err = r.Invoke(context.Background(), "calculate_portfolio_performance", map[string]any{
		"tickers": []any{"005930.KS", "012450.KS"},
		"weights": []any{0.6},
	})
	if err == nil {
		t.Fatal("expected error for mismatched weights")
	}
}

type fakeIndex struct {
	ingested []models.NewsArticle
	filter   news.Filter
}

func (f *fakeIndex) Ingest(_ context.Context, articles []models.NewsArticle) (news.IngestStats, error) {
	f.ingested = append(f.ingested, articles...)
	return news.IngestStats{Received: len(articles), Ingested: len(articles)}, nil
}

func (f *fakeIndex) Search(_ context.Context, query string, filter news.Filter, topK int) ([]news.Hit, error) {
	f.filter = filter
	hits := []news.Hit{}
	for i, a := range f.ingested {
		if i == topK {
			break
		}
		hits = append(hits, news.Hit{Score: 0.5, Article: a})
	}
	return hits, nil
}

func TestNewsTools(t *testing.T) {
	index := &fakeIndex{}
	r := NewRegistry()
	if err := NewNewsTools(index).Register(r); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	got, err := r.Invoke(context.Background(), "ingest_and_search_news", map[string]any{
		"articles": []any{
			map[string]any{"title": "수주", "text": "한화오션 LNG선 수주", "sector": "SHP", "published_at": "2025-02-01"},
		},
		"query": "LNG선",
	})
	if err != nil {
		t.Fatalf("ingest_and_search_news returned error: %v", err)
	}
	res := got.(newsSearchResult)
	if res.Ingested == nil || res.Ingested.Ingested != 1 || len(res.Results) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if index.ingested[0].Sector != "조선" {
		t.Fatalf("expected sector code resolved to label, got %q", index.ingested[0].Sector)
	}

	if _, err := r.Invoke(context.Background(), "search_sector_news", map[string]any{"query": "원전", "sector": "NUC"}); err != nil {
		t.Fatalf("search_sector_news returned error: %v", err)
	}
	if index.filter.Sector != "원자력" {
		t.Fatalf("expected sector filter 원자력, got %q", index.filter.Sector)
	}
	if index.filter.ScoreThreshold != 0 {
		t.Fatalf("expected no score threshold by default, got %v", index.filter.ScoreThreshold)
	}

	if _, err := r.Invoke(context.Background(), "search_sector_news", map[string]any{"query": "원전", "min_score": "0.35"}); err != nil {
		t.Fatalf("search_sector_news returned error: %v", err)
	}
	if index.filter.ScoreThreshold != 0.35 {
		t.Fatalf("expected score threshold 0.35, got %v", index.filter.ScoreThreshold)
	}

	_, err = r.Invoke(context.Background(), "ingest_and_search_news", map[string]any{
		"articles": []any{map[string]any{"title": "no body"}},
		"query":    "x",
	})
	if err == nil {
		t.Fatal("expected error for article without text")
	}

	spec, _ := r.Lookup("ingest_and_search_news")
	if spec.SideEffect != Ingest {
		t.Fatalf("expected ingest side effect, got %q", spec.SideEffect)
	}
}
