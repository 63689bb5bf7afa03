package validate

import (
	"math"
	"testing"

	"github.com/sectorfolio/sectorfolio/internal/extract"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/models"
)

type registry map[string]models.Company

func (r registry) CompanyByTicker(ticker string) (models.Company, bool) {
	c, ok := r[ticker]
	return c, ok
}

var companies = registry{
	"005930.KS": {Ticker: "005930.KS", Name: "삼성전자", SectorCode: models.SectorSemiconductor, IsActive: true},
	"000660.KS": {Ticker: "000660.KS", Name: "SK하이닉스", SectorCode: models.SectorSemiconductor, IsActive: true},
	"012450.KS": {Ticker: "012450.KS", Name: "한화에어로스페이스", SectorCode: models.SectorDefense, IsActive: true},
	"999990.KS": {Ticker: "999990.KS", Name: "상장폐지", SectorCode: models.SectorBio, IsActive: false},
}

func entry(ticker string, weight float64, amount int64) models.AllocationEntry {
	return models.AllocationEntry{Ticker: ticker, Name: "모델이 지은 이름", Sector: "엉뚱한 섹터", Weight: weight, Amount: amount, Shares: 7}
}

func TestValidateDropsUnknownAndRenormalizes(t *testing.T) {
	report := models.Report{PortfolioAllocation: []models.AllocationEntry{
		entry("005930.KS", 0.6, 3_000_000),
		entry("123456.KS", 0.4, 2_000_000),
	}}

	got, drops := Validate(report, companies, nil)

	if len(got.PortfolioAllocation) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got.PortfolioAllocation))
	}
	if w := got.PortfolioAllocation[0].Weight; math.Abs(w-1) > 1e-9 {
		t.Errorf("expected weight 1.0, got %v", w)
	}
	if len(drops) != 1 || drops[0].Ticker != "123456.KS" || drops[0].Reason != ReasonUnknownTicker {
		t.Errorf("unexpected drops: %+v", drops)
	}
	if len(report.PortfolioAllocation) != 2 || report.PortfolioAllocation[0].Weight != 0.6 {
		t.Error("input report was mutated")
	}
}

func TestValidateKeepsPercentAllocationProportions(t *testing.T) {
	payload, err := extract.Extract("```json\n" + `{"portfolio_allocation": [
		{"ticker": "005930.KS", "weight": 60},
		{"ticker": "000660.KS", "weight": 39},
		{"ticker": "012450.KS", "weight": 1}
	]}` + "\n```")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	got, drops := Validate(extract.DecodeReport(payload), companies, nil)
	if len(drops) != 0 {
		t.Fatalf("unexpected drops: %+v", drops)
	}

	want := map[string]float64{"005930.KS": 0.60, "000660.KS": 0.39, "012450.KS": 0.01}
	for _, e := range got.PortfolioAllocation {
		if math.Abs(e.Weight-want[e.Ticker]) > 1e-9 {
			t.Errorf("%s: expected weight %v, got %v", e.Ticker, want[e.Ticker], e.Weight)
		}
	}
}

func TestValidateOverwritesIdentity(t *testing.T) {
	report := models.Report{PortfolioAllocation: []models.AllocationEntry{
		entry("005930", 0.5, 2_500_000),
		entry("012450.KS", 0.5, 2_500_000),
	}}

	got, drops := Validate(report, companies, nil)
	if len(drops) != 0 {
		t.Fatalf("unexpected drops: %+v", drops)
	}

	first := got.PortfolioAllocation[0]
	if first.Ticker != "005930.KS" || first.Name != "삼성전자" || first.Sector != "반도체" {
		t.Errorf("identity not overwritten: %+v", first)
	}
	if first.Shares != 7 {
		t.Errorf("shares without a live price should be kept, got %d", first.Shares)
	}
	if got.PortfolioAllocation[1].Sector != "방산" {
		t.Errorf("unexpected sector %q", got.PortfolioAllocation[1].Sector)
	}
}

func TestValidateAppliesLivePrices(t *testing.T) {
	report := models.Report{PortfolioAllocation: []models.AllocationEntry{
		entry("005930.KS", 0.5, 2_500_000),
		entry("000660.KS", 0.5, 2_500_000),
	}}
	prices := Prices{"005930.KS": 71_300, "000660.KS": 0}

	got, _ := Validate(report, companies, prices)

	samsung := got.PortfolioAllocation[0]
	if samsung.CurrentPrice != 71_300 || samsung.Shares != 35 {
		t.Errorf("expected price 71300 and 35 shares, got %+v", samsung)
	}
	hynix := got.PortfolioAllocation[1]
	if hynix.CurrentPrice != 0 || hynix.Shares != 7 {
		t.Errorf("zero price should keep shares, got %+v", hynix)
	}
}

func TestValidateWeightInvariant(t *testing.T) {
	tests := map[string][]models.AllocationEntry{
		"within tolerance": {entry("005930.KS", 0.52, 0), entry("000660.KS", 0.5, 0)},
		"over":             {entry("005930.KS", 0.9, 0), entry("000660.KS", 0.9, 0)},
		"under":            {entry("005930.KS", 0.1, 0), entry("000660.KS", 0.2, 0)},
		"all zero":         {entry("005930.KS", 0, 0), entry("000660.KS", 0, 0)},
		"duplicate":        {entry("005930.KS", 0.5, 0), entry("005930.KS", 0.5, 0)},
		"inactive":         {entry("999990.KS", 0.3, 0), entry("005930.KS", 0.7, 0)},
		"negative":         {entry("005930.KS", -0.2, 0), entry("000660.KS", 0.7, 0)},
		"all unknown":      {entry("111111.KS", 0.5, 0), entry("", 0.5, 0)},
	}

	for name, entries := range tests {
		t.Run(name, func(t *testing.T) {
			got, _ := Validate(models.Report{PortfolioAllocation: entries}, companies, nil)
			if len(got.PortfolioAllocation) == 0 {
				return
			}
			for _, e := range got.PortfolioAllocation {
				if _, ok := companies[e.Ticker]; !ok {
					t.Errorf("unverified ticker %q survived", e.Ticker)
				}
			}
			if total := got.TotalWeight(); math.Abs(total-1) > DefaultTolerance {
				t.Errorf("weights sum to %v", total)
			}
		})
	}
}

func TestValidateRederivesAmountsFromBudget(t *testing.T) {
	report := models.Report{PortfolioAllocation: []models.AllocationEntry{
		entry("005930.KS", 0.3, 1_500_000),
		entry("000660.KS", 0.3, 1_500_000),
	}}
	v := New(companies, Prices{"005930.KS": 70_000}, Options{Budget: 5_000_000}, logging.Discard())

	got, _ := v.Validate(report)

	if got.PortfolioAllocation[0].Amount != 2_500_000 {
		t.Errorf("expected amount 2,500,000, got %d", got.PortfolioAllocation[0].Amount)
	}
	if got.PortfolioAllocation[0].Shares != 35 {
		t.Errorf("expected 35 shares, got %d", got.PortfolioAllocation[0].Shares)
	}
}

func TestValidateBuildsSunburst(t *testing.T) {
	report := models.Report{PortfolioAllocation: []models.AllocationEntry{
		entry("005930.KS", 0.4, 0),
		entry("000660.KS", 0.3, 0),
		entry("012450.KS", 0.3, 0),
	}}

	got, _ := Validate(report, companies, nil)
	nodes := got.ChartData.Sunburst

	if len(nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %+v", nodes)
	}
	if nodes[0].Name != "반도체" || nodes[0].Parent != "" || math.Abs(nodes[0].Value-0.7) > 1e-9 {
		t.Errorf("unexpected sector node: %+v", nodes[0])
	}
	if nodes[1].Name != "방산" {
		t.Errorf("unexpected second sector node: %+v", nodes[1])
	}
	if nodes[2].Name != "삼성전자" || nodes[2].Parent != "반도체" {
		t.Errorf("unexpected holding node: %+v", nodes[2])
	}
}

func TestValidateKeepsProvidedSunburst(t *testing.T) {
	provided := []models.SunburstNode{{Name: "반도체", Value: 1}}
	report := models.Report{
		PortfolioAllocation: []models.AllocationEntry{entry("005930.KS", 1, 0)},
		ChartData:           models.ChartData{Sunburst: provided},
	}

	got, _ := Validate(report, companies, nil)
	if len(got.ChartData.Sunburst) != 1 {
		t.Errorf("expected provided sunburst to be kept, got %+v", got.ChartData.Sunburst)
	}
}

func TestSharesFor(t *testing.T) {
	tests := []struct {
		amount int64
		price  float64
		want   int64
	}{
		{1_000_000, 70_000, 14},
		{1_000_000, 0.1, 10_000_000},
		{999, 1000, 0},
		{1_000_000, 0, 0},
		{0, 100, 0},
	}
	for _, tt := range tests {
		if got := SharesFor(tt.amount, tt.price); got != tt.want {
			t.Errorf("SharesFor(%d, %v) = %d, want %d", tt.amount, tt.price, got, tt.want)
		}
	}
}
