package tools

// Tool names advertised to the model.
const (
	ToolCompanyInfo          = "get_company_info"
	ToolStockPrices          = "get_stock_prices"
	ToolFinancialMetrics     = "get_financial_metrics"
	ToolTechnicalSignals     = "get_technical_signals"
	ToolStocksBySector       = "get_stocks_by_sector"
	ToolCorrelation          = "calculate_correlation"
	ToolPortfolioPerformance = "calculate_portfolio_performance"
	ToolSearchNews           = "search_sector_news"
	ToolIngestAndSearchNews  = "ingest_and_search_news"
)

// Build returns a registry with the market tools and, when index is not
// nil, the news tools.
func Build(market *MarketTools, index NewsIndex) (*Registry, error) {
	r := NewRegistry()
	if err := market.Register(r); err != nil {
		return nil, err
	}
	if index != nil {
		if err := NewNewsTools(index).Register(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}
