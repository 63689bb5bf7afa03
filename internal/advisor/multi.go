package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/extract"
	"github.com/sectorfolio/sectorfolio/internal/llm"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

// Accumulator slots.
const (
	slotUniverse   = "universe"
	slotCompanies  = "company_infos"
	slotPrices     = "stock_prices"
	slotFinancials = "financial_metrics"
	slotSignals    = "technical_signals"
	slotFinancial  = "financial_analysis"
	slotTechnical  = "technical_analysis"
	slotNews       = "news_analysis"
)

const initConcurrency = 4

// SpecialistAnalysis is the document each specialist emits.
type SpecialistAnalysis struct {
	AnalysisSummary string                    `json:"analysis_summary"`
	TickerScores    map[string]map[string]any `json:"ticker_scores"`
	TopPicks        []string                  `json:"top_picks"`
	RiskWarnings    []string                  `json:"risk_warnings"`
	ParseFailed     bool                      `json:"-"`
}

var specialistTools = map[string][]string{
	slotFinancial: {tools.ToolFinancialMetrics, tools.ToolStockPrices},
	slotTechnical: {tools.ToolTechnicalSignals, tools.ToolStockPrices, tools.ToolCorrelation},
	slotNews:      {tools.ToolSearchNews, tools.ToolCompanyInfo},
}

var supervisorTools = []string{tools.ToolPortfolioPerformance, tools.ToolCorrelation}

// runMulti preloads data, fans out to the specialists, then lets the
// supervisor compose the allocation. Stage and usage details go into res.
func (a *Advisor) runMulti(ctx context.Context, client agent.ModelClient, req models.PortfolioRequest, universe []models.Company, res *Result, logger *slog.Logger) (agent.Outcome, error) {
	state := conversation.New()
	state.Put(slotUniverse, tickersOf(universe))
	a.initialize(ctx, state, universe, logger)

	var mu sync.Mutex
	record := func(name string, out agent.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		res.Stages = append(res.Stages, Stage{Name: name, Termination: out.State, Iterations: out.Iterations})
		res.Usage = res.Usage.Add(out.Usage)
	}

	kinds := []specialistKind{financialSpecialist, technicalSpecialist, newsSpecialist}
	fan := agent.FanOutPolicy{}
	for _, kind := range kinds {
		fan.Branches = append(fan.Branches, agent.Branch{
			Name: kind.slot,
			Run: func(ctx context.Context, snapshot map[string]any) (any, error) {
				return a.runSpecialist(ctx, client, kind, req, snapshot, record, logger)
			},
		})
	}
	if err := fan.Run(ctx, state); err != nil {
		return agent.Outcome{}, fmt.Errorf("specialist stage: %w", err)
	}

	analyses := make(map[string]SpecialistAnalysis, len(kinds))
	for _, kind := range kinds {
		v, _ := state.Get(kind.slot)
		analysis, _ := v.(SpecialistAnalysis)
		analyses[kind.slot] = analysis
		if analysis.AnalysisSummary != "" {
			res.Discussion = append(res.Discussion, fmt.Sprintf("[%s] %s", kind.label, analysis.AnalysisSummary))
		}
	}

	supervisor := conversation.New(
		conversation.UserRequest(supervisorPrompt(req, sectorMap(universe), analyses)),
	)
	loop := agent.NewLoop(a.subset(supervisorTools), client,
		agent.WithName("supervisor"),
		agent.WithPolicy(agent.TerminationPolicy{
			MaxIterations: a.cfg.MaxIterations,
			Success:       hasPayload,
			Reprompt:      repromptFinal,
		}),
		agent.WithParallelTools(a.cfg.ParallelTools),
		agent.WithObserver(a.observer),
		agent.WithLogger(logger),
	)
	out, err := loop.Run(llm.WithOperation(ctx, "supervisor"), supervisor)
	record("supervisor", out)
	return out, err
}

// initialize collects company info, prices, financials and signals per
// ticker through the registry. Failed lookups are left out.
func (a *Advisor) initialize(ctx context.Context, state *conversation.State, universe []models.Company, logger *slog.Logger) {
	slots := map[string]string{
		tools.ToolCompanyInfo:      slotCompanies,
		tools.ToolStockPrices:      slotPrices,
		tools.ToolFinancialMetrics: slotFinancials,
		tools.ToolTechnicalSignals: slotSignals,
	}
	collected := make(map[string]map[string]any, len(slots))
	for _, slot := range slots {
		collected[slot] = map[string]any{}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(initConcurrency)
	for _, c := range universe {
		g.Go(func() error {
			for tool, slot := range slots {
				if _, ok := a.registry.Lookup(tool); !ok {
					continue
				}
				v, err := a.registry.Invoke(gctx, tool, map[string]any{"ticker": c.Ticker})
				if err != nil {
					logger.Debug("initial lookup failed", "tool", tool, "ticker", c.Ticker, "error", err)
					continue
				}
				mu.Lock()
				collected[slot][c.Ticker] = v
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, slot := range slots {
		state.Put(slot, collected[slot])
	}
	logger.Info("initial data collected",
		"companies", len(collected[slotCompanies]),
		"prices", len(collected[slotPrices]),
		"financials", len(collected[slotFinancials]),
		"signals", len(collected[slotSignals]),
	)
}

func (a *Advisor) runSpecialist(ctx context.Context, client agent.ModelClient, kind specialistKind, req models.PortfolioRequest, snapshot map[string]any, record func(string, agent.Outcome), logger *slog.Logger) (SpecialistAnalysis, error) {
	state := conversation.New(
		conversation.UserRequest(specialistPrompt(kind, req, specialistData(kind, snapshot))),
	)
	loop := agent.NewLoop(a.subset(specialistTools[kind.slot]), client,
		agent.WithName(kind.slot),
		agent.WithPolicy(agent.TerminationPolicy{MaxIterations: a.cfg.SpecialistIterations}),
		agent.WithParallelTools(a.cfg.ParallelTools),
		agent.WithObserver(a.observer),
		agent.WithLogger(logger),
	)

	out, err := loop.Run(llm.WithOperation(ctx, kind.slot), state)
	record(kind.slot, out)
	if err != nil {
		return SpecialistAnalysis{}, err
	}
	return decodeSpecialist(kind, out.FinalText, logger), nil
}

func decodeSpecialist(kind specialistKind, text string, logger *slog.Logger) SpecialistAnalysis {
	failed := SpecialistAnalysis{
		AnalysisSummary: kind.topic + " 분석 파싱 실패",
		TickerScores:    map[string]map[string]any{},
		TopPicks:        []string{},
		RiskWarnings:    []string{},
		ParseFailed:     true,
	}

	payload, err := extract.Extract(text)
	if err != nil {
		logger.Warn("specialist answer could not be parsed", "specialist", kind.slot, "error", err)
		return failed
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return failed
	}
	var analysis SpecialistAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		logger.Warn("specialist answer has unexpected shape", "specialist", kind.slot, "error", err)
		return failed
	}
	return analysis
}

// specialistData selects the part of the initial snapshot a specialist
// works from.
func specialistData(kind specialistKind, snapshot map[string]any) map[string]any {
	companies, _ := snapshot[slotCompanies].(map[string]any)
	prices, _ := snapshot[slotPrices].(map[string]any)

	switch kind.slot {
	case slotFinancial:
		return map[string]any{
			"companies":         companies,
			"financial_metrics": snapshot[slotFinancials],
			"stock_prices":      priceHeadlines(prices),
		}
	case slotTechnical:
		return map[string]any{
			"companies":         companies,
			"technical_signals": snapshot[slotSignals],
			"stock_prices":      priceHeadlines(prices),
		}
	default:
		return map[string]any{
			"companies":    companies,
			"stock_prices": priceHeadlines(prices),
		}
	}
}

// priceHeadlines drops the raw close series from price results.
func priceHeadlines(prices map[string]any) map[string]any {
	out := make(map[string]any, len(prices))
	for ticker, v := range prices {
		m, err := toMap(v)
		if err != nil {
			continue
		}
		delete(m, "price_data")
		out[ticker] = m
	}
	return out
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func sectorMap(universe []models.Company) map[string]map[string]string {
	out := make(map[string]map[string]string, len(universe))
	for _, c := range universe {
		out[c.Ticker] = map[string]string{"name": c.Name, "sector": c.Sector()}
	}
	return out
}

// subset keeps only the named tools that are registered.
func (a *Advisor) subset(names []string) *tools.Registry {
	var present []string
	for _, n := range names {
		if _, ok := a.registry.Lookup(n); ok {
			present = append(present, n)
		}
	}
	sub, err := a.registry.Subset(present...)
	if err != nil {
		return tools.NewRegistry()
	}
	return sub
}
