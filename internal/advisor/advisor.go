// Package advisor turns a portfolio request into a validated report by
// driving the agent loop over the portfolio tools.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/extract"
	"github.com/sectorfolio/sectorfolio/internal/llm"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/reference"
	"github.com/sectorfolio/sectorfolio/internal/tools"
	"github.com/sectorfolio/sectorfolio/internal/validate"
)

// ModelProvider returns a chat client for a model name; empty selects the
// default model.
type ModelProvider interface {
	Client(model string) (agent.ModelClient, error)
}

// PriceSource returns the latest close per ticker.
type PriceSource interface {
	LatestCloses(ctx context.Context, tickers []string) (map[string]float64, error)
}

// Config holds the loop and validation policy.
type Config struct {
	MaxIterations        int
	SpecialistIterations int
	ParallelTools        int
	WeightTolerance      float64
	DefaultMode          models.AnalysisMode
}

// Result is the outcome of one analysis.
type Result struct {
	RunID       string              `json:"run_id"`
	Success     bool                `json:"success"`
	Mode        models.AnalysisMode `json:"mode"`
	Model       string              `json:"model,omitempty"`
	Iterations  int                 `json:"iterations"`
	Termination agent.State         `json:"termination"`
	Report      models.Report       `json:"report"`
	ParseFailed bool                `json:"parse_failed"`
	Drops       []validate.Drop     `json:"drops,omitempty"`
	Unknown     []string            `json:"unknown_targets,omitempty"`
	Discussion  []string            `json:"discussion_history,omitempty"`
	Stages      []Stage             `json:"stages,omitempty"`
	Usage       agent.Usage         `json:"usage"`
	Duration    time.Duration       `json:"-"`
}

// Stage summarizes one loop of a multi-mode run.
type Stage struct {
	Name        string      `json:"name"`
	Termination agent.State `json:"termination"`
	Iterations  int         `json:"iterations"`
}

type Advisor struct {
	registry  *tools.Registry
	reference *reference.Store
	models    ModelProvider
	prices    PriceSource
	cfg       Config
	observer  agent.Observer
	logger    *slog.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

func WithPrices(p PriceSource) Option { return func(a *Advisor) { a.prices = p } }

func WithObserver(o agent.Observer) Option { return func(a *Advisor) { a.observer = o } }

func New(registry *tools.Registry, ref *reference.Store, provider ModelProvider, cfg Config, logger *slog.Logger, opts ...Option) *Advisor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = agent.DefaultMaxIterations
	}
	if cfg.SpecialistIterations <= 0 {
		cfg.SpecialistIterations = 4
	}
	if cfg.WeightTolerance <= 0 {
		cfg.WeightTolerance = validate.DefaultTolerance
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = models.ModeSingle
	}
	a := &Advisor{
		registry:  registry,
		reference: ref,
		models:    provider,
		cfg:       cfg,
		logger:    logging.Component(logger, "advisor"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the pipeline. Request validation failures, including an
// unavailable model, are returned as models.ValidationError and model
// client failures as *agent.ModelClientError. Extraction and validation
// problems never fail the call; they surface in Result.
func (a *Advisor) Analyze(ctx context.Context, req models.PortfolioRequest) (*Result, error) {
	start := time.Now()
	req.Normalize()
	if req.Mode == "" {
		req.Mode = a.cfg.DefaultMode
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	snap := a.reference.Current()
	universe, unknown := snap.Universe(req.InvestmentTargets.Sectors, req.InvestmentTargets.Tickers)
	if len(universe) == 0 {
		return nil, models.ValidationError{Field: "investment_targets", Message: "no known companies match the targets"}
	}

	client, err := a.models.Client(req.Model)
	if err != nil {
		return nil, models.ValidationError{Field: "model_name", Message: err.Error()}
	}

	runID := uuid.NewString()
	ctx = llm.WithRunID(ctx, runID)
	logger := a.logger.With("run_id", runID, "mode", req.Mode)
	logger.Info("analysis started",
		"budget", req.Budget,
		"universe", len(universe),
		"unknown_targets", len(unknown),
		"risk_profile", req.RiskProfile,
	)

	res := &Result{RunID: runID, Mode: req.Mode, Model: req.Model, Unknown: unknown}

	var final agent.Outcome
	switch req.Mode {
	case models.ModeMulti:
		final, err = a.runMulti(ctx, client, req, universe, res, logger)
	default:
		final, err = a.runSingle(ctx, client, req, universe, logger)
		res.Usage = final.Usage
	}
	if err != nil {
		var mce *agent.ModelClientError
		if errors.As(err, &mce) {
			logger.Error("analysis failed", "error", err)
		}
		return nil, err
	}

	res.Iterations = final.Iterations
	res.Termination = final.State
	a.finish(ctx, res, final, req, logger)
	res.Duration = time.Since(start)

	logger.Info("analysis finished",
		"success", res.Success,
		"termination", res.Termination,
		"iterations", res.Iterations,
		"entries", len(res.Report.PortfolioAllocation),
		"drops", len(res.Drops),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (a *Advisor) runSingle(ctx context.Context, client agent.ModelClient, req models.PortfolioRequest, universe []models.Company, logger *slog.Logger) (agent.Outcome, error) {
	state := conversation.New(
		conversation.SystemPrimer(singlePrimer(req)),
		conversation.UserRequest(universeContext(universe)),
	)
	state.Put(slotUniverse, tickersOf(universe))

	loop := agent.NewLoop(a.registry, client,
		agent.WithName(string(models.ModeSingle)),
		agent.WithPolicy(agent.TerminationPolicy{
			MaxIterations: a.cfg.MaxIterations,
			Success:       hasPayload,
			Reprompt:      repromptFinal,
		}),
		agent.WithParallelTools(a.cfg.ParallelTools),
		agent.WithObserver(a.observer),
		agent.WithLogger(logger),
	)
	return loop.Run(llm.WithOperation(ctx, string(models.ModeSingle)), state)
}

// finish extracts and validates the final text into res.
func (a *Advisor) finish(ctx context.Context, res *Result, final agent.Outcome, req models.PortfolioRequest, logger *slog.Logger) {
	payload, err := extract.Extract(final.FinalText)
	if err != nil {
		reason := extract.FallbackSummary
		if final.State == agent.TerminalForced && final.FinalText == "" {
			reason = fmt.Sprintf("%s: 최대 반복 횟수(%d) 초과", extract.FallbackSummary, final.Iterations)
		}
		logger.Warn("final answer could not be parsed", "error", err, "termination", final.State)
		res.Report = extract.Fallback(reason)
		res.ParseFailed = true
		res.Success = false
		return
	}

	report := extract.DecodeReport(payload)
	v := validate.New(a.reference.Current(), a.livePrices(ctx, report, logger), validate.Options{
		Tolerance: a.cfg.WeightTolerance,
		Budget:    req.Budget,
	}, logger)
	res.Report, res.Drops = v.Validate(report)
	res.Success = final.State == agent.TerminalSuccess
}

// livePrices tolerates a failing price source; validation then keeps the
// model's prices.
func (a *Advisor) livePrices(ctx context.Context, report models.Report, logger *slog.Logger) validate.PriceLookup {
	if a.prices == nil || len(report.PortfolioAllocation) == 0 {
		return nil
	}
	tickers := make([]string, 0, len(report.PortfolioAllocation))
	for _, e := range report.PortfolioAllocation {
		tickers = append(tickers, models.NormalizeTicker(e.Ticker))
	}
	closes, err := a.prices.LatestCloses(ctx, tickers)
	if err != nil {
		logger.Warn("failed to load live prices", "error", err)
		return nil
	}
	return validate.Prices(closes)
}

func hasPayload(p agent.Proposal) bool {
	_, err := extract.Extract(p.Text)
	return err == nil
}

func tickersOf(companies []models.Company) []string {
	out := make([]string, 0, len(companies))
	for _, c := range companies {
		out = append(out, c.Ticker)
	}
	return out
}
