package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

// ModelCallStore persists audit rows.
type ModelCallStore interface {
	Create(ctx context.Context, call models.ModelCall) error
}

// CallObserver receives per-call metrics.
type CallObserver interface {
	ObserveModelCall(provider, status string, d time.Duration, inputTokens, outputTokens int)
}

type ctxKey int

const (
	runIDKey ctxKey = iota
	operationKey
)

// WithRunID tags model calls made under ctx with an analysis run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithOperation tags model calls made under ctx with the pipeline step
// (single, financial, technical, news, supervisor).
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

func RunIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

func operationFrom(ctx context.Context) string {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v
	}
	return "agent_round"
}

// Recorder audits every call of the wrapped client. Rows are written in the
// background so the loop never waits on the database.
type Recorder struct {
	next     agent.ModelClient
	provider string
	model    string
	store    ModelCallStore
	observer CallObserver
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewRecorder(next agent.ModelClient, provider, model string, store ModelCallStore, observer CallObserver, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		next:     next,
		provider: provider,
		model:    model,
		store:    store,
		observer: observer,
		logger:   logger,
	}
}

func (r *Recorder) Propose(ctx context.Context, turns []conversation.Turn, descriptors []tools.Descriptor) (agent.Proposal, error) {
	start := time.Now()
	prop, err := r.next.Propose(ctx, turns, descriptors)
	latency := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	if r.observer != nil {
		r.observer.ObserveModelCall(r.provider, status, latency, prop.Usage.InputTokens, prop.Usage.OutputTokens)
	}
	r.logger.Debug("model call",
		"provider", r.provider,
		"model", r.model,
		"status", status,
		"latency_ms", latency.Milliseconds(),
		"input_tokens", prop.Usage.InputTokens,
		"output_tokens", prop.Usage.OutputTokens,
	)

	if r.store != nil {
		r.record(ctx, prop.Usage, latency, len(prop.ToolCalls), err)
	}
	return prop, err
}

// Wait blocks until pending audit writes finish.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) record(ctx context.Context, usage agent.Usage, latency time.Duration, toolCalls int, callErr error) {
	in, out := usage.InputTokens, usage.OutputTokens
	cost := EstimateCost(r.provider, r.model, in, out)
	latencyMs := int(latency.Milliseconds())

	call := models.ModelCall{
		RunID:        RunIDFrom(ctx),
		Provider:     r.provider,
		Model:        r.model,
		Operation:    operationFrom(ctx),
		TokensUsed:   in + out,
		InputTokens:  &in,
		OutputTokens: &out,
		CostUSD:      &cost,
		LatencyMs:    &latencyMs,
		Status:       "success",
	}
	if callErr != nil {
		call.Status = "error"
		msg := callErr.Error()
		call.ErrorMessage = &msg
	}
	if b, err := json.Marshal(map[string]any{"tool_calls": toolCalls}); err == nil {
		call.Metadata = string(b)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.store.Create(context.Background(), call); err != nil {
			r.logger.Error("failed to record model call", "error", err)
		}
	}()
}

// EstimateCost gives a rough USD cost from per-million-token list prices.
func EstimateCost(provider, model string, inputTokens, outputTokens int) float64 {
	inPer1M, outPer1M := pricing(provider, model)
	return float64(inputTokens)/1_000_000*inPer1M + float64(outputTokens)/1_000_000*outPer1M
}

func pricing(provider, model string) (float64, float64) {
	switch provider {
	case ProviderAnthropic:
		switch {
		case strings.Contains(model, "opus"):
			return 15.00, 75.00
		case strings.Contains(model, "haiku"):
			return 0.80, 4.00
		default:
			return 3.00, 15.00
		}
	case ProviderUpstage:
		switch model {
		case "solar-mini":
			return 0.15, 0.15
		default:
			return 0.25, 0.25
		}
	default:
		switch model {
		case "gpt-4o":
			return 2.50, 10.00
		case "gpt-4o-mini":
			return 0.15, 0.60
		case "gpt-4.1":
			return 2.00, 8.00
		case "gpt-4.1-mini":
			return 0.40, 1.60
		case "gpt-4-turbo":
			return 10.00, 30.00
		default:
			return 5.00, 15.00
		}
	}
}
