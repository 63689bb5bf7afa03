package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/config"
	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/models"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

type memoryCallStore struct {
	mu    sync.Mutex
	calls []models.ModelCall
}

func (s *memoryCallStore) Create(ctx context.Context, call models.ModelCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return nil
}

type countingCallObserver struct {
	statuses []string
}

func (o *countingCallObserver) ObserveModelCall(provider, status string, d time.Duration, in, out int) {
	o.statuses = append(o.statuses, status)
}

func TestRecorderWritesAuditRows(t *testing.T) {
	store := &memoryCallStore{}
	observer := &countingCallObserver{}
	fail := false
	next := agent.ModelClientFunc(func(ctx context.Context, turns []conversation.Turn, d []tools.Descriptor) (agent.Proposal, error) {
		if fail {
			return agent.Proposal{}, errors.New("boom")
		}
		return agent.Proposal{Text: "ok", Usage: agent.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}}, nil
	})

	rec := NewRecorder(next, ProviderOpenAI, "gpt-4o-mini", store, observer, logging.Discard())
	ctx := WithOperation(WithRunID(context.Background(), "run-1"), "supervisor")

	if _, err := rec.Propose(ctx, nil, nil); err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}
	fail = true
	if _, err := rec.Propose(ctx, nil, nil); err == nil {
		t.Fatal("expected error from failing client")
	}
	rec.Wait()

	if len(store.calls) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(store.calls))
	}
	var ok, failed *models.ModelCall
	for i := range store.calls {
		if store.calls[i].Status == "success" {
			ok = &store.calls[i]
		} else {
			failed = &store.calls[i]
		}
	}
	if ok == nil || failed == nil {
		t.Fatalf("expected one success and one error row: %+v", store.calls)
	}
	if ok.RunID != "run-1" || ok.Operation != "supervisor" || ok.TokensUsed != 2_000_000 {
		t.Errorf("unexpected success row: %+v", ok)
	}
	if ok.CostUSD == nil || *ok.CostUSD < 0.749 || *ok.CostUSD > 0.751 {
		t.Errorf("expected cost 0.75, got %v", ok.CostUSD)
	}
	if failed.ErrorMessage == nil || *failed.ErrorMessage != "boom" {
		t.Errorf("unexpected error row: %+v", failed)
	}
	if len(observer.statuses) != 2 || observer.statuses[1] != "error" {
		t.Errorf("unexpected observed statuses: %v", observer.statuses)
	}
}

func TestProviderFor(t *testing.T) {
	tests := map[string]string{
		"gpt-4o":                   ProviderOpenAI,
		"solar-pro":                ProviderUpstage,
		"solar-pro2":               ProviderUpstage,
		"claude-3-5-haiku-latest":  ProviderAnthropic,
		"claude-sonnet-4-20250514": ProviderAnthropic,
		"o3-mini":                  ProviderOpenAI,
	}
	for model, want := range tests {
		if got := ProviderFor(model); got != want {
			t.Errorf("ProviderFor(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestFactoryClient(t *testing.T) {
	cfg := config.LLMConfig{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		OpenAIAPIKey:      "key",
		Timeout:           time.Second,
		MaxRetries:        1,
		RequestsPerSecond: 5,
	}
	f := NewFactory(cfg, nil, nil, logging.Discard())

	if _, err := f.Client(""); err != nil {
		t.Fatalf("default client: %v", err)
	}
	if _, err := f.Client("claude-sonnet-4-20250514"); err == nil {
		t.Fatal("expected error for anthropic without key")
	}
	if f.DefaultModel() != "gpt-4o-mini" {
		t.Errorf("unexpected default model %q", f.DefaultModel())
	}
}
