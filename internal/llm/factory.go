package llm

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/config"
	"github.com/sectorfolio/sectorfolio/internal/logging"
)

const (
	ProviderOpenAI    = "openai"
	ProviderUpstage   = "upstage"
	ProviderAnthropic = "anthropic"
)

// ModelInfo is one selectable chat model.
type ModelInfo struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Label    string `json:"label"`
}

// Catalog lists the models offered to API clients.
var Catalog = []ModelInfo{
	{Name: "gpt-4o-mini", Provider: ProviderOpenAI, Label: "GPT-4o mini"},
	{Name: "gpt-4o", Provider: ProviderOpenAI, Label: "GPT-4o"},
	{Name: "gpt-4.1-mini", Provider: ProviderOpenAI, Label: "GPT-4.1 mini"},
	{Name: "solar-pro", Provider: ProviderUpstage, Label: "Upstage Solar Pro"},
	{Name: "solar-mini", Provider: ProviderUpstage, Label: "Upstage Solar Mini"},
	{Name: "claude-sonnet-4-20250514", Provider: ProviderAnthropic, Label: "Claude Sonnet 4"},
}

// ProviderFor infers the provider of a model name.
func ProviderFor(model string) string {
	for _, m := range Catalog {
		if m.Name == model {
			return m.Provider
		}
	}
	switch {
	case strings.HasPrefix(model, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(model, "solar"):
		return ProviderUpstage
	default:
		return ProviderOpenAI
	}
}

// Factory builds decorated model clients from configuration.
type Factory struct {
	cfg      config.LLMConfig
	store    ModelCallStore
	observer CallObserver
	logger   *slog.Logger
	limiter  *rate.Limiter
	http     *http.Client
}

func NewFactory(cfg config.LLMConfig, store ModelCallStore, observer CallObserver, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:      cfg,
		store:    store,
		observer: observer,
		logger:   logging.Component(logger, "llm"),
		http:     &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f
}

// DefaultModel is the configured model name.
func (f *Factory) DefaultModel() string { return f.cfg.Model }

// Client returns a client for model, or the configured default when model
// is empty. The chain is rate limit, retry, audit, provider.
func (f *Factory) Client(model string) (agent.ModelClient, error) {
	provider := f.cfg.Provider
	if model == "" {
		model = f.cfg.Model
	} else if model != f.cfg.Model {
		provider = ProviderFor(model)
	}

	base, err := f.provider(provider, model)
	if err != nil {
		return nil, err
	}

	var client agent.ModelClient = NewRecorder(base, provider, model, f.store, f.observer, f.logger)
	if f.cfg.MaxRetries > 0 {
		policy := DefaultRetryPolicy()
		policy.MaxRetries = f.cfg.MaxRetries
		client = NewRetrying(client, policy, f.logger.With("model", model))
	}
	if f.limiter != nil {
		client = NewRateLimitedWith(client, f.limiter)
	}
	return client, nil
}

func (f *Factory) provider(provider, model string) (agent.ModelClient, error) {
	// LLM_BASE_URL targets the configured provider only.
	var baseURL string
	if provider == f.cfg.Provider {
		baseURL = f.cfg.BaseURL
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(OpenAIOptions{
			Provider:    ProviderOpenAI,
			APIKey:      f.cfg.OpenAIAPIKey,
			BaseURL:     baseURL,
			Model:       model,
			Temperature: f.cfg.Temperature,
			MaxTokens:   f.cfg.MaxTokens,
			HTTPClient:  f.http,
		})
	case ProviderUpstage:
		if baseURL == "" {
			baseURL = upstageBaseURL
		}
		return NewOpenAIClient(OpenAIOptions{
			Provider:    ProviderUpstage,
			APIKey:      f.cfg.UpstageAPIKey,
			BaseURL:     baseURL,
			Model:       model,
			Temperature: f.cfg.Temperature,
			MaxTokens:   f.cfg.MaxTokens,
			HTTPClient:  f.http,
		})
	case ProviderAnthropic:
		return NewAnthropicClient(AnthropicOptions{
			APIKey:      f.cfg.AnthropicAPIKey,
			BaseURL:     baseURL,
			Model:       model,
			Temperature: f.cfg.Temperature,
			MaxTokens:   f.cfg.MaxTokens,
			HTTPClient:  f.http,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
