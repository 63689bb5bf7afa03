// Package llm adapts chat model providers to agent.ModelClient.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

const upstageBaseURL = "https://api.upstage.ai/v1"

// OpenAIClient speaks the OpenAI chat completions API with function
// calling. Upstage Solar is served through the same client with its base URL.
type OpenAIClient struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", opts.Provider)
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	if opts.Provider == "" {
		opts.Provider = ProviderOpenAI
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		provider:    opts.Provider,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}, nil
}

func (c *OpenAIClient) Provider() string { return c.provider }

func (c *OpenAIClient) Model() string { return c.model }

// Propose sends the transcript and tool descriptors and returns the first
// choice as a proposal.
func (c *OpenAIClient) Propose(ctx context.Context, turns []conversation.Turn, descriptors []tools.Descriptor) (agent.Proposal, error) {
	messages, err := openAIMessages(turns)
	if err != nil {
		return agent.Proposal{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(descriptors) > 0 {
		req.Tools = openAITools(descriptors)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return agent.Proposal{}, classifyOpenAIError(c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return agent.Proposal{}, fmt.Errorf("no response from %s", c.provider)
	}

	msg := resp.Choices[0].Message
	prop := agent.Proposal{
		Text: msg.Content,
		Usage: agent.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				// The registry reports the missing arguments back to the model.
				args = map[string]any{}
			}
		}
		prop.ToolCalls = append(prop.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			ToolName:  tc.Function.Name,
			Arguments: args,
		})
	}
	return prop, nil
}

func openAITools(descriptors []tools.Descriptor) []openai.Tool {
	out := make([]openai.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

func openAIMessages(turns []conversation.Turn) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		switch t.Kind {
		case conversation.KindSystemPrimer:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: t.Text})
		case conversation.KindUserRequest:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Text})
		case conversation.KindAssistantProposal:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Text}
			for _, tc := range t.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					return nil, fmt.Errorf("encode arguments of %s: %w", tc.ToolName, err)
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.ToolName,
						Arguments: string(args),
					},
				})
			}
			out = append(out, msg)
		case conversation.KindToolResult:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(t.Payload),
				ToolCallID: t.CallID,
				Name:       t.ToolName,
			})
		default:
			return nil, fmt.Errorf("unsupported turn kind %q", t.Kind)
		}
	}
	return out, nil
}

func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("%s api error (status %d): %w", provider, apiErr.HTTPStatusCode, err)
		if retryableStatus(apiErr.HTTPStatusCode) {
			return NewRetryableError(wrapped)
		}
		return wrapped
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrapped := fmt.Errorf("%s request error (status %d): %w", provider, reqErr.HTTPStatusCode, err)
		if retryableStatus(reqErr.HTTPStatusCode) {
			return NewRetryableError(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	return NewRetryableError(fmt.Errorf("%s api error: %w", provider, err))
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
