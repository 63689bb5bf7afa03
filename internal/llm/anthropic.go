package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicClient speaks the Anthropic messages API with tool_use blocks.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	temperature float32
	maxTokens   int64
}

// AnthropicOptions configures an AnthropicClient.
type AnthropicOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	HTTPClient  *http.Client
}

func NewAnthropicClient(opts AnthropicOptions) (*AnthropicClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// Retries are handled by the Retrying wrapper.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(reqOpts...),
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (c *AnthropicClient) Provider() string { return ProviderAnthropic }

func (c *AnthropicClient) Model() string { return c.model }

func (c *AnthropicClient) Propose(ctx context.Context, turns []conversation.Turn, descriptors []tools.Descriptor) (agent.Proposal, error) {
	system, messages, err := anthropicMessages(turns)
	if err != nil {
		return agent.Proposal{}, err
	}

	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(float64(c.temperature)),
		System:      system,
		Messages:    messages,
	}
	if len(descriptors) > 0 {
		req.Tools = anthropicTools(descriptors)
	}

	message, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return agent.Proposal{}, classifyAnthropicError(err)
	}

	prop := agent.Proposal{
		Usage: agent.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			prop.Text += block.Text
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					args = map[string]any{}
				}
			}
			prop.ToolCalls = append(prop.ToolCalls, conversation.ToolCall{
				ID:        block.ID,
				ToolName:  block.Name,
				Arguments: args,
			})
		}
	}
	return prop, nil
}

func anthropicTools(descriptors []tools.Descriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		schema := anthropic.ToolInputSchemaParam{Properties: d.Parameters["properties"]}
		if required, ok := d.Parameters["required"].([]string); ok {
			schema.Required = required
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

// anthropicMessages maps the transcript onto alternating user/assistant
// messages. Consecutive tool results share one user message.
func anthropicMessages(turns []conversation.Turn) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			messages = append(messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, t := range turns {
		switch t.Kind {
		case conversation.KindSystemPrimer:
			system = append(system, anthropic.TextBlockParam{Text: t.Text})
		case conversation.KindUserRequest:
			flush()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		case conversation.KindAssistantProposal:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if t.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(t.Text))
			}
			for _, tc := range t.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.ToolName))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case conversation.KindToolResult:
			results = append(results, anthropic.NewToolResultBlock(t.CallID, string(t.Payload), t.IsError))
		default:
			return nil, nil, fmt.Errorf("unsupported turn kind %q", t.Kind)
		}
	}
	flush()
	return system, messages, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("anthropic api error (status %d): %w", apiErr.StatusCode, err)
		if retryableStatus(apiErr.StatusCode) {
			return NewRetryableError(wrapped)
		}
		return wrapped
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return NewRetryableError(fmt.Errorf("anthropic api error: %w", err))
}
