// Package agent drives a tool-using chat model until it produces a final
// answer or runs out of rounds.
package agent

import (
	"context"
	"fmt"

	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

// Usage is the token accounting of one or more model calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Proposal is one model turn: text, requested tool calls, or both.
type Proposal struct {
	Text      string
	ToolCalls []conversation.ToolCall
	Usage     Usage
}

// ModelClient is a chat model that can request tool calls.
type ModelClient interface {
	Propose(ctx context.Context, turns []conversation.Turn, descriptors []tools.Descriptor) (Proposal, error)
}

// ModelClientFunc adapts a function to ModelClient.
type ModelClientFunc func(ctx context.Context, turns []conversation.Turn, descriptors []tools.Descriptor) (Proposal, error)

func (f ModelClientFunc) Propose(ctx context.Context, turns []conversation.Turn, descriptors []tools.Descriptor) (Proposal, error) {
	return f(ctx, turns, descriptors)
}

// ModelClientError is a fatal failure of the model client. The loop does
// not retry it.
type ModelClientError struct {
	Iteration int
	Err       error
}

func (e *ModelClientError) Error() string {
	return fmt.Sprintf("model client failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *ModelClientError) Unwrap() error { return e.Err }
