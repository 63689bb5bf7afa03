// Package conversation holds the turn log of one agent loop invocation.
package conversation

import "encoding/json"

// Kind tags a Turn variant.
type Kind string

const (
	KindSystemPrimer      Kind = "system_primer"
	KindUserRequest       Kind = "user_request"
	KindAssistantProposal Kind = "assistant_proposal"
	KindToolResult        Kind = "tool_result"
)

// ToolCall is one tool invocation requested by the model. ID is unique
// within its proposal.
type ToolCall struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// Turn is a tagged variant; only the fields of its Kind are meaningful.
type Turn struct {
	Kind      Kind       `json:"kind"`
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	CallID   string          `json:"call_id,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	IsError  bool            `json:"is_error,omitempty"`
}

func SystemPrimer(text string) Turn {
	return Turn{Kind: KindSystemPrimer, Text: text}
}

func UserRequest(text string) Turn {
	return Turn{Kind: KindUserRequest, Text: text}
}

func AssistantProposal(text string, calls []ToolCall) Turn {
	return Turn{Kind: KindAssistantProposal, Text: text, ToolCalls: calls}
}

// ToolResult pairs a payload with the call that produced it.
func ToolResult(callID, toolName string, payload json.RawMessage, isError bool) Turn {
	return Turn{Kind: KindToolResult, CallID: callID, ToolName: toolName, Payload: payload, IsError: isError}
}
