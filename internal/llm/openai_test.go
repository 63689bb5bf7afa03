package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

func sampleTurns() []conversation.Turn {
	return []conversation.Turn{
		conversation.SystemPrimer("you are an advisor"),
		conversation.UserRequest("build a portfolio"),
		conversation.AssistantProposal("", []conversation.ToolCall{
			{ID: "call_1", ToolName: "get_company_info", Arguments: map[string]any{"ticker": "005930.KS"}},
			{ID: "call_2", ToolName: "get_company_info", Arguments: map[string]any{"ticker": "000660.KS"}},
		}),
		conversation.ToolResult("call_1", "get_company_info", json.RawMessage(`{"name":"삼성전자"}`), false),
		conversation.ToolResult("call_2", "get_company_info", json.RawMessage(`{"error":"no rows"}`), true),
	}
}

func sampleDescriptors() []tools.Descriptor {
	return []tools.Descriptor{{
		Name:        "get_company_info",
		Description: "company info",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"ticker": map[string]any{"type": "string"}},
			"required":   []string{"ticker"},
		},
	}}
}

func TestOpenAIClientProposeToolCalls(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_9",
						"type": "function",
						"function": {"name": "get_stock_prices", "arguments": "{\"ticker\":\"005930.KS\",\"days\":60}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIOptions{APIKey: "test", BaseURL: server.URL, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewOpenAIClient returned error: %v", err)
	}

	prop, err := client.Propose(context.Background(), sampleTurns(), sampleDescriptors())
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}

	if len(prop.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(prop.ToolCalls))
	}
	call := prop.ToolCalls[0]
	if call.ID != "call_9" || call.ToolName != "get_stock_prices" || call.Arguments["ticker"] != "005930.KS" {
		t.Errorf("unexpected tool call: %+v", call)
	}
	if prop.Usage.InputTokens != 120 || prop.Usage.OutputTokens != 30 {
		t.Errorf("unexpected usage: %+v", prop.Usage)
	}

	messages, _ := captured["messages"].([]any)
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	last, _ := messages[4].(map[string]any)
	if last["role"] != "tool" || last["tool_call_id"] != "call_2" {
		t.Errorf("unexpected tool message: %+v", last)
	}
	toolsField, _ := captured["tools"].([]any)
	if len(toolsField) != 1 {
		t.Errorf("expected 1 advertised tool, got %d", len(toolsField))
	}
}

func TestOpenAIClientClassifiesStatus(t *testing.T) {
	tests := map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadRequest:          false,
	}

	for status, retryable := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
		}))

		client, err := NewOpenAIClient(OpenAIOptions{APIKey: "test", BaseURL: server.URL, Model: "gpt-4o-mini"})
		if err != nil {
			t.Fatalf("NewOpenAIClient returned error: %v", err)
		}
		_, err = client.Propose(context.Background(), sampleTurns()[:2], nil)
		server.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if IsRetryable(err) != retryable {
			t.Errorf("status %d: expected retryable=%v, got %v", status, retryable, err)
		}
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIOptions{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestOpenAIMessagesRejectsUnknownKind(t *testing.T) {
	_, err := openAIMessages([]conversation.Turn{{Kind: "bogus"}})
	if err == nil {
		t.Fatalf("expected unsupported kind error, got %v", err)
	}
}
