// Package mcp serves the tool registry over the Model Context Protocol
// (JSON-RPC 2.0) on HTTP and on line-delimited stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

const maxLineBytes = 4 << 20

// Request represents a JSON-RPC request. A request without an ID is a
// notification and gets no response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolDefinition is the MCP view of a registered tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the tools/call result. Tool failures are reported with
// IsError rather than as JSON-RPC errors.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ToolObserver receives one event per tools/call.
type ToolObserver interface {
	ObserveToolCall(tool, outcome string, d time.Duration)
}

type Server struct {
	registry *tools.Registry
	name     string
	version  string
	observer ToolObserver
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithObserver(o ToolObserver) Option { return func(s *Server) { s.observer = o } }

func WithServerInfo(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

func NewServer(registry *tools.Registry, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		name:     "sectorfolio",
		version:  "1.0.0",
		logger:   logging.Component(logger, "mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle dispatches one request. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, req Request) *Response {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}

	s.logger.Debug("mcp request received", "method", req.Method)

	var result any
	var rpcErr *Error
	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		}
	case "ping":
		result = map[string]any{}
	case "tools/list":
		result = map[string]any{"tools": s.definitions()}
	case "tools/call":
		result, rpcErr = s.call(ctx, req.Params)
	default:
		rpcErr = &Error{Code: codeMethodNotFound, Message: "Method not found: " + req.Method}
	}

	if len(req.ID) == 0 {
		return nil
	}
	if rpcErr != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) definitions() []ToolDefinition {
	descriptors := s.registry.DescribeAll()
	out := make([]ToolDefinition, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, ToolDefinition{Name: d.Name, Description: d.Description, InputSchema: d.Parameters})
	}
	return out
}

func (s *Server) call(ctx context.Context, raw json.RawMessage) (any, *Error) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &Error{Code: codeInvalidParams, Message: "Invalid params: " + err.Error()}
	}
	if _, ok := s.registry.Lookup(params.Name); !ok {
		return nil, &Error{Code: codeInvalidParams, Message: "Unknown tool: " + params.Name}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	start := time.Now()
	value, err := s.registry.Invoke(ctx, params.Name, params.Arguments)
	if s.observer != nil {
		s.observer.ObserveToolCall(params.Name, tools.Outcome(err), time.Since(start))
	}
	if err != nil {
		s.logger.Warn("tool call failed", "tool", params.Name, "error", err)
		return CallResult{Content: []Content{{Type: "text", Text: err.Error()}}, IsError: true}, nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return nil, &Error{Code: codeInternalError, Message: fmt.Sprintf("encode result: %v", err)}
	}
	return CallResult{Content: []Content{{Type: "text", Text: string(payload)}}}, nil
}

// ServeHTTP handles one JSON-RPC request per POST body.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, s.logger, errorResponse(nil, codeParseError, "Parse error: "+err.Error()))
		return
	}

	resp := s.Handle(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeResponse(w, s.logger, resp)
}

// ServeStdio reads one request per line from in and writes responses to
// out until in is exhausted or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp *Response
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = errorResponse(nil, codeParseError, "Parse error: "+err.Error())
		} else {
			resp = s.Handle(ctx, req)
		}
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

// MCP uses 200 even for errors.
func writeResponse(w http.ResponseWriter, logger *slog.Logger, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
