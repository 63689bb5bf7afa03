package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

// Observer receives loop events for metrics.
type Observer interface {
	ObserveRound(loop string)
	ObserveTermination(loop, state string)
	ObserveToolCall(tool, outcome string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRound(string) {}

func (nopObserver) ObserveTermination(string, string) {}

func (nopObserver) ObserveToolCall(string, string, time.Duration) {}

// Outcome is the result of one loop run.
type Outcome struct {
	State        State
	Iterations   int
	FinalText    string
	Turns        []conversation.Turn
	Accumulators map[string]any
	Usage        Usage
	// Path lists the states entered, ending with the terminal one.
	Path []State
}

// Loop alternates model proposals and tool execution. A Loop is reusable;
// each Run owns the state it is given.
type Loop struct {
	name     string
	registry *tools.Registry
	model    ModelClient
	policy   TerminationPolicy
	parallel int
	logger   *slog.Logger
	observer Observer
}

// Option configures a Loop.
type Option func(*Loop)

func WithName(name string) Option { return func(l *Loop) { l.name = name } }

func WithPolicy(p TerminationPolicy) Option { return func(l *Loop) { l.policy = p } }

// WithParallelTools runs up to n read-only calls of one proposal at once.
func WithParallelTools(n int) Option { return func(l *Loop) { l.parallel = n } }

func WithLogger(logger *slog.Logger) Option { return func(l *Loop) { l.logger = logger } }

func WithObserver(o Observer) Option {
	return func(l *Loop) {
		if o != nil {
			l.observer = o
		}
	}
}

func NewLoop(registry *tools.Registry, model ModelClient, opts ...Option) *Loop {
	l := &Loop{
		name:     "single",
		registry: registry,
		model:    model,
		policy:   DefaultTermination(),
		parallel: 1,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.Component(l.logger, "agent").With("loop", l.name)
	return l
}

// Run drives the model until it stops calling tools or the iteration
// guard trips. Only model client failures and cancellation are errors.
func (l *Loop) Run(ctx context.Context, state *conversation.State) (Outcome, error) {
	descriptors := l.registry.DescribeAll()
	maxIter := l.policy.maxIterations()
	var usage Usage
	var path []State
	enter := func(s State) {
		path = append(path, s)
		l.logger.Debug("loop state", "state", s, "iteration", state.Iteration())
	}

	finish := func(s State, text string) Outcome {
		enter(s)
		l.observer.ObserveTermination(l.name, string(s))
		l.logger.Info("agent loop finished", "state", s, "iterations", state.Iteration(), "tokens", usage.Total())
		return Outcome{
			State:        s,
			Iterations:   state.Iteration(),
			FinalText:    text,
			Turns:        state.Transcript(),
			Accumulators: state.Accumulators(),
			Usage:        usage,
			Path:         path,
		}
	}

	for {
		enter(AwaitingModel)
		if state.Iteration() >= maxIter {
			l.logger.Warn("iteration limit reached", "max_iterations", maxIter)
			return finish(TerminalForced, ""), nil
		}
		if err := ctx.Err(); err != nil {
			return finish(TerminalForced, ""), fmt.Errorf("agent loop cancelled: %w", err)
		}

		prop, err := l.model.Propose(ctx, state.Transcript(), descriptors)
		if err != nil {
			l.logger.Error("model call failed", "iteration", state.Iteration(), "error", err)
			out := finish(TerminalForced, "")
			return out, &ModelClientError{Iteration: state.Iteration(), Err: err}
		}
		state.NextIteration()
		l.observer.ObserveRound(l.name)
		usage = usage.Add(prop.Usage)

		calls := assignCallIDs(prop.ToolCalls, state.Iteration())
		l.logger.Debug("model proposal", "iteration", state.Iteration(), "tool_calls", len(calls), "text_len", len(prop.Text))

		if err := state.AppendProposal(prop.Text, calls); err != nil {
			return finish(TerminalForced, ""), fmt.Errorf("record proposal: %w", err)
		}

		if len(calls) == 0 {
			if l.policy.accepts(prop) {
				return finish(TerminalSuccess, prop.Text), nil
			}
			if l.policy.Reprompt == "" {
				l.logger.Warn("final proposal rejected by success policy")
				return finish(TerminalForced, prop.Text), nil
			}
			state.AppendUser(l.policy.Reprompt)
			continue
		}

		enter(ExecutingTools)
		results := l.executeAll(ctx, calls)
		for i, call := range calls {
			if err := state.AppendToolResult(call.ID, results[i].payload, results[i].isError); err != nil {
				return finish(TerminalForced, ""), fmt.Errorf("record tool result: %w", err)
			}
		}
	}
}

type callResult struct {
	payload json.RawMessage
	isError bool
}

func (l *Loop) executeAll(ctx context.Context, calls []conversation.ToolCall) []callResult {
	results := make([]callResult, len(calls))

	if l.parallel <= 1 || len(calls) == 1 || !l.allReadOnly(calls) {
		for i, call := range calls {
			results[i] = l.execute(ctx, call)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(l.parallel)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = l.execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (l *Loop) allReadOnly(calls []conversation.ToolCall) bool {
	for _, c := range calls {
		spec, ok := l.registry.Lookup(c.ToolName)
		if ok && spec.SideEffect != tools.ReadOnly {
			return false
		}
	}
	return true
}

func (l *Loop) execute(ctx context.Context, call conversation.ToolCall) callResult {
	start := time.Now()
	value, err := l.registry.Invoke(ctx, call.ToolName, call.Arguments)
	elapsed := time.Since(start)

	outcome := tools.Outcome(err)
	l.observer.ObserveToolCall(call.ToolName, outcome, elapsed)

	if err != nil {
		l.logger.Warn("tool call failed", "tool", call.ToolName, "call_id", call.ID, "outcome", outcome, "error", err)
		return callResult{payload: errorPayload(err), isError: true}
	}

	payload, err := json.Marshal(value)
	if err != nil {
		l.logger.Warn("tool result not serializable", "tool", call.ToolName, "error", err)
		return callResult{payload: errorPayload(fmt.Errorf("encode result: %w", err)), isError: true}
	}
	l.logger.Debug("tool call completed", "tool", call.ToolName, "call_id", call.ID, "duration_ms", elapsed.Milliseconds())
	return callResult{payload: payload}
}

func errorPayload(err error) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return b
}

// assignCallIDs fills missing or repeated call ids so results pair up.
func assignCallIDs(calls []conversation.ToolCall, iteration int) []conversation.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]conversation.ToolCall, len(calls))
	seen := make(map[string]bool, len(calls))
	for i, c := range calls {
		if c.ID == "" || seen[c.ID] {
			c.ID = fmt.Sprintf("call_%d_%d", iteration, i)
		}
		if c.Arguments == nil {
			c.Arguments = map[string]any{}
		}
		seen[c.ID] = true
		out[i] = c
	}
	return out
}
