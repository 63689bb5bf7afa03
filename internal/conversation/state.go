package conversation

import (
	"encoding/json"
	"fmt"
	"maps"
)

// State is owned by a single loop invocation and is not safe for
// concurrent use.
type State struct {
	turns        []Turn
	iteration    int
	accumulators map[string]any

	// pending maps call id to tool name for calls not yet answered.
	pending map[string]string
	order   []string
}

// New starts a state with the given opening turns.
func New(opening ...Turn) *State {
	s := &State{
		accumulators: make(map[string]any),
		pending:      make(map[string]string),
	}
	s.turns = append(s.turns, opening...)
	return s
}

// Iteration is the number of completed model rounds.
func (s *State) Iteration() int { return s.iteration }

// NextIteration advances the round counter.
func (s *State) NextIteration() { s.iteration++ }

// AppendProposal records an assistant proposal and marks its calls pending.
func (s *State) AppendProposal(text string, calls []ToolCall) error {
	seen := make(map[string]bool, len(calls))
	for _, c := range calls {
		if c.ID == "" {
			return fmt.Errorf("tool call %q has no id", c.ToolName)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate tool call id %q in proposal", c.ID)
		}
		if _, ok := s.pending[c.ID]; ok {
			return fmt.Errorf("tool call id %q is already pending", c.ID)
		}
		seen[c.ID] = true
	}

	s.turns = append(s.turns, AssistantProposal(text, calls))
	for _, c := range calls {
		s.pending[c.ID] = c.ToolName
		s.order = append(s.order, c.ID)
	}
	return nil
}

// AppendUser adds a user turn, e.g. a reprompt after a rejected answer.
func (s *State) AppendUser(text string) {
	s.turns = append(s.turns, UserRequest(text))
}

// AppendToolResult records a result for a pending call.
func (s *State) AppendToolResult(callID string, payload json.RawMessage, isError bool) error {
	name, ok := s.pending[callID]
	if !ok {
		return fmt.Errorf("no pending tool call with id %q", callID)
	}

	s.turns = append(s.turns, ToolResult(callID, name, payload, isError))
	delete(s.pending, callID)
	return nil
}

// Unresolved lists pending calls in issue order.
func (s *State) Unresolved() []string {
	var out []string
	for _, id := range s.order {
		if _, ok := s.pending[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Put stores a value in an accumulator slot.
func (s *State) Put(slot string, v any) {
	s.accumulators[slot] = v
}

// Get reads an accumulator slot.
func (s *State) Get(slot string) (any, bool) {
	v, ok := s.accumulators[slot]
	return v, ok
}

// Accumulators returns a shallow copy of all slots.
func (s *State) Accumulators() map[string]any {
	return maps.Clone(s.accumulators)
}

// Transcript returns a copy of the turns.
func (s *State) Transcript() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len is the number of turns.
func (s *State) Len() int { return len(s.turns) }
