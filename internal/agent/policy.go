package agent

// State is a loop state.
type State string

const (
	AwaitingModel   State = "AWAITING_MODEL"
	ExecutingTools  State = "EXECUTING_TOOLS"
	TerminalSuccess State = "TERMINAL_SUCCESS"
	TerminalForced  State = "TERMINAL_FORCED"
)

// DefaultMaxIterations bounds the model rounds of a loop.
const DefaultMaxIterations = 20

// TerminationPolicy decides when a loop stops.
type TerminationPolicy struct {
	// MaxIterations is checked before every model call.
	MaxIterations int
	// Success must accept a proposal without tool calls for the loop to end
	// in TerminalSuccess. Nil accepts everything.
	Success func(Proposal) bool
	// Reprompt, when set, is sent as a user turn after a rejected final
	// proposal and the loop continues. Otherwise the loop ends forced.
	Reprompt string
}

func DefaultTermination() TerminationPolicy {
	return TerminationPolicy{MaxIterations: DefaultMaxIterations}
}

func (p TerminationPolicy) maxIterations() int {
	if p.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return p.MaxIterations
}

func (p TerminationPolicy) accepts(prop Proposal) bool {
	return p.Success == nil || p.Success(prop)
}
