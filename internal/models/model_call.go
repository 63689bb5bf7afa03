package models

import "time"

// ModelCall is one audited chat-model or embedding request.
type ModelCall struct {
	ID           int       `json:"id"`
	RunID        string    `json:"run_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Operation    string    `json:"operation"`
	TokensUsed   int       `json:"tokens_used"`
	InputTokens  *int      `json:"input_tokens"`
	OutputTokens *int      `json:"output_tokens"`
	CostUSD      *float64  `json:"cost_usd"`
	LatencyMs    *int      `json:"latency_ms"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
	Metadata     string    `json:"metadata"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModelCallStats represents aggregated statistics
type ModelCallStats struct {
	TotalCalls      int     `json:"total_calls"`
	TotalTokens     int64   `json:"total_tokens"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	SuccessfulCalls int     `json:"successful_calls"`
	FailedCalls     int     `json:"failed_calls"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
}

// ModelCallQuery filters audit rows.
type ModelCallQuery struct {
	RunID     string
	Provider  string
	Operation string
	Status    string
	Since     *time.Time
	Limit     int
}
