package guardrail

import "time"

// #region violation-type
// ViolationType enumerates session-level policy breaches.
type ViolationType string

const (
	ViolationMaxIterations       ViolationType = "max_iterations"
	ViolationMaxTokens           ViolationType = "max_tokens"
	ViolationMaxCost             ViolationType = "max_cost"
	ViolationMaxTools            ViolationType = "max_tools"
	ViolationTimeout             ViolationType = "timeout"
	ViolationLowConfidence       ViolationType = "low_confidence"
	ViolationReasonerUnavailable ViolationType = "reasoner_unavailable"
)

// Violation is the first limit a session hit.
type Violation struct {
	Type    ViolationType `json:"type"`
	Message string        `json:"message"`
}

// #endregion violation-type

// #region config
// Config holds the per-session limits.
type Config struct {
	MaxIterations                 int           `mapstructure:"max_iterations" validate:"min=1"`
	MaxTokensPerSession           int           `mapstructure:"max_tokens_per_session" validate:"min=1"`
	MaxCostPerSession             float64       `mapstructure:"max_cost_per_session" validate:"gt=0"`
	RequireHumanApprovalThreshold float64       `mapstructure:"require_human_approval_threshold" validate:"gte=0,lte=1"`
	MaxToolCallsPerIteration      int           `mapstructure:"max_tool_calls_per_iteration" validate:"min=1"`
	SessionTimeout                time.Duration `mapstructure:"session_timeout" validate:"gt=0"`
}

// DefaultConfig returns production limits. The wall-clock limit covers a
// whole human-paced conversation, not a single call.
func DefaultConfig() Config {
	return Config{
		MaxIterations:                 10,
		MaxTokensPerSession:           10000,
		MaxCostPerSession:             0.50,
		RequireHumanApprovalThreshold: 0.60,
		MaxToolCallsPerIteration:      5,
		SessionTimeout:                30 * time.Minute,
	}
}

// #endregion config

// #region metrics
// SessionMetrics are the monotone counters compared against Config.
type SessionMetrics struct {
	Iterations      int       `json:"iterations"`
	TokensUsed      int       `json:"tokens_used"`
	CostAccumulated float64   `json:"cost_accumulated"`
	ToolCallsMade   int       `json:"tool_calls_made"`
	StartTime       time.Time `json:"start_time"`
	LLMCalls        int       `json:"llm_calls"`
}

// Approval is the human-escalation verdict for a recommendation.
type Approval struct {
	Required bool   `json:"required"`
	Reason   string `json:"reason,omitempty"`
}

// #endregion metrics
