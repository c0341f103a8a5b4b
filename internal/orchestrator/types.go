package orchestrator

// #region imports
import (
	"context"

	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/logging"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #endregion

// #region thought-action

// ThoughtAction is the next step the reasoner asked for.
type ThoughtAction string

const (
	ThoughtAskQuestion        ThoughtAction = "ask_question"
	ThoughtClarifyAnswer      ThoughtAction = "clarify_answer"
	ThoughtUseTool            ThoughtAction = "use_tool"
	ThoughtMakeRecommendation ThoughtAction = "make_recommendation"
	ThoughtReflect            ThoughtAction = "reflect"
)

// #endregion

// #region thought

// Thought is the decoded output of the think step.
type Thought struct {
	Reasoning  string        `json:"reasoning"`
	Action     ThoughtAction `json:"action" validate:"required,oneof=ask_question clarify_answer use_tool make_recommendation reflect"`
	Confidence float64       `json:"confidence" validate:"gte=0,lte=1"`
	Priority   float64       `json:"priority" validate:"gte=0,lte=10"`
	Fallback   bool          `json:"fallback,omitempty"` // reasoner output was unusable
}

// #endregion

// #region action

// Action is the closed set of operations the loop can execute. Variants are
// matched exhaustively in observe.
type Action interface {
	actionName() string
}

// GenerateQuestion asks the gap analyzer for the next question.
type GenerateQuestion struct {
	Clarify bool
}

// UpdateScores folds the newest user answer into the hypotheses.
type UpdateScores struct{}

// Recommend concludes the session.
type Recommend struct{}

// AnalyzeGap annotates hypotheses with the information they still miss.
type AnalyzeGap struct{}

func (GenerateQuestion) actionName() string { return "generate_question" }
func (UpdateScores) actionName() string     { return "update_scores" }
func (Recommend) actionName() string        { return "recommend" }
func (AnalyzeGap) actionName() string       { return "analyze_gap" }

// #endregion

// #region observation

// Observation is the result of executing one Action.
type Observation struct {
	Action    string `json:"action"`
	Success   bool   `json:"success"`
	Impact    string `json:"impact"`
	Question  string `json:"question,omitempty"`
	Clarify   bool   `json:"clarify,omitempty"`
	Recommend bool   `json:"recommend,omitempty"` // the loop should conclude
}

// Reflection is the progress check after each observation.
type Reflection struct {
	Assessment     string   `json:"assessment"`
	Confidence     float64  `json:"confidence"`
	ShouldContinue bool     `json:"should_continue"`
	Adjustments    []string `json:"adjustments"`
}

// #endregion

// #region recommendation

// Alternative is a runner-up entity.
type Alternative struct {
	Entity     knowledge.EntityID `json:"entity"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason"`
}

// Recommendation is the final (or tentative) answer of a session.
type Recommendation struct {
	Entity           knowledge.EntityID `json:"entity"`
	Confidence       float64            `json:"confidence"`
	Reasoning        []string           `json:"reasoning"`
	Alternatives     []Alternative      `json:"alternatives"`
	Caveats          []string           `json:"caveats,omitempty"`
	RequiresApproval bool               `json:"requires_approval,omitempty"`
	ApprovalReason   string             `json:"approval_reason,omitempty"`
	Tentative        bool               `json:"tentative,omitempty"`
}

// #endregion

// #region turn-result

// TurnResult is everything one call to ProcessTurn produced.
type TurnResult struct {
	AssistantMessage string
	State            state.AgentState
	Terminated       bool
	Recommendation   *Recommendation
	Violation        *guardrail.Violation
}

// #endregion

// #region config

// Config holds the loop policy.
type Config struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gt=0,lte=1"`
	MaxIterations       int     `mapstructure:"max_iterations" validate:"min=1"`
	HistoryWindow       int     `mapstructure:"history_window" validate:"min=1"`
	ThinkTemperature    float32 `mapstructure:"think_temperature" validate:"gte=0,lte=2"`
	MaxTokens           int     `mapstructure:"max_tokens" validate:"gte=0"`
	LowConfidence       float64 `mapstructure:"low_confidence" validate:"gte=0,lte=1"` // below this a caveat is attached
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.75,
		MaxIterations:       10,
		HistoryWindow:       5,
		ThinkTemperature:    0.3,
		MaxTokens:           300,
		LowConfidence:       0.6,
	}
}

// #endregion

// #region interfaces

// Reasoner completes prompts. Satisfied by *reasoner.Gateway.
type Reasoner interface {
	Complete(ctx context.Context, req reasoner.Request) (reasoner.Response, error)
}

// AuditRecorder receives the reasoning trail. Satisfied by *logging.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, ev logging.AuditEvent)
}

// #endregion
