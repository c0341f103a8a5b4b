package state

import (
	"time"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
)

// #region message
// Role tags who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in the conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// #endregion message

// #region next-action
// NextAction is the coarse phase the session is in.
type NextAction string

const (
	NextQuestion  NextAction = "question"
	NextClarify   NextAction = "clarify"
	NextRecommend NextAction = "recommend"
	NextReflect   NextAction = "reflect"
	NextComplete  NextAction = "complete"
)

// #endregion next-action

// #region hypothesis
// Hypothesis is the current belief in one entity.
type Hypothesis struct {
	Entity               knowledge.EntityID `json:"entity"`
	Confidence           float64            `json:"confidence"`
	Eliminated           bool               `json:"eliminated,omitempty"`
	SupportingFactors    []string           `json:"supporting_factors,omitempty"`
	ContradictingFactors []string           `json:"contradicting_factors,omitempty"`
	MissingInformation   []string           `json:"missing_information,omitempty"`
}

// #endregion hypothesis

// #region agent-state
// AgentState is the aggregate root for one advisory session. Values are
// treated as immutable; transitions return a fresh copy.
type AgentState struct {
	SessionID           string                     `json:"session_id"`
	ConversationHistory []Message                  `json:"conversation_history"`
	GatheredFactors     []knowledge.BusinessFactor `json:"gathered_factors"`
	CurrentHypotheses   []Hypothesis               `json:"current_hypotheses"`
	NextAction          NextAction                 `json:"next_action"`
	IterationCount      int                        `json:"iteration_count"`
	ProcessedMessages   int                        `json:"processed_messages"` // history prefix already ingested
	StartTime           time.Time                  `json:"start_time"`
	LastUpdateTime      time.Time                  `json:"last_update_time"`
}

// #endregion agent-state

// #region session-summary
// SessionSummary is the listing view of a stored session.
type SessionSummary struct {
	SessionID      string
	NextAction     NextAction
	IterationCount int
	TopEntity      knowledge.EntityID
	TopConfidence  float64
	UpdatedAt      time.Time
}

// Summarize builds the listing view for s.
func Summarize(s AgentState) SessionSummary {
	sum := SessionSummary{
		SessionID:      s.SessionID,
		NextAction:     s.NextAction,
		IterationCount: s.IterationCount,
		UpdatedAt:      s.LastUpdateTime,
	}
	if top, ok := s.TopHypothesis(); ok {
		sum.TopEntity = top.Entity
		sum.TopConfidence = top.Confidence
	}
	return sum
}

// #endregion session-summary
