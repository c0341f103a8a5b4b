package state

import (
	"slices"
	"strings"
	"time"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
)

// #region constructor
// NewAgentState creates a session with a uniform prior over every entity.
func NewAgentState(sessionID string, now time.Time) AgentState {
	ents := knowledge.Entities()
	prior := 1.0 / float64(len(ents))
	hyps := make([]Hypothesis, len(ents))
	for i, e := range ents {
		hyps[i] = Hypothesis{Entity: e, Confidence: prior}
	}
	return AgentState{
		SessionID:           sessionID,
		ConversationHistory: []Message{},
		GatheredFactors:     []knowledge.BusinessFactor{},
		CurrentHypotheses:   hyps,
		NextAction:          NextQuestion,
		StartTime:           now,
		LastUpdateTime:      now,
	}
}

// #endregion constructor

// #region clone
// Clone returns a deep copy so callers never share backing arrays.
func (s AgentState) Clone() AgentState {
	out := s
	out.ConversationHistory = slices.Clone(s.ConversationHistory)
	out.GatheredFactors = slices.Clone(s.GatheredFactors)
	out.CurrentHypotheses = CloneHypotheses(s.CurrentHypotheses)
	return out
}

// CloneHypotheses deep-copies a hypothesis slice including evidence trails.
func CloneHypotheses(hs []Hypothesis) []Hypothesis {
	if hs == nil {
		return nil
	}
	out := make([]Hypothesis, len(hs))
	for i, h := range hs {
		out[i] = h
		out[i].SupportingFactors = slices.Clone(h.SupportingFactors)
		out[i].ContradictingFactors = slices.Clone(h.ContradictingFactors)
		out[i].MissingInformation = slices.Clone(h.MissingInformation)
	}
	return out
}

// #endregion clone

// #region transitions
// WithMessage appends a message to the history.
func (s AgentState) WithMessage(role Role, content string, now time.Time) AgentState {
	out := s.Clone()
	out.ConversationHistory = append(out.ConversationHistory, Message{Role: role, Content: content, Timestamp: now})
	out.LastUpdateTime = now
	return out
}

// WithFactors appends newly gathered factors.
func (s AgentState) WithFactors(factors []knowledge.BusinessFactor, now time.Time) AgentState {
	out := s.Clone()
	out.GatheredFactors = append(out.GatheredFactors, factors...)
	out.LastUpdateTime = now
	return out
}

// WithHypotheses replaces the belief distribution.
func (s AgentState) WithHypotheses(hs []Hypothesis, now time.Time) AgentState {
	out := s.Clone()
	out.CurrentHypotheses = CloneHypotheses(hs)
	out.LastUpdateTime = now
	return out
}

// WithNextAction records the session phase.
func (s AgentState) WithNextAction(a NextAction, now time.Time) AgentState {
	out := s.Clone()
	out.NextAction = a
	out.LastUpdateTime = now
	return out
}

// NextIteration bumps the iteration counter.
func (s AgentState) NextIteration(now time.Time) AgentState {
	out := s.Clone()
	out.IterationCount++
	out.LastUpdateTime = now
	return out
}

// MarkProcessed records that the first n history messages have been ingested.
func (s AgentState) MarkProcessed(n int) AgentState {
	out := s.Clone()
	if n > out.ProcessedMessages {
		out.ProcessedMessages = n
	}
	return out
}

// #endregion transitions

// #region queries
// Terminated reports whether the session has concluded.
func (s AgentState) Terminated() bool {
	return s.NextAction == NextComplete
}

// TopHypotheses returns up to n hypotheses ordered by confidence, highest first.
// Ties keep canonical entity order.
func (s AgentState) TopHypotheses(n int) []Hypothesis {
	sorted := CloneHypotheses(s.CurrentHypotheses)
	slices.SortStableFunc(sorted, func(a, b Hypothesis) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// TopHypothesis returns the single most likely hypothesis.
func (s AgentState) TopHypothesis() (Hypothesis, bool) {
	top := s.TopHypotheses(1)
	if len(top) == 0 {
		return Hypothesis{}, false
	}
	return top[0], true
}

// HasFactor reports whether any gathered factor has type t.
func (s AgentState) HasFactor(t knowledge.FactorType) bool {
	for _, f := range s.GatheredFactors {
		if f.Type == t {
			return true
		}
	}
	return false
}

// Hypothesis looks up the hypothesis for entity.
func (s AgentState) Hypothesis(entity knowledge.EntityID) (Hypothesis, bool) {
	for _, h := range s.CurrentHypotheses {
		if h.Entity == entity {
			return h, true
		}
	}
	return Hypothesis{}, false
}

// Exchange is the latest user answer with the assistant prompt it replied to.
type Exchange struct {
	Question string
	Answer   string
	Index    int // history length covered by the exchange
}

// PendingExchange returns the newest user message not yet ingested, paired
// with the assistant message immediately before it.
func (s AgentState) PendingExchange() (Exchange, bool) {
	for i := len(s.ConversationHistory) - 1; i >= s.ProcessedMessages && i >= 0; i-- {
		m := s.ConversationHistory[i]
		if m.Role != RoleUser {
			continue
		}
		ex := Exchange{Answer: m.Content, Index: i + 1}
		for j := i - 1; j >= 0; j-- {
			if s.ConversationHistory[j].Role == RoleAssistant {
				ex.Question = s.ConversationHistory[j].Content
				break
			}
		}
		return ex, true
	}
	return Exchange{}, false
}

// RecentHistory renders the last n messages as "role: content" lines.
func (s AgentState) RecentHistory(n int) string {
	msgs := s.ConversationHistory
	if n >= 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// #endregion queries
