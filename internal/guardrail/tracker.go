package guardrail

import (
	"sync"

	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// UsageSource reports accumulated reasoner usage per session.
type UsageSource interface {
	Usage(sessionID string) reasoner.Usage
}

// Tracker assembles SessionMetrics. Tokens and cost come from the ledger;
// tool calls are counted here. Safe for concurrent use across sessions.
type Tracker struct {
	usage UsageSource

	mu        sync.Mutex
	toolCalls map[string]int
}

func NewTracker(usage UsageSource) *Tracker {
	return &Tracker{usage: usage, toolCalls: make(map[string]int)}
}

// RecordToolCall counts one executed action for the session.
func (t *Tracker) RecordToolCall(sessionID string) {
	t.mu.Lock()
	t.toolCalls[sessionID]++
	t.mu.Unlock()
}

// Snapshot returns the current metrics for st's session.
func (t *Tracker) Snapshot(st state.AgentState) SessionMetrics {
	t.mu.Lock()
	calls := t.toolCalls[st.SessionID]
	t.mu.Unlock()

	m := SessionMetrics{
		Iterations:    st.IterationCount,
		ToolCallsMade: calls,
		StartTime:     st.StartTime,
	}
	if t.usage != nil {
		u := t.usage.Usage(st.SessionID)
		m.TokensUsed = u.TotalTokens
		m.CostAccumulated = u.Cost
		m.LLMCalls = u.RequestCount
	}
	return m
}

// Forget drops the session's counters.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	delete(t.toolCalls, sessionID)
	t.mu.Unlock()
}
