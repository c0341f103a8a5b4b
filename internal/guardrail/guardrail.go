package guardrail

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/entity-advisor/internal/metrics"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #region supervisor
// Supervisor enforces session limits and the human-escalation policy.
type Supervisor struct {
	config Config
	now    func() time.Time
	logger *zap.Logger
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// NewSupervisor creates a supervisor with the given limits.
func NewSupervisor(config Config, logger *zap.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Supervisor{config: config, now: time.Now, logger: logger.With(zap.String("component", "guardrail"))}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the active limits.
func (s *Supervisor) Config() Config { return s.config }

// #endregion supervisor

// #region check
// Check evaluates limits in fixed priority order (iterations, tokens, cost,
// wall clock) and returns only the first one breached.
func (s *Supervisor) Check(st state.AgentState, m SessionMetrics) (Violation, bool) {
	if st.IterationCount >= s.config.MaxIterations {
		return Violation{
			Type:    ViolationMaxIterations,
			Message: fmt.Sprintf("maximum iterations (%d) reached", s.config.MaxIterations),
		}, true
	}
	if m.TokensUsed >= s.config.MaxTokensPerSession {
		return Violation{
			Type:    ViolationMaxTokens,
			Message: fmt.Sprintf("token limit (%d) exceeded", s.config.MaxTokensPerSession),
		}, true
	}
	if m.CostAccumulated >= s.config.MaxCostPerSession {
		return Violation{
			Type:    ViolationMaxCost,
			Message: fmt.Sprintf("cost limit ($%.2f) exceeded", s.config.MaxCostPerSession),
		}, true
	}
	start := m.StartTime
	if start.IsZero() {
		start = st.StartTime
	}
	if !start.IsZero() && s.now().Sub(start) >= s.config.SessionTimeout {
		return Violation{
			Type:    ViolationTimeout,
			Message: fmt.Sprintf("session timeout (%s) reached", s.config.SessionTimeout),
		}, true
	}
	return Violation{}, false
}

// CheckTools reports a max_tools violation once a single iteration has used
// its tool budget.
func (s *Supervisor) CheckTools(callsThisIteration int) (Violation, bool) {
	if callsThisIteration >= s.config.MaxToolCallsPerIteration {
		return Violation{
			Type:    ViolationMaxTools,
			Message: fmt.Sprintf("tool call limit (%d) per iteration reached", s.config.MaxToolCallsPerIteration),
		}, true
	}
	return Violation{}, false
}

// #endregion check

// #region approval
// RequiresHumanApproval flags recommendations a human should confirm: the
// top hypothesis is below the approval threshold or carries contradictions.
func (s *Supervisor) RequiresHumanApproval(st state.AgentState) Approval {
	top, ok := st.TopHypothesis()
	if !ok {
		return Approval{Required: true, Reason: "no hypotheses available"}
	}
	if top.Confidence < s.config.RequireHumanApprovalThreshold {
		return Approval{
			Required: true,
			Reason: fmt.Sprintf("low confidence (%.1f%% < %.0f%%)",
				top.Confidence*100, s.config.RequireHumanApprovalThreshold*100),
		}
	}
	if len(top.ContradictingFactors) > 0 {
		return Approval{
			Required: true,
			Reason:   "contradicting factors detected: " + strings.Join(top.ContradictingFactors, ", "),
		}
	}
	return Approval{}
}

// #endregion approval

// #region safe-termination
// SafeTermination renders the user-facing closing message for a violation.
// The text is deterministic for a given state and never exposes internals.
func (s *Supervisor) SafeTermination(v ViolationType, message string, st state.AgentState) string {
	metrics.GuardrailViolations.WithLabelValues(string(v)).Inc()
	s.logger.Warn("guardrail violation",
		zap.String("session_id", st.SessionID),
		zap.String("type", string(v)),
		zap.String("message", message))

	top, ok := st.TopHypothesis()
	if !ok {
		return "I can't complete the analysis right now. Please consult a legal expert to choose an entity type."
	}
	entity := top.Entity
	pct := fmt.Sprintf("%.0f%%", top.Confidence*100)

	switch v {
	case ViolationMaxIterations:
		return fmt.Sprintf("I've reached the limit of this analysis. From what we've covered, **%s** looks like the best fit (%s confidence). Please confirm with a legal expert before registering.", entity, pct)
	case ViolationMaxCost, ViolationMaxTokens:
		return fmt.Sprintf("I have to wrap up this conversation because it hit its resource limit. My preliminary recommendation is **%s**. Please get professional advice before deciding.", entity)
	case ViolationMaxTools:
		return fmt.Sprintf("I've done as much analysis as I can for this answer. Right now **%s** leads (%s confidence). Please consult a legal expert to confirm.", entity, pct)
	case ViolationTimeout:
		return fmt.Sprintf("This session has timed out. On the information so far, **%s** looks most suitable. Start a new session for a more thorough analysis.", entity)
	case ViolationLowConfidence:
		return fmt.Sprintf("I don't have enough information for a confident recommendation. The leading candidates are %s. I suggest speaking with a legal professional.", candidateList(st, 3))
	case ViolationReasonerUnavailable:
		return fmt.Sprintf("I'm having trouble completing the analysis right now. Tentatively, **%s** looks like the best fit (%s confidence), but please consult a human expert before acting on it.", entity, pct)
	}
	return "Something went wrong during the analysis. Please consult a legal expert to choose an entity type."
}

func candidateList(st state.AgentState, n int) string {
	var names []string
	for _, h := range st.TopHypotheses(n) {
		names = append(names, string(h.Entity))
	}
	return strings.Join(names, ", ")
}

// #endregion safe-termination
