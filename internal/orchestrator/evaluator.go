package orchestrator

// #region imports
import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #endregion

// #region thought-prompt

const thinkSystemPrompt = "You are a reasoning engine. Output valid JSON only."

// thoughtMessages renders the think prompt: top three hypotheses, progress
// and the recent conversation.
func thoughtMessages(st state.AgentState, cfg Config) []reasoner.Message {
	top := st.TopHypotheses(3)

	var b strings.Builder
	b.WriteString("You are a legal entity advisor agent. Analyze the current state and decide the best next action.\n\n")
	b.WriteString("CURRENT STATE:\n")
	if len(top) > 0 {
		fmt.Fprintf(&b, "- Top Hypothesis: %s (%.1f%% confidence)\n", top[0].Entity, top[0].Confidence*100)
	}
	fmt.Fprintf(&b, "- Gathered Factors: %d\n", len(st.GatheredFactors))
	fmt.Fprintf(&b, "- Iteration: %d/%d\n\n", st.IterationCount, cfg.MaxIterations)

	b.WriteString("CONVERSATION HISTORY:\n")
	b.WriteString(st.RecentHistory(cfg.HistoryWindow))
	b.WriteString("\nHYPOTHESES:\n")
	for _, h := range top {
		fmt.Fprintf(&b, "- %s: %.1f%%\n", h.Entity, h.Confidence*100)
	}

	fmt.Fprintf(&b, `
DECISION CRITERIA:
- If top confidence > %.0f%%, recommend
- If missing critical info, ask question
- If user unclear, clarify
- If iteration >= %d, recommend with caveat

OUTPUT JSON:
{
  "reasoning": "brief explanation",
  "action": "ask_question|clarify_answer|use_tool|make_recommendation|reflect",
  "confidence": 0.0-1.0,
  "priority": 0-10
}`, cfg.ConfidenceThreshold*100, cfg.MaxIterations)

	return []reasoner.Message{
		{Role: reasoner.RoleSystem, Content: thinkSystemPrompt},
		{Role: reasoner.RoleUser, Content: b.String()},
	}
}

// #endregion

// #region parse-thought

// parseThought decodes and validates reasoner output. Any failure yields
// the deterministic fallback.
func parseThought(text string, st state.AgentState, cfg Config) (Thought, error) {
	var th Thought
	if err := reasoner.Decode(text, &th); err != nil {
		return fallbackThought(st, cfg), err
	}
	th.Fallback = false
	return th, nil
}

// fallbackThought recommends once the iteration cap is reached and keeps
// asking otherwise.
func fallbackThought(st state.AgentState, cfg Config) Thought {
	th := Thought{
		Reasoning:  "Continuing investigation",
		Action:     ThoughtAskQuestion,
		Confidence: 0.5,
		Priority:   5,
		Fallback:   true,
	}
	if st.IterationCount >= cfg.MaxIterations {
		th.Action = ThoughtMakeRecommendation
	}
	return th
}

// #endregion

// #region reflect

// reflect assesses progress locally; it never calls the reasoner.
func reflect(st state.AgentState, cfg Config) Reflection {
	top, ok := st.TopHypothesis()
	if !ok {
		return Reflection{Assessment: "no hypotheses", Adjustments: []string{"Prepare final recommendation"}}
	}
	r := Reflection{
		Assessment: fmt.Sprintf("Iteration %d: Top hypothesis is %s at %.1f%%",
			st.IterationCount, top.Entity, top.Confidence*100),
		Confidence:     top.Confidence,
		ShouldContinue: top.Confidence < cfg.ConfidenceThreshold && st.IterationCount < cfg.MaxIterations,
	}
	if r.ShouldContinue {
		r.Adjustments = []string{"Continue gathering information"}
	} else {
		r.Adjustments = []string{"Prepare final recommendation"}
	}
	return r
}

// concluded reports whether the session has enough to stop asking.
func concluded(st state.AgentState, cfg Config) bool {
	if st.IterationCount >= cfg.MaxIterations {
		return true
	}
	top, ok := st.TopHypothesis()
	return ok && top.Confidence >= cfg.ConfidenceThreshold
}

// #endregion
