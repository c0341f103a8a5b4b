package orchestrator

// #region imports
import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #endregion

const (
	lowConfidenceCaveat = "Low confidence - consider consulting an expert"
	tentativeCaveat     = "This is a tentative recommendation - please consult a human expert before acting on it"
	maxAlternatives     = 2
)

// #region build

// buildRecommendation picks the strongest live hypothesis and its two
// runners-up, then attaches explanation, validation and approval caveats.
func (o *Orchestrator) buildRecommendation(st state.AgentState) Recommendation {
	ranked := liveRanking(st)
	if len(ranked) == 0 {
		return Recommendation{Caveats: []string{tentativeCaveat}, RequiresApproval: true, ApprovalReason: "no hypotheses available", Tentative: true}
	}
	winner := ranked[0]

	rec := Recommendation{
		Entity:     winner.Entity,
		Confidence: winner.Confidence,
		Reasoning:  append([]string(nil), winner.SupportingFactors...),
	}
	if len(rec.Reasoning) == 0 {
		rec.Reasoning = []string{o.harness.Explain(winner.Entity, st).Text}
	}
	for _, h := range ranked[1:min(len(ranked), 1+maxAlternatives)] {
		rec.Alternatives = append(rec.Alternatives, Alternative{
			Entity:     h.Entity,
			Confidence: h.Confidence,
			Reason:     fmt.Sprintf("Score: %.1f%%", h.Confidence*100),
		})
	}

	if winner.Confidence < o.config.LowConfidence {
		rec.Caveats = append(rec.Caveats, lowConfidenceCaveat)
	}
	if res := o.harness.Validate(winner.Entity, st); !res.Passed {
		rec.Caveats = append(rec.Caveats, "Some of your answers conflict with this structure: "+res.Reason)
	}
	if a := o.supervisor.RequiresHumanApproval(st); a.Required {
		rec.RequiresApproval = true
		rec.ApprovalReason = a.Reason
		rec.Caveats = append(rec.Caveats, "Please have a professional review this before registering ("+a.Reason+")")
	}
	return rec
}

// liveRanking is TopHypotheses without eliminated entities. When every
// entity has been eliminated the full ranking is returned instead.
func liveRanking(st state.AgentState) []state.Hypothesis {
	all := st.TopHypotheses(-1)
	var live []state.Hypothesis
	for _, h := range all {
		if !h.Eliminated {
			live = append(live, h)
		}
	}
	if len(live) == 0 {
		return all
	}
	return live
}

// #endregion

// #region format

// formatRecommendation renders the user-facing recommendation message.
func formatRecommendation(rec Recommendation) string {
	var b strings.Builder
	headline := "Recommended"
	if rec.Tentative {
		headline = "Tentative recommendation"
	}
	fmt.Fprintf(&b, "**%s: %s** (%.0f%% confidence)\n\n", headline, rec.Entity, rec.Confidence*100)

	if len(rec.Reasoning) > 0 {
		b.WriteString("**Why this fits you:**\n")
		for _, r := range rec.Reasoning[:min(len(rec.Reasoning), 3)] {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	if len(rec.Alternatives) > 0 {
		b.WriteString("**Close alternatives:**\n")
		for _, alt := range rec.Alternatives {
			fmt.Fprintf(&b, "- %s: %.0f%% - %s\n", alt.Entity, alt.Confidence*100, alt.Reason)
		}
		b.WriteString("\n")
	}

	if len(rec.Caveats) > 0 {
		b.WriteString("**Note:**\n")
		for _, c := range rec.Caveats {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// #endregion
