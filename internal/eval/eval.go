package eval

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// requiredScore ranks a satisfied required/prohibited factor above any weight.
const requiredScore = 1.0

// #region eval-harness
// EvalHarness validates and explains recommendations against session state.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Validate checks that entity is a live hypothesis whose hard constraints are
// all satisfied by the gathered factors. Confidence is reported but never
// blocks.
func (h *EvalHarness) Validate(entity knowledge.EntityID, st state.AgentState) EvalResult {
	res := EvalResult{Entity: entity, Passed: true}
	add := func(c EvalCheck) {
		res.Checks = append(res.Checks, c)
		if c.Blocking && !c.Pass {
			res.Passed = false
		}
	}

	hyp, found := st.Hypothesis(entity)
	add(EvalCheck{Name: "known_entity", Pass: found && entity.Valid(), Blocking: true, Detail: string(entity)})
	if !found {
		res.Reason = fmt.Sprintf("eval failed: %s is not a hypothesis", entity)
		return res
	}

	add(EvalCheck{Name: "not_eliminated", Pass: !hyp.Eliminated, Blocking: true})

	for _, c := range knowledge.Rule(entity).HardConstraints {
		if c.Effect == knowledge.EffectEliminate && c.Condition.Holds(st.GatheredFactors) {
			res.Violations = append(res.Violations, c.Condition)
		}
	}
	add(EvalCheck{
		Name:     "hard_constraints",
		Pass:     len(res.Violations) == 0,
		Blocking: true,
		Detail:   joinConditions(res.Violations),
	})

	add(EvalCheck{
		Name:   "confidence",
		Pass:   hyp.Confidence >= h.config.MinConfidence,
		Detail: fmt.Sprintf("%.1f%%", hyp.Confidence*100),
	})

	res.Reason = "all checks passed"
	if !res.Passed {
		var failed []string
		for _, c := range res.Checks {
			if c.Blocking && !c.Pass {
				failed = append(failed, c.Name)
			}
		}
		res.Reason = fmt.Sprintf("eval failed: %s", strings.Join(failed, ", "))
		if len(res.Violations) > 0 {
			res.Reason += " (" + joinConditions(res.Violations) + ")"
		}
	}
	return res
}

// Explain ranks the gathered factors that pulled toward entity.
func (h *EvalHarness) Explain(entity knowledge.EntityID, st state.AgentState) Explanation {
	ex := Explanation{Entity: entity}
	if hyp, ok := st.Hypothesis(entity); ok {
		ex.Confidence = hyp.Confidence
	}

	rule := knowledge.Rule(entity)
	for _, f := range st.GatheredFactors {
		c := Contribution{Factor: f.Type, Value: f.Value, Impact: f.Impact}
		switch {
		case rule.Requires(f.Type) && f.Impact > 0, rule.Prohibits(f.Type) && f.Impact <= 0:
			c.Score = requiredScore
		default:
			w, ok := rule.ScoringWeights[f.Type]
			if !ok {
				continue
			}
			c.Weight = w
			c.Score = f.Impact * w
		}
		if c.Score > 0 {
			ex.Contributions = append(ex.Contributions, c)
		}
	}
	slices.SortStableFunc(ex.Contributions, func(a, b Contribution) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if n := h.config.MaxContributors; n > 0 && len(ex.Contributions) > n {
		ex.Contributions = ex.Contributions[:n]
	}

	if len(ex.Contributions) == 0 {
		ex.Text = fmt.Sprintf("%s fits the overall profile, with no single deciding factor", entity)
		return ex
	}
	var reasons []string
	for _, c := range ex.Contributions {
		reasons = append(reasons, fmt.Sprintf("%s: %s", c.Factor, c.Value))
	}
	ex.Text = fmt.Sprintf("%s was recommended because of %s", entity, strings.Join(reasons, "; "))
	return ex
}

// #endregion eval-harness

func joinConditions(cs []knowledge.ConditionID) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return strings.Join(out, ", ")
}
