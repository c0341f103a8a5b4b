package update

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #region ingest
// Ingest is a pure function that folds newly extracted factors into the
// session: Bayesian update per factor, then hard-constraint elimination over
// the full factor set. Factors already gathered with the same type and value
// are skipped so evidence is never counted twice.
func Ingest(old state.AgentState, extracted []knowledge.BusinessFactor, config UpdateConfig, now time.Time) UpdateResult {
	fresh := Fresh(old.GatheredFactors, extracted)
	if len(fresh) == 0 {
		m := Metrics{}
		if top, ok := old.TopHypothesis(); ok {
			m.TopEntity, m.TopConfidence = top.Entity, top.Confidence
		}
		return UpdateResult{
			NewState: old.Clone(),
			Decision: Decision{Action: "no_op", Reason: "no new evidence"},
			Metrics:  m,
		}
	}

	hyps := old.CurrentHypotheses
	for _, f := range fresh {
		hyps = Update(hyps, f)
	}

	next := old.WithFactors(fresh, now)
	hyps, metrics := ApplyConstraints(hyps, next.GatheredFactors, config)
	metrics.FactorsApplied = len(fresh)
	next = next.WithHypotheses(hyps, now)

	if top, ok := next.TopHypothesis(); ok {
		metrics.TopEntity, metrics.TopConfidence = top.Entity, top.Confidence
	}

	return UpdateResult{
		NewState: next,
		Decision: Decision{
			Action: "update",
			Reason: fmt.Sprintf("applied %d factor(s), eliminated %d", len(fresh), len(metrics.Eliminated)),
		},
		Metrics: metrics,
	}
}

// Fresh filters extracted down to factors whose (type, value) pair is not
// already present in gathered.
func Fresh(gathered, extracted []knowledge.BusinessFactor) []knowledge.BusinessFactor {
	var out []knowledge.BusinessFactor
	for _, f := range extracted {
		dup := slices.ContainsFunc(gathered, func(g knowledge.BusinessFactor) bool {
			return g.Type == f.Type && g.Value == f.Value
		})
		if !dup {
			out = append(out, f)
		}
	}
	return out
}

// #endregion ingest

// #region bayesian-update
// Update applies one factor to every hypothesis and renormalizes. Eliminated
// hypotheses stay at zero. If every hypothesis ends at zero the values are
// returned without normalization.
func Update(hyps []state.Hypothesis, f knowledge.BusinessFactor) []state.Hypothesis {
	out := state.CloneHypotheses(hyps)
	label := f.Label()

	for i := range out {
		h := &out[i]
		if h.Eliminated {
			h.Confidence = 0
			continue
		}
		rule := knowledge.Rule(h.Entity)
		lb := Likelihood(rule, f)
		h.Confidence *= lb

		switch {
		case lb > 0.5:
			h.SupportingFactors = appendUnique(h.SupportingFactors, label)
		case lb < 0.5 && (rule.Requires(f.Type) || rule.Prohibits(f.Type)):
			h.ContradictingFactors = appendUnique(h.ContradictingFactors, label)
		}
	}

	normalize(out)
	return out
}

// Likelihood returns the confidence-blended likelihood of f under rule.
func Likelihood(rule knowledge.EntityRule, f knowledge.BusinessFactor) float64 {
	raw := RawLikelihood(rule, f)
	conf := clamp(f.Confidence, 0, 1)
	return 0.5 + (raw-0.5)*conf
}

// RawLikelihood evaluates the rule branches in order: required, prohibited,
// scoring weight, neutral.
func RawLikelihood(rule knowledge.EntityRule, f knowledge.BusinessFactor) float64 {
	switch {
	case rule.Requires(f.Type):
		if f.Impact > 0 {
			return 0.9
		}
		return 0.1
	case rule.Prohibits(f.Type):
		if f.Impact > 0 {
			return 0.1
		}
		return 0.9
	}
	if w, ok := rule.ScoringWeights[f.Type]; ok {
		return clamp(0.5+f.Impact*w, 0.1, 0.9)
	}
	return 0.5
}

// #endregion bayesian-update

// #region constraints
// ApplyConstraints evaluates every hard constraint against the full factor
// set. Eliminations zero the hypothesis permanently; boosts multiply once per
// (hypothesis, condition).
func ApplyConstraints(hyps []state.Hypothesis, factors []knowledge.BusinessFactor, config UpdateConfig) ([]state.Hypothesis, Metrics) {
	out := state.CloneHypotheses(hyps)
	var m Metrics
	changed := false

	for _, ec := range knowledge.AllConstraints() {
		if !ec.Condition.Holds(factors) {
			continue
		}
		for i := range out {
			h := &out[i]
			if h.Entity != ec.Entity || h.Eliminated {
				continue
			}
			switch ec.Effect {
			case knowledge.EffectEliminate:
				h.Confidence = 0
				h.Eliminated = true
				h.ContradictingFactors = appendUnique(h.ContradictingFactors, eliminationMarker(ec.Condition))
				m.Eliminated = append(m.Eliminated, h.Entity)
				changed = true
			case knowledge.EffectBoost:
				marker := boostMarker(ec.Condition)
				if slices.Contains(h.SupportingFactors, marker) {
					continue
				}
				h.Confidence *= config.BoostFactor
				h.SupportingFactors = append(h.SupportingFactors, marker)
				m.Boosted = append(m.Boosted, h.Entity)
				changed = true
			}
		}
	}

	if changed && config.RenormalizeAfterElimination {
		m.Renormalized = normalize(out)
	}
	return out, m
}

func eliminationMarker(c knowledge.ConditionID) string { return "eliminated: " + string(c) }

func boostMarker(c knowledge.ConditionID) string { return "boost: " + string(c) }

// #endregion constraints

// #region information-gain
// InformationGain estimates how much asking about factorType would help.
// While no hypothesis dominates it is the scaled variance of confidences;
// once settled it is a flat SettledGain.
func InformationGain(hyps []state.Hypothesis, factorType knowledge.FactorType, config UpdateConfig) float64 {
	if len(hyps) == 0 {
		return 0
	}
	var top, sum float64
	for _, h := range hyps {
		sum += h.Confidence
		top = math.Max(top, h.Confidence)
	}
	if top > config.SettledThreshold {
		return config.SettledGain
	}
	mean := sum / float64(len(hyps))
	var variance float64
	for _, h := range hyps {
		d := h.Confidence - mean
		variance += d * d
	}
	variance /= float64(len(hyps))
	return variance * 2
}

// #endregion information-gain

// #region helpers
// normalize rescales confidences to sum to 1. Returns false when the total is
// zero and nothing was changed.
func normalize(hyps []state.Hypothesis) bool {
	var total float64
	for _, h := range hyps {
		total += h.Confidence
	}
	if total <= 0 {
		return false
	}
	for i := range hyps {
		hyps[i].Confidence /= total
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// #endregion helpers
