package gap

import (
	"slices"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #region types
// Gap is a critical factor the session has no evidence for yet.
type Gap struct {
	knowledge.CriticalFactor
	LiveEntities int // differentiated entities not yet eliminated
}

// Policy holds the forced-termination valve: once enough factors are known
// and enough iterations have passed, the analyzer reports Ready even with
// gaps left.
type Policy struct {
	MinFactors    int `mapstructure:"min_factors" validate:"min=0"`
	MinIterations int `mapstructure:"min_iterations" validate:"min=0"`
}

// DefaultPolicy returns the production valve.
func DefaultPolicy() Policy {
	return Policy{MinFactors: 5, MinIterations: 7}
}

// Selection is the analyzer's answer to "what next".
type Selection struct {
	Ready    bool // no further question is worth asking
	Question string
	Gap      *Gap
	Reason   string
}

// #endregion types

// #region analyzer
// Analyzer finds missing high-value information.
type Analyzer struct {
	factors []knowledge.CriticalFactor
	policy  Policy
}

// NewAnalyzer creates an analyzer over the knowledge base's critical factors.
func NewAnalyzer(policy Policy) *Analyzer {
	return &Analyzer{factors: knowledge.CriticalFactors(), policy: policy}
}

// IdentifyGaps returns critical factors whose type is absent from the
// gathered factors, most important first. Ties go to the factor that still
// separates more live entities, then to declaration order.
func (a *Analyzer) IdentifyGaps(s state.AgentState) []Gap {
	var gaps []Gap
	for _, cf := range a.factors {
		if s.HasFactor(cf.FactorType) {
			continue
		}
		gaps = append(gaps, Gap{CriticalFactor: cf, LiveEntities: liveCount(s, cf.DifferentiatedEntities)})
	}
	slices.SortStableFunc(gaps, func(x, y Gap) int {
		if x.Importance != y.Importance {
			return y.Importance - x.Importance
		}
		return y.LiveEntities - x.LiveEntities
	})
	return gaps
}

// SelectQuestion picks the next question or reports Ready.
func (a *Analyzer) SelectQuestion(s state.AgentState) Selection {
	gaps := a.IdentifyGaps(s)
	if len(gaps) == 0 {
		return Selection{Ready: true, Reason: "all critical factors gathered"}
	}
	if len(s.GatheredFactors) >= a.policy.MinFactors && s.IterationCount >= a.policy.MinIterations {
		return Selection{Ready: true, Reason: "enough evidence gathered"}
	}
	g := gaps[0]
	return Selection{Question: g.QuestionText, Gap: &g, Reason: "highest-importance gap: " + g.ID}
}

// Annotate fills each hypothesis' MissingInformation with the ids of open
// gaps that would move it.
func (a *Analyzer) Annotate(s state.AgentState) []state.Hypothesis {
	gaps := a.IdentifyGaps(s)
	out := state.CloneHypotheses(s.CurrentHypotheses)
	for i := range out {
		out[i].MissingInformation = nil
		if out[i].Eliminated {
			continue
		}
		for _, g := range gaps {
			if slices.Contains(g.DifferentiatedEntities, out[i].Entity) {
				out[i].MissingInformation = append(out[i].MissingInformation, g.ID)
			}
		}
	}
	return out
}

// #endregion analyzer

// #region helpers
func liveCount(s state.AgentState, ents []knowledge.EntityID) int {
	n := 0
	for _, e := range ents {
		if h, ok := s.Hypothesis(e); ok && !h.Eliminated {
			n++
		}
	}
	return n
}

// #endregion helpers
