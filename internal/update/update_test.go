package update

import (
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

func sum(hs []state.Hypothesis) float64 {
	var s float64
	for _, h := range hs {
		s += h.Confidence
	}
	return s
}

func find(t *testing.T, hs []state.Hypothesis, e knowledge.EntityID) state.Hypothesis {
	t.Helper()
	for _, h := range hs {
		if h.Entity == e {
			return h
		}
	}
	t.Fatalf("entity %s missing", e)
	return state.Hypothesis{}
}

func uniform() []state.Hypothesis {
	return state.NewAgentState("t", time.Now()).CurrentHypotheses
}

func TestRawLikelihoodBranches(t *testing.T) {
	solo := knowledge.BusinessFactor{Type: knowledge.FactorFounders, Value: knowledge.ValueSolo, Impact: 0.8, Confidence: 1}
	multi := knowledge.BusinessFactor{Type: knowledge.FactorFounders, Value: knowledge.ValueMultiple, Impact: -0.8, Confidence: 1}

	tests := []struct {
		name   string
		entity knowledge.EntityID
		f      knowledge.BusinessFactor
		want   float64
	}{
		{"required positive", knowledge.EntitySoleProp, solo, 0.9},
		{"required negative", knowledge.EntitySoleProp, multi, 0.1},
		{"prohibited positive", knowledge.EntityPartnership, solo, 0.1},
		{"prohibited negative", knowledge.EntityPartnership, multi, 0.9},
		{"weighted clamp low", knowledge.EntityLLP, solo, 0.1},
		{"weighted", knowledge.EntityPrivateLimited, solo, 0.5 - 0.8*0.2},
		{"neutral", knowledge.EntityTrust, solo, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RawLikelihood(knowledge.Rule(tt.entity), tt.f)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("RawLikelihood = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestLikelihoodBlendsConfidence(t *testing.T) {
	f := knowledge.BusinessFactor{Type: knowledge.FactorFounders, Value: knowledge.ValueSolo, Impact: 0.8, Confidence: 0.5}
	got := Likelihood(knowledge.Rule(knowledge.EntitySoleProp), f)
	if math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("expected 0.7, got %f", got)
	}
	f.Confidence = 0
	if got := Likelihood(knowledge.Rule(knowledge.EntitySoleProp), f); got != 0.5 {
		t.Fatalf("zero confidence must be neutral, got %f", got)
	}
}

func TestUpdateNormalizesAndRecordsTrail(t *testing.T) {
	f := knowledge.BusinessFactor{Type: knowledge.FactorNRI, Value: knowledge.ValueYes, Impact: 1, Confidence: 0.9}
	hs := Update(uniform(), f)

	if math.Abs(sum(hs)-1) > 1e-9 {
		t.Fatalf("expected normalized, got sum %f", sum(hs))
	}
	sole := find(t, hs, knowledge.EntitySoleProp)
	if sole.Confidence >= 1.0/9 {
		t.Fatalf("prohibited factor should lower sole prop, got %f", sole.Confidence)
	}
	if len(sole.ContradictingFactors) != 1 || sole.ContradictingFactors[0] != "nri: yes" {
		t.Fatalf("expected contradiction trail, got %v", sole.ContradictingFactors)
	}
	opc := find(t, hs, knowledge.EntityOPC)
	if len(opc.SupportingFactors) != 1 {
		t.Fatalf("expected supporting trail on OPC, got %v", opc.SupportingFactors)
	}
}

func TestUpdateDoesNotMutateInput(t *testing.T) {
	in := uniform()
	_ = Update(in, knowledge.BusinessFactor{Type: knowledge.FactorFounders, Value: knowledge.ValueSolo, Impact: 0.8, Confidence: 0.9})
	for _, h := range in {
		if h.Confidence != 1.0/9 || len(h.SupportingFactors) != 0 {
			t.Fatalf("input mutated: %+v", h)
		}
	}
}

func TestUpdateAllZeroSkipsNormalization(t *testing.T) {
	hs := uniform()
	for i := range hs {
		hs[i].Confidence = 0
		hs[i].Eliminated = true
	}
	out := Update(hs, knowledge.BusinessFactor{Type: knowledge.FactorRisk, Value: "protect", Impact: 0.8, Confidence: 0.9})
	for _, h := range out {
		if h.Confidence != 0 || math.IsNaN(h.Confidence) {
			t.Fatalf("expected all zero, got %f", h.Confidence)
		}
	}
}

func TestSoloFounderScenario(t *testing.T) {
	st := state.NewAgentState("scenario-a", time.Now())
	factors := []knowledge.BusinessFactor{
		{Type: knowledge.FactorPurpose, Value: knowledge.ValueProfit, Impact: 0.6, Confidence: 0.7},
		{Type: knowledge.FactorFounders, Value: knowledge.ValueSolo, Impact: 0.8, Confidence: 0.9},
	}
	res := Ingest(st, factors, DefaultUpdateConfig(), time.Now())

	hs := res.NewState.CurrentHypotheses
	part := find(t, hs, knowledge.EntityPartnership)
	if part.Confidence != 0 || !part.Eliminated {
		t.Fatalf("partnership should be eliminated, got %+v", part)
	}
	for _, e := range []knowledge.EntityID{knowledge.EntitySoleProp, knowledge.EntityOPC} {
		if h := find(t, hs, e); h.Confidence <= 1.0/9 {
			t.Fatalf("%s should rise above prior, got %f", e, h.Confidence)
		}
	}
	if math.Abs(sum(hs)-1) > 1e-9 {
		t.Fatalf("expected normalized, got %f", sum(hs))
	}
	if res.Decision.Action != "update" || res.Metrics.FactorsApplied != 2 {
		t.Fatalf("unexpected result: %+v", res.Decision)
	}
	if len(res.NewState.GatheredFactors) != 2 {
		t.Fatalf("expected factors appended, got %d", len(res.NewState.GatheredFactors))
	}
}

func TestIngestSkipsRepeatedEvidence(t *testing.T) {
	f := knowledge.BusinessFactor{Type: knowledge.FactorInvestment, Value: knowledge.ValueVC, Impact: 0.9, Confidence: 0.9}
	first := Ingest(state.NewAgentState("dup", time.Now()), []knowledge.BusinessFactor{f}, DefaultUpdateConfig(), time.Now())
	second := Ingest(first.NewState, []knowledge.BusinessFactor{f}, DefaultUpdateConfig(), time.Now())

	if second.Decision.Action != "no_op" {
		t.Fatalf("expected no_op, got %s", second.Decision.Action)
	}
	for i, h := range second.NewState.CurrentHypotheses {
		if h.Confidence != first.NewState.CurrentHypotheses[i].Confidence {
			t.Fatal("repeated evidence changed beliefs")
		}
	}
}

func TestBoostAppliedOnce(t *testing.T) {
	foreign := knowledge.BusinessFactor{Type: knowledge.FactorInvestment, Value: knowledge.ValueForeign, Impact: 1, Confidence: 0.9}
	factors := []knowledge.BusinessFactor{foreign}
	hs, m1 := ApplyConstraints(uniform(), factors, DefaultUpdateConfig())
	if len(m1.Boosted) != 1 || m1.Boosted[0] != knowledge.EntityPrivateLimited {
		t.Fatalf("expected private limited boost, got %v", m1.Boosted)
	}
	again, m2 := ApplyConstraints(hs, factors, DefaultUpdateConfig())
	if len(m2.Boosted) != 0 {
		t.Fatalf("boost applied twice: %v", m2.Boosted)
	}
	if find(t, again, knowledge.EntityPrivateLimited).Confidence != find(t, hs, knowledge.EntityPrivateLimited).Confidence {
		t.Fatal("second pass changed boosted confidence")
	}
}

func TestEliminationWithoutRenormalization(t *testing.T) {
	cfg := DefaultUpdateConfig()
	cfg.RenormalizeAfterElimination = false
	factors := []knowledge.BusinessFactor{{Type: knowledge.FactorNRI, Value: knowledge.ValueYes, Impact: 1, Confidence: 0.9}}
	hs, m := ApplyConstraints(uniform(), factors, cfg)
	if m.Renormalized {
		t.Fatal("should not renormalize")
	}
	if s := sum(hs); s >= 1 {
		t.Fatalf("expected mass below 1 after elimination, got %f", s)
	}
}

func TestInformationGain(t *testing.T) {
	cfg := DefaultUpdateConfig()
	if g := InformationGain(uniform(), knowledge.FactorNRI, cfg); g > 1e-12 {
		t.Fatalf("uniform prior has zero variance, got %f", g)
	}
	hs := uniform()
	for i := range hs {
		hs[i].Confidence = 0.01
	}
	hs[0].Confidence = 0.92
	if g := InformationGain(hs, knowledge.FactorNRI, cfg); g != cfg.SettledGain {
		t.Fatalf("settled distribution should return flat gain, got %f", g)
	}
	if g := InformationGain(nil, knowledge.FactorNRI, cfg); g != 0 {
		t.Fatalf("empty set gain should be 0, got %f", g)
	}
}

// #region properties

var factorGen = rapid.Custom(func(t *rapid.T) knowledge.BusinessFactor {
	types := []knowledge.FactorType{
		knowledge.FactorFounders, knowledge.FactorInvestment, knowledge.FactorRevenue, knowledge.FactorRisk,
		knowledge.FactorNRI, knowledge.FactorExpansion, knowledge.FactorDirectors, knowledge.FactorPurpose, knowledge.FactorOther,
	}
	values := []string{
		knowledge.ValueSolo, knowledge.ValueMultiple, knowledge.ValueYes, knowledge.ValueNo, knowledge.ValueForeign,
		knowledge.ValueVC, knowledge.ValueBootstrap, knowledge.ValueProfit, knowledge.ValueCharity,
	}
	return knowledge.BusinessFactor{
		Type:       rapid.SampledFrom(types).Draw(t, "type"),
		Value:      rapid.SampledFrom(values).Draw(t, "value"),
		Impact:     rapid.Float64Range(-1, 1).Draw(t, "impact"),
		Confidence: rapid.Float64Range(0, 1).Draw(t, "confidence"),
	}
})

func TestPropertyNormalizationInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		factors := rapid.SliceOfN(factorGen, 1, 10).Draw(rt, "factors")
		st := state.NewAgentState("p", time.Now())
		res := Ingest(st, factors, DefaultUpdateConfig(), time.Now())
		hs := res.NewState.CurrentHypotheses
		s := sum(hs)
		if s != 0 && math.Abs(s-1) > 1e-6 {
			rt.Fatalf("sum = %f", s)
		}
		for _, h := range hs {
			if h.Confidence < 0 || math.IsNaN(h.Confidence) {
				rt.Fatalf("invalid confidence %f", h.Confidence)
			}
		}
	})
}

func TestPropertyEliminationIsSticky(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		st := state.NewAgentState("p", time.Now())
		eliminated := map[knowledge.EntityID]bool{}
		rounds := rapid.IntRange(1, 8).Draw(rt, "rounds")
		for i := 0; i < rounds; i++ {
			batch := rapid.SliceOfN(factorGen, 1, 3).Draw(rt, "batch")
			st = Ingest(st, batch, DefaultUpdateConfig(), time.Now()).NewState
			for _, h := range st.CurrentHypotheses {
				if eliminated[h.Entity] && (h.Confidence != 0 || !h.Eliminated) {
					rt.Fatalf("%s resurrected with %f", h.Entity, h.Confidence)
				}
				if h.Eliminated {
					if h.Confidence != 0 {
						rt.Fatalf("%s eliminated but holds %f", h.Entity, h.Confidence)
					}
					eliminated[h.Entity] = true
				}
			}
		}
	})
}

// #endregion properties
