package gap

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

func withFactors(types ...knowledge.FactorType) state.AgentState {
	now := time.Now()
	st := state.NewAgentState("g", now)
	var fs []knowledge.BusinessFactor
	for _, t := range types {
		fs = append(fs, knowledge.BusinessFactor{Type: t, Value: "x", Impact: 0.5, Confidence: 0.9})
	}
	return st.WithFactors(fs, now)
}

func TestIdentifyGapsOrderedByImportance(t *testing.T) {
	a := NewAnalyzer(DefaultPolicy())
	gaps := a.IdentifyGaps(withFactors())
	if len(gaps) != len(knowledge.CriticalFactors()) {
		t.Fatalf("expected every critical factor, got %d", len(gaps))
	}
	if gaps[0].ID != "business_type" {
		t.Fatalf("expected business_type first, got %s", gaps[0].ID)
	}
	for i := 1; i < len(gaps); i++ {
		if gaps[i].Importance > gaps[i-1].Importance {
			t.Fatalf("gap %s (%d) above %s (%d)", gaps[i].ID, gaps[i].Importance, gaps[i-1].ID, gaps[i-1].Importance)
		}
	}
}

func TestIdentifyGapsSkipsGathered(t *testing.T) {
	a := NewAnalyzer(DefaultPolicy())
	gaps := a.IdentifyGaps(withFactors(knowledge.FactorPurpose, knowledge.FactorFounders))
	for _, g := range gaps {
		if g.FactorType == knowledge.FactorPurpose || g.FactorType == knowledge.FactorFounders {
			t.Fatalf("gathered factor %s still reported", g.ID)
		}
	}
	if gaps[0].ID != "nri_status" {
		t.Fatalf("expected nri_status next, got %s", gaps[0].ID)
	}
}

func TestGapsCountLiveEntities(t *testing.T) {
	a := NewAnalyzer(DefaultPolicy())
	st := withFactors(knowledge.FactorPurpose, knowledge.FactorFounders, knowledge.FactorNRI, knowledge.FactorInvestment)
	hs := state.CloneHypotheses(st.CurrentHypotheses)
	for i := range hs {
		if hs[i].Entity == knowledge.EntityLLP || hs[i].Entity == knowledge.EntityPrivateLimited {
			hs[i].Confidence, hs[i].Eliminated = 0, true
		}
	}
	st = st.WithHypotheses(hs, time.Now())
	gaps := a.IdentifyGaps(st)
	if gaps[0].ID != "liability_protection" {
		t.Fatalf("expected liability_protection (OPC still live), got %s", gaps[0].ID)
	}
	if gaps[1].ID != "expansion_plans" || gaps[1].LiveEntities != 0 {
		t.Fatalf("expected expansion_plans with no live entities, got %s/%d", gaps[1].ID, gaps[1].LiveEntities)
	}
}

func TestSelectQuestion(t *testing.T) {
	a := NewAnalyzer(DefaultPolicy())

	sel := a.SelectQuestion(withFactors())
	if sel.Ready || sel.Question == "" || sel.Gap == nil {
		t.Fatalf("expected a question, got %+v", sel)
	}

	all := []knowledge.FactorType{}
	for _, cf := range knowledge.CriticalFactors() {
		all = append(all, cf.FactorType)
	}
	if sel := a.SelectQuestion(withFactors(all...)); !sel.Ready {
		t.Fatalf("expected ready when no gaps, got %+v", sel)
	}
}

func TestSelectQuestionValve(t *testing.T) {
	a := NewAnalyzer(DefaultPolicy())
	st := withFactors(knowledge.FactorPurpose, knowledge.FactorFounders, knowledge.FactorNRI, knowledge.FactorInvestment, knowledge.FactorRisk)

	for i := 0; i < 6; i++ {
		st = st.NextIteration(time.Now())
	}
	if sel := a.SelectQuestion(st); sel.Ready {
		t.Fatal("valve must not open before 7 iterations")
	}
	st = st.NextIteration(time.Now())
	if sel := a.SelectQuestion(st); !sel.Ready {
		t.Fatal("valve should open at 5 factors and 7 iterations")
	}

	tight := NewAnalyzer(Policy{MinFactors: 1, MinIterations: 0})
	if sel := tight.SelectQuestion(withFactors(knowledge.FactorPurpose)); !sel.Ready {
		t.Fatal("custom policy should open valve immediately")
	}
}

func TestAnnotate(t *testing.T) {
	a := NewAnalyzer(DefaultPolicy())
	hs := a.Annotate(withFactors(knowledge.FactorPurpose))
	for _, h := range hs {
		if h.Entity == knowledge.EntityOPC {
			if len(h.MissingInformation) == 0 {
				t.Fatal("OPC should list open gaps")
			}
			for _, id := range h.MissingInformation {
				if id == "business_type" {
					t.Fatal("gathered factor listed as missing")
				}
			}
		}
	}
}
