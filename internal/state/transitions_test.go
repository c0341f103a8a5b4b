package state

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
)

func TestNewAgentStateUniformPrior(t *testing.T) {
	st := NewAgentState("s", time.Now())
	if len(st.CurrentHypotheses) != 9 {
		t.Fatalf("expected 9 hypotheses, got %d", len(st.CurrentHypotheses))
	}
	var sum float64
	for _, h := range st.CurrentHypotheses {
		if math.Abs(h.Confidence-1.0/9) > 1e-12 {
			t.Fatalf("expected 1/9 prior, got %f for %s", h.Confidence, h.Entity)
		}
		sum += h.Confidence
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("prior sums to %f", sum)
	}
	if st.NextAction != NextQuestion {
		t.Fatalf("expected question phase, got %s", st.NextAction)
	}
}

func TestTransitionsDoNotMutateReceiver(t *testing.T) {
	now := time.Now()
	base := NewAgentState("s", now)
	next := base.WithMessage(RoleUser, "hi", now).
		WithFactors([]knowledge.BusinessFactor{{Type: knowledge.FactorNRI, Value: knowledge.ValueYes, Impact: 1, Confidence: 0.9}}, now).
		NextIteration(now)

	if len(base.ConversationHistory) != 0 || len(base.GatheredFactors) != 0 || base.IterationCount != 0 {
		t.Fatal("receiver was mutated")
	}
	if len(next.ConversationHistory) != 1 || len(next.GatheredFactors) != 1 || next.IterationCount != 1 {
		t.Fatalf("transition lost data: %+v", next)
	}

	hs := CloneHypotheses(next.CurrentHypotheses)
	hs[0].SupportingFactors = append(hs[0].SupportingFactors, "x")
	if len(next.CurrentHypotheses[0].SupportingFactors) != 0 {
		t.Fatal("CloneHypotheses shares evidence trail")
	}
}

func TestTopHypothesesOrdering(t *testing.T) {
	now := time.Now()
	st := NewAgentState("s", now)
	hs := CloneHypotheses(st.CurrentHypotheses)
	hs[4].Confidence = 0.5
	hs[1].Confidence = 0.3
	st = st.WithHypotheses(hs, now)

	top := st.TopHypotheses(3)
	if len(top) != 3 {
		t.Fatalf("expected 3, got %d", len(top))
	}
	if top[0].Entity != hs[4].Entity || top[1].Entity != hs[1].Entity {
		t.Fatalf("unexpected order: %s, %s", top[0].Entity, top[1].Entity)
	}
	// remaining ties resolve to canonical order
	if top[2].Entity != hs[0].Entity {
		t.Fatalf("expected tie to keep canonical order, got %s", top[2].Entity)
	}
}

func TestPendingExchange(t *testing.T) {
	now := time.Now()
	st := NewAgentState("s", now)
	if _, ok := st.PendingExchange(); ok {
		t.Fatal("empty history has no pending exchange")
	}

	st = st.WithMessage(RoleAssistant, "Are you NRI?", now).WithMessage(RoleUser, "no", now)
	ex, ok := st.PendingExchange()
	if !ok {
		t.Fatal("expected pending exchange")
	}
	if ex.Question != "Are you NRI?" || ex.Answer != "no" || ex.Index != 2 {
		t.Fatalf("unexpected exchange: %+v", ex)
	}

	st = st.MarkProcessed(ex.Index)
	if _, ok := st.PendingExchange(); ok {
		t.Fatal("processed exchange must not be pending")
	}

	st = st.WithMessage(RoleAssistant, "Funding?", now)
	if _, ok := st.PendingExchange(); ok {
		t.Fatal("assistant message alone is not pending")
	}
}

func TestMarkProcessedIsMonotone(t *testing.T) {
	st := NewAgentState("s", time.Now()).MarkProcessed(4).MarkProcessed(2)
	if st.ProcessedMessages != 4 {
		t.Fatalf("expected 4, got %d", st.ProcessedMessages)
	}
}
