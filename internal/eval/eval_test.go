package eval

import (
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
	"github.com/danielpatrickdp/entity-advisor/internal/update"
)

func soloFounderState() state.AgentState {
	now := time.Now()
	st := state.NewAgentState("e1", now)
	res := update.Ingest(st, []knowledge.BusinessFactor{
		{Type: knowledge.FactorFounders, Value: knowledge.ValueSolo, Impact: 1.0, Confidence: 0.9},
		{Type: knowledge.FactorPurpose, Value: knowledge.ValueProfit, Impact: 0.8, Confidence: 0.9},
		{Type: knowledge.FactorRisk, Value: knowledge.ValueYes, Impact: 0.8, Confidence: 0.9},
	}, update.DefaultUpdateConfig(), now)
	return res.NewState
}

func TestValidatePassesLiveEntity(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Validate(knowledge.EntityOPC, soloFounderState())
	if !res.Passed {
		t.Fatalf("expected OPC to validate, got %s", res.Reason)
	}
	if len(res.Checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(res.Checks))
	}
}

func TestValidateFailsEliminatedEntity(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Validate(knowledge.EntityPartnership, soloFounderState())
	if res.Passed {
		t.Fatal("partnership with a solo founder must fail")
	}
	if len(res.Violations) != 1 || res.Violations[0] != knowledge.CondFoundersSolo {
		t.Fatalf("expected FOUNDERS_SOLO violation, got %v", res.Violations)
	}
	if !strings.Contains(res.Reason, "not_eliminated") || !strings.Contains(res.Reason, "hard_constraints") {
		t.Fatalf("reason should list failed checks, got %q", res.Reason)
	}
}

func TestValidateUnknownEntity(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Validate("Cooperative", soloFounderState())
	if res.Passed {
		t.Fatal("unknown entity must fail")
	}
}

func TestValidateLowConfidenceDoesNotBlock(t *testing.T) {
	h := NewEvalHarness(EvalConfig{MinConfidence: 0.99, MaxContributors: 3})
	res := h.Validate(knowledge.EntityOPC, soloFounderState())
	if !res.Passed {
		t.Fatalf("confidence is informational, got %s", res.Reason)
	}
	for _, c := range res.Checks {
		if c.Name == "confidence" && c.Pass {
			t.Fatal("confidence check should be marked failed")
		}
	}
}

func TestExplainRanksContributions(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	ex := h.Explain(knowledge.EntityOPC, soloFounderState())
	if len(ex.Contributions) != 3 {
		t.Fatalf("expected 3 contributions, got %+v", ex.Contributions)
	}
	if ex.Contributions[0].Factor != knowledge.FactorFounders {
		t.Fatalf("required founders factor should rank first, got %s", ex.Contributions[0].Factor)
	}
	for i := 1; i < len(ex.Contributions); i++ {
		if ex.Contributions[i].Score > ex.Contributions[i-1].Score {
			t.Fatal("contributions not sorted by score")
		}
	}
	if !strings.Contains(ex.Text, string(knowledge.EntityOPC)) {
		t.Fatalf("explanation should name the entity: %q", ex.Text)
	}
}

func TestExplainWithoutEvidence(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	ex := h.Explain(knowledge.EntityTrust, state.NewAgentState("e2", time.Now()))
	if len(ex.Contributions) != 0 || !strings.Contains(ex.Text, "overall profile") {
		t.Fatalf("unexpected explanation %+v", ex)
	}
}
