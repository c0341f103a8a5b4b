package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/logging"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #region helpers

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const (
	askJSON       = `{"reasoning":"need more facts","action":"ask_question","confidence":0.4,"priority":7}`
	clarifyJSON   = `{"reasoning":"answer was vague","action":"clarify_answer","confidence":0.3,"priority":6}`
	useToolJSON   = `{"reasoning":"recompute","action":"use_tool","confidence":0.4,"priority":3}`
	recommendJSON = `{"reasoning":"enough","action":"make_recommendation","confidence":0.8,"priority":9}`
	reflectJSON   = `{"reasoning":"check gaps","action":"reflect","confidence":0.4,"priority":4}`

	purposeQuestion  = "Are you starting a for-profit business or a non-profit/charity?"
	foundersQuestion = "How many people will own and run this business?"
)

type memoryAudit struct {
	mu     sync.Mutex
	events []logging.AuditEvent
}

func (m *memoryAudit) Record(_ context.Context, ev logging.AuditEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func (m *memoryAudit) kinds(k logging.EventKind) []logging.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []logging.AuditEvent
	for _, ev := range m.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	orch   *Orchestrator
	script *reasoner.ScriptedProvider
	ledger *reasoner.Ledger
	audit  *memoryAudit
}

func newFixture(t *testing.T, cfg Config, steps ...reasoner.Step) *fixture {
	t.Helper()
	return newPricedFixture(t, cfg, nil, steps...)
}

func newPricedFixture(t *testing.T, cfg Config, pricing map[string]reasoner.Price, steps ...reasoner.Step) *fixture {
	t.Helper()
	script := reasoner.NewScriptedProvider("groq", "llama-3.1-8b-instant", steps...)

	gcfg := reasoner.DefaultConfig()
	gcfg.InitialBackoff = time.Millisecond
	gcfg.MaxBackoff = 2 * time.Millisecond
	gcfg.CallTimeout = time.Second
	gcfg.RatePerSecond = 0
	ledger := reasoner.NewLedger(pricing)
	gw := reasoner.NewGateway([]reasoner.Provider{script}, ledger, gcfg, nil)

	clock := func() time.Time { return epoch.Add(time.Minute) }
	audit := &memoryAudit{}
	orch := New(Deps{
		Reasoner:   gw,
		Supervisor: guardrail.NewSupervisor(guardrail.DefaultConfig(), nil, guardrail.WithClock(clock)),
		Tracker:    guardrail.NewTracker(ledger),
		Audit:      audit,
	}, cfg, WithClock(clock))
	return &fixture{orch: orch, script: script, ledger: ledger, audit: audit}
}

func (f *fixture) start(t *testing.T, id string) state.AgentState {
	t.Helper()
	res := f.orch.Start(context.Background(), state.NewAgentState(id, epoch))
	return res.State
}

func confidence(t *testing.T, st state.AgentState, e knowledge.EntityID) float64 {
	t.Helper()
	h, ok := st.Hypothesis(e)
	require.True(t, ok, "missing hypothesis %s", e)
	return h.Confidence
}

// #endregion helpers

// #region start-tests

func TestStartAsksHighestImportanceGap(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	res := f.orch.Start(context.Background(), state.NewAgentState("s1", epoch))

	assert.True(t, strings.HasSuffix(res.AssistantMessage, purposeQuestion), res.AssistantMessage)
	assert.Equal(t, state.NextQuestion, res.State.NextAction)
	require.Len(t, res.State.ConversationHistory, 1)
	assert.Equal(t, state.RoleAssistant, res.State.ConversationHistory[0].Role)
	assert.Zero(t, f.script.Calls())
}

// #endregion start-tests

// #region process-turn-tests

func TestProcessTurnAsksNextGap(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: askJSON})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "It's a for-profit business")
	require.NoError(t, err)

	assert.False(t, res.Terminated)
	assert.Equal(t, foundersQuestion, res.AssistantMessage)
	assert.Equal(t, state.NextQuestion, res.State.NextAction)
	assert.Equal(t, 1, res.State.IterationCount)
	assert.Equal(t, 1, f.script.Calls())

	sec8, _ := res.State.Hypothesis(knowledge.EntitySection8)
	assert.True(t, sec8.Eliminated, "profit evidence should eliminate Section 8")
	assert.NotEmpty(t, f.audit.kinds(logging.KindThought))
	assert.Positive(t, f.ledger.Usage("s1").RequestCount)
}

func TestProcessTurnSoloFounderEliminatesPartnership(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: askJSON}, reasoner.Step{Text: askJSON})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)
	require.Equal(t, foundersQuestion, res.AssistantMessage)

	res, err = f.orch.ProcessTurn(context.Background(), res.State, "Just me, I'm the only founder")
	require.NoError(t, err)

	partnership, _ := res.State.Hypothesis(knowledge.EntityPartnership)
	assert.True(t, partnership.Eliminated)
	assert.Zero(t, partnership.Confidence)
	assert.Greater(t, confidence(t, res.State, knowledge.EntityOPC), 0.0)
	assert.Greater(t, confidence(t, res.State, knowledge.EntitySoleProp), 0.0)
}

func TestProcessTurnMalformedThoughtFallsBackToQuestion(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: "I think we should ask about founders."})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)
	assert.False(t, res.Terminated)
	assert.Equal(t, foundersQuestion, res.AssistantMessage)

	thoughts := f.audit.kinds(logging.KindThought)
	require.Len(t, thoughts, 1)
	th, ok := thoughts[0].Payload.(Thought)
	require.True(t, ok)
	assert.True(t, th.Fallback)
	assert.Equal(t, ThoughtAskQuestion, th.Action)
}

func TestProcessTurnRecommendationRequested(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: recommendJSON})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit, just me")
	require.NoError(t, err)

	require.True(t, res.Terminated)
	require.NotNil(t, res.Recommendation)
	assert.Equal(t, state.NextComplete, res.State.NextAction)
	assert.Contains(t, res.AssistantMessage, "**Recommended: "+string(res.Recommendation.Entity))
	assert.False(t, res.Recommendation.Tentative)
	assert.Len(t, res.Recommendation.Alternatives, 2)
	for _, alt := range res.Recommendation.Alternatives {
		h, _ := res.State.Hypothesis(alt.Entity)
		assert.False(t, h.Eliminated, "eliminated entity %s offered as alternative", alt.Entity)
	}
	assert.Len(t, f.audit.kinds(logging.KindRecommendation), 1)
}

func TestProcessTurnClarifyRepeatsQuestion(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: clarifyJSON})
	st := f.start(t, "s1")

	// nothing extractable: the purpose gap stays open
	res, err := f.orch.ProcessTurn(context.Background(), st, "hmm, not sure yet")
	require.NoError(t, err)
	assert.Equal(t, state.NextClarify, res.State.NextAction)
	assert.Contains(t, res.AssistantMessage, purposeQuestion)
}

func TestProcessTurnReflectThenAsk(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: reflectJSON}, reasoner.Step{Text: askJSON})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)
	assert.Equal(t, foundersQuestion, res.AssistantMessage)
	assert.Equal(t, 2, f.script.Calls())

	h, _ := res.State.Hypothesis(knowledge.EntityOPC)
	assert.Contains(t, h.MissingInformation, "founders_count")
}

func TestProcessTurnToolBudgetAsksTopGap(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.script.SetFallback(reasoner.Step{Text: useToolJSON})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)
	assert.False(t, res.Terminated)
	assert.Equal(t, foundersQuestion, res.AssistantMessage)
	assert.Equal(t, guardrail.DefaultConfig().MaxToolCallsPerIteration, f.script.Calls())
}

func TestProcessTurnConcludesWithoutReasoner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 0.05
	f := newFixture(t, cfg)
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Zero(t, f.script.Calls())
}

func TestProcessTurnReasonerUnavailable(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.script.SetFallback(reasoner.Step{Err: errors.New("connection refused")})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)

	require.True(t, res.Terminated)
	require.NotNil(t, res.Violation)
	assert.Equal(t, guardrail.ViolationReasonerUnavailable, res.Violation.Type)
	require.NotNil(t, res.Recommendation)
	assert.True(t, res.Recommendation.Tentative)
	assert.Contains(t, res.AssistantMessage, "human expert")
	assert.NotContains(t, res.AssistantMessage, "connection refused")
	assert.NotContains(t, res.Violation.Message, "connection refused")
	assert.NotContains(t, res.Violation.Message, string(reasoner.KindTransport))
	assert.Equal(t, state.NextComplete, res.State.NextAction)
	assert.NotEmpty(t, f.audit.kinds(logging.KindError))
}

func TestProcessTurnGuardrailCost(t *testing.T) {
	// tokens stay under the token cap so only cost can trip
	pricing := map[string]reasoner.Price{"premium": {Output: 60}}
	tests := []struct {
		name   string
		tokens int
	}{
		{"just over", 8500}, // 0.51
		{"well over", 9000}, // 0.54
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPricedFixture(t, DefaultConfig(), pricing, reasoner.Step{Text: askJSON})
			st := f.start(t, "s1")
			f.ledger.Record("s1", "premium", 0, tt.tokens)
			require.Less(t, f.ledger.Usage("s1").TotalTokens, guardrail.DefaultConfig().MaxTokensPerSession)

			res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
			require.NoError(t, err)
			require.True(t, res.Terminated)
			require.NotNil(t, res.Violation)
			assert.Equal(t, guardrail.ViolationMaxCost, res.Violation.Type)
			assert.Zero(t, f.script.Calls())
		})
	}
}

func TestProcessTurnRechecksGuardrailsBetweenSteps(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.script.SetFallback(reasoner.Step{Text: useToolJSON, InputTokens: 1, OutputTokens: 5999})
	st := f.start(t, "s1")

	res, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)

	require.True(t, res.Terminated)
	require.NotNil(t, res.Violation)
	assert.Equal(t, guardrail.ViolationMaxTokens, res.Violation.Type)
	assert.Equal(t, 2, f.script.Calls(), "second step should trip the token cap")
	assert.Equal(t, 12000, f.ledger.Usage("s1").TotalTokens)
	require.NotNil(t, res.Recommendation)
	assert.True(t, res.Recommendation.Tentative)
}

func TestProcessTurnCanceled(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: askJSON, Delay: time.Second})
	st := f.start(t, "s1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.orch.ProcessTurn(ctx, st, "for-profit")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessTurnAfterTerminationIsClosed(t *testing.T) {
	f := newFixture(t, DefaultConfig(), reasoner.Step{Text: recommendJSON})
	st := f.start(t, "s1")

	done, err := f.orch.ProcessTurn(context.Background(), st, "for-profit")
	require.NoError(t, err)
	require.True(t, done.Terminated)

	again, err := f.orch.ProcessTurn(context.Background(), done.State, "actually, what about an LLP?")
	require.NoError(t, err)
	assert.True(t, again.Terminated)
	assert.Nil(t, again.Recommendation)
	assert.Contains(t, again.AssistantMessage, "session is complete")
	assert.Equal(t, done.State, again.State)
	assert.Equal(t, 1, f.script.Calls())
}

// #endregion process-turn-tests

// #region property-tests

func TestTerminationIsMonotone(t *testing.T) {
	answers := []string{
		"for-profit business", "non-profit charity", "just me", "three co-founders",
		"yes", "no", "bootstrapped with my savings", "we want VC funding",
		"very important", "franchises across india", "a few lakhs", "I'm an NRI", "no idea",
	}
	thoughts := []string{askJSON, clarifyJSON, useToolJSON, reflectJSON, recommendJSON, "garbage"}

	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, DefaultConfig())
		f.script.SetFallback(reasoner.Step{Text: rapid.SampledFrom(thoughts).Draw(rt, "thought")})
		st := f.start(t, "p1")

		terminated := false
		turns := rapid.IntRange(1, 14).Draw(rt, "turns")
		for i := 0; i < turns; i++ {
			utterance := rapid.SampledFrom(answers).Draw(rt, "answer")
			res, err := f.orch.ProcessTurn(context.Background(), st, utterance)
			if err != nil {
				rt.Fatalf("turn %d: %v", i, err)
			}
			if terminated {
				if !res.Terminated || len(res.State.ConversationHistory) != len(st.ConversationHistory) {
					rt.Fatalf("turn %d: terminated session changed", i)
				}
			}
			if res.Terminated {
				terminated = true
			}
			if res.State.IterationCount > DefaultConfig().MaxIterations {
				rt.Fatalf("iteration %d exceeds cap", res.State.IterationCount)
			}
			st = res.State
		}
	})
}

// #endregion property-tests
