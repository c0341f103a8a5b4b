package replay

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/orchestrator"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// replayEpoch pins the clock so wall-clock limits never fire during replay.
var replayEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// #region types

// TurnOutcome captures what one replayed turn produced.
type TurnOutcome struct {
	Index         int
	User          string
	Assistant     string
	NextAction    state.NextAction
	Terminated    bool
	TopEntity     knowledge.EntityID
	TopConfidence float64
	Eliminated    []knowledge.EntityID
	Violation     guardrail.ViolationType
	Mismatches    []string
}

// Result is a whole replayed fixture.
type Result struct {
	Description    string
	Opening        string
	Turns          []TurnOutcome
	Recommendation *orchestrator.Recommendation
	ReasonerCalls  int
	Usage          reasoner.Usage
	Mismatches     []string // final-outcome mismatches
}

// Passed reports whether every expectation held.
func (r Result) Passed() bool {
	if len(r.Mismatches) > 0 {
		return false
	}
	for _, t := range r.Turns {
		if len(t.Mismatches) > 0 {
			return false
		}
	}
	return true
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Fixtures   int
	Passed     int
	Turns      int
	Terminated int
	Cost       float64
}

// #endregion types

// #region replay

// Replay drives a fixture through a fresh orchestrator wired to a scripted
// reasoner. Runs entirely in memory.
func Replay(ctx context.Context, f *Fixture, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	steps := make([]reasoner.Step, len(f.Reasoner))
	for i, s := range f.Reasoner {
		steps[i] = s.ToStep()
	}
	script := reasoner.NewScriptedProvider("replay", "replay-model", steps...)
	if f.Fallback != nil {
		script.SetFallback(f.Fallback.ToStep())
	}

	gcfg := reasoner.DefaultConfig()
	gcfg.InitialBackoff = time.Millisecond
	gcfg.MaxBackoff = time.Millisecond
	gcfg.RatePerSecond = 0
	ledger := reasoner.NewLedger(nil)
	gw := reasoner.NewGateway([]reasoner.Provider{script}, ledger, gcfg, logger)

	gcfgLimits, ocfg := limits(f.Config)
	clock := func() time.Time { return replayEpoch }
	tracker := guardrail.NewTracker(ledger)
	orch := orchestrator.New(orchestrator.Deps{
		Reasoner:   gw,
		Supervisor: guardrail.NewSupervisor(gcfgLimits, logger, guardrail.WithClock(clock)),
		Tracker:    tracker,
		Logger:     logger,
	}, ocfg, orchestrator.WithClock(clock))

	res := Result{Description: f.Description}
	opening := orch.Start(ctx, state.NewAgentState(f.SessionID, replayEpoch))
	res.Opening = opening.AssistantMessage
	st := opening.State

	for i, turn := range f.Turns {
		before := eliminatedSet(st)
		tr, err := orch.ProcessTurn(ctx, st, turn.User)
		if err != nil {
			return res, fmt.Errorf("turn %d: %w", i+1, err)
		}
		st = tr.State

		out := TurnOutcome{
			Index:      i + 1,
			User:       turn.User,
			Assistant:  tr.AssistantMessage,
			NextAction: st.NextAction,
			Terminated: tr.Terminated,
		}
		if top, ok := st.TopHypothesis(); ok {
			out.TopEntity, out.TopConfidence = top.Entity, top.Confidence
		}
		for _, e := range eliminatedList(st) {
			if !before[e] {
				out.Eliminated = append(out.Eliminated, e)
			}
		}
		if tr.Violation != nil {
			out.Violation = tr.Violation.Type
		}
		if tr.Recommendation != nil {
			res.Recommendation = tr.Recommendation
		}
		out.Mismatches = checkTurn(turn.Expect, out, st)
		res.Turns = append(res.Turns, out)
	}

	res.ReasonerCalls = script.Calls()
	res.Usage = ledger.Usage(f.SessionID)
	res.Mismatches = checkFinal(f.Final, res, st)
	return res, nil
}

// Summarize computes aggregate stats over replay results.
func Summarize(results []Result) Summary {
	s := Summary{Fixtures: len(results)}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		}
		s.Turns += len(r.Turns)
		if n := len(r.Turns); n > 0 && r.Turns[n-1].Terminated {
			s.Terminated++
		}
		s.Cost += r.Usage.Cost
	}
	return s
}

// #endregion replay

// #region checks

func checkTurn(exp FixtureExpect, out TurnOutcome, st state.AgentState) []string {
	var m []string
	if exp.Terminated != nil && *exp.Terminated != out.Terminated {
		m = append(m, fmt.Sprintf("terminated=%v, want %v", out.Terminated, *exp.Terminated))
	}
	if exp.NextAction != "" && string(out.NextAction) != exp.NextAction {
		m = append(m, fmt.Sprintf("next_action=%s, want %s", out.NextAction, exp.NextAction))
	}
	if exp.MessageContains != "" && !strings.Contains(out.Assistant, exp.MessageContains) {
		m = append(m, fmt.Sprintf("message does not contain %q", exp.MessageContains))
	}
	all := eliminatedSet(st)
	for _, e := range exp.Eliminated {
		if !all[knowledge.EntityID(e)] {
			m = append(m, fmt.Sprintf("%s not eliminated", e))
		}
	}
	if exp.Violation != "" && string(out.Violation) != exp.Violation {
		m = append(m, fmt.Sprintf("violation=%q, want %q", out.Violation, exp.Violation))
	}
	return m
}

func checkFinal(exp FixtureOutcome, res Result, st state.AgentState) []string {
	var m []string
	if exp.Terminated != nil && *exp.Terminated != st.Terminated() {
		m = append(m, fmt.Sprintf("final terminated=%v, want %v", st.Terminated(), *exp.Terminated))
	}
	rec := res.Recommendation
	if exp.Recommendation != "" && (rec == nil || string(rec.Entity) != exp.Recommendation) {
		m = append(m, fmt.Sprintf("recommendation=%v, want %s", recEntity(rec), exp.Recommendation))
	}
	if rec != nil && slices.Contains(exp.NotRecommended, string(rec.Entity)) {
		m = append(m, fmt.Sprintf("recommended excluded entity %s", rec.Entity))
	}
	if exp.MaxReasonerCalls > 0 && res.ReasonerCalls > exp.MaxReasonerCalls {
		m = append(m, fmt.Sprintf("reasoner calls=%d, want <= %d", res.ReasonerCalls, exp.MaxReasonerCalls))
	}
	if exp.TentativeExpected != nil && (rec == nil || rec.Tentative != *exp.TentativeExpected) {
		m = append(m, fmt.Sprintf("tentative mismatch, want %v", *exp.TentativeExpected))
	}
	return m
}

// #endregion checks

// #region helpers

func limits(fc FixtureConfig) (guardrail.Config, orchestrator.Config) {
	g := guardrail.DefaultConfig()
	o := orchestrator.DefaultConfig()
	if fc.ConfidenceThreshold > 0 {
		o.ConfidenceThreshold = fc.ConfidenceThreshold
	}
	if fc.MaxIterations > 0 {
		o.MaxIterations = fc.MaxIterations
		g.MaxIterations = fc.MaxIterations
	}
	if fc.MaxCostPerSession > 0 {
		g.MaxCostPerSession = fc.MaxCostPerSession
	}
	if fc.MaxToolCalls > 0 {
		g.MaxToolCallsPerIteration = fc.MaxToolCalls
	}
	return g, o
}

func eliminatedList(st state.AgentState) []knowledge.EntityID {
	var out []knowledge.EntityID
	for _, h := range st.CurrentHypotheses {
		if h.Eliminated {
			out = append(out, h.Entity)
		}
	}
	return out
}

func eliminatedSet(st state.AgentState) map[knowledge.EntityID]bool {
	out := make(map[knowledge.EntityID]bool)
	for _, e := range eliminatedList(st) {
		out[e] = true
	}
	return out
}

func recEntity(rec *orchestrator.Recommendation) string {
	if rec == nil {
		return "<none>"
	}
	return string(rec.Entity)
}

// #endregion helpers
