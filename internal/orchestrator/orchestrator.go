package orchestrator

// #region imports
import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/entity-advisor/internal/eval"
	"github.com/danielpatrickdp/entity-advisor/internal/gap"
	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/logging"
	"github.com/danielpatrickdp/entity-advisor/internal/metrics"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/signals"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
	"github.com/danielpatrickdp/entity-advisor/internal/update"
)

// #endregion

const greeting = "Hi! I'll help you choose the right legal structure for your business in India. "

// #region orchestrator-struct

// Orchestrator runs the think/act/observe/reflect loop for one turn at a
// time. It holds no per-session state; callers serialize turns per session.
type Orchestrator struct {
	config     Config
	reasoner   Reasoner
	supervisor *guardrail.Supervisor
	tracker    *guardrail.Tracker
	audit      AuditRecorder
	logger     *zap.Logger
	tracer     trace.Tracer

	extractor *signals.Extractor
	analyzer  *gap.Analyzer
	harness   *eval.EvalHarness
	update    update.UpdateConfig
	now       func() time.Time
}

// Deps are the collaborators an Orchestrator cannot build itself.
type Deps struct {
	Reasoner   Reasoner
	Supervisor *guardrail.Supervisor
	Tracker    *guardrail.Tracker
	Audit      AuditRecorder // optional
	Logger     *zap.Logger   // optional
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now, for tests and replay.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithGapPolicy overrides the analyzer's forced-termination valve.
func WithGapPolicy(p gap.Policy) Option {
	return func(o *Orchestrator) { o.analyzer = gap.NewAnalyzer(p) }
}

// WithUpdateConfig overrides the confidence engine policy.
func WithUpdateConfig(c update.UpdateConfig) Option {
	return func(o *Orchestrator) { o.update = c }
}

// #endregion

// #region constructor

// New creates a fully wired orchestrator.
func New(deps Deps, config Config, opts ...Option) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		config:     config,
		reasoner:   deps.Reasoner,
		supervisor: deps.Supervisor,
		tracker:    deps.Tracker,
		audit:      deps.Audit,
		logger:     logger.With(zap.String("component", "orchestrator")),
		tracer:     otel.Tracer("orchestrator"),
		extractor:  signals.NewExtractor(),
		analyzer:   gap.NewAnalyzer(gap.DefaultPolicy()),
		harness:    eval.NewEvalHarness(eval.DefaultEvalConfig()),
		update:     update.DefaultUpdateConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// #endregion

// #region start

// Start opens a conversation: greeting plus the first gap question.
func (o *Orchestrator) Start(ctx context.Context, st state.AgentState) TurnResult {
	sel := o.analyzer.SelectQuestion(st)
	msg := greeting + sel.Question
	now := o.now()
	st = st.WithMessage(state.RoleAssistant, msg, now).WithNextAction(state.NextQuestion, now)
	o.record(ctx, st.SessionID, logging.KindAction, Observation{Action: "generate_question", Success: true, Impact: sel.Reason, Question: sel.Question}, nil)
	return TurnResult{AssistantMessage: msg, State: st}
}

// #endregion

// #region process-turn

// ProcessTurn folds one user utterance into st and runs the loop until it
// has a question to ask or a recommendation to give. An error is returned
// only when ctx ends; every other failure becomes a controlled reply.
func (o *Orchestrator) ProcessTurn(ctx context.Context, st state.AgentState, utterance string) (TurnResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.ProcessTurn", trace.WithAttributes(
		attribute.String("session_id", st.SessionID),
		attribute.Int("iteration", st.IterationCount),
	))
	defer span.End()
	started := time.Now()
	defer func() { metrics.TurnDuration.Observe(time.Since(started).Seconds()) }()

	if st.Terminated() {
		metrics.Turns.WithLabelValues("closed").Inc()
		return TurnResult{AssistantMessage: closedMessage(st), State: st, Terminated: true}, nil
	}

	now := o.now()
	st = st.WithMessage(state.RoleUser, utterance, now)
	st, _ = o.ingest(ctx, st)

	if v, hit := o.supervisor.Check(st, o.tracker.Snapshot(st)); hit {
		return o.safeTerminate(ctx, st, v), nil
	}

	st = st.NextIteration(now)
	if concluded(st, o.config) {
		return o.finalize(ctx, st), nil
	}

	for calls := 0; ; calls++ {
		if v, hit := o.supervisor.CheckTools(calls); hit {
			o.logger.Info("tool budget reached", zap.String("session_id", st.SessionID), zap.String("reason", v.Message))
			metrics.GuardrailViolations.WithLabelValues(string(v.Type)).Inc()
			return o.askTopGap(ctx, st), nil
		}

		th, err := o.think(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				span.SetStatus(codes.Error, "canceled")
				return TurnResult{}, ctx.Err()
			}
			span.RecordError(err)
			return o.safeTerminate(ctx, st, guardrail.Violation{
				Type:    guardrail.ViolationReasonerUnavailable,
				Message: reasonerUnavailableMessage,
			}), nil
		}
		// the call just charged the ledger
		if v, hit := o.supervisor.Check(st, o.tracker.Snapshot(st)); hit {
			return o.safeTerminate(ctx, st, v), nil
		}

		action := actionFor(th)
		o.tracker.RecordToolCall(st.SessionID)
		o.record(ctx, st.SessionID, logging.KindAction, map[string]string{"action": action.actionName()}, nil)

		var obs Observation
		st, obs = o.observe(ctx, st, action)
		if obs.Recommend {
			return o.finalize(ctx, st), nil
		}

		r := reflect(st, o.config)
		o.record(ctx, st.SessionID, logging.KindReflection, r, nil)
		if !r.ShouldContinue {
			return o.finalize(ctx, st), nil
		}

		if obs.Question != "" {
			next := state.NextQuestion
			if obs.Clarify {
				next = state.NextClarify
			}
			return o.ask(ctx, st, obs.Question, next), nil
		}
	}
}

// #endregion

// #region think

// think asks the reasoner for the next action. Malformed output degrades to
// the fallback thought; unavailability is returned to the caller.
func (o *Orchestrator) think(ctx context.Context, st state.AgentState) (Thought, error) {
	resp, err := o.reasoner.Complete(ctx, reasoner.Request{
		SessionID:   st.SessionID,
		Purpose:     "think",
		Messages:    thoughtMessages(st, o.config),
		Temperature: reasoner.Temp(o.config.ThinkTemperature),
		MaxTokens:   o.config.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		if kind, ok := reasoner.KindOf(err); !ok || kind != reasoner.KindMalformed {
			o.logger.Warn("reasoner unavailable", zap.String("session_id", st.SessionID), zap.Error(err))
			o.record(ctx, st.SessionID, logging.KindError, map[string]string{"stage": "think", "error": err.Error()}, nil)
			return Thought{}, err
		}
		th := fallbackThought(st, o.config)
		o.logger.Info("reasoner output malformed, using fallback",
			zap.String("session_id", st.SessionID), zap.String("action", string(th.Action)), zap.Error(err))
		o.record(ctx, st.SessionID, logging.KindThought, th, nil)
		return th, nil
	}

	th, perr := parseThought(resp.Text, st, o.config)
	if perr != nil {
		o.logger.Info("reasoner output malformed, using fallback",
			zap.String("session_id", st.SessionID), zap.String("action", string(th.Action)), zap.Error(perr))
	}
	o.logger.Debug("thought",
		zap.String("session_id", st.SessionID),
		zap.String("action", string(th.Action)),
		zap.Float64("confidence", th.Confidence),
		zap.Bool("fallback", th.Fallback))
	o.record(ctx, st.SessionID, logging.KindThought, th, &logging.EventMetadata{
		Cost:      resp.Cost,
		LatencyMs: resp.Latency.Milliseconds(),
		Model:     resp.Model,
	})
	return th, nil
}

// #endregion

// #region observe

// observe executes action against st.
func (o *Orchestrator) observe(ctx context.Context, st state.AgentState, action Action) (state.AgentState, Observation) {
	obs := Observation{Action: action.actionName(), Success: true}

	switch a := action.(type) {
	case GenerateQuestion:
		sel := o.analyzer.SelectQuestion(st)
		if sel.Ready {
			obs.Recommend = true
			obs.Impact = "Sufficient information gathered - " + sel.Reason
			break
		}
		obs.Question = sel.Question
		obs.Clarify = a.Clarify
		obs.Impact = sel.Reason
		if last := lastAssistant(st); last != "" && last == sel.Question {
			obs.Question = "Sorry, I didn't quite catch that. " + sel.Question
			obs.Clarify = true
		}

	case UpdateScores:
		var res update.UpdateResult
		st, res = o.ingest(ctx, st)
		obs.Impact = res.Decision.Reason

	case Recommend:
		obs.Recommend = true
		obs.Impact = "Final recommendation prepared"

	case AnalyzeGap:
		gaps := o.analyzer.IdentifyGaps(st)
		st = st.WithHypotheses(o.analyzer.Annotate(st), o.now())
		obs.Impact = "Identified missing information"
		if len(gaps) > 0 {
			obs.Impact += ": " + gaps[0].ID
		}
	}

	o.record(ctx, st.SessionID, logging.KindObservation, obs, nil)
	return st, obs
}

// ingest folds the pending user answer into the hypotheses. Already
// processed messages are skipped, so repeated calls are no-ops.
func (o *Orchestrator) ingest(ctx context.Context, st state.AgentState) (state.AgentState, update.UpdateResult) {
	ex, ok := st.PendingExchange()
	if !ok {
		return st, update.UpdateResult{NewState: st, Decision: update.Decision{Action: "no_op", Reason: "No new factors to process"}}
	}

	extracted := o.extractor.Extract(ex.Answer, ex.Question)
	res := update.Ingest(st, extracted, o.update, o.now())
	next := res.NewState.MarkProcessed(ex.Index)
	res.NewState = next

	for _, e := range res.Metrics.Eliminated {
		metrics.Eliminations.WithLabelValues(string(e)).Inc()
	}
	o.logger.Debug("ingest",
		zap.String("session_id", st.SessionID),
		zap.String("decision", res.Decision.Action),
		zap.Int("factors", res.Metrics.FactorsApplied),
		zap.String("top", string(res.Metrics.TopEntity)),
		zap.Float64("top_confidence", res.Metrics.TopConfidence))
	o.record(ctx, st.SessionID, logging.KindObservation, map[string]any{
		"action":     "update_scores",
		"decision":   res.Decision.Action,
		"reason":     res.Decision.Reason,
		"extracted":  extracted,
		"eliminated": res.Metrics.Eliminated,
	}, nil)
	return next, res
}

// #endregion

// #region replies

func (o *Orchestrator) ask(ctx context.Context, st state.AgentState, question string, next state.NextAction) TurnResult {
	now := o.now()
	st = st.WithMessage(state.RoleAssistant, question, now).WithNextAction(next, now)
	metrics.Turns.WithLabelValues("question").Inc()
	return TurnResult{AssistantMessage: question, State: st}
}

// askTopGap is the deterministic reply once the tool budget is spent.
func (o *Orchestrator) askTopGap(ctx context.Context, st state.AgentState) TurnResult {
	sel := o.analyzer.SelectQuestion(st)
	if sel.Ready {
		return o.finalize(ctx, st)
	}
	return o.ask(ctx, st, sel.Question, state.NextQuestion)
}

// finalize concludes the session with a recommendation.
func (o *Orchestrator) finalize(ctx context.Context, st state.AgentState) TurnResult {
	rec := o.buildRecommendation(st)
	msg := formatRecommendation(rec)
	now := o.now()
	st = st.WithMessage(state.RoleAssistant, msg, now).WithNextAction(state.NextComplete, now)

	metrics.Recommendations.WithLabelValues(string(rec.Entity)).Inc()
	metrics.Turns.WithLabelValues("recommended").Inc()
	o.logger.Info("recommendation",
		zap.String("session_id", st.SessionID),
		zap.String("entity", string(rec.Entity)),
		zap.Float64("confidence", rec.Confidence),
		zap.Int("iteration", st.IterationCount))
	o.record(ctx, st.SessionID, logging.KindRecommendation, rec, nil)
	return TurnResult{AssistantMessage: msg, State: st, Terminated: true, Recommendation: &rec}
}

// safeTerminate ends the session after a guardrail violation or reasoner
// outage with a tentative recommendation.
func (o *Orchestrator) safeTerminate(ctx context.Context, st state.AgentState, v guardrail.Violation) TurnResult {
	msg := o.supervisor.SafeTermination(v.Type, v.Message, st)
	rec := o.buildRecommendation(st)
	rec.Tentative = true
	rec.Caveats = append(rec.Caveats, tentativeCaveat)

	now := o.now()
	st = st.WithMessage(state.RoleAssistant, msg, now).WithNextAction(state.NextComplete, now)
	metrics.Turns.WithLabelValues("terminated").Inc()
	o.record(ctx, st.SessionID, logging.KindError, v, nil)
	o.record(ctx, st.SessionID, logging.KindRecommendation, rec, nil)
	return TurnResult{AssistantMessage: msg, State: st, Terminated: true, Recommendation: &rec, Violation: &v}
}

// reasonerUnavailableMessage is the client-visible violation text for an
// outage; the underlying error only goes to the log and the audit trail.
const reasonerUnavailableMessage = "The reasoning service is temporarily unavailable."

func closedMessage(st state.AgentState) string {
	if top, ok := st.TopHypothesis(); ok {
		return "This session is complete. My recommendation was **" + string(top.Entity) + "**. Start a new session to explore other options."
	}
	return "This session is complete. Start a new session to explore other options."
}

func lastAssistant(st state.AgentState) string {
	for i := len(st.ConversationHistory) - 1; i >= 0; i-- {
		if m := st.ConversationHistory[i]; m.Role == state.RoleAssistant {
			return m.Content
		}
	}
	return ""
}

// #endregion

// #region audit

func (o *Orchestrator) record(ctx context.Context, sessionID string, kind logging.EventKind, payload any, meta *logging.EventMetadata) {
	if o.audit == nil {
		return
	}
	o.audit.Record(ctx, logging.AuditEvent{
		SessionID: sessionID,
		Timestamp: o.now(),
		Kind:      kind,
		Payload:   payload,
		Metadata:  meta,
	})
}

// #endregion
