package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/metrics"
	"github.com/danielpatrickdp/entity-advisor/internal/orchestrator"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// ErrEmptyUtterance is returned for blank user input.
var ErrEmptyUtterance = errors.New("utterance is empty")

// #region service
// Service owns the session lifecycle: it loads state, runs one turn at a
// time per session and persists the result.
type Service struct {
	repo    state.Repository
	orch    *orchestrator.Orchestrator
	ledger  *reasoner.Ledger
	tracker *guardrail.Tracker
	logger  *zap.Logger
	locks   *keyedMutex
	now     func() time.Time
	newID   func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs replaces the uuid session id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(repo state.Repository, orch *orchestrator.Orchestrator, ledger *reasoner.Ledger, tracker *guardrail.Tracker, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:    repo,
		orch:    orch,
		ledger:  ledger,
		tracker: tracker,
		logger:  logger.With(zap.String("component", "advisor")),
		locks:   newKeyedMutex(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// #endregion service

// #region lifecycle
// OpenSession creates a session and returns its opening question.
func (s *Service) OpenSession(ctx context.Context) (orchestrator.TurnResult, error) {
	id := s.newID()
	res := s.orch.Start(ctx, state.NewAgentState(id, s.now()))
	if err := s.repo.Put(ctx, res.State); err != nil {
		return orchestrator.TurnResult{}, fmt.Errorf("save session: %w", err)
	}
	metrics.ActiveSessions.Inc()
	s.logger.Info("session opened", zap.String("session_id", id))
	return res, nil
}

// ProcessTurn runs one user turn. Turns for the same session are serialized;
// distinct sessions proceed in parallel. State is persisted only when the
// turn completes, so a canceled turn leaves the stored session untouched.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, utterance string) (orchestrator.TurnResult, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return orchestrator.TurnResult{}, ErrEmptyUtterance
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return orchestrator.TurnResult{}, err
	}
	defer unlock()

	st, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return orchestrator.TurnResult{}, err
	}
	wasTerminated := st.Terminated()

	res, err := s.orch.ProcessTurn(ctx, st, utterance)
	if err != nil {
		return orchestrator.TurnResult{}, err
	}
	if wasTerminated {
		return res, nil
	}
	if err := s.repo.Put(ctx, res.State); err != nil {
		return orchestrator.TurnResult{}, fmt.Errorf("save session: %w", err)
	}
	if res.Terminated {
		metrics.ActiveSessions.Dec()
		s.logger.Info("session concluded",
			zap.String("session_id", sessionID),
			zap.Int("iterations", res.State.IterationCount),
			zap.Float64("cost", s.ledger.Usage(sessionID).Cost))
	}
	return res, nil
}

// Session returns the stored state.
func (s *Service) Session(ctx context.Context, sessionID string) (state.AgentState, error) {
	return s.repo.Get(ctx, sessionID)
}

// Sessions lists stored sessions, most recently updated first.
func (s *Service) Sessions(ctx context.Context, limit int) ([]state.SessionSummary, error) {
	return s.repo.List(ctx, limit)
}

// Usage returns the session's reasoner spend.
func (s *Service) Usage(sessionID string) reasoner.Usage {
	return s.ledger.Usage(sessionID)
}

// Evict drops in-memory accounting for a session but keeps it stored.
func (s *Service) Evict(sessionID string) {
	s.ledger.Forget(sessionID)
	s.tracker.Forget(sessionID)
}

// Close deletes the session and its accounting.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	st, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !st.Terminated() {
		metrics.ActiveSessions.Dec()
	}
	s.Evict(sessionID)
	s.logger.Info("session closed", zap.String("session_id", sessionID))
	return nil
}

// #endregion lifecycle
