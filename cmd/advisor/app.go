package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/entity-advisor/internal/advisor"
	"github.com/danielpatrickdp/entity-advisor/internal/config"
	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/logging"
	"github.com/danielpatrickdp/entity-advisor/internal/orchestrator"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// scriptedThought keeps an offline advisor asking gap questions.
const scriptedThought = `{"reasoning":"offline","action":"ask_question","confidence":0.5,"priority":5}`

// app is the wired process: one service over one repository and gateway.
type app struct {
	svc     *advisor.Service
	gateway *reasoner.Gateway
	repo    state.Repository
	db      *sql.DB // non-nil for the sqlite driver
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// #region wiring

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	repo, db, err := openRepository(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.repo, a.db = repo, db
	a.closers = append(a.closers, repo.Close)

	providers, closers, err := buildProviders(ctx, cfg.Providers)
	a.closers = append(a.closers, closers...)
	if err != nil {
		return nil, err
	}

	ledger := reasoner.NewLedger(cfg.PriceTable())
	a.gateway = reasoner.NewGateway(providers, ledger, cfg.Reasoner, logger)
	tracker := guardrail.NewTracker(ledger)

	sinks := []logging.Sink{logging.NewZapSink(logger)}
	if db != nil {
		sinks = append(sinks, logging.NewSQLiteSink(db))
	}

	orch := orchestrator.New(orchestrator.Deps{
		Reasoner:   a.gateway,
		Supervisor: guardrail.NewSupervisor(cfg.Guardrail, logger),
		Tracker:    tracker,
		Audit:      logging.NewRecorder(logger, sinks...),
		Logger:     logger,
	}, cfg.Orchestrator, orchestrator.WithGapPolicy(cfg.GapPolicy))

	a.svc = advisor.NewService(repo, orch, ledger, tracker, logger)
	ok = true
	return a, nil
}

func openRepository(ctx context.Context, sc config.StoreConfig) (state.Repository, *sql.DB, error) {
	switch sc.Driver {
	case "memory":
		return state.NewMemoryStore(), nil, nil
	case "sqlite":
		s, err := state.NewSQLiteStore(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.DB(), nil
	case "redis":
		s, err := state.NewRedisStore(ctx, sc.RedisURL, sc.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func buildProviders(ctx context.Context, pcs []config.ProviderConfig) ([]reasoner.Provider, []func() error, error) {
	var (
		out     []reasoner.Provider
		closers []func() error
	)
	for _, pc := range pcs {
		switch pc.Kind {
		case config.KindOpenAI:
			out = append(out, reasoner.NewOpenAIProvider(pc.Name, pc.APIKey(), pc.BaseURL, pc.Model))
		case config.KindGemini:
			p, err := reasoner.NewGeminiProvider(ctx, pc.Name, pc.APIKey(), pc.BaseURL, pc.Model)
			if err != nil {
				return nil, closers, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			out = append(out, p)
		case config.KindGRPC:
			p, err := reasoner.NewGRPCProvider(pc.Name, pc.Address, pc.Model)
			if err != nil {
				return nil, closers, fmt.Errorf("provider %s: %w", pc.Name, err)
			}
			out = append(out, p)
			closers = append(closers, p.Close)
		case config.KindScripted:
			p := reasoner.NewScriptedProvider(pc.Name, pc.Model)
			p.SetFallback(reasoner.Step{Text: scriptedThought})
			out = append(out, p)
		default:
			return nil, closers, fmt.Errorf("provider %s: unknown kind %q", pc.Name, pc.Kind)
		}
	}
	return out, closers, nil
}

// #endregion wiring
