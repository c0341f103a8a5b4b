package reasoner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/entity-advisor/internal/breaker"
	"github.com/danielpatrickdp/entity-advisor/internal/metrics"
)

// #region config
// Config tunes retries, timeouts and per-provider protection.
type Config struct {
	MaxAttempts    int            `mapstructure:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration  `mapstructure:"initial_backoff" validate:"min=0"`
	MaxBackoff     time.Duration  `mapstructure:"max_backoff" validate:"min=0"`
	Multiplier     float64        `mapstructure:"multiplier" validate:"gte=1"`
	Jitter         float64        `mapstructure:"jitter" validate:"gte=0,lte=1"`
	CallTimeout    time.Duration  `mapstructure:"call_timeout" validate:"gt=0"`
	RatePerSecond  float64        `mapstructure:"rate_per_second" validate:"gte=0"` // 0 disables limiting
	Burst          int            `mapstructure:"burst" validate:"gte=0"`
	Breaker        breaker.Config `mapstructure:"breaker"`
}

// DefaultConfig returns production settings: three attempts, exponential
// backoff from one second, 30s per attempt.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
		Jitter:         0,
		CallTimeout:    30 * time.Second,
		RatePerSecond:  2,
		Burst:          4,
		Breaker:        breaker.DefaultConfig(),
	}
}

// #endregion config

// #region gateway
type route struct {
	provider Provider
	breaker  *breaker.Breaker
	limiter  *rate.Limiter
}

// Gateway calls providers in order, with retry, a breaker and a rate limiter
// per provider, and charges every success to the ledger.
type Gateway struct {
	routes []*route
	ledger *Ledger
	config Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewGateway wires providers in failover order. breakerOpts apply to every
// provider's breaker (tests pass a fake clock).
func NewGateway(providers []Provider, ledger *Ledger, config Config, logger *zap.Logger, breakerOpts ...breaker.Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ledger == nil {
		ledger = NewLedger(nil)
	}
	logger = logger.With(zap.String("component", "reasoner"))

	g := &Gateway{ledger: ledger, config: config, logger: logger, tracer: otel.Tracer("reasoner")}
	for _, p := range providers {
		limit := rate.Inf
		if config.RatePerSecond > 0 {
			limit = rate.Limit(config.RatePerSecond)
		}
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		opts := append([]breaker.Option{breaker.WithStateChange(g.onBreakerChange)}, breakerOpts...)
		g.routes = append(g.routes, &route{
			provider: p,
			breaker:  breaker.New(p.Name(), config.Breaker, opts...),
			limiter:  rate.NewLimiter(limit, burst),
		})
		metrics.BreakerState.WithLabelValues(p.Name()).Set(float64(breaker.Closed))
	}
	return g
}

// Ledger returns the cost ledger.
func (g *Gateway) Ledger() *Ledger { return g.ledger }

// Breakers returns a stats snapshot per provider, in failover order.
func (g *Gateway) Breakers() []breaker.Stats {
	out := make([]breaker.Stats, len(g.routes))
	for i, r := range g.routes {
		out[i] = r.breaker.Stats()
	}
	return out
}

// ResetBreaker closes the named provider's breaker.
func (g *Gateway) ResetBreaker(name string) bool {
	for _, r := range g.routes {
		if r.provider.Name() == name {
			r.breaker.Reset()
			return true
		}
	}
	return false
}

// #endregion gateway

// #region complete
// Complete returns the first successful provider response. On total failure
// the returned error is the last provider's *Error.
func (g *Gateway) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := g.tracer.Start(ctx, "reasoner.Complete", trace.WithAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.String("purpose", req.Purpose),
	))
	defer span.End()

	if len(g.routes) == 0 {
		err := &Error{Kind: KindTransport, Err: errors.New("no providers configured")}
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}

	var lastErr error
	for _, r := range g.routes {
		resp, err := g.try(ctx, r, req)
		if err == nil {
			resp.Cost = g.ledger.Record(req.SessionID, resp.Model, resp.InputTokens, resp.OutputTokens)
			metrics.ReasonerTokens.WithLabelValues(resp.Model, "input").Add(float64(resp.InputTokens))
			metrics.ReasonerTokens.WithLabelValues(resp.Model, "output").Add(float64(resp.OutputTokens))
			metrics.ReasonerCost.WithLabelValues(resp.Model).Add(resp.Cost)
			span.SetAttributes(
				attribute.String("provider", resp.Provider),
				attribute.Int("input_tokens", resp.InputTokens),
				attribute.Int("output_tokens", resp.OutputTokens),
			)
			span.SetStatus(codes.Ok, "success")
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		g.logger.Warn("provider failed, trying next",
			zap.String("provider", r.provider.Name()),
			zap.String("session_id", req.SessionID),
			zap.Error(err))
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "all providers failed")
	return Response{}, lastErr
}

// try runs the retry loop against one provider. Every attempt passes through
// the breaker and has its own timeout.
func (g *Gateway) try(ctx context.Context, r *route, req Request) (Response, error) {
	name := r.provider.Name()

	op := func() (Response, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return Response{}, backoff.Permanent(classify(name, ctx.Err()))
			}
			return Response{}, backoff.Permanent(&Error{Kind: KindRateLimited, Provider: name, Err: err})
		}

		var resp Response
		start := time.Now()
		err := r.breaker.Execute(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, g.config.CallTimeout)
			defer cancel()
			var err error
			resp, err = r.provider.Complete(callCtx, req)
			if err == nil && strings.TrimSpace(resp.Text) == "" {
				err = ErrEmptyCompletion
			}
			return err
		})
		elapsed := time.Since(start)

		if err != nil {
			re := classify(name, err)
			metrics.ReasonerRequests.WithLabelValues(name, string(re.Kind)).Inc()
			if re.Kind == KindCircuitOpen || errors.Is(err, context.Canceled) {
				return Response{}, backoff.Permanent(re)
			}
			return Response{}, re
		}

		metrics.ReasonerRequests.WithLabelValues(name, "ok").Inc()
		metrics.ReasonerLatency.WithLabelValues(name).Observe(elapsed.Seconds())
		resp.Provider = name
		if resp.Model == "" {
			resp.Model = r.provider.Model()
		}
		resp.Latency = elapsed
		return resp, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = g.config.InitialBackoff
	eb.MaxInterval = g.config.MaxBackoff
	eb.Multiplier = g.config.Multiplier
	eb.RandomizationFactor = g.config.Jitter

	attempts := g.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.ReasonerRetries.WithLabelValues(name).Inc()
			g.logger.Debug("retrying reasoner call",
				zap.String("provider", name),
				zap.String("session_id", req.SessionID),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	if err != nil {
		if _, ok := KindOf(err); !ok {
			err = classify(name, fmt.Errorf("retry: %w", err))
		}
		return Response{}, err
	}
	return resp, nil
}

// #endregion complete

func (g *Gateway) onBreakerChange(name string, from, to breaker.State) {
	metrics.BreakerState.WithLabelValues(name).Set(float64(to))
	g.logger.Info("breaker transition",
		zap.String("provider", name),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
}
