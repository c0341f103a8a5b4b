// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// #region reasoner
var (
	// ReasonerRequests counts gateway attempts by provider and outcome kind.
	ReasonerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_reasoner_requests_total",
		Help: "Reasoner attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	ReasonerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "advisor_reasoner_latency_seconds",
		Help:    "Reasoner call latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"provider"})

	ReasonerTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_reasoner_tokens_total",
		Help: "Tokens consumed by model and direction",
	}, []string{"model", "direction"})

	ReasonerCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_reasoner_cost_usd_total",
		Help: "Estimated reasoner spend in USD by model",
	}, []string{"model"})

	ReasonerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_reasoner_retries_total",
		Help: "Reasoner retries by provider",
	}, []string{"provider"})

	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "advisor_breaker_state",
		Help: "Circuit breaker position per provider",
	}, []string{"provider"})
)

// #endregion reasoner

// #region turns
var (
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_turns_total",
		Help: "Processed turns by outcome",
	}, []string{"outcome"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisor_turn_duration_seconds",
		Help:    "Wall time per processed turn",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	GuardrailViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_guardrail_violations_total",
		Help: "Guardrail violations by type",
	}, []string{"type"})

	Eliminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_entity_eliminations_total",
		Help: "Hard-constraint eliminations by entity",
	}, []string{"entity"})

	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_recommendations_total",
		Help: "Final recommendations by entity",
	}, []string{"entity"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "advisor_active_sessions",
		Help: "Sessions currently held by the service",
	})
)

// #endregion turns

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
