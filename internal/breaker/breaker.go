package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the call while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// #region state
// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	}
	return "Unknown"
}

// #endregion state

// #region config
// Config tunes when the breaker trips and recovers.
type Config struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"min=1"` // consecutive failures that open the circuit
	SuccessThreshold int           `mapstructure:"success_threshold" validate:"min=1"` // consecutive half-open successes that close it
	OpenTimeout      time.Duration `mapstructure:"open_timeout" validate:"gt=0"`       // time spent open before a probe is allowed
	HalfOpenMax      int           `mapstructure:"half_open_max" validate:"min=1"`     // concurrent probes while half-open
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
		HalfOpenMax:      1,
	}
}

// Stats is a point-in-time view of one breaker.
type Stats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	TotalCalls      int64     `json:"total_calls"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejections int64     `json:"total_rejections"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastStateChange time.Time `json:"last_state_change"`
}

// #endregion config

// #region breaker
// Breaker guards one external dependency. Safe for concurrent use.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	// OnStateChange, when set, is called with the lock released after every transition.
	onStateChange func(name string, from, to State)

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	halfOpenActive  int
	lastFailure     time.Time
	lastStateChange time.Time
	totalCalls      int64
	totalFailures   int64
	totalRejections int64
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithStateChange registers a transition observer.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onStateChange = fn }
}

// New creates a closed breaker.
func New(name string, config Config, opts ...Option) *Breaker {
	if config.HalfOpenMax <= 0 {
		config.HalfOpenMax = 1
	}
	b := &Breaker{name: name, config: config, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	b.lastStateChange = b.now()
	return b
}

// Name returns the guarded dependency's name.
func (b *Breaker) Name() string { return b.name }

// State returns the current position. An open breaker whose timeout has
// elapsed still reports Open until the next attempt observes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// #endregion breaker

// #region execute
// Execute runs fn if the breaker admits it and records the outcome. Caller
// cancellation (context.Canceled) is neither a success nor a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	release, err := b.allow()
	if err != nil {
		return err
	}
	defer release()

	err = fn(ctx)
	switch {
	case err == nil:
		b.RecordSuccess()
	case errors.Is(err, context.Canceled):
	default:
		b.RecordFailure()
	}
	return err
}

// allow admits or rejects one call and returns its release func.
func (b *Breaker) allow() (func(), error) {
	b.mu.Lock()
	b.totalCalls++

	var transitions []transition
	switch b.state {
	case Open:
		if b.now().Sub(b.lastStateChange) < b.config.OpenTimeout {
			b.totalRejections++
			b.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		transitions = append(transitions, b.transitionLocked(HalfOpen))
		fallthrough
	case HalfOpen:
		if b.halfOpenActive >= b.config.HalfOpenMax {
			b.totalRejections++
			b.mu.Unlock()
			b.notify(transitions)
			return nil, ErrCircuitOpen
		}
		b.halfOpenActive++
		b.mu.Unlock()
		b.notify(transitions)
		return func() {
			b.mu.Lock()
			if b.halfOpenActive > 0 {
				b.halfOpenActive--
			}
			b.mu.Unlock()
		}, nil
	}
	b.mu.Unlock()
	return func() {}, nil
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	var transitions []transition
	b.failures = 0
	if b.state == HalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			transitions = append(transitions, b.transitionLocked(Closed))
		}
	}
	b.mu.Unlock()
	b.notify(transitions)
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	var transitions []transition
	b.totalFailures++
	b.lastFailure = b.now()
	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			transitions = append(transitions, b.transitionLocked(Open))
		}
	case HalfOpen:
		transitions = append(transitions, b.transitionLocked(Open))
	}
	b.mu.Unlock()
	b.notify(transitions)
}

// Reset forces the breaker closed and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	var transitions []transition
	if b.state != Closed {
		transitions = append(transitions, b.transitionLocked(Closed))
	}
	b.failures, b.successes = 0, 0
	b.mu.Unlock()
	b.notify(transitions)
}

// Stats returns a snapshot of counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:            b.name,
		State:           b.state.String(),
		FailureCount:    b.failures,
		SuccessCount:    b.successes,
		TotalCalls:      b.totalCalls,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
		LastFailureTime: b.lastFailure,
		LastStateChange: b.lastStateChange,
	}
}

// #endregion execute

// #region transitions
type transition struct{ from, to State }

// transitionLocked must be called with mu held.
func (b *Breaker) transitionLocked(to State) transition {
	from := b.state
	b.state = to
	b.lastStateChange = b.now()
	b.successes = 0
	if to == Closed || to == Open {
		b.failures = 0
	}
	return transition{from, to}
}

func (b *Breaker) notify(ts []transition) {
	if b.onStateChange == nil {
		return
	}
	for _, t := range ts {
		b.onStateChange(b.name, t.from, t.to)
	}
}

// #endregion transitions
