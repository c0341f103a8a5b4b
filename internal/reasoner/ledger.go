package reasoner

import (
	"maps"
	"sync"
)

// #region pricing
// Price is USD per one million tokens.
type Price struct {
	Input  float64 `mapstructure:"input" yaml:"input" json:"input"`
	Output float64 `mapstructure:"output" yaml:"output" json:"output"`
}

// DefaultPrice applies to any model missing from the pricing table.
var DefaultPrice = Price{Input: 0.50, Output: 1.00}

// DefaultPricing returns the built-in model rates.
func DefaultPricing() map[string]Price {
	return map[string]Price{
		"llama-3.3-70b-versatile": {Input: 0.59, Output: 0.79},
		"llama-3.1-70b-versatile": {Input: 0.59, Output: 0.79},
		"gpt-4o":                  {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":             {Input: 0.15, Output: 0.60},
		"gpt-4-turbo":             {Input: 10.00, Output: 30.00},
	}
}

// #endregion pricing

// #region ledger
// Usage is the running cost account for one session.
type Usage struct {
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	TotalTokens  int            `json:"total_tokens"`
	Cost         float64        `json:"cost"`
	RequestCount int            `json:"request_count"`
	ModelUsage   map[string]int `json:"model_usage"`
}

// Ledger accumulates per-session token usage and cost. Updates are additive
// under a mutex, so a caller that abandons a turn leaves counts consistent.
type Ledger struct {
	mu       sync.Mutex
	pricing  map[string]Price
	sessions map[string]*Usage
}

// NewLedger creates a ledger. A nil pricing table uses DefaultPricing.
func NewLedger(pricing map[string]Price) *Ledger {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Ledger{pricing: maps.Clone(pricing), sessions: make(map[string]*Usage)}
}

// Cost prices one call.
func (l *Ledger) Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := l.pricing[model]
	if !ok {
		p = DefaultPrice
	}
	return float64(inputTokens)/1e6*p.Input + float64(outputTokens)/1e6*p.Output
}

// Record adds one call to the session and returns its cost.
func (l *Ledger) Record(sessionID, model string, inputTokens, outputTokens int) float64 {
	cost := l.Cost(model, inputTokens, outputTokens)

	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.sessions[sessionID]
	if !ok {
		u = &Usage{ModelUsage: make(map[string]int)}
		l.sessions[sessionID] = u
	}
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.TotalTokens += inputTokens + outputTokens
	u.Cost += cost
	u.RequestCount++
	u.ModelUsage[model]++
	return cost
}

// Usage returns a copy of the session's account. Unknown sessions are zero.
func (l *Ledger) Usage(sessionID string) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.sessions[sessionID]
	if !ok {
		return Usage{ModelUsage: map[string]int{}}
	}
	out := *u
	out.ModelUsage = maps.Clone(u.ModelUsage)
	return out
}

// Forget drops a session's account.
func (l *Ledger) Forget(sessionID string) {
	l.mu.Lock()
	delete(l.sessions, sessionID)
	l.mu.Unlock()
}

// #endregion ledger
