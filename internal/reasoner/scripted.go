package reasoner

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrScriptExhausted is returned once a ScriptedProvider has no steps left
// and no fallback.
var ErrScriptExhausted = errors.New("script exhausted")

// Step is one canned provider outcome.
type Step struct {
	Text         string        `yaml:"text" json:"text"`
	Err          error         `yaml:"-" json:"-"`
	Delay        time.Duration `yaml:"delay" json:"delay"`
	InputTokens  int           `yaml:"input_tokens" json:"input_tokens"`
	OutputTokens int           `yaml:"output_tokens" json:"output_tokens"`
}

// ScriptedProvider replays steps in order. Used by replay fixtures and tests.
type ScriptedProvider struct {
	name  string
	model string

	mu       sync.Mutex
	steps    []Step
	next     int
	calls    int
	fallback *Step
	requests []Request
}

func NewScriptedProvider(name, model string, steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{name: name, model: model, steps: steps}
}

func (p *ScriptedProvider) Name() string  { return p.name }
func (p *ScriptedProvider) Model() string { return p.model }

// SetFallback sets the step returned after the script runs out.
func (p *ScriptedProvider) SetFallback(s Step) {
	p.mu.Lock()
	p.fallback = &s
	p.mu.Unlock()
}

// Push appends steps.
func (p *ScriptedProvider) Push(steps ...Step) {
	p.mu.Lock()
	p.steps = append(p.steps, steps...)
	p.mu.Unlock()
}

// Calls returns how many times Complete was invoked.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Requests returns the requests seen so far.
func (p *ScriptedProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

func (p *ScriptedProvider) Complete(ctx context.Context, req Request) (Response, error) {
	p.mu.Lock()
	p.calls++
	p.requests = append(p.requests, req)
	var step Step
	switch {
	case p.next < len(p.steps):
		step = p.steps[p.next]
		p.next++
	case p.fallback != nil:
		step = *p.fallback
	default:
		p.mu.Unlock()
		return Response{}, ErrScriptExhausted
	}
	p.mu.Unlock()

	if step.Delay > 0 {
		t := time.NewTimer(step.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-t.C:
		}
	}
	if step.Err != nil {
		return Response{}, step.Err
	}

	in, out := step.InputTokens, step.OutputTokens
	if in == 0 {
		in = estimateTokens(req.Messages)
	}
	if out == 0 {
		out = (len(step.Text) + 3) / 4
	}
	return Response{Text: step.Text, Model: p.model, InputTokens: in, OutputTokens: out}, nil
}

// estimateTokens approximates four characters per token.
func estimateTokens(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	return (n + 3) / 4
}
