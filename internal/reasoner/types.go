package reasoner

import (
	"context"
	"time"
)

// #region types
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. SessionID attributes cost in the ledger.
type Request struct {
	SessionID   string
	Purpose     string // think, reflect; used for spans and logs only
	Messages    []Message
	Temperature *float32
	MaxTokens   int
	JSON        bool // ask the provider for a JSON object response
}

// Response is a completed call as seen by the gateway.
type Response struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Latency      time.Duration
}

// Provider is one reasoning backend. Complete must honour ctx cancellation.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// #endregion types

// Temp is a helper for Request.Temperature.
func Temp(t float32) *float32 { return &t }
