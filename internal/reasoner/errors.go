package reasoner

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/entity-advisor/internal/breaker"
)

// #region kinds
// Kind classifies a reasoner failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindMalformed   Kind = "malformed_output"
	KindTransport   Kind = "transport_error"
	KindCircuitOpen Kind = "circuit_open"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Error is the only error type the gateway returns for provider failures.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("reasoner %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("reasoner %s (%s): %v", e.Kind, e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err if it wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

// IsUnavailable reports whether err means no provider could answer.
func IsUnavailable(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k != KindMalformed
}

// #endregion kinds

// #region classify
// classify maps a raw provider or breaker error onto a Kind.
func classify(provider string, err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		if re.Provider == "" {
			re.Provider = provider
		}
		return re
	}

	kind := KindTransport
	switch {
	case errors.Is(err, breaker.ErrCircuitOpen):
		kind = KindCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, ErrEmptyCompletion):
		kind = KindMalformed
	case httpStatus(err) == http.StatusTooManyRequests:
		kind = KindRateLimited
	default:
		switch status.Code(err) {
		case codes.ResourceExhausted:
			kind = KindRateLimited
		case codes.DeadlineExceeded:
			kind = KindTimeout
		}
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}

func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}

// #endregion classify
