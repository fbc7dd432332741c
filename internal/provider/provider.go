// Package provider defines the black-box contract to language-model
// backends and the adapters that satisfy it. The core never sees a
// provider's wire format; it sees rendered text in and content plus token
// usage out.
package provider

import (
	"context"
	"fmt"
)

// Request is a fully rendered call to one model.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature *float64
	MaxTokens   int64
}

// Response is the normalized provider reply.
type Response struct {
	Content      string
	Raw          string
	InputTokens  int64
	OutputTokens int64
}

// Invoker performs a single model call. Implementations must be safe for
// concurrent use.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// ErrorKind classifies provider failures for retry policy.
type ErrorKind string

const (
	ErrRateLimited ErrorKind = "rate_limited"
	ErrAuth        ErrorKind = "auth"
	ErrMalformed   ErrorKind = "malformed_response"
	ErrNetwork     ErrorKind = "network"
	ErrTimeout     ErrorKind = "timeout"
)

// Error is the typed failure every adapter returns. Rate-limit, network,
// and timeout errors are transient and retried with backoff; auth and
// malformed-response errors are not.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is safe to retry.
func (e *Error) Transient() bool {
	switch e.Kind {
	case ErrRateLimited, ErrNetwork, ErrTimeout:
		return true
	}
	return false
}
