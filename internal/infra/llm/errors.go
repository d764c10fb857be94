package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureClass is the provider-independent category of a failed call.
type FailureClass string

const (
	AuthFailure   FailureClass = "auth_failure"
	RateLimited   FailureClass = "rate_limited"
	ProviderError FailureClass = "provider_error"
	Timeout       FailureClass = "timeout"
)

// ErrGenerationFailed matches every *GenerationFailed via errors.Is.
var ErrGenerationFailed = errors.New("llm: generation failed")

// ProviderFailure is a classified error from a single provider call.
// Status is the HTTP status when one was observed, 0 otherwise.
type ProviderFailure struct {
	Class     FailureClass
	Status    int
	Retryable bool
	Err       error
}

func (f *ProviderFailure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("llm: %s (status %d): %v", f.Class, f.Status, f.Err)
	}
	return fmt.Sprintf("llm: %s: %v", f.Class, f.Err)
}

func (f *ProviderFailure) Unwrap() error { return f.Err }

// GenerationFailed is the terminal error of GenerationClient.Complete.
type GenerationFailed struct {
	Class    FailureClass
	Attempts int
	Cause    error
}

func (e *GenerationFailed) Error() string {
	return fmt.Sprintf("llm: generation failed after %d attempt(s) (%s): %v", e.Attempts, e.Class, e.Cause)
}

func (e *GenerationFailed) Unwrap() error { return e.Cause }

// Is reports ErrGenerationFailed as a match.
func (e *GenerationFailed) Is(target error) bool { return target == ErrGenerationFailed }

// classifyStatus maps an HTTP status to a failure:
// 401/403 never retried, 429 and 5xx retried, other 4xx not retried.
func classifyStatus(status int, err error) *ProviderFailure {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderFailure{Class: AuthFailure, Status: status, Err: err}
	case status == http.StatusTooManyRequests:
		return &ProviderFailure{Class: RateLimited, Status: status, Retryable: true, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &ProviderFailure{Class: Timeout, Status: status, Retryable: true, Err: err}
	case status >= 500:
		return &ProviderFailure{Class: ProviderError, Status: status, Retryable: true, Err: err}
	default:
		return &ProviderFailure{Class: ProviderError, Status: status, Err: err}
	}
}

// classifyTransport handles errors that never produced an HTTP status.
func classifyTransport(err error) *ProviderFailure {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ProviderFailure{Class: Timeout, Retryable: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ProviderFailure{Class: Timeout, Err: err}
	}
	return &ProviderFailure{Class: ProviderError, Retryable: true, Err: err}
}

// malformed reports a response that arrived but cannot be used.
func malformed(format string, args ...any) *ProviderFailure {
	return &ProviderFailure{Class: ProviderError, Retryable: true, Err: fmt.Errorf(format, args...)}
}

// Classify returns the *ProviderFailure in err's chain, classifying plain
// errors as transport failures.
func Classify(err error) *ProviderFailure {
	var f *ProviderFailure
	if errors.As(err, &f) {
		return f
	}
	return classifyTransport(err)
}
