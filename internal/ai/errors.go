package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthError indicates authentication/authorization failures (401/403) or a missing key.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError indicates the requested model is not available.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError indicates a 400 validation problem.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates billing/quota problems.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError indicates the target runtime is not reachable (e.g., local Ollama down).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// ErrorKind names the class of a completion failure for logs and metrics.
func ErrorKind(err error) string {
	var (
		auth    *AuthError
		rate    *RateLimitError
		missing *ModelNotFoundError
		bad     *BadRequestError
		quota   *QuotaExceededError
		server  *ServerError
		down    *UnreachableError
		api     *APIError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &auth):
		return "auth"
	case errors.As(err, &rate):
		return "rate_limit"
	case errors.As(err, &missing):
		return "model_not_found"
	case errors.As(err, &bad):
		return "bad_request"
	case errors.As(err, &quota):
		return "quota"
	case errors.As(err, &server):
		return "server"
	case errors.As(err, &down):
		return "unreachable"
	case errors.As(err, &api):
		return "api"
	}
	return "other"
}
