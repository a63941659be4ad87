package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureKind categorizes agent request failures for retry decisions and
// graceful degradation at the call site.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureAuth        FailureKind = "auth_failed"
	FailureTimeout     FailureKind = "timeout"
	FailureAPI         FailureKind = "api_error"
)

// Retryable reports whether a failure of this kind may succeed on retry.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureRateLimited, FailureTimeout, FailureAPI:
		return true
	}
	return false
}

// Error is a classified agent failure.
type Error struct {
	Kind     FailureKind
	Provider string
	Status   int
	Cause    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("agent: %s [%s status=%d]: %v", e.Provider, e.Kind, e.Status, e.Cause)
	}
	return fmt.Sprintf("agent: %s [%s]: %v", e.Provider, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the failure kind from an error chain, defaulting to
// FailureAPI for unclassified errors.
func KindOf(err error) FailureKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return FailureAPI
}

// classify maps a transport error to the failure taxonomy using the HTTP
// status when the SDK exposes one, falling back to error-text inspection.
func classify(provider string, status int, err error) *Error {
	kind := FailureAPI
	switch {
	case status == 429:
		kind = FailureRateLimited
	case status == 401 || status == 403:
		kind = FailureAuth
	case errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err):
		kind = FailureTimeout
	case status == 0 && err != nil:
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
			kind = FailureRateLimited
		case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
			kind = FailureTimeout
		case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key"):
			kind = FailureAuth
		}
	}
	return &Error{Kind: kind, Provider: provider, Status: status, Cause: err}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
