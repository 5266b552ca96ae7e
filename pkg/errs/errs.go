// Package errs defines the error kinds every component reports at its boundary.
//
// Callers check the kind rather than matching message text:
//
//	if errs.Is(err, errs.KindConfiguration) { ... }
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindConfiguration covers missing API keys and unknown target databases.
	KindConfiguration Kind = "configuration"
	// KindDatabase covers SQL execution failures and rejected statements.
	KindDatabase Kind = "database"
	// KindUpstreamAPI covers non-2xx or malformed responses from a third-party provider.
	KindUpstreamAPI Kind = "upstream_api"
	// KindParse covers model output that does not match the expected shape.
	KindParse Kind = "parse"
	// KindTimeout covers outbound calls that exceeded their deadline.
	KindTimeout Kind = "timeout"
	// KindStorageUnavailable covers an unreachable database.
	KindStorageUnavailable Kind = "storage_unavailable"
	// KindStepLimit is returned when the dispatcher exhausts its step budget.
	KindStepLimit Kind = "step_limit"
)

// Error wraps an error with a kind and a human-readable message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
	// StatusCode is set for upstream HTTP failures.
	StatusCode int   `json:"status_code,omitempty"`
	Err        error `json:"-"`
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A deadline cause always yields KindTimeout,
// whatever kind was requested. Cancellation keeps the requested kind.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// Upstream builds a KindUpstreamAPI error for a non-2xx response.
func Upstream(op string, status int, body string) *Error {
	return &Error{
		Kind:       KindUpstreamAPI,
		Op:         op,
		Message:    fmt.Sprintf("API call failed with status code %d: %s", status, body),
		StatusCode: status,
	}
}

// KindOf returns the kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As converts err into an *Error, classifying unknown errors with fallback.
func As(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	return Wrap(fallback, "", err)
}
