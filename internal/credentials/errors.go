package credentials

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies a credentials-subsystem failure (spec.md §7).
type ErrorKind string

const (
	ErrInvalidConfig  ErrorKind = "INVALID_CONFIG"
	ErrFileIO         ErrorKind = "FILE_IO"
	ErrHTTPTransport  ErrorKind = "HTTP_TRANSPORT"
	ErrHTTPStatus     ErrorKind = "HTTP_STATUS"
	ErrResponseParse  ErrorKind = "RESPONSE_PARSE"
	ErrSigning        ErrorKind = "SIGNING"
	ErrPluginFailure  ErrorKind = "PLUGIN_FAILURE"
	ErrCancelled      ErrorKind = "CANCELLED"
)

// oauth2FetchPrefix is prepended, verbatim, to every error the C5 base
// produces when a token fetch fails (spec.md §4.1, §7).
const oauth2FetchPrefix = "Error occurred when fetching oauth2 token."

// Error is the single error type produced by this package. It wraps an
// ErrorKind, a human-readable message, and an optional underlying cause,
// and can be projected to a grpc status code for callers that want to
// surface the failure over RPC.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Code maps an ErrorKind onto the closest grpc status code.
func (k ErrorKind) Code() codes.Code {
	switch k {
	case ErrInvalidConfig:
		return codes.InvalidArgument
	case ErrFileIO, ErrHTTPTransport:
		return codes.Unavailable
	case ErrHTTPStatus, ErrResponseParse, ErrSigning, ErrPluginFailure:
		return codes.Unauthenticated
	case ErrCancelled:
		return codes.Canceled
	default:
		return codes.Unknown
	}
}

// ToStatus projects the error onto a *status.Status for callers that
// propagate credential failures as part of a gRPC response.
func (e *Error) ToStatus() *status.Status {
	return status.New(e.Kind.Code(), e.Error())
}

// wrapOAuth2FetchFailure implements the C5 boundary wrapping rule: every
// token-acquisition failure is reported with the fixed prefix
// "Error occurred when fetching oauth2 token." and the child error attached
// as the cause.
func wrapOAuth2FetchFailure(cause error) *Error {
	kind := ErrHTTPTransport
	var ce *Error
	if errors.As(cause, &ce) {
		kind = ce.Kind
	}
	return wrapError(kind, oauth2FetchPrefix, cause)
}

// cancelledError builds the fixed-shape error delivered to a waiter whose
// individual request was cancelled (spec.md §4.1, §5).
func cancelledError() *Error {
	return newError(ErrCancelled, "request metadata fetch cancelled")
}
