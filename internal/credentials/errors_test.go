package credentials

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestError_IsComparesByKind(t *testing.T) {
	a := newError(ErrInvalidConfig, "first message")
	b := newError(ErrInvalidConfig, "second message")
	c := newError(ErrFileIO, "third message")

	if !errors.Is(a, b) {
		t.Fatalf("two errors of the same kind should compare equal via errors.Is")
	}
	if errors.Is(a, c) {
		t.Fatalf("errors of different kinds should not compare equal")
	}
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("underlying failure")
	wrapped := wrapError(ErrHTTPTransport, "wrapping context", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("errors.Is should see through to the wrapped cause")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Fatalf("Unwrap() did not return the original cause")
	}
}

func TestError_ToStatusMapsKindToCode(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		code codes.Code
	}{
		{ErrInvalidConfig, codes.InvalidArgument},
		{ErrFileIO, codes.Unavailable},
		{ErrHTTPTransport, codes.Unavailable},
		{ErrHTTPStatus, codes.Unauthenticated},
		{ErrResponseParse, codes.Unauthenticated},
		{ErrSigning, codes.Unauthenticated},
		{ErrPluginFailure, codes.Unauthenticated},
		{ErrCancelled, codes.Canceled},
	}
	for _, tt := range tests {
		got := newError(tt.kind, "msg").ToStatus()
		if got.Code() != tt.code {
			t.Errorf("kind %v: status code = %v, want %v", tt.kind, got.Code(), tt.code)
		}
	}
}

func TestWrapOAuth2FetchFailure_PreservesInnerKindAndAddsPrefix(t *testing.T) {
	inner := newError(ErrHTTPStatus, "token endpoint returned 401")
	wrapped := wrapOAuth2FetchFailure(inner)

	if wrapped.Kind != ErrHTTPStatus {
		t.Fatalf("wrapped.Kind = %v, want the inner error's kind ErrHTTPStatus", wrapped.Kind)
	}
	if wrapped.Message != oauth2FetchPrefix {
		t.Fatalf("wrapped.Message = %q, want the fixed prefix %q", wrapped.Message, oauth2FetchPrefix)
	}
}

func TestCancelledError_Kind(t *testing.T) {
	if cancelledError().Kind != ErrCancelled {
		t.Fatalf("cancelledError() should carry ErrCancelled")
	}
}
