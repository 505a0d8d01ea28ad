// Package credentials implements the call-credentials subsystem for an RPC
// client stack: it produces the authentication metadata (typically an
// "authorization" header carrying a bearer token) attached to every outgoing
// RPC, and composes multiple credential sources together.
//
// The type hierarchy mirrors grpc-core's credential split: a ChannelCredential
// carries transport-security material, a CallCredential produces per-call
// metadata. Both are closed sets of concrete variants plus a catch-all for
// user-supplied plugins, modeled as Go interfaces rather than the virtual
// inheritance the original C++ implementation used.
package credentials

import (
	"context"
	"time"
)

// SecurityLevel is a totally ordered ranking of the confidentiality a
// transport or credential requires/provides. Composites take the max of
// their parts.
type SecurityLevel int

const (
	SecurityLevelNone SecurityLevel = iota
	SecurityLevelIntegrityOnly
	SecurityLevelPrivacyAndIntegrity
)

func (s SecurityLevel) String() string {
	switch s {
	case SecurityLevelNone:
		return "NONE"
	case SecurityLevelIntegrityOnly:
		return "INTEGRITY_ONLY"
	case SecurityLevelPrivacyAndIntegrity:
		return "PRIVACY_AND_INTEGRITY"
	default:
		return "UNKNOWN"
	}
}

// MaxSecurityLevel returns the highest of the given levels, or
// SecurityLevelNone for an empty list.
func MaxSecurityLevel(levels ...SecurityLevel) SecurityLevel {
	max := SecurityLevelNone
	for _, l := range levels {
		if l > max {
			max = l
		}
	}
	return max
}

// CallCredential produces request metadata for a single outgoing RPC. Its
// GetRequestMetadata takes an AuthMetadataContext instead of the variadic
// uri strings of google.golang.org/grpc/credentials.PerRPCCredentials, and it
// has no RequireTransportSecurity method, so it is not a PerRPCCredentials
// itself: CompositeChannelCredential.Bundle wraps it in an adapter for
// grpc.WithPerRPCCredentials. ctx cancellation stands in for the spec's
// explicit per-waiter cancellation.
type CallCredential interface {
	// GetRequestMetadata returns the metadata to attach to the outgoing
	// call described by authCtx. A credential backed by a live cache
	// returns synchronously; one that must fetch over the network blocks
	// until the fetch completes or ctx is cancelled.
	GetRequestMetadata(ctx context.Context, authCtx AuthMetadataContext) (map[string]string, error)

	// Type returns a short, stable string identifying the credential kind
	// ("Oauth2", "Iam", "Plugin", "Composite", ...) for introspection.
	Type() string

	// MinSecurityLevel is the minimum transport security this credential
	// requires to be used safely.
	MinSecurityLevel() SecurityLevel

	// DebugString returns a human-readable, non-secret description.
	DebugString() string
}

// ChannelCredential carries transport-security material. It is deliberately
// small: the TLS/handshaker stack itself is out of scope for this package
// (see spec.md §1); ChannelCredential only needs to compare, describe, and
// optionally bundle a CallCredential for composite construction.
type ChannelCredential interface {
	// CompareType returns a type tag used by the equality comparator in
	// testable property 12 ("insecure"/"fake"/"tls"/"composite").
	CompareType() string

	// DuplicateWithoutCallCredentials returns the inner ChannelCredential
	// with any bundled CallCredential stripped (itself, if none bundled).
	DuplicateWithoutCallCredentials() ChannelCredential
}

// CachedToken is the value stored by an OAuth2Fetcher (or, keyed per
// audience, by a JWTAccessCredential).
type CachedToken struct {
	Value         string
	Expiry        time.Time
	SecurityLevel SecurityLevel
}

// Valid reports whether the token is still usable at the given instant.
func (c CachedToken) Valid(now time.Time) bool {
	return c.Value != "" && now.Before(c.Expiry)
}

// OAuth2Response is the parsed form of an OAuth2/STS JSON token response
// (spec.md §3, §6). TokenType must compare case-insensitively equal to
// "Bearer" for the response to be considered valid.
type OAuth2Response struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// AuthMetadataContext is produced by the auth-metadata-context builder (C12)
// from the outgoing call's URL scheme, authority, and method path. It is
// passed to any CallCredential that needs per-call context (JWT-access,
// metadata plugins).
type AuthMetadataContext struct {
	ServiceURL         string
	MethodName         string
	ChannelAuthContext any
}
