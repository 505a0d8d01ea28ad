package credentials

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// InsecureChannelCredential wraps grpc's insecure.NewCredentials() — no
// transport security at all.
type InsecureChannelCredential struct{}

func NewInsecureChannelCredential() *InsecureChannelCredential { return &InsecureChannelCredential{} }

func (c *InsecureChannelCredential) CompareType() string { return "insecure" }

func (c *InsecureChannelCredential) DuplicateWithoutCallCredentials() ChannelCredential { return c }

// Transport returns the grpc-go transport credentials this channel
// credential wraps.
func (c *InsecureChannelCredential) Transport() credentials.TransportCredentials {
	return insecure.NewCredentials()
}

// FakeChannelCredential is a test-only stand-in channel credential
// (spec.md §8 property 12 / SPEC_FULL.md's fake/insecure equality
// supplement): it never actually secures anything, but carries a distinct
// CompareType so composite equality tests can tell it apart from
// InsecureChannelCredential.
type FakeChannelCredential struct{}

func NewFakeChannelCredential() *FakeChannelCredential { return &FakeChannelCredential{} }

func (c *FakeChannelCredential) CompareType() string { return "fake" }

func (c *FakeChannelCredential) DuplicateWithoutCallCredentials() ChannelCredential { return c }

// TLSChannelCredential wraps grpc-go's credentials.NewTLS.
type TLSChannelCredential struct {
	transport credentials.TransportCredentials
}

func NewTLSChannelCredential(transport credentials.TransportCredentials) *TLSChannelCredential {
	return &TLSChannelCredential{transport: transport}
}

func (c *TLSChannelCredential) CompareType() string { return "tls" }

func (c *TLSChannelCredential) DuplicateWithoutCallCredentials() ChannelCredential { return c }

func (c *TLSChannelCredential) Transport() credentials.TransportCredentials { return c.transport }

// transportChannelCredential is implemented by every ChannelCredential
// variant that carries real grpc-go transport credentials
// (InsecureChannelCredential and TLSChannelCredential; neither
// FakeChannelCredential nor CompositeChannelCredential implements it).
type transportChannelCredential interface {
	ChannelCredential
	Transport() credentials.TransportCredentials
}

// CompositeChannelCredential bundles one inner ChannelCredential with one
// CallCredential (spec.md §4.5's composite-channel rule): the channel
// credential is rejected at request time if its negotiated security level
// would fall below the call credential's minimum, a check enforced here at
// construction since this package treats the channel's level as fixed by
// its variant.
type CompositeChannelCredential struct {
	inner ChannelCredential
	call  CallCredential
}

// NewCompositeChannelCredential pairs inner with call, rejecting the pair
// if inner cannot offer at least call.MinSecurityLevel().
func NewCompositeChannelCredential(inner ChannelCredential, call CallCredential) (*CompositeChannelCredential, error) {
	if channelSecurityLevel(inner) < call.MinSecurityLevel() {
		return nil, newError(ErrInvalidConfig, "channel credential security level is below the call credential's minimum")
	}
	return &CompositeChannelCredential{inner: inner, call: call}, nil
}

func channelSecurityLevel(c ChannelCredential) SecurityLevel {
	switch c.CompareType() {
	case "tls":
		return SecurityLevelPrivacyAndIntegrity
	case "fake":
		return SecurityLevelIntegrityOnly
	default:
		return SecurityLevelNone
	}
}

func (c *CompositeChannelCredential) CompareType() string { return "composite" }

// DuplicateWithoutCallCredentials returns the inner channel credential,
// stripping the bundled call credential (spec.md §4.5).
func (c *CompositeChannelCredential) DuplicateWithoutCallCredentials() ChannelCredential {
	return c.inner
}

// CallCredential returns the bundled call credential, for callers that want
// to invoke it directly without going through a real grpc.Dial.
func (c *CompositeChannelCredential) CallCredential() CallCredential {
	return c.call
}

// Bundle renders this composite as the pair of grpc.DialOptions needed to
// actually dial with it: transport security plus per-RPC credentials. It
// closes the loop the spec calls "deliberately out of scope" (the
// dial/handshake itself) so the credential is directly usable with
// grpc-go's grpc.NewClient.
func (c *CompositeChannelCredential) Bundle() ([]grpc.DialOption, error) {
	tc, ok := c.inner.(transportChannelCredential)
	if !ok {
		return nil, newError(ErrInvalidConfig, "channel credential does not carry grpc-go transport credentials")
	}
	return []grpc.DialOption{
		grpc.WithTransportCredentials(tc.Transport()),
		grpc.WithPerRPCCredentials(perRPCAdapter{call: c.call}),
	}, nil
}

// perRPCAdapter adapts CallCredential to grpc/credentials.PerRPCCredentials:
// it turns the first of the variadic uri strings into the AuthMetadataContext's
// ServiceURL, and derives RequireTransportSecurity from MinSecurityLevel.
type perRPCAdapter struct {
	call CallCredential
}

func (a perRPCAdapter) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	var serviceURL string
	if len(uri) > 0 {
		serviceURL = uri[0]
	}
	return a.call.GetRequestMetadata(ctx, AuthMetadataContext{ServiceURL: serviceURL})
}

func (a perRPCAdapter) RequireTransportSecurity() bool {
	return a.call.MinSecurityLevel() > SecurityLevelNone
}

// StaticIAMCredential is the `[SUPPLEMENT]` static-iam call credential:
// a fixed pair of IAM headers, no network, PRIVACY_AND_INTEGRITY required.
type StaticIAMCredential struct {
	AuthorizationToken string
	AuthoritySelector  string
}

func NewStaticIAMCredential(authorizationToken, authoritySelector string) *StaticIAMCredential {
	return &StaticIAMCredential{AuthorizationToken: authorizationToken, AuthoritySelector: authoritySelector}
}

func (c *StaticIAMCredential) GetRequestMetadata(_ context.Context, _ AuthMetadataContext) (map[string]string, error) {
	return map[string]string{
		"x-goog-iam-authorization-token": c.AuthorizationToken,
		"x-goog-iam-authority-selector":  c.AuthoritySelector,
	}, nil
}

func (c *StaticIAMCredential) Type() string { return "Iam" }

func (c *StaticIAMCredential) MinSecurityLevel() SecurityLevel { return SecurityLevelPrivacyAndIntegrity }

func (c *StaticIAMCredential) DebugString() string { return "StaticIAMCredential" }

// StaticAccessTokenCredential carries a pre-obtained bearer token,
// constant for the life of the credential. No network, no expiry.
type StaticAccessTokenCredential struct {
	AccessToken string
}

func NewStaticAccessTokenCredential(accessToken string) *StaticAccessTokenCredential {
	return &StaticAccessTokenCredential{AccessToken: accessToken}
}

func (c *StaticAccessTokenCredential) GetRequestMetadata(_ context.Context, _ AuthMetadataContext) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.AccessToken}, nil
}

func (c *StaticAccessTokenCredential) Type() string { return "AccessToken" }

func (c *StaticAccessTokenCredential) MinSecurityLevel() SecurityLevel {
	return SecurityLevelPrivacyAndIntegrity
}

func (c *StaticAccessTokenCredential) DebugString() string { return "StaticAccessTokenCredential" }
