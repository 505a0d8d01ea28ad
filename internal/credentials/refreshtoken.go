package credentials

import (
	"context"
)

const oauth2TokenEndpoint = "https://oauth2.googleapis.com:443/token"

// RefreshTokenOptions holds the fields read from an "authorized_user"
// credentials file (spec.md §6).
type RefreshTokenOptions struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Validate checks that every field required to perform the refresh-token
// grant is present.
func (o RefreshTokenOptions) Validate() error {
	if o.ClientID == "" {
		return newError(ErrInvalidConfig, "refresh-token credentials: client_id is required")
	}
	if o.ClientSecret == "" {
		return newError(ErrInvalidConfig, "refresh-token credentials: client_secret is required")
	}
	if o.RefreshToken == "" {
		return newError(ErrInvalidConfig, "refresh-token credentials: refresh_token is required")
	}
	return nil
}

// refreshTokenCredential is the C6 refresh-token fetcher: it exchanges a
// long-lived OAuth2 refresh token for a short-lived access token via the
// standard "grant_type=refresh_token" flow. Because the refresh token
// itself is long-lived and sensitive in transit, this credential demands
// PRIVACY_AND_INTEGRITY transport (spec.md §4.2).
type refreshTokenCredential struct {
	*OAuth2Fetcher
	opts RefreshTokenOptions
}

// NewRefreshTokenCredential builds a call credential around the given
// authorized-user options. transport may be nil to use the default
// net/http transport.
func NewRefreshTokenCredential(opts RefreshTokenOptions, transport Transport) (CallCredential, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &refreshTokenCredential{opts: opts}
	c.OAuth2Fetcher = newOAuth2Fetcher("Oauth2:refresh_token", SecurityLevelPrivacyAndIntegrity, transport, c.fetchToken)
	return c, nil
}

func (c *refreshTokenCredential) fetchToken(ctx context.Context, t Transport) (*OAuth2Response, error) {
	body := encodeForm(
		[2]string{"grant_type", "refresh_token"},
		[2]string{"client_id", c.opts.ClientID},
		[2]string{"client_secret", c.opts.ClientSecret},
		[2]string{"refresh_token", c.opts.RefreshToken},
	)

	resp, err := t.Post(ctx, oauth2TokenEndpoint, formHeader(), body)
	if err != nil {
		return nil, err
	}
	return parseOAuth2TokenResponse(resp)
}

func (c *refreshTokenCredential) DebugString() string {
	return "GoogleRefreshTokenCredential{client_id=" + c.opts.ClientID + "}"
}
