package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
	"time"
)

// defaultCloudPlatformScope is the scope requested for a non-workforce
// external-account token exchange when the caller supplies none (spec.md
// §4.4 Stage 2).
const defaultCloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// workforcePoolAudiencePattern matches a workforce-pool audience, the only
// audience shape allowed to carry workforce_pool_user_project (spec.md §3).
var workforcePoolAudiencePattern = regexp.MustCompile(`^//iam\.googleapis\.com/locations/[^/]+/workforcePools/[^/]+`)

// IsWorkforcePoolAudience reports whether audience identifies a workforce
// identity pool rather than a workload identity pool.
func IsWorkforcePoolAudience(audience string) bool {
	return workforcePoolAudiencePattern.MatchString(audience)
}

// stsHostPattern and iamHostPattern are the allowed-host regexes from
// spec.md §3 for token_url and service_account_impersonation_url
// respectively.
var (
	stsHostPattern = regexp.MustCompile(`^([^.\s/\\]+\.sts(\.[^.\s/\\]+)?\.googleapis\.com|sts\.googleapis\.com)$`)
	iamHostPattern = regexp.MustCompile(`^([^.\s/\\]+\.iamcredentials(\.[^.\s/\\]+)?\.googleapis\.com|iamcredentials\.googleapis\.com)$`)
)

// ExternalAccountOptions holds the fields read from an "external_account"
// credentials JSON document (spec.md §3, §6).
type ExternalAccountOptions struct {
	Audience                        string
	SubjectTokenType                string
	ServiceAccountImpersonationURL  string
	TokenURL                        string
	TokenInfoURL                    string
	CredentialSource                CredentialSource
	QuotaProjectID                  string
	ClientID                        string
	ClientSecret                    string
	WorkforcePoolUserProject        string
	Scopes                          []string
}

// Validate enforces the host-pattern and workforce-audience invariants of
// spec.md §3.
func (o ExternalAccountOptions) Validate() error {
	if o.Audience == "" {
		return newError(ErrInvalidConfig, "external-account options: audience is required")
	}
	if o.SubjectTokenType == "" {
		return newError(ErrInvalidConfig, "external-account options: subject_token_type is required")
	}
	if o.TokenURL == "" {
		return newError(ErrInvalidConfig, "external-account options: token_url is required")
	}
	if host, err := hostOf(o.TokenURL); err != nil || !stsHostPattern.MatchString(host) {
		return newError(ErrInvalidConfig, "external-account options: token_url host is not an allowed sts endpoint")
	}
	if o.ServiceAccountImpersonationURL != "" {
		if host, err := hostOf(o.ServiceAccountImpersonationURL); err != nil || !iamHostPattern.MatchString(host) {
			return newError(ErrInvalidConfig, "external-account options: service_account_impersonation_url host is not an allowed iamcredentials endpoint")
		}
	}
	if o.WorkforcePoolUserProject != "" && !IsWorkforcePoolAudience(o.Audience) {
		return newError(ErrInvalidConfig, "external-account options: workforce_pool_user_project requires a workforce-pool audience")
	}
	return nil
}

func hostOf(rawURL string) (string, error) {
	u, err := parseURLStrict(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// externalAccountCredential is the C6 external-account fetcher: it runs the
// three-stage pipeline (subject-token provider → STS exchange → optional
// impersonation) from spec.md §4.4 on every cache-miss fetch.
type externalAccountCredential struct {
	*OAuth2Fetcher
	opts     ExternalAccountOptions
	provider SubjectTokenProvider
}

// NewExternalAccountCredential builds a call credential around the given
// options. transport may be nil to use the default net/http transport.
func NewExternalAccountCredential(opts ExternalAccountOptions, transport Transport) (CallCredential, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		transport = newHTTPTransport()
	}

	provider, err := NewSubjectTokenProvider(opts.CredentialSource, transport)
	if err != nil {
		return nil, err
	}

	c := &externalAccountCredential{opts: opts, provider: provider}
	c.OAuth2Fetcher = newOAuth2Fetcher("Oauth2:external_account", SecurityLevelPrivacyAndIntegrity, transport, c.fetchToken)
	return c, nil
}

func (c *externalAccountCredential) fetchToken(ctx context.Context, t Transport) (*OAuth2Response, error) {
	subjectToken, err := c.provider.SubjectToken(ctx, c.opts.Audience)
	if err != nil {
		return nil, err
	}

	scope := c.scope()
	exchanged, err := c.exchange(ctx, t, subjectToken, scope)
	if err != nil {
		return nil, err
	}

	if c.opts.ServiceAccountImpersonationURL == "" {
		return exchanged, nil
	}
	return c.impersonate(ctx, t, exchanged.AccessToken, scope)
}

func (c *externalAccountCredential) scope() string {
	if len(c.opts.Scopes) > 0 {
		return joinScopes(c.opts.Scopes)
	}
	if IsWorkforcePoolAudience(c.opts.Audience) {
		return ""
	}
	return defaultCloudPlatformScope
}

// exchange is Stage 2: RFC 8693 token exchange against options.token_url,
// with optional Basic client auth and, for workforce pools only, the
// options={"userProject":...} form field (spec.md §4.4 Stage 2).
func (c *externalAccountCredential) exchange(ctx context.Context, t Transport, subjectToken, scope string) (*OAuth2Response, error) {
	var basicAuth string
	if c.opts.ClientID != "" && c.opts.ClientSecret != "" {
		basicAuth = base64.StdEncoding.EncodeToString([]byte(c.opts.ClientID + ":" + c.opts.ClientSecret))
	}

	req := stsExchangeRequest{
		Audience:           c.opts.Audience,
		Scope:              scope,
		RequestedTokenType: defaultRequestedTokenType,
		SubjectToken:       subjectToken,
		SubjectTokenType:   c.opts.SubjectTokenType,
	}

	if c.opts.WorkforcePoolUserProject != "" {
		optionsJSON, err := json.Marshal(map[string]string{"userProject": c.opts.WorkforcePoolUserProject})
		if err != nil {
			return nil, wrapError(ErrInvalidConfig, "marshalling workforce options field", err)
		}
		return c.exchangeWithOptions(ctx, t, req, basicAuth, string(optionsJSON))
	}

	return c.exchangeWithOptions(ctx, t, req, basicAuth, "")
}

func (c *externalAccountCredential) exchangeWithOptions(ctx context.Context, t Transport, req stsExchangeRequest, basicAuth, optionsJSON string) (*OAuth2Response, error) {
	body := encodeForm(
		[2]string{"audience", req.Audience},
		[2]string{"grant_type", "urn:ietf:params:oauth:grant-type:token-exchange"},
		[2]string{"requested_token_type", req.RequestedTokenType},
		[2]string{"scope", req.Scope},
		[2]string{"subject_token", req.SubjectToken},
		[2]string{"subject_token_type", req.SubjectTokenType},
		[2]string{"options", optionsJSON},
	)
	header := formHeader()
	if basicAuth != "" {
		header.Set("Authorization", "Basic "+basicAuth)
	}
	resp, err := t.Post(ctx, c.opts.TokenURL, header, body)
	if err != nil {
		return nil, err
	}
	return parseOAuth2TokenResponse(resp)
}

// impersonationResponse is the body shape of a service-account
// impersonation response (spec.md §4.4 Stage 3): note this differs from
// the OAuth2 JSON shape C1 parses (camelCase fields, RFC 3339 expiry
// instead of expires_in seconds).
type impersonationResponse struct {
	AccessToken string `json:"accessToken"`
	ExpireTime  string `json:"expireTime"`
}

// impersonate is Stage 3: exchange the Stage-2 access token for a
// short-lived impersonated token (spec.md §4.4 Stage 3).
func (c *externalAccountCredential) impersonate(ctx context.Context, t Transport, bearerToken, scope string) (*OAuth2Response, error) {
	body := encodeForm([2]string{"scope", scope})

	header := formHeader()
	header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := t.Post(ctx, c.opts.ServiceAccountImpersonationURL, header, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(ErrHTTPStatus, "service_account_impersonation_url returned status "+http.StatusText(resp.StatusCode))
	}

	var parsed impersonationResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, wrapError(ErrResponseParse, "parsing impersonation response JSON", err)
	}
	if parsed.AccessToken == "" {
		return nil, newError(ErrResponseParse, "impersonation response missing accessToken")
	}

	expireTime, err := time.Parse(time.RFC3339, parsed.ExpireTime)
	if err != nil {
		return nil, wrapError(ErrResponseParse, "parsing impersonation expireTime", err)
	}
	lifetime := time.Until(expireTime)
	if lifetime < 0 {
		lifetime = 0
	}

	return &OAuth2Response{
		AccessToken: parsed.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(lifetime.Seconds()),
	}, nil
}

func (c *externalAccountCredential) DebugString() string {
	return "ExternalAccountCredential{audience=" + c.opts.Audience + "}"
}

func joinScopes(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
