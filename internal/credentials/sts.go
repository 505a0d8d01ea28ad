package credentials

import (
	"context"
	"net/url"
	"os"
)

// STSOptions holds the fields read from an "sts" credentials JSON document
// (spec.md §3, §6).
type STSOptions struct {
	STSEndpointURL     string `json:"sts_endpoint_url"`
	Resource           string `json:"resource"`
	Audience           string `json:"audience"`
	Scope              string `json:"scope"`
	RequestedTokenType string `json:"requested_token_type"`
	SubjectTokenPath   string `json:"subject_token_path"`
	SubjectTokenType   string `json:"subject_token_type"`
	ActorTokenPath     string `json:"actor_token_path"`
	ActorTokenType     string `json:"actor_token_type"`
}

const defaultRequestedTokenType = "urn:ietf:params:oauth:token-type:access_token"

// Validate checks STSOptions against spec.md §3's STS-options invariant:
// sts_endpoint_url must parse with an http/https scheme, and
// subject_token_path/subject_token_type are required.
func (o STSOptions) Validate() error {
	if o.STSEndpointURL == "" {
		return newError(ErrInvalidConfig, "sts options: sts_endpoint_url is required")
	}
	u, err := url.Parse(o.STSEndpointURL)
	if err != nil {
		return wrapError(ErrInvalidConfig, "sts options: sts_endpoint_url does not parse", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return newError(ErrInvalidConfig, "sts options: sts_endpoint_url must have scheme http or https")
	}
	if o.SubjectTokenPath == "" {
		return newError(ErrInvalidConfig, "sts options: subject_token_path is required")
	}
	if o.SubjectTokenType == "" {
		return newError(ErrInvalidConfig, "sts options: subject_token_type is required")
	}
	return nil
}

// stsCredential is the C6 STS exchange fetcher: it reads a subject token
// from disk and exchanges it for an access token via RFC 8693 token
// exchange (spec.md §4.2, §6).
type stsCredential struct {
	*OAuth2Fetcher
	opts STSOptions
}

// NewSTSCredential builds a standalone call credential around the given STS
// options. transport may be nil to use the default net/http transport.
func NewSTSCredential(opts STSOptions, transport Transport) (CallCredential, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &stsCredential{opts: opts}
	c.OAuth2Fetcher = newOAuth2Fetcher("Oauth2:sts", SecurityLevelPrivacyAndIntegrity, transport, c.fetchToken)
	return c, nil
}

func (c *stsCredential) fetchToken(ctx context.Context, t Transport) (*OAuth2Response, error) {
	subjectToken, err := os.ReadFile(c.opts.SubjectTokenPath)
	if err != nil {
		return nil, wrapError(ErrFileIO, "reading subject_token_path", err)
	}

	var actorToken, actorTokenType string
	if c.opts.ActorTokenPath != "" && c.opts.ActorTokenType != "" {
		b, err := os.ReadFile(c.opts.ActorTokenPath)
		if err != nil {
			return nil, wrapError(ErrFileIO, "reading actor_token_path", err)
		}
		actorToken, actorTokenType = string(b), c.opts.ActorTokenType
	}

	requestedTokenType := c.opts.RequestedTokenType
	if requestedTokenType == "" {
		requestedTokenType = defaultRequestedTokenType
	}

	resp, err := exchangeToken(ctx, t, c.opts.STSEndpointURL, stsExchangeRequest{
		Resource:           c.opts.Resource,
		Audience:           c.opts.Audience,
		Scope:              c.opts.Scope,
		RequestedTokenType: requestedTokenType,
		SubjectToken:       string(subjectToken),
		SubjectTokenType:   c.opts.SubjectTokenType,
		ActorToken:         actorToken,
		ActorTokenType:     actorTokenType,
	}, "")
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *stsCredential) DebugString() string {
	return "StsCredential{sts_endpoint_url=" + c.opts.STSEndpointURL + "}"
}

// stsExchangeRequest is the form body shape shared by the standalone STS
// credential and the external-account pipeline's Stage 2 (spec.md §6).
type stsExchangeRequest struct {
	Resource           string
	Audience           string
	Scope              string
	RequestedTokenType string
	SubjectToken       string
	SubjectTokenType   string
	ActorToken         string
	ActorTokenType     string
}

// exchangeToken POSTs an RFC 8693 token-exchange request, optionally with
// HTTP Basic auth (clientID/clientSecret, when basicAuth is non-empty), and
// parses the response via C1.
func exchangeToken(ctx context.Context, t Transport, endpoint string, req stsExchangeRequest, basicAuth string) (*OAuth2Response, error) {
	body := encodeForm(
		[2]string{"resource", req.Resource},
		[2]string{"audience", req.Audience},
		[2]string{"scope", req.Scope},
		[2]string{"requested_token_type", req.RequestedTokenType},
		[2]string{"subject_token", req.SubjectToken},
		[2]string{"subject_token_type", req.SubjectTokenType},
		[2]string{"actor_token", req.ActorToken},
		[2]string{"actor_token_type", req.ActorTokenType},
	)

	header := formHeader()
	if basicAuth != "" {
		header.Set("Authorization", "Basic "+basicAuth)
	}

	resp, err := t.Post(ctx, endpoint, header, body)
	if err != nil {
		return nil, err
	}
	return parseOAuth2TokenResponse(resp)
}
