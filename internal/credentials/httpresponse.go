package credentials

import (
	"encoding/json"
	"fmt"
	"strings"
)

// oauth2JSONResponse is the wire shape of an OAuth2/STS token response
// (spec.md §3, §6).
type oauth2JSONResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// parseOAuth2TokenResponse decodes an HTTP response from an OAuth2-shaped
// token endpoint (GCE metadata, refresh-token, STS exchange) into an
// OAuth2Response. It is the C1 component: it never touches the network
// itself, only the already-retrieved status/body.
//
// A response is valid iff the HTTP status is 2xx, the body parses as JSON,
// and access_token, token_type, and expires_in are all present — with
// token_type case-insensitively equal to "Bearer".
func parseOAuth2TokenResponse(resp *HTTPResponse) (*OAuth2Response, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(ErrHTTPStatus, fmt.Sprintf("oauth2 token endpoint returned status %d: %s", resp.StatusCode, truncate(resp.Body, 256)))
	}

	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, newError(ErrResponseParse, "oauth2 token response body is empty")
	}

	var parsed oauth2JSONResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, wrapError(ErrResponseParse, "parsing oauth2 token response JSON", err)
	}

	if parsed.AccessToken == "" {
		return nil, newError(ErrResponseParse, fmt.Sprintf("missing access_token in %s", truncate(resp.Body, 256)))
	}
	if parsed.TokenType == "" {
		return nil, newError(ErrResponseParse, fmt.Sprintf("missing token_type in %s", truncate(resp.Body, 256)))
	}
	if !strings.EqualFold(parsed.TokenType, "Bearer") {
		return nil, newError(ErrResponseParse, fmt.Sprintf("unsupported token_type %q", parsed.TokenType))
	}
	if parsed.ExpiresIn == "" {
		return nil, newError(ErrResponseParse, fmt.Sprintf("missing expires_in in %s", truncate(resp.Body, 256)))
	}

	expiresIn, err := parsed.ExpiresIn.Int64()
	if err != nil {
		return nil, wrapError(ErrResponseParse, "parsing expires_in", err)
	}

	return &OAuth2Response{
		AccessToken: parsed.AccessToken,
		TokenType:   parsed.TokenType,
		ExpiresIn:   expiresIn,
	}, nil
}

// bearerHeaderValue renders the emitted authorization header value for a
// successfully parsed OAuth2Response ("Bearer " + access_token).
func bearerHeaderValue(resp *OAuth2Response) string {
	return "Bearer " + resp.AccessToken
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// metadataFlavorGoogle is the header GCE's metadata server sets on every
// response and the header every request to it must carry.
const metadataFlavorGoogle = "Google"
