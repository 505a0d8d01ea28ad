package credentials

import (
	"context"
	"net/http"
)

// gceMetadataHost is the well-known GCE metadata server authority (spec.md
// §4.2). It resolves only from inside a GCE VM; tests override it via the
// Transport seam rather than DNS.
const gceMetadataHost = "metadata.google.internal."

const gceTokenPath = "/computeMetadata/v1/instance/service-accounts/default/token"

// gceCredential is the C6 GCE metadata-server fetcher: it exchanges the
// VM's attached service account identity for a bearer token with a single
// GET against the metadata server, no request body.
type gceCredential struct {
	*OAuth2Fetcher
}

// NewGCECredential builds a call credential that fetches tokens from the
// GCE metadata server. transport may be nil to use the default net/http
// transport.
func NewGCECredential(transport Transport) CallCredential {
	c := &gceCredential{}
	c.OAuth2Fetcher = newOAuth2Fetcher("Oauth2:gce", SecurityLevelPrivacyAndIntegrity, transport, c.fetchToken)
	return c
}

func (c *gceCredential) fetchToken(ctx context.Context, t Transport) (*OAuth2Response, error) {
	header := http.Header{}
	header.Set("Metadata-Flavor", metadataFlavorGoogle)

	resp, err := t.Get(ctx, "http://"+gceMetadataHost+gceTokenPath, header)
	if err != nil {
		return nil, err
	}
	return parseOAuth2TokenResponse(resp)
}

func (c *gceCredential) DebugString() string {
	return "GoogleComputeEngineCredential"
}
