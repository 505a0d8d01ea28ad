package credentials

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPResponse is the transport-agnostic shape every fetcher parses against.
// Spec.md §1 treats the HTTP client transport as an external collaborator
// ("assumed to offer a get/post primitive returning status+headers+body");
// this is that primitive's result type.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport is the minimal get/post seam the credentials core depends on.
// Production code uses newHTTPTransport (a thin net/http wrapper); tests
// substitute a fake that never touches the network.
type Transport interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*HTTPResponse, error)
	Post(ctx context.Context, rawURL string, header http.Header, body []byte) (*HTTPResponse, error)
}

// httpTransport is the default Transport, backed by net/http.
type httpTransport struct {
	client *http.Client
}

// defaultTransportTimeout bounds any request issued through newHTTPTransport
// that the caller's context does not already bound more tightly.
const defaultTransportTimeout = 30 * time.Second

func newHTTPTransport() Transport {
	return &httpTransport{client: &http.Client{Timeout: defaultTransportTimeout}}
}

func (t *httpTransport) Get(ctx context.Context, rawURL string, header http.Header) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, wrapError(ErrHTTPTransport, "building GET request", err)
	}
	copyHeader(req.Header, header)
	return t.do(req)
}

func (t *httpTransport) Post(ctx context.Context, rawURL string, header http.Header, body []byte) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, wrapError(ErrHTTPTransport, "building POST request", err)
	}
	copyHeader(req.Header, header)
	return t.do(req)
}

func (t *httpTransport) do(req *http.Request) (*HTTPResponse, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, wrapError(ErrHTTPTransport, "performing HTTP request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(ErrHTTPTransport, "reading HTTP response body", err)
	}

	return &HTTPResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// encodeForm renders a set of possibly-empty key/value pairs as a
// url-encoded form body, omitting any key whose value is empty — the rule
// spec.md §6 requires for the STS and token-exchange request bodies.
func encodeForm(pairs ...[2]string) []byte {
	v := url.Values{}
	for _, p := range pairs {
		key, val := p[0], p[1]
		if val == "" {
			continue
		}
		v.Set(key, val)
	}
	return []byte(v.Encode())
}

func formHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return h
}

// parseURLStrict parses rawURL and rejects anything without a host, for
// callers (external-account host-pattern validation) that need a
// Hostname() to match against.
func parseURLStrict(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapError(ErrInvalidConfig, "parsing URL", err)
	}
	if u.Host == "" {
		return nil, newError(ErrInvalidConfig, "URL has no host: "+rawURL)
	}
	return u, nil
}
