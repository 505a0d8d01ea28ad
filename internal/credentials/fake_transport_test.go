package credentials

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// fakeResponse is one scripted response a fakeTransport hands back, in
// request order (or matched by URL substring if urlContains is set).
type fakeResponse struct {
	urlContains string
	status      int
	body        string
	err         error
}

// fakeTransport is a Transport test double: responses are consumed in
// order unless urlContains narrows a response to a specific request.
type fakeTransport struct {
	mu        sync.Mutex
	responses []fakeResponse
	requests  []fakeRequest
}

type fakeRequest struct {
	method string
	url    string
	header http.Header
	body   []byte
}

func (t *fakeTransport) nextResponse(method, url string, header http.Header, body []byte) (*HTTPResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, fakeRequest{method: method, url: url, header: header, body: body})

	for i, r := range t.responses {
		if r.urlContains != "" && !strings.Contains(url, r.urlContains) {
			continue
		}
		t.responses = append(t.responses[:i], t.responses[i+1:]...)
		if r.err != nil {
			return nil, r.err
		}
		return &HTTPResponse{StatusCode: r.status, Header: http.Header{}, Body: []byte(r.body)}, nil
	}
	return nil, newError(ErrHTTPTransport, "fakeTransport: no scripted response left")
}

func (t *fakeTransport) Get(_ context.Context, rawURL string, header http.Header) (*HTTPResponse, error) {
	return t.nextResponse(http.MethodGet, rawURL, header, nil)
}

func (t *fakeTransport) Post(_ context.Context, rawURL string, header http.Header, body []byte) (*HTTPResponse, error) {
	return t.nextResponse(http.MethodPost, rawURL, header, body)
}

func (t *fakeTransport) requestCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

func (t *fakeTransport) lastRequest() fakeRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[len(t.requests)-1]
}
