package credentials

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestOAuth2Fetcher_CacheHit(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{
		{status: 200, body: `{"access_token":"tok1","expires_in":3600,"token_type":"Bearer"}`},
	}}
	cred := NewGCECredential(transport)

	md1, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if md1["authorization"] != "Bearer tok1" {
		t.Fatalf("unexpected metadata: %v", md1)
	}

	md2, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if md2["authorization"] != md1["authorization"] {
		t.Fatalf("cached header changed: %v vs %v", md1, md2)
	}

	if got := transport.requestCount(); got != 1 {
		t.Fatalf("expected exactly one HTTP request, got %d", got)
	}
}

func TestOAuth2Fetcher_SingleFlight(t *testing.T) {
	const n = 8
	release := make(chan struct{})
	transport := &blockingTransport{release: release, status: 200, body: `{"access_token":"shared","expires_in":3600,"token_type":"Bearer"}`}
	cred := NewGCECredential(transport)

	results := make([]map[string]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cred.GetRequestMetadata(context.Background(), AuthMetadataContext{})
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i]["authorization"] != "Bearer shared" {
			t.Fatalf("caller %d got %v", i, results[i])
		}
	}

	if got := transport.callCount(); got != 1 {
		t.Fatalf("expected exactly one upstream fetch, got %d", got)
	}
}

func TestOAuth2Fetcher_CancelledWaiterDoesNotCancelFetch(t *testing.T) {
	release := make(chan struct{})
	transport := &blockingTransport{release: release, status: 200, body: `{"access_token":"late","expires_in":3600,"token_type":"Bearer"}`}
	cred := NewGCECredential(transport)

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancelDone := make(chan error, 1)
	go func() {
		_, err := cred.GetRequestMetadata(cancelledCtx, AuthMetadataContext{})
		cancelDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-cancelDone; err == nil {
		t.Fatalf("expected a cancellation error")
	}

	close(release)

	md, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{})
	if err != nil {
		t.Fatalf("later caller should still benefit from the in-flight fetch: %v", err)
	}
	if md["authorization"] != "Bearer late" {
		t.Fatalf("unexpected metadata: %v", md)
	}
}

// blockingTransport blocks every Get/Post until release is closed, then
// returns a fixed response, letting tests exercise single-flight and
// cancellation without a race against a fakeTransport's instant replies.
type blockingTransport struct {
	mu       sync.Mutex
	release  chan struct{}
	status   int
	body     string
	numCalls int
}

func (b *blockingTransport) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numCalls
}

func (b *blockingTransport) Get(ctx context.Context, rawURL string, header http.Header) (*HTTPResponse, error) {
	b.mu.Lock()
	b.numCalls++
	b.mu.Unlock()
	<-b.release
	return &HTTPResponse{StatusCode: b.status, Header: http.Header{}, Body: []byte(b.body)}, nil
}

func (b *blockingTransport) Post(ctx context.Context, rawURL string, header http.Header, body []byte) (*HTTPResponse, error) {
	return b.Get(ctx, rawURL, header)
}
