package credentials

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fetchFunc performs the credential-specific half of a token fetch: issue
// whatever HTTP request(s) are needed through t and return the parsed
// response. It never touches the fetcher's cache or waiter queue — that is
// entirely the OAuth2Fetcher's job.
type fetchFunc func(ctx context.Context, t Transport) (*OAuth2Response, error)

type waiterResult struct {
	value string
	err   error
}

type waiter struct {
	ch chan waiterResult
}

// OAuth2Fetcher is the C5 base every network-backed call credential in this
// package embeds: a cache, a single-flight in-progress fetch, and a FIFO of
// waiters blocked on that fetch. It implements CallCredential.GetRequestMetadata
// directly; concrete fetchers (gce.go, refreshtoken.go, sts.go,
// externalaccount.go) only supply fetchFunc, typeName, and the security
// level, and layer Type()/DebugString() on top.
type OAuth2Fetcher struct {
	mu       sync.Mutex
	cached   *CachedToken
	inFlight bool
	waiters  []*waiter

	fetch         fetchFunc
	transport     Transport
	typeName      string
	minSecurity   SecurityLevel
	logger        *zap.Logger
}

// newOAuth2Fetcher wires a concrete fetcher's fetchFunc into the shared
// cache/single-flight base.
func newOAuth2Fetcher(typeName string, minSecurity SecurityLevel, transport Transport, fetch fetchFunc) *OAuth2Fetcher {
	if transport == nil {
		transport = newHTTPTransport()
	}
	return &OAuth2Fetcher{
		fetch:       fetch,
		transport:   transport,
		typeName:    typeName,
		minSecurity: minSecurity,
		logger:      zap.L().Named("credentials." + typeName),
	}
}

// GetRequestMetadata implements the C5 algorithm from spec.md §4.1:
//  1. a cache hit returns synchronously;
//  2. a cache miss enqueues the caller as a waiter and, if no fetch is
//     already in flight, starts one;
//  3. the caller then blocks until its waiter is resolved or ctx is
//     cancelled — cancellation only removes this caller from the queue, it
//     never cancels the shared in-flight fetch.
func (f *OAuth2Fetcher) GetRequestMetadata(ctx context.Context, _ AuthMetadataContext) (map[string]string, error) {
	f.mu.Lock()
	now := time.Now()
	if f.cached != nil && f.cached.Valid(now) {
		value := f.cached.Value
		f.mu.Unlock()
		return map[string]string{"authorization": value}, nil
	}

	w := &waiter{ch: make(chan waiterResult, 1)}
	f.waiters = append(f.waiters, w)
	shouldStart := !f.inFlight
	if shouldStart {
		f.inFlight = true
	}
	f.mu.Unlock()

	if shouldStart {
		go f.runFetch()
	}

	select {
	case <-ctx.Done():
		f.cancelWaiter(w)
		return nil, cancelledError()
	case res := <-w.ch:
		if res.err != nil {
			return nil, res.err
		}
		return map[string]string{"authorization": res.value}, nil
	}
}

// runFetch performs the network fetch on its own goroutine, detached from
// any single caller's context, so a cancelled waiter never cancels the
// fetch that other waiters (and future callers) depend on.
func (f *OAuth2Fetcher) runFetch() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTransportTimeout)
	defer cancel()

	resp, err := f.fetch(ctx, f.transport)
	f.onFetchComplete(resp, err)
}

// onFetchComplete drains the waiter queue, updates the cache on success, and
// notifies every waiter outside the lock (spec.md §4.1).
func (f *OAuth2Fetcher) onFetchComplete(resp *OAuth2Response, err error) {
	f.mu.Lock()
	waiters := f.waiters
	f.waiters = nil
	f.inFlight = false

	var result waiterResult
	if err == nil {
		f.cached = &CachedToken{
			Value:         bearerHeaderValue(resp),
			Expiry:        time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
			SecurityLevel: f.minSecurity,
		}
		result = waiterResult{value: f.cached.Value}
	} else {
		f.cached = nil
		result = waiterResult{err: wrapOAuth2FetchFailure(err)}
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Debug("oauth2 token fetch failed", zap.Error(err))
	}

	for _, w := range waiters {
		w.ch <- result
	}
}

// cancelWaiter removes w from the queue so a future onFetchComplete will not
// attempt to deliver to it (harmless even if it already has, since the
// channel is buffered and nobody else reads it).
func (f *OAuth2Fetcher) cancelWaiter(w *waiter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.waiters {
		if cur == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (f *OAuth2Fetcher) Type() string { return f.typeName }

func (f *OAuth2Fetcher) MinSecurityLevel() SecurityLevel { return f.minSecurity }

func (f *OAuth2Fetcher) DebugString() string {
	return "OAuth2Fetcher{type=" + f.typeName + "}"
}
