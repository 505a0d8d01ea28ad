package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
	"go.uber.org/zap"
)

// wellKnownFileGetter returns the well-known ADC file's path and its
// contents, or an error if it cannot be read. Overridable only from tests
// (spec.md §4.6's process-wide hook).
type wellKnownFileGetter func() (path string, data []byte, err error)

// gceTenancyChecker reports whether the current process is running on GCE,
// independent of the metadata-server HTTP probe (spec.md §4.6). Overridable
// only from tests.
type gceTenancyChecker func() bool

// metadataServerProber confirms the GCE metadata server is reachable.
// Overridable only from tests.
type metadataServerProber func(ctx context.Context) bool

// defaultMetadataServerProber asks cloud.google.com/go/compute/metadata's
// client to fetch the metadata root, the same library golang.org/x/oauth2/google
// uses for its own GCE detection: a successful response confirms both
// reachability and the Metadata-Flavor: Google contract.
func defaultMetadataServerProber(ctx context.Context) bool {
	client := metadata.NewClient(&http.Client{Timeout: 2 * time.Second})
	_, err := client.GetWithContext(ctx, "")
	return err == nil
}

// adcEnvironment is the C10 process-wide cell: a cache of the last-resolved
// ADC result plus the four test-overridable hooks (well-known file, GCE
// tenancy checker, metadata-server prober, transport), guarded by a mutex
// (SPEC_FULL.md §5's AdcEnvironment).
type adcEnvironment struct {
	mu             sync.Mutex
	cached         ChannelCredential
	resolved       bool
	wellKnownFile  wellKnownFileGetter
	gceTenancy     gceTenancyChecker
	metadataProber metadataServerProber
	transport      Transport
}

var globalADC = &adcEnvironment{
	wellKnownFile:  defaultWellKnownFileGetter,
	gceTenancy:     func() bool { return false },
	metadataProber: defaultMetadataServerProber,
	transport:      newHTTPTransport(),
}

func defaultWellKnownFileGetter() (string, []byte, error) {
	path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil, wrapError(ErrFileIO, "resolving home directory for well-known ADC path", err)
		}
		path = filepath.Join(home, ".config", "gcloud", "application_default_credentials.json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, wrapError(ErrFileIO, "reading well-known ADC file", err)
	}
	return path, data, nil
}

// adcCredentialsFile is the union of the three well-known-file shapes
// dispatched on by "type" (spec.md §4.6, §6).
type adcCredentialsFile struct {
	Type string `json:"type"`

	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`

	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`

	Audience                       string            `json:"audience"`
	SubjectTokenType               string            `json:"subject_token_type"`
	ServiceAccountImpersonationURL string            `json:"service_account_impersonation_url"`
	TokenURL                       string            `json:"token_url"`
	TokenInfoURL                   string            `json:"token_info_url"`
	QuotaProjectID                 string            `json:"quota_project_id"`
	WorkforcePoolUserProject       string            `json:"workforce_pool_user_project"`
	CredentialSource               json.RawMessage   `json:"credential_source"`
}

// CreateDefaultCredentials implements the C10 resolution algorithm of
// spec.md §4.6. overrideCallCreds, when non-nil, skips GCE detection
// entirely and is paired directly with a TLS channel credential.
func CreateDefaultCredentials(ctx context.Context, overrideCallCreds CallCredential) (*CompositeChannelCredential, error) {
	return globalADC.resolve(ctx, overrideCallCreds)
}

// FlushCachedDefaultCredentials clears the process-wide ADC cache (spec.md
// §4.6's flush_cached_default_credentials).
func FlushCachedDefaultCredentials() {
	globalADC.mu.Lock()
	defer globalADC.mu.Unlock()
	globalADC.cached = nil
	globalADC.resolved = false
	logger.Info("flushed cached default credentials")
}

func (e *adcEnvironment) resolve(ctx context.Context, overrideCallCreds CallCredential) (*CompositeChannelCredential, error) {
	if overrideCallCreds != nil {
		return NewCompositeChannelCredential(NewTLSChannelCredential(nil), overrideCallCreds)
	}

	e.mu.Lock()
	if e.resolved {
		cached := e.cached
		e.mu.Unlock()
		if cached == nil {
			return nil, nil
		}
		return cached.(*CompositeChannelCredential), nil
	}
	e.mu.Unlock()

	result, err := e.resolveUncached(ctx)
	if err != nil {
		logger.Warn("default credentials resolution failed", zap.Error(err))
		return nil, err
	}

	// Only a successful resolution is cached: spec.md §4.6 scenario (d)
	// requires the GCE checker to be invoked on every call when nothing
	// was found, i.e. no negative caching.
	if result != nil {
		composite := result.(*CompositeChannelCredential)
		e.mu.Lock()
		e.cached = result
		e.resolved = true
		e.mu.Unlock()
		logger.Debug("resolved and cached default credentials", zap.String("call_credential", composite.CallCredential().Type()))
		return composite, nil
	}
	logger.Debug("no default credentials found; not caching")
	return nil, nil
}

func (e *adcEnvironment) resolveUncached(ctx context.Context) (ChannelCredential, error) {
	_, data, err := e.wellKnownFile()
	if err == nil {
		return e.fromWellKnownFile(data)
	}

	if e.gceTenancy() || e.probeGCEMetadataServer(ctx) {
		return NewCompositeChannelCredential(NewTLSChannelCredential(nil), NewGCECredential(e.transport))
	}

	return nil, nil
}

func (e *adcEnvironment) fromWellKnownFile(data []byte) (ChannelCredential, error) {
	var doc adcCredentialsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, wrapError(ErrInvalidConfig, "parsing well-known ADC file JSON", err)
	}

	switch doc.Type {
	case "service_account":
		key := &ServiceAccountKey{
			Type:         doc.Type,
			PrivateKey:   doc.PrivateKey,
			PrivateKeyID: doc.PrivateKeyID,
			ClientEmail:  doc.ClientEmail,
			ClientID:     doc.ClientID,
		}
		return NewCompositeChannelCredential(NewTLSChannelCredential(nil), NewJWTAccessCredential(key, ""))

	case "authorized_user":
		opts := RefreshTokenOptions{ClientID: doc.ClientID, ClientSecret: doc.ClientSecret, RefreshToken: doc.RefreshToken}
		call, err := NewRefreshTokenCredential(opts, e.transport)
		if err != nil {
			return nil, err
		}
		return NewCompositeChannelCredential(NewTLSChannelCredential(nil), call)

	case "external_account":
		var src CredentialSource
		if len(doc.CredentialSource) > 0 {
			if err := json.Unmarshal(doc.CredentialSource, &src); err != nil {
				return nil, wrapError(ErrInvalidConfig, "parsing credential_source JSON", err)
			}
		}
		opts := ExternalAccountOptions{
			Audience:                       doc.Audience,
			SubjectTokenType:               doc.SubjectTokenType,
			ServiceAccountImpersonationURL: doc.ServiceAccountImpersonationURL,
			TokenURL:                       doc.TokenURL,
			TokenInfoURL:                   doc.TokenInfoURL,
			CredentialSource:               src,
			QuotaProjectID:                 doc.QuotaProjectID,
			ClientID:                       doc.ClientID,
			ClientSecret:                   doc.ClientSecret,
			WorkforcePoolUserProject:       doc.WorkforcePoolUserProject,
		}
		call, err := NewExternalAccountCredential(opts, e.transport)
		if err != nil {
			return nil, err
		}
		return NewCompositeChannelCredential(NewTLSChannelCredential(nil), call)

	default:
		return nil, newError(ErrInvalidConfig, "unrecognized well-known ADC file type: "+doc.Type)
	}
}

// probeGCEMetadataServer issues a single probe with a short deadline
// (spec.md §4.6, §5).
func (e *adcEnvironment) probeGCEMetadataServer(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return e.metadataProber(probeCtx)
}

// SetWellKnownFileGetterForTest overrides the well-known-file hook. Test
// helper only; not for production use.
func SetWellKnownFileGetterForTest(fn func() (string, []byte, error)) {
	globalADC.mu.Lock()
	defer globalADC.mu.Unlock()
	if fn == nil {
		fn = defaultWellKnownFileGetter
	}
	globalADC.wellKnownFile = fn
}

// SetGCETenancyCheckerForTest overrides the GCE-tenancy-checker hook. Test
// helper only; not for production use.
func SetGCETenancyCheckerForTest(fn func() bool) {
	globalADC.mu.Lock()
	defer globalADC.mu.Unlock()
	if fn == nil {
		fn = func() bool { return false }
	}
	globalADC.gceTenancy = fn
}

// SetTransportForTest overrides the transport used by every concrete
// fetcher ADC constructs (it no longer affects the metadata-server probe;
// see SetMetadataProberForTest). Test helper only.
func SetTransportForTest(t Transport) {
	globalADC.mu.Lock()
	defer globalADC.mu.Unlock()
	if t == nil {
		t = newHTTPTransport()
	}
	globalADC.transport = t
}

// SetMetadataProberForTest overrides the GCE metadata-server reachability
// probe. Test helper only; not for production use.
func SetMetadataProberForTest(fn func(ctx context.Context) bool) {
	globalADC.mu.Lock()
	defer globalADC.mu.Unlock()
	if fn == nil {
		fn = defaultMetadataServerProber
	}
	globalADC.metadataProber = fn
}

// ResetForTest restores every ADC hook to its production default and
// clears the cache. Test helper only.
func ResetForTest() {
	globalADC.mu.Lock()
	globalADC.wellKnownFile = defaultWellKnownFileGetter
	globalADC.gceTenancy = func() bool { return false }
	globalADC.metadataProber = defaultMetadataServerProber
	globalADC.transport = newHTTPTransport()
	globalADC.cached = nil
	globalADC.resolved = false
	globalADC.mu.Unlock()
}
