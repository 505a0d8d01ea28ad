package credentials

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2/jws"
)

// MaxAuthTokenLifetime caps how long a self-signed JWT may claim to be
// valid for, regardless of what the caller requests (spec.md §4.3).
const MaxAuthTokenLifetime = time.Hour

// ServiceAccountKey is the parsed form of a "service_account" credentials
// file (spec.md §6).
type ServiceAccountKey struct {
	Type         string `json:"type"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
}

// ParseServiceAccountKey parses a service-account JSON key file.
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, wrapError(ErrInvalidConfig, "parsing service account key JSON", err)
	}
	if key.Type != "service_account" {
		return nil, newError(ErrInvalidConfig, fmt.Sprintf("unexpected credentials type %q, want service_account", key.Type))
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, newError(ErrInvalidConfig, "service account key missing client_email or private_key")
	}
	return &key, nil
}

func (k *ServiceAccountKey) parsePrivateKey() (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(k.PrivateKey))
	if block == nil {
		return nil, newError(ErrSigning, "private_key is not a valid PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, wrapError(ErrSigning, "parsing PKCS8 private key", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, newError(ErrSigning, "private_key is not an RSA key")
	}
	return rsaKey, nil
}

// signJWT is the C2 JWT encoder: it builds an RS256 JWT for the given
// service-account key, audience, and lifetime (clamped to
// MaxAuthTokenLifetime), and signs it with the key's RSA private key. The
// header/claims encoding and signing step are delegated to
// golang.org/x/oauth2/jws, the same package golang.org/x/oauth2/google uses
// to self-sign service-account JWTs.
func signJWT(key *ServiceAccountKey, audience, scope string, lifetime time.Duration, now time.Time) (string, error) {
	if lifetime <= 0 || lifetime > MaxAuthTokenLifetime {
		lifetime = MaxAuthTokenLifetime
	}

	rsaKey, err := key.parsePrivateKey()
	if err != nil {
		return "", err
	}

	header := &jws.Header{Algorithm: "RS256", Typ: "JWT", KeyID: key.PrivateKeyID}
	claims := &jws.ClaimSet{
		Iss:   key.ClientEmail,
		Sub:   key.ClientEmail,
		Aud:   audience,
		Iat:   now.Unix(),
		Exp:   now.Add(lifetime).Unix(),
		Scope: scope,
	}

	token, err := jws.Encode(header, claims, rsaKey)
	if err != nil {
		return "", wrapError(ErrSigning, "signing JWT", err)
	}
	return token, nil
}

// JWTAccessCredential is the C7 credential: a per-audience cache of
// self-signed JWTs, built directly from the call's service_url with no
// network I/O. A different service_url bypasses the cache entirely.
type JWTAccessCredential struct {
	mu    sync.Mutex
	key   *ServiceAccountKey
	scope string
	cache map[string]*CachedToken
	now   func() time.Time
}

// NewJWTAccessCredential builds a JWT-access call credential from a parsed
// service-account key. scope, if non-empty, is carried in every signed
// JWT's "scope" claim.
func NewJWTAccessCredential(key *ServiceAccountKey, scope string) *JWTAccessCredential {
	return &JWTAccessCredential{
		key:   key,
		scope: scope,
		cache: make(map[string]*CachedToken),
		now:   time.Now,
	}
}

// GetRequestMetadata implements CallCredential. It never blocks on the
// network: a cache hit returns the previously signed JWT; a miss signs a
// fresh one keyed by authCtx.ServiceURL.
func (c *JWTAccessCredential) GetRequestMetadata(_ context.Context, authCtx AuthMetadataContext) (map[string]string, error) {
	audience := authCtx.ServiceURL

	c.mu.Lock()
	now := c.now()
	if cached, ok := c.cache[audience]; ok && cached.Valid(now) {
		value := cached.Value
		c.mu.Unlock()
		return map[string]string{"authorization": "Bearer " + value}, nil
	}
	c.mu.Unlock()

	token, err := signJWT(c.key, audience, c.scope, MaxAuthTokenLifetime, now)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[audience] = &CachedToken{
		Value:         token,
		Expiry:        now.Add(MaxAuthTokenLifetime),
		SecurityLevel: SecurityLevelPrivacyAndIntegrity,
	}
	c.mu.Unlock()

	return map[string]string{"authorization": "Bearer " + token}, nil
}

func (c *JWTAccessCredential) Type() string { return "Jwt" }

func (c *JWTAccessCredential) MinSecurityLevel() SecurityLevel {
	return SecurityLevelPrivacyAndIntegrity
}

func (c *JWTAccessCredential) DebugString() string {
	return "JWTAccessCredential{client_email=" + c.key.ClientEmail + "}"
}
