package credentials

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func testServiceAccountKey(t *testing.T) *ServiceAccountKey {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	der := x509.MarshalPKCS1PrivateKey(rsaKey)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
	return &ServiceAccountKey{
		Type:         "service_account",
		PrivateKey:   string(pemBytes),
		PrivateKeyID: "key-id",
		ClientEmail:  "svc@example-project.iam.gserviceaccount.com",
		ClientID:     "client-id",
	}
}

func TestJWTAccessCredential_PerAudienceCaching(t *testing.T) {
	key := testServiceAccountKey(t)
	cred := NewJWTAccessCredential(key, "")

	mdA1, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{ServiceURL: "https://a.example.com/Service"})
	if err != nil {
		t.Fatalf("GetRequestMetadata for audience A: %v", err)
	}
	mdA2, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{ServiceURL: "https://a.example.com/Service"})
	if err != nil {
		t.Fatalf("GetRequestMetadata for audience A (again): %v", err)
	}
	if mdA1["authorization"] != mdA2["authorization"] {
		t.Fatalf("same audience should reuse the cached JWT, got %q then %q", mdA1["authorization"], mdA2["authorization"])
	}

	mdB, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{ServiceURL: "https://b.example.com/Service"})
	if err != nil {
		t.Fatalf("GetRequestMetadata for audience B: %v", err)
	}
	if mdB["authorization"] == mdA1["authorization"] {
		t.Fatalf("a different audience must mint a distinct JWT, got the same token for both")
	}
}

func TestJWTAccessCredential_ExpiredEntryIsRefreshed(t *testing.T) {
	key := testServiceAccountKey(t)
	cred := NewJWTAccessCredential(key, "")

	start := time.Now()
	cred.now = func() time.Time { return start }

	md1, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{ServiceURL: "https://a.example.com/Service"})
	if err != nil {
		t.Fatalf("GetRequestMetadata (initial): %v", err)
	}

	cred.now = func() time.Time { return start.Add(MaxAuthTokenLifetime + time.Minute) }

	md2, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{ServiceURL: "https://a.example.com/Service"})
	if err != nil {
		t.Fatalf("GetRequestMetadata (after expiry): %v", err)
	}
	if md1["authorization"] == md2["authorization"] {
		t.Fatalf("expired cache entry should have been refreshed with a new JWT")
	}
}

func TestJWTAccessCredential_MinSecurityLevel(t *testing.T) {
	cred := NewJWTAccessCredential(testServiceAccountKey(t), "")
	if cred.MinSecurityLevel() != SecurityLevelPrivacyAndIntegrity {
		t.Fatalf("MinSecurityLevel() = %v, want PRIVACY_AND_INTEGRITY", cred.MinSecurityLevel())
	}
}
