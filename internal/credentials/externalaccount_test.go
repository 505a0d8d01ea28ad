package credentials

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
)

func TestExternalAccountCredential_FileProviderEndToEnd(t *testing.T) {
	dir := t.TempDir()
	tokenPath := dir + "/subject-token"
	if err := os.WriteFile(tokenPath, []byte("subject-token-value"), 0o600); err != nil {
		t.Fatalf("writing fixture subject token: %v", err)
	}

	transport := &fakeTransport{responses: []fakeResponse{
		{status: 200, body: `{"access_token":"exchanged-token","expires_in":3600,"token_type":"Bearer"}`},
	}}

	opts := ExternalAccountOptions{
		Audience:         "//iam.googleapis.com/projects/123/locations/global/workloadIdentityPools/pool/providers/provider",
		SubjectTokenType: "urn:ietf:params:oauth:token-type:jwt",
		TokenURL:         "https://sts.googleapis.com/v1/token",
		CredentialSource: CredentialSource{File: tokenPath},
	}

	cred, err := NewExternalAccountCredential(opts, transport)
	if err != nil {
		t.Fatalf("NewExternalAccountCredential: %v", err)
	}

	md, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{})
	if err != nil {
		t.Fatalf("GetRequestMetadata: %v", err)
	}
	if md["authorization"] != "Bearer exchanged-token" {
		t.Fatalf("unexpected metadata: %v", md)
	}

	req := transport.lastRequest()
	if !strings.Contains(string(req.body), "subject_token=subject-token-value") {
		t.Fatalf("expected the exchange body to carry the subject token, got %s", req.body)
	}
}

func TestExternalAccountCredential_WorkforcePoolScopeAndOptionsField(t *testing.T) {
	dir := t.TempDir()
	tokenPath := dir + "/subject-token"
	if err := os.WriteFile(tokenPath, []byte("workforce-subject-token"), 0o600); err != nil {
		t.Fatalf("writing fixture subject token: %v", err)
	}

	transport := &fakeTransport{responses: []fakeResponse{
		{status: 200, body: `{"access_token":"workforce-token","expires_in":3600,"token_type":"Bearer"}`},
	}}

	opts := ExternalAccountOptions{
		Audience:                 "//iam.googleapis.com/locations/global/workforcePools/pool/providers/provider",
		SubjectTokenType:         "urn:ietf:params:oauth:token-type:jwt",
		TokenURL:                 "https://sts.googleapis.com/v1/token",
		CredentialSource:         CredentialSource{File: tokenPath},
		WorkforcePoolUserProject: "my-project",
	}

	cred, err := NewExternalAccountCredential(opts, transport)
	if err != nil {
		t.Fatalf("NewExternalAccountCredential: %v", err)
	}

	if _, err := cred.GetRequestMetadata(context.Background(), AuthMetadataContext{}); err != nil {
		t.Fatalf("GetRequestMetadata: %v", err)
	}

	body := string(transport.lastRequest().body)
	values, err := url.ParseQuery(body)
	if err != nil {
		t.Fatalf("parsing exchange request body: %v", err)
	}
	if values.Get("scope") != "" {
		t.Fatalf("workforce pool with no explicit scopes should request an empty scope, got %q", values.Get("scope"))
	}
	if values.Get("options") != `{"userProject":"my-project"}` {
		t.Fatalf("options field = %q", values.Get("options"))
	}
}

func TestExternalAccountCredential_WorkforceUserProjectRequiresWorkforceAudience(t *testing.T) {
	opts := ExternalAccountOptions{
		Audience:                 "//iam.googleapis.com/projects/123/locations/global/workloadIdentityPools/pool/providers/provider",
		SubjectTokenType:         "urn:ietf:params:oauth:token-type:jwt",
		TokenURL:                 "https://sts.googleapis.com/v1/token",
		CredentialSource:         CredentialSource{File: "/tmp/token"},
		WorkforcePoolUserProject: "my-project",
	}
	if _, err := NewExternalAccountCredential(opts, nil); err == nil {
		t.Fatalf("expected workforce_pool_user_project on a non-workforce audience to be rejected")
	}
}

func TestExternalAccountCredential_RejectsDisallowedTokenURLHost(t *testing.T) {
	opts := ExternalAccountOptions{
		Audience:         "//iam.googleapis.com/projects/123/locations/global/workloadIdentityPools/pool/providers/provider",
		SubjectTokenType: "urn:ietf:params:oauth:token-type:jwt",
		TokenURL:         "https://evil.example.com/v1/token",
		CredentialSource: CredentialSource{File: "/tmp/token"},
	}
	if _, err := NewExternalAccountCredential(opts, nil); err == nil {
		t.Fatalf("expected a non-sts.googleapis.com token_url host to be rejected")
	}
}

func TestBuildSignedGetCallerIdentityRequest_CarriesSigV4Authorization(t *testing.T) {
	creds := awsCredentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", SessionToken: "session-token"}

	signed, err := buildSignedGetCallerIdentityRequest(context.Background(), creds, "us-east-1",
		"https://sts.us-east-1.amazonaws.com", "//iam.googleapis.com/projects/123/locations/global/workloadIdentityPools/pool/providers/provider")
	if err != nil {
		t.Fatalf("buildSignedGetCallerIdentityRequest: %v", err)
	}
	if signed.Method != "POST" {
		t.Fatalf("Method = %q, want POST", signed.Method)
	}

	foundAuth := false
	for _, h := range signed.Headers {
		if strings.EqualFold(h.Key, "Authorization") && strings.Contains(h.Value, "AWS4-HMAC-SHA256") {
			foundAuth = true
		}
	}
	if !foundAuth {
		t.Fatalf("expected a SigV4 Authorization header among %v", signed.Headers)
	}
}

func TestAWSSubjectTokenProvider_SubjectTokenIsURLEncoded(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	src := CredentialSource{
		EnvironmentID:               "aws1",
		RegionalCredVerificationURL: "https://sts.{region}.amazonaws.com",
	}
	provider, err := NewSubjectTokenProvider(src, &fakeTransport{})
	if err != nil {
		t.Fatalf("NewSubjectTokenProvider: %v", err)
	}

	token, err := provider.SubjectToken(context.Background(), "//iam.googleapis.com/projects/123/locations/global/workloadIdentityPools/pool/providers/provider")
	if err != nil {
		t.Fatalf("SubjectToken: %v", err)
	}

	decoded, err := url.QueryUnescape(token)
	if err != nil {
		t.Fatalf("subject token is not valid URL-encoded content: %v", err)
	}
	if !strings.Contains(decoded, `"url":"https://sts.us-east-1.amazonaws.com"`) {
		t.Fatalf("decoded subject token does not carry the expected signed URL: %s", decoded)
	}
}
