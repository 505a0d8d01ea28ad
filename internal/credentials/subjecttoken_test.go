package credentials

import (
	"context"
	"testing"
)

func TestAWSRegion_PrecedenceOrder(t *testing.T) {
	t.Run("AWS_REGION wins over everything else", func(t *testing.T) {
		t.Setenv("AWS_REGION", "us-east-1")
		t.Setenv("AWS_DEFAULT_REGION", "us-west-2")
		transport := &fakeTransport{responses: []fakeResponse{
			{status: 200, body: "eu-west-1a"},
		}}
		region, err := awsRegion(context.Background(), CredentialSource{RegionURL: "http://169.254.169.254/region"}, transport)
		if err != nil {
			t.Fatalf("awsRegion: %v", err)
		}
		if region != "us-east-1" {
			t.Fatalf("region = %q, want us-east-1", region)
		}
		if transport.requestCount() != 0 {
			t.Fatalf("region_url should not be consulted when AWS_REGION is set")
		}
	})

	t.Run("AWS_DEFAULT_REGION wins over region_url", func(t *testing.T) {
		t.Setenv("AWS_DEFAULT_REGION", "us-west-2")
		transport := &fakeTransport{responses: []fakeResponse{
			{status: 200, body: "eu-west-1a"},
		}}
		region, err := awsRegion(context.Background(), CredentialSource{RegionURL: "http://169.254.169.254/region"}, transport)
		if err != nil {
			t.Fatalf("awsRegion: %v", err)
		}
		if region != "us-west-2" {
			t.Fatalf("region = %q, want us-west-2", region)
		}
		if transport.requestCount() != 0 {
			t.Fatalf("region_url should not be consulted when AWS_DEFAULT_REGION is set")
		}
	})

	t.Run("falls back to region_url with trailing AZ byte dropped", func(t *testing.T) {
		transport := &fakeTransport{responses: []fakeResponse{
			{status: 200, body: "eu-west-1a"},
		}}
		region, err := awsRegion(context.Background(), CredentialSource{RegionURL: "http://169.254.169.254/region"}, transport)
		if err != nil {
			t.Fatalf("awsRegion: %v", err)
		}
		if region != "eu-west-1" {
			t.Fatalf("region = %q, want eu-west-1 (AZ suffix dropped)", region)
		}
	})

	t.Run("no region available anywhere is an error", func(t *testing.T) {
		_, err := awsRegion(context.Background(), CredentialSource{}, &fakeTransport{})
		if err == nil {
			t.Fatalf("expected an error when no region source is available")
		}
	})
}

func TestExtractSubjectToken_RawVsJSON(t *testing.T) {
	raw, err := extractSubjectToken([]byte("  raw-token-value  \n"), SubjectTokenFormat{})
	if err != nil {
		t.Fatalf("extractSubjectToken (raw): %v", err)
	}
	if raw != "raw-token-value" {
		t.Fatalf("raw = %q", raw)
	}

	jsonVal, err := extractSubjectToken([]byte(`{"id_token":"abc.def.ghi","other":1}`), SubjectTokenFormat{Type: "json", SubjectTokenFieldName: "id_token"})
	if err != nil {
		t.Fatalf("extractSubjectToken (json): %v", err)
	}
	if jsonVal != "abc.def.ghi" {
		t.Fatalf("json extraction = %q", jsonVal)
	}

	if _, err := extractSubjectToken([]byte(`{"other":1}`), SubjectTokenFormat{Type: "json", SubjectTokenFieldName: "id_token"}); err == nil {
		t.Fatalf("expected an error when the named field is missing")
	}
}

func TestNewSubjectTokenProvider_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		src  CredentialSource
	}{
		{name: "file", src: CredentialSource{File: "/tmp/token"}},
		{name: "url", src: CredentialSource{URL: "https://example.com/token"}},
		{name: "aws", src: CredentialSource{EnvironmentID: "aws1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSubjectTokenProvider(tt.src, nil); err != nil {
				t.Fatalf("NewSubjectTokenProvider: %v", err)
			}
		})
	}

	if _, err := NewSubjectTokenProvider(CredentialSource{}, nil); err == nil {
		t.Fatalf("expected an error when credential_source specifies nothing")
	}
	if _, err := NewSubjectTokenProvider(CredentialSource{EnvironmentID: "azure1"}, nil); err == nil {
		t.Fatalf("expected an error for an unsupported environment_id")
	}
}
