package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// SubjectTokenFormat describes how to extract the subject token string from
// a file or URL credential source's raw body (spec.md §4.4 Stage 1).
type SubjectTokenFormat struct {
	Type                  string `json:"type"`
	SubjectTokenFieldName string `json:"subject_token_field_name"`
}

// CredentialSource is the union of the three subject-token provider shapes
// an external-account "credential_source" JSON object may take (spec.md
// §6). Exactly one of File, URL, or EnvironmentID is meaningful for a given
// instance; NewSubjectTokenProvider dispatches on which is set.
type CredentialSource struct {
	File    string             `json:"file"`
	Format  SubjectTokenFormat `json:"format"`
	URL     string             `json:"url"`
	Headers map[string]string  `json:"headers"`

	// EnvironmentID, RegionURL, and RegionalCredVerificationURL are only
	// meaningful when EnvironmentID == "aws1"; the AWS provider reuses the
	// same URL field above for the IMDS role-credentials endpoint, since
	// spec.md §6 gives both shapes the same "url" JSON key.
	EnvironmentID               string `json:"environment_id"`
	RegionURL                   string `json:"region_url"`
	RegionalCredVerificationURL string `json:"regional_cred_verification_url"`
}

// SubjectTokenProvider is the C4 abstraction: produce an opaque subject
// token to feed into Stage 2 (STS token exchange).
type SubjectTokenProvider interface {
	SubjectToken(ctx context.Context, audience string) (string, error)
}

// NewSubjectTokenProvider dispatches a credential_source to the file, URL,
// or AWS provider per spec.md §4.4 Stage 1.
func NewSubjectTokenProvider(src CredentialSource, transport Transport) (SubjectTokenProvider, error) {
	if transport == nil {
		transport = newHTTPTransport()
	}
	switch {
	case src.EnvironmentID != "":
		if src.EnvironmentID != "aws1" {
			return nil, newError(ErrInvalidConfig, "unsupported credential_source.environment_id: "+src.EnvironmentID)
		}
		return &awsSubjectTokenProvider{src: src, transport: transport}, nil
	case src.File != "":
		return &fileSubjectTokenProvider{src: src}, nil
	case src.URL != "":
		return &urlSubjectTokenProvider{src: src, transport: transport}, nil
	default:
		return nil, newError(ErrInvalidConfig, "credential_source has none of file, url, environment_id set")
	}
}

// extractSubjectToken applies the "raw unless format.type == json" rule
// shared by the file and URL providers.
func extractSubjectToken(body []byte, format SubjectTokenFormat) (string, error) {
	if format.Type != "json" {
		return strings.TrimSpace(string(body)), nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", wrapError(ErrResponseParse, "parsing credential_source JSON body", err)
	}
	raw, ok := doc[format.SubjectTokenFieldName]
	if !ok {
		return "", newError(ErrResponseParse, "credential_source JSON body missing field "+format.SubjectTokenFieldName)
	}
	var field string
	if err := json.Unmarshal(raw, &field); err != nil {
		return "", wrapError(ErrResponseParse, "credential_source JSON field "+format.SubjectTokenFieldName+" is not a string", err)
	}
	return field, nil
}

type fileSubjectTokenProvider struct {
	src CredentialSource
}

func (p *fileSubjectTokenProvider) SubjectToken(_ context.Context, _ string) (string, error) {
	body, err := os.ReadFile(p.src.File)
	if err != nil {
		return "", wrapError(ErrFileIO, "reading credential_source.file", err)
	}
	return extractSubjectToken(body, p.src.Format)
}

type urlSubjectTokenProvider struct {
	src       CredentialSource
	transport Transport
}

func (p *urlSubjectTokenProvider) SubjectToken(ctx context.Context, _ string) (string, error) {
	header := http.Header{}
	for k, v := range p.src.Headers {
		header.Set(k, v)
	}
	resp, err := p.transport.Get(ctx, p.src.URL, header)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(ErrHTTPStatus, "credential_source.url returned status "+http.StatusText(resp.StatusCode))
	}
	return extractSubjectToken(resp.Body, p.src.Format)
}

// awsCredentialsEnvTriple reads the (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
// AWS_SESSION_TOKEN?) triple from the environment. ok is false unless at
// least the access key and secret key are both set.
func awsCredentialsEnvTriple() (awsCredentials, bool) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return awsCredentials{}, false
	}
	return awsCredentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}, true
}

// awsRegion implements the region discovery order of spec.md §4.4 Stage 1:
// AWS_REGION, then AWS_DEFAULT_REGION, then a GET against region_url with
// the trailing availability-zone byte dropped.
func awsRegion(ctx context.Context, src CredentialSource, transport Transport) (string, error) {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r, nil
	}
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r, nil
	}
	if src.RegionURL == "" {
		return "", newError(ErrInvalidConfig, "AWS region not in environment and credential_source.region_url not set")
	}
	resp, err := transport.Get(ctx, src.RegionURL, http.Header{})
	if err != nil {
		return "", err
	}
	az := strings.TrimSpace(string(resp.Body))
	if az == "" {
		return "", newError(ErrResponseParse, "credential_source.region_url returned an empty body")
	}
	return az[:len(az)-1], nil
}

// awsRoleCredentials implements the IMDS role-then-credentials lookup:
// GET url to obtain the attached role name, then GET url/<role_name> for
// the {AccessKeyId, SecretAccessKey, Token} document.
func awsRoleCredentials(ctx context.Context, src CredentialSource, transport Transport) (awsCredentials, error) {
	roleResp, err := transport.Get(ctx, src.URL, http.Header{})
	if err != nil {
		return awsCredentials{}, err
	}
	role := strings.TrimSpace(string(roleResp.Body))
	if role == "" {
		return awsCredentials{}, newError(ErrResponseParse, "credential_source.url returned an empty role name")
	}

	credResp, err := transport.Get(ctx, strings.TrimRight(src.URL, "/")+"/"+role, http.Header{})
	if err != nil {
		return awsCredentials{}, err
	}

	var doc struct {
		AccessKeyID     string `json:"AccessKeyId"`
		SecretAccessKey string `json:"SecretAccessKey"`
		Token           string `json:"Token"`
	}
	if err := json.Unmarshal(credResp.Body, &doc); err != nil {
		return awsCredentials{}, wrapError(ErrResponseParse, "parsing AWS role credentials document", err)
	}
	return awsCredentials{
		AccessKeyID:     doc.AccessKeyID,
		SecretAccessKey: doc.SecretAccessKey,
		SessionToken:    doc.Token,
	}, nil
}

type awsSubjectTokenProvider struct {
	src       CredentialSource
	transport Transport
}

// SubjectToken implements the AWS branch of spec.md §4.4 Stage 1 end to
// end: region discovery, credential discovery, SigV4-signing a
// GetCallerIdentity request, and URL-encoding the serialized signed
// request as the subject token.
func (p *awsSubjectTokenProvider) SubjectToken(ctx context.Context, audience string) (string, error) {
	region, err := awsRegion(ctx, p.src, p.transport)
	if err != nil {
		return "", err
	}

	creds, ok := awsCredentialsEnvTriple()
	if !ok {
		creds, err = awsRoleCredentials(ctx, p.src, p.transport)
		if err != nil {
			return "", err
		}
	}

	verificationURL := strings.ReplaceAll(p.src.RegionalCredVerificationURL, "{region}", region)
	signed, err := buildSignedGetCallerIdentityRequest(ctx, creds, region, verificationURL, audience)
	if err != nil {
		return "", err
	}

	doc, err := json.Marshal(signed)
	if err != nil {
		return "", wrapError(ErrSigning, "marshalling signed AWS request", err)
	}
	return url.QueryEscape(string(doc)), nil
}
