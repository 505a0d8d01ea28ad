package credentials

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// awsSTSService is the SigV4 service name used for GetCallerIdentity
// requests (spec.md §3).
const awsSTSService = "sts"

// awsCredentials is the triple discovered from the environment or the
// EC2/ECS metadata endpoints (spec.md §3 AWS region/credentials discovery
// order).
type awsCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// awsSigner signs the fixed GetCallerIdentity request the external-account
// AWS subject-token provider builds, grounded on stacklok-toolhive's
// pkg/auth/awssts/signer.go. It is narrower than that signer on purpose:
// this package only ever signs one request shape, so region and service
// are supplied per call rather than fixed at construction.
type awsSigner struct {
	signer *v4.Signer
}

func newAWSSigner() *awsSigner {
	return &awsSigner{signer: v4.NewSigner()}
}

// sign signs req in place with SigV4 over the given
// credentials, region, and service ("sts"), mirroring
// awssts.Signer.SignRequest's body-hash-then-sign sequence.
func (s *awsSigner) sign(ctx context.Context, req *http.Request, creds awsCredentials, region, service string) error {
	payloadHash, bodyBytes, err := s.hashPayload(req)
	if err != nil {
		return wrapError(ErrSigning, "hashing AWS request payload", err)
	}
	if bodyBytes != nil {
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		req.ContentLength = int64(len(bodyBytes))
	}

	awsCreds := aws.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	}

	if err := s.signer.SignHTTP(ctx, awsCreds, req, payloadHash, service, region, time.Now()); err != nil {
		return wrapError(ErrSigning, "signing AWS GetCallerIdentity request", err)
	}
	return nil
}

func (*awsSigner) hashPayload(req *http.Request) (string, []byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", nil, nil
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return "", nil, err
	}
	if err := req.Body.Close(); err != nil {
		return "", nil, err
	}

	hash := sha256.Sum256(bodyBytes)
	return hex.EncodeToString(hash[:]), bodyBytes, nil
}

// signedAWSRequestHeader is one entry of the "headers" array in the
// serialized signed-request subject token (spec.md §3).
type signedAWSRequestHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// signedAWSRequest is the JSON document that, URL-encoded, becomes the AWS
// external-account subject token: a fully signed GetCallerIdentity request,
// serialized so the STS service can replay it without ever seeing the
// caller's AWS credentials directly.
type signedAWSRequest struct {
	URL     string                   `json:"url"`
	Method  string                   `json:"method"`
	Headers []signedAWSRequestHeader `json:"headers"`
}

// buildSignedGetCallerIdentityRequest signs a GetCallerIdentity POST against
// verificationURL (whose "{region}" placeholder the caller has already
// substituted) for audience, and
// returns the JSON document that subjecttoken.go URL-encodes into the
// subject token (spec.md §3's AWS credential_source branch).
func buildSignedGetCallerIdentityRequest(ctx context.Context, creds awsCredentials, region, verificationURL, audience string) (*signedAWSRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, verificationURL, nil)
	if err != nil {
		return nil, wrapError(ErrSigning, "building GetCallerIdentity request", err)
	}
	req.Header.Set("x-goog-cloud-target-resource", audience)

	if err := newAWSSigner().sign(ctx, req, creds, region, awsSTSService); err != nil {
		return nil, err
	}

	headers := make([]signedAWSRequestHeader, 0, len(req.Header)+1)
	headers = append(headers, signedAWSRequestHeader{Key: "Host", Value: req.Host})
	for k, vs := range req.Header {
		for _, v := range vs {
			headers = append(headers, signedAWSRequestHeader{Key: k, Value: v})
		}
	}

	return &signedAWSRequest{
		URL:     req.URL.String(),
		Method:  http.MethodPost,
		Headers: headers,
	}, nil
}
