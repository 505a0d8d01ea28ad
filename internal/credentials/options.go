package credentials

import (
	"encoding/json"
	"fmt"
)

// ValidationError is one field-level failure surfaced by a Validator run,
// in the shape of the teacher's internal/config.ValidationError.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationRule pairs a named check against a named field, matching the
// teacher's internal/config.ValidationRule idiom (Name/Field/Validator).
type ValidationRule struct {
	Name     string
	Field    string
	Validate func() error
}

// Validator runs a fixed list of ValidationRules and accumulates every
// failure rather than stopping at the first, so a caller validating a
// config file sees every problem in one pass (adapted from the teacher's
// internal/config.Validator).
type Validator struct {
	rules  []ValidationRule
	errors []ValidationError
}

// NewValidator builds a Validator over the given rules.
func NewValidator(rules []ValidationRule) *Validator {
	return &Validator{rules: rules}
}

// Run executes every rule, returning a single aggregated error (or nil) and
// leaving the accumulated per-field errors available via Errors.
func (v *Validator) Run() error {
	v.errors = v.errors[:0]
	for _, rule := range v.rules {
		if err := rule.Validate(); err != nil {
			v.errors = append(v.errors, ValidationError{Field: rule.Field, Message: err.Error()})
		}
	}
	if len(v.errors) == 0 {
		return nil
	}
	return v.formatErrors()
}

// Errors returns every accumulated field-level failure from the last Run.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

func (v *Validator) formatErrors() error {
	msg := fmt.Sprintf("%d validation error(s):", len(v.errors))
	for _, e := range v.errors {
		msg += fmt.Sprintf(" [%s: %s]", e.Field, e.Message)
	}
	return newError(ErrInvalidConfig, msg)
}

// stsRules builds the ValidationRules for STSOptions, one per field checked
// by STSOptions.Validate, so a caller validating a config file (rather than
// constructing a credential directly) sees every offending field at once.
func stsRules(o STSOptions) []ValidationRule {
	return []ValidationRule{
		{Name: "sts_endpoint_url_required", Field: "sts_endpoint_url", Validate: func() error {
			if o.STSEndpointURL == "" {
				return newError(ErrInvalidConfig, "is required")
			}
			return nil
		}},
		{Name: "sts_endpoint_url_scheme", Field: "sts_endpoint_url", Validate: func() error {
			if o.STSEndpointURL == "" {
				return nil
			}
			u, err := parseURLStrict(o.STSEndpointURL)
			if err != nil {
				return err
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return newError(ErrInvalidConfig, "must have scheme http or https")
			}
			return nil
		}},
		{Name: "subject_token_path_required", Field: "subject_token_path", Validate: func() error {
			if o.SubjectTokenPath == "" {
				return newError(ErrInvalidConfig, "is required")
			}
			return nil
		}},
		{Name: "subject_token_type_required", Field: "subject_token_type", Validate: func() error {
			if o.SubjectTokenType == "" {
				return newError(ErrInvalidConfig, "is required")
			}
			return nil
		}},
	}
}

// ValidateSTSOptionsVerbose runs every STS-options rule and reports all
// failing fields at once, for CLI/config-file validation (spec.md §8
// property 6 exercises each field independently).
func ValidateSTSOptionsVerbose(o STSOptions) error {
	return NewValidator(stsRules(o)).Run()
}

// credentialsFileConfig is the top-level JSON shape callcredsctl and
// NewCallCredentialFromJSON accept: any one of the well-known ADC file
// types, or a bare STS options document (type == "sts").
type credentialsFileConfig struct {
	Type string `json:"type"`
}

// NewCallCredentialFromJSON dispatches a JSON credentials document by its
// "type" field to the matching factory, mirroring the well-known-file
// dispatch of ADC (§4.6) but usable standalone (e.g. from callcredsctl).
func NewCallCredentialFromJSON(data []byte, transport Transport) (CallCredential, error) {
	var head credentialsFileConfig
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, wrapError(ErrInvalidConfig, "parsing credentials JSON", err)
	}

	switch head.Type {
	case "service_account":
		key, err := ParseServiceAccountKey(data)
		if err != nil {
			return nil, err
		}
		return NewJWTAccessCredential(key, ""), nil

	case "authorized_user":
		var doc struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, wrapError(ErrInvalidConfig, "parsing authorized_user JSON", err)
		}
		return NewRefreshTokenCredential(RefreshTokenOptions{
			ClientID:     doc.ClientID,
			ClientSecret: doc.ClientSecret,
			RefreshToken: doc.RefreshToken,
		}, transport)

	case "sts":
		var opts STSOptions
		if err := json.Unmarshal(data, &opts); err != nil {
			return nil, wrapError(ErrInvalidConfig, "parsing sts options JSON", err)
		}
		return NewSTSCredential(opts, transport)

	case "external_account":
		var doc adcCredentialsFile
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, wrapError(ErrInvalidConfig, "parsing external_account JSON", err)
		}
		var src CredentialSource
		if len(doc.CredentialSource) > 0 {
			if err := json.Unmarshal(doc.CredentialSource, &src); err != nil {
				return nil, wrapError(ErrInvalidConfig, "parsing credential_source JSON", err)
			}
		}
		return NewExternalAccountCredential(ExternalAccountOptions{
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
		}, transport)

	default:
		return nil, newError(ErrInvalidConfig, "unrecognized credentials JSON type: "+head.Type)
	}
}
