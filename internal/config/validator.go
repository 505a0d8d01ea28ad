package config

import (
	"fmt"
	"strings"
)

// ValidationError is one field-level validation failure, in the shape of
// the teacher's internal/config.ValidationError.
type ValidationError struct {
	Field    string
	Value    interface{}
	Message  string
	Severity string
}

// ValidationRule pairs a named check against a named field (teacher's
// internal/config.ValidationRule idiom).
type ValidationRule struct {
	Name      string
	Field     string
	Validator func(interface{}) error
	Severity  string
}

// Validator runs a fixed set of rules plus a handful of config-shape checks
// against a Config, accumulating every failure rather than stopping at the
// first (adapted from the teacher's internal/config.Validator).
type Validator struct {
	config *Config
	errors []ValidationError
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{config: cfg}
}

func (v *Validator) Validate() error {
	v.errors = v.errors[:0]

	for _, rule := range v.getValidationRules() {
		value := v.getFieldValue(rule.Field)
		if value == nil {
			continue
		}
		if err := rule.Validator(value); err != nil {
			v.addError(rule.Field, value, err.Error(), rule.Severity)
		}
	}

	v.validateLogLevel()
	v.validateDefaultScopes()
	v.validateHTTPTimeout()

	if len(v.errors) > 0 {
		return v.formatErrors()
	}
	return nil
}

func (v *Validator) getValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Name:  "adc_override_path_readable",
			Field: "adc_override_path",
			Validator: func(value interface{}) error {
				path, _ := value.(string)
				if path == "" {
					return nil
				}
				if !strings.HasSuffix(path, ".json") {
					return fmt.Errorf("adc_override_path should reference a .json credentials file")
				}
				return nil
			},
			Severity: "warning",
		},
	}
}

func (v *Validator) getFieldValue(field string) interface{} {
	switch field {
	case "adc_override_path":
		if v.config.ADCOverridePath == "" {
			return nil
		}
		return v.config.ADCOverridePath
	default:
		return nil
	}
}

func (v *Validator) validateLogLevel() {
	switch v.config.LogLevel {
	case "", "debug", "info", "warn", "error":
		return
	default:
		v.addError("log_level", v.config.LogLevel, "must be one of debug, info, warn, error", "error")
	}
}

func (v *Validator) validateDefaultScopes() {
	for _, s := range v.config.DefaultScopes {
		if !strings.HasPrefix(s, "https://") {
			v.addError("default_scopes", s, "scope must be an https:// URL", "error")
		}
	}
}

func (v *Validator) validateHTTPTimeout() {
	if v.config.HTTPTimeoutSeconds < 0 {
		v.addError("http_timeout_seconds", v.config.HTTPTimeoutSeconds, "must not be negative", "error")
	}
}

func (v *Validator) addError(field string, value interface{}, message, severity string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: message, Severity: severity})
}

func (v *Validator) formatErrors() error {
	var errorMessages, warningMessages []string
	for _, e := range v.errors {
		msg := fmt.Sprintf("%s: %s", e.Field, e.Message)
		if e.Severity == "error" {
			errorMessages = append(errorMessages, msg)
		} else {
			warningMessages = append(warningMessages, msg)
		}
	}

	if len(errorMessages) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errorMessages, "; "))
	}
	if len(warningMessages) > 0 {
		return fmt.Errorf("config validation warnings: %s", strings.Join(warningMessages, "; "))
	}
	return nil
}

// Errors returns every accumulated field-level failure from the last
// Validate call.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}
