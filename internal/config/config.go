// Package config loads and validates callcredsctl's operator-level
// settings: default OAuth2 scopes, log level, and an optional ADC
// override path. Adapted from the teacher's internal/config.Loader, with
// the HCL/Terraform-specific loading paths dropped.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is callcredsctl's operator-level configuration.
type Config struct {
	mu sync.RWMutex

	LogLevel           string   `json:"log_level" yaml:"log_level"`
	DefaultScopes      []string `json:"default_scopes" yaml:"default_scopes"`
	ADCOverridePath    string   `json:"adc_override_path" yaml:"adc_override_path"`
	HTTPTimeoutSeconds int      `json:"http_timeout_seconds" yaml:"http_timeout_seconds"`
	QuotaProjectID     string   `json:"quota_project_id" yaml:"quota_project_id"`

	configPath string
	loadTime   time.Time
}

// HTTPTimeout returns the configured HTTP timeout as a time.Duration,
// defaulting to 30s when unset.
func (c *Config) HTTPTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.HTTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ConfigPath returns the file the config was loaded from, if any.
func (c *Config) ConfigPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configPath
}

// Loader reads a Config from a JSON/YAML file, or from environment
// variables and defaults when no file is given (adapted from the teacher's
// internal/config.Loader).
type Loader struct {
	v *viper.Viper
}

// NewLoader builds a Loader; the CALLCREDS_ environment prefix is applied
// when LoadConfig takes the env/defaults fallback path.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// LoadConfig reads path (json/yaml), or falls back to environment
// variables and defaults when path is empty.
func (l *Loader) LoadConfig(path string) (*Config, error) {
	cfg := &Config{loadTime: time.Now()}

	if path == "" {
		return l.loadFromEnv(cfg)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return l.loadJSON(path, cfg)
	case ".yaml", ".yml":
		return l.loadYAML(path, cfg)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", path)
	}
}

func (l *Loader) loadJSON(path string, cfg *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading JSON config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing JSON config: %w", err)
	}
	cfg.configPath = path
	return cfg, nil
}

func (l *Loader) loadYAML(path string, cfg *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading YAML config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}
	cfg.configPath = path
	return cfg, nil
}

func (l *Loader) loadFromEnv(cfg *Config) (*Config, error) {
	l.v.SetEnvPrefix("CALLCREDS")
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	l.v.SetDefault("log_level", "info")
	l.v.SetDefault("default_scopes", []string{"https://www.googleapis.com/auth/cloud-platform"})
	l.v.SetDefault("http_timeout_seconds", 30)
	l.v.SetDefault("adc_override_path", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	l.v.SetDefault("quota_project_id", "")

	cfg.LogLevel = l.v.GetString("log_level")
	cfg.DefaultScopes = l.v.GetStringSlice("default_scopes")
	cfg.HTTPTimeoutSeconds = l.v.GetInt("http_timeout_seconds")
	cfg.ADCOverridePath = l.v.GetString("adc_override_path")
	cfg.QuotaProjectID = l.v.GetString("quota_project_id")
	return cfg, nil
}
