package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProductionBaseURI is the production KuMex REST host
	ProductionBaseURI = "https://api-futures.kucoin.com"
	// SandboxBaseURI is the sandbox KuMex REST host
	SandboxBaseURI = "https://api-sandbox-futures.kucoin.com"

	// DefaultTimeout bounds a call when the caller passes no timeout
	DefaultTimeout = 30 * time.Second
)

// Transport names accepted by APIConfig.Transport
const (
	TransportHTTP  = "http"
	TransportResty = "resty"
)

// DefaultFiles are tried in order by Load
var DefaultFiles = []string{"config.json", "config.yaml", "config.yml"}

// Config is the process-wide SDK configuration. It is read once at startup
// and handed to the client; nothing mutates it afterwards.
type Config struct {
	APIConfig         APIConfig         `json:"api" yaml:"api"`
	CredentialsConfig CredentialsConfig `json:"credentials" yaml:"credentials"`
	LoggingConfig     LoggingConfig     `json:"logging" yaml:"logging"`
	VaultConfig       VaultConfig       `json:"vault" yaml:"vault"`
}

// APIConfig holds REST endpoint settings
type APIConfig struct {
	BaseURI       string        `json:"base_uri" yaml:"base_uri"`
	Sandbox       bool          `json:"sandbox" yaml:"sandbox"`
	SkipVerifyTLS bool          `json:"skip_verify_tls" yaml:"skip_verify_tls"`
	DebugMode     bool          `json:"debug_mode" yaml:"debug_mode"` // log every request and response
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	Transport     string        `json:"transport" yaml:"transport"` // http or resty
}

// UnmarshalJSON accepts timeout as a duration string ("5s") or as integer
// nanoseconds
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	type plain APIConfig
	aux := struct {
		*plain
		Timeout json.RawMessage `json:"timeout"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Timeout) == 0 || string(aux.Timeout) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.Timeout, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid api timeout %q: %w", s, err)
		}
		a.Timeout = d
		return nil
	}
	var n int64
	if err := json.Unmarshal(aux.Timeout, &n); err != nil {
		return fmt.Errorf("invalid api timeout %s: must be a duration string or nanoseconds", aux.Timeout)
	}
	a.Timeout = time.Duration(n)
	return nil
}

// CredentialsConfig holds API credentials when they are not kept in Vault
type CredentialsConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	APISecret  string `json:"api_secret" yaml:"api_secret"`
	Passphrase string `json:"passphrase" yaml:"passphrase"`
	KeyVersion string `json:"key_version" yaml:"key_version"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`   // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output" yaml:"output"` // file, stdout or stderr
	Path       string `json:"path" yaml:"path"`     // directory of kumex-sdk.log
	JSONFormat bool   `json:"json_format" yaml:"json_format"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// VaultConfig holds HashiCorp Vault settings for credential storage
type VaultConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Address    string `json:"address" yaml:"address"`
	Token      string `json:"token" yaml:"token"`
	MountPath  string `json:"mount_path" yaml:"mount_path"`   // KV v2 secrets engine mount path
	SecretPath string `json:"secret_path" yaml:"secret_path"` // path prefix for credentials
	Account    string `json:"account" yaml:"account"`         // credential set to load
	TLSEnabled bool   `json:"tls_enabled" yaml:"tls_enabled"`
	CACert     string `json:"ca_cert" yaml:"ca_cert"`
}

// HasCredentials reports whether any credential field is set
func (c CredentialsConfig) HasCredentials() bool {
	return c.APIKey != "" || c.APISecret != "" || c.Passphrase != ""
}

// Load reads the first default file found, then applies environment overrides
func Load() (*Config, error) {
	for _, name := range DefaultFiles {
		cfg, err := LoadFile(name)
		if err == nil {
			return finalize(cfg)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	// If no config file, start with empty config
	return finalize(&Config{})
}

// LoadFrom reads filename instead of the default files
func LoadFrom(filename string) (*Config, error) {
	cfg, err := LoadFile(filename)
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

func finalize(cfg *Config) (*Config, error) {
	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses a JSON or YAML file chosen by extension
func LoadFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", filename, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", filename, err)
		}
	}
	return &cfg, nil
}

// Validate rejects settings the client cannot work with
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIConfig.BaseURI)
	if err != nil {
		return fmt.Errorf("invalid base uri %q: %w", c.APIConfig.BaseURI, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base uri %q: want http(s)://host", c.APIConfig.BaseURI)
	}

	switch c.APIConfig.Transport {
	case TransportHTTP, TransportResty:
	default:
		return fmt.Errorf("unknown transport %q", c.APIConfig.Transport)
	}

	if c.APIConfig.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// API config
	cfg.APIConfig.BaseURI = getEnvOrDefault("KUMEX_BASE_URI", cfg.APIConfig.BaseURI)
	cfg.APIConfig.Sandbox = getEnvBoolOrDefault("KUMEX_SANDBOX", cfg.APIConfig.Sandbox)
	cfg.APIConfig.SkipVerifyTLS = getEnvBoolOrDefault("KUMEX_SKIP_VERIFY_TLS", cfg.APIConfig.SkipVerifyTLS)
	cfg.APIConfig.DebugMode = getEnvBoolOrDefault("KUMEX_DEBUG", cfg.APIConfig.DebugMode)
	cfg.APIConfig.Timeout = getEnvDurationOrDefault("KUMEX_TIMEOUT", cfg.APIConfig.Timeout)
	cfg.APIConfig.Transport = getEnvOrDefault("KUMEX_TRANSPORT", cfg.APIConfig.Transport)

	// Credentials
	cfg.CredentialsConfig.APIKey = getEnvOrDefault("KUMEX_API_KEY", cfg.CredentialsConfig.APIKey)
	cfg.CredentialsConfig.APISecret = getEnvOrDefault("KUMEX_API_SECRET", cfg.CredentialsConfig.APISecret)
	cfg.CredentialsConfig.Passphrase = getEnvOrDefault("KUMEX_API_PASSPHRASE", cfg.CredentialsConfig.Passphrase)
	cfg.CredentialsConfig.KeyVersion = getEnvOrDefault("KUMEX_API_KEY_VERSION", cfg.CredentialsConfig.KeyVersion)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.Path = getEnvOrDefault("LOG_PATH", cfg.LoggingConfig.Path)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.MaxSizeMB = getEnvIntOrDefault("LOG_MAX_SIZE_MB", cfg.LoggingConfig.MaxSizeMB)
	cfg.LoggingConfig.MaxBackups = getEnvIntOrDefault("LOG_MAX_BACKUPS", cfg.LoggingConfig.MaxBackups)
	cfg.LoggingConfig.MaxAgeDays = getEnvIntOrDefault("LOG_MAX_AGE_DAYS", cfg.LoggingConfig.MaxAgeDays)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.Account = getEnvOrDefault("VAULT_ACCOUNT", cfg.VaultConfig.Account)
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)
}

func applyDefaults(cfg *Config) {
	if cfg.APIConfig.BaseURI == "" {
		cfg.APIConfig.BaseURI = ProductionBaseURI
		if cfg.APIConfig.Sandbox {
			cfg.APIConfig.BaseURI = SandboxBaseURI
		}
	}
	cfg.APIConfig.BaseURI = strings.TrimRight(cfg.APIConfig.BaseURI, "/")
	if cfg.APIConfig.Timeout == 0 {
		cfg.APIConfig.Timeout = DefaultTimeout
	}
	if cfg.APIConfig.Transport == "" {
		cfg.APIConfig.Transport = TransportHTTP
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "DEBUG"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "file"
	}
	if cfg.LoggingConfig.Path == "" {
		cfg.LoggingConfig.Path = "/tmp"
	}

	if cfg.VaultConfig.Address == "" {
		cfg.VaultConfig.Address = "http://localhost:8200"
	}
	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "kumex/api-keys"
	}
	if cfg.VaultConfig.Account == "" {
		cfg.VaultConfig.Account = "default"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
