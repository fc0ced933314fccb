// Package config provides configuration management for the PubMed search service.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the PubMed search service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// PubMed contains E-utilities client settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Warnings collects non-fatal problems encountered during loading, such
	// as an unreadable credential file. Callers log them at startup.
	Warnings []string `mapstructure:"-"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PubMedConfig holds E-utilities client configuration.
type PubMedConfig struct {
	// BaseURL is the E-utilities API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the NCBI API key. Loaded from flag, credential file, or the
	// NCBI_API_KEY environment variable, never from the config file.
	APIKey string `mapstructure:"-"`
	// Email is the contact address sent alongside the API key.
	Email string `mapstructure:"-"`
	// CredentialFile is the path to a JSON file holding api_key and email.
	CredentialFile string `mapstructure:"credential_file"`
	// Timeout is the timeout for E-utilities calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// FullAuthorLists disables author truncation when true.
	FullAuthorLists bool `mapstructure:"full_author_lists"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// Overrides carries credential values supplied on the command line. They take
// precedence over the credential file, which takes precedence over
// environment variables.
type Overrides struct {
	APIKey         string
	Email          string
	CredentialFile string
}

// credentialFile is the on-disk credential format written by the setup command.
type credentialFile struct {
	APIKey string `json:"api_key"`
	Email  string `json:"email"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files, then
// resolves credentials with flag > credential file > environment precedence.
func Load(overrides Overrides) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PUBMEDSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pubmed-search-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveCredentials(&cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// resolveCredentials fills PubMed.APIKey and PubMed.Email. Flags win over the
// credential file, which wins over environment variables. A missing
// credential file is silent; an unreadable or malformed one produces a
// warning and is treated as absent.
func resolveCredentials(cfg *Config, overrides Overrides) {
	if overrides.CredentialFile != "" {
		cfg.PubMed.CredentialFile = overrides.CredentialFile
	}

	cfg.PubMed.APIKey = os.Getenv("NCBI_API_KEY")
	cfg.PubMed.Email = os.Getenv("NCBI_EMAIL")

	if cfg.PubMed.CredentialFile != "" {
		creds, err := readCredentialFile(cfg.PubMed.CredentialFile)
		switch {
		case err == nil:
			if creds.APIKey != "" {
				cfg.PubMed.APIKey = creds.APIKey
			}
			if creds.Email != "" {
				cfg.PubMed.Email = creds.Email
			}
		case os.IsNotExist(err):
			// No credential file is a supported state.
		default:
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("credential file %s ignored: %v", cfg.PubMed.CredentialFile, err))
		}
	}

	if overrides.APIKey != "" {
		cfg.PubMed.APIKey = overrides.APIKey
	}
	if overrides.Email != "" {
		cfg.PubMed.Email = overrides.Email
	}
}

func readCredentialFile(path string) (*credentialFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var creds credentialFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &creds, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// PubMed defaults
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.credential_file", "config.json")
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.retry_delay", "1s")
	v.SetDefault("pubmed.full_author_lists", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.PubMed.BaseURL == "" {
		return fmt.Errorf("pubmed base_url is required")
	}
	if c.PubMed.Timeout <= 0 {
		return fmt.Errorf("pubmed timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
