package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by RunConfig.Output.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds all configuration for a run
type Config struct {
	Addy AddyConfig `yaml:"addy" envPrefix:"ADDY_"`
	HIBP HIBPConfig `yaml:"hibp" envPrefix:"HIBP_"`
	Log  LogConfig  `yaml:"log" envPrefix:"LOG_"`
	Run  RunConfig  `yaml:"run" envPrefix:"ALIASGUARD_"`
}

// AddyConfig holds addy.io (AnonAddy) API configuration
type AddyConfig struct {
	Token          string `yaml:"token" env:"TOKEN"`
	BaseURL        string `yaml:"base_url" env:"BASE_URL"`
	PageSize       int    `yaml:"page_size" env:"PAGE_SIZE"`
	MaxPages       int    `yaml:"max_pages" env:"MAX_PAGES"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	RetryDelayMS   int    `yaml:"retry_delay_ms" env:"RETRY_DELAY_MS"`
}

// Timeout returns the configured timeout as a duration
func (c AddyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the wait before the single deactivation retry
func (c AddyConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// HIBPConfig holds Have I Been Pwned API configuration
type HIBPConfig struct {
	Token               string `yaml:"token" env:"TOKEN"`
	BaseURL             string `yaml:"base_url" env:"BASE_URL"`
	UserAgent           string `yaml:"user_agent" env:"USER_AGENT"`
	TimeoutSeconds      int    `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	MinIntervalMS       int    `yaml:"min_interval_ms" env:"MIN_INTERVAL_MS"`
	MaxRateLimitRetries int    `yaml:"max_rate_limit_retries" env:"MAX_RATE_LIMIT_RETRIES"`
}

// Timeout returns the configured timeout as a duration
func (c HIBPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MinInterval returns the minimum spacing between breach lookups
func (c HIBPConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	ShowPII bool   `yaml:"show_pii" env:"SHOW_PII"`
}

// RunConfig holds per-run switches
type RunConfig struct {
	DryRun bool   `yaml:"dry_run" env:"DRY_RUN"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads envFile (or ./.env when envFile is empty and the file exists)
// before reading env vars, so tokens can live in a local .env file.
func LoadFromEnv(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		// Load .env file if it exists (no error if missing)
		_ = godotenv.Load()
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	// Names used by the AnonAddy-era tooling
	if cfg.Addy.Token == "" {
		cfg.Addy.Token = os.Getenv("ANONADDY_TOKEN")
	}
	if cfg.Addy.BaseURL == "" {
		cfg.Addy.BaseURL = os.Getenv("ANONADDY_HOST")
	}

	applyDefaults(cfg)
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Addy.BaseURL == "" {
		cfg.Addy.BaseURL = "https://app.addy.io"
	}
	cfg.Addy.BaseURL = strings.TrimRight(cfg.Addy.BaseURL, "/")
	if cfg.Addy.PageSize == 0 {
		cfg.Addy.PageSize = 100
	}
	if cfg.Addy.MaxPages == 0 {
		cfg.Addy.MaxPages = 1000
	}
	if cfg.Addy.TimeoutSeconds == 0 {
		cfg.Addy.TimeoutSeconds = 30
	}
	if cfg.Addy.RetryDelayMS == 0 {
		cfg.Addy.RetryDelayMS = 2000
	}

	if cfg.HIBP.BaseURL == "" {
		cfg.HIBP.BaseURL = "https://haveibeenpwned.com"
	}
	cfg.HIBP.BaseURL = strings.TrimRight(cfg.HIBP.BaseURL, "/")
	if cfg.HIBP.UserAgent == "" {
		cfg.HIBP.UserAgent = "aliasguard"
	}
	if cfg.HIBP.TimeoutSeconds == 0 {
		cfg.HIBP.TimeoutSeconds = 30
	}
	// Pwned 1 keys allow 10 requests per minute
	if cfg.HIBP.MinIntervalMS == 0 {
		cfg.HIBP.MinIntervalMS = 6000
	}
	if cfg.HIBP.MaxRateLimitRetries == 0 {
		cfg.HIBP.MaxRateLimitRetries = 5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Run.Output == "" {
		cfg.Run.Output = OutputText
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	var errs []error

	if c.Addy.Token == "" {
		errs = append(errs, errors.New("addy token is required (set ADDY_TOKEN)"))
	}
	if c.HIBP.Token == "" {
		errs = append(errs, errors.New("hibp token is required (set HIBP_TOKEN)"))
	}
	if err := validateBaseURL("addy.base_url", c.Addy.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateBaseURL("hibp.base_url", c.HIBP.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.Addy.PageSize < 1 || c.Addy.PageSize > 100 {
		errs = append(errs, fmt.Errorf("addy.page_size must be between 1 and 100, got %d", c.Addy.PageSize))
	}
	if c.Addy.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("addy.max_pages must be positive, got %d", c.Addy.MaxPages))
	}
	if c.HIBP.MinIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("hibp.min_interval_ms must not be negative, got %d", c.HIBP.MinIntervalMS))
	}
	if c.HIBP.MaxRateLimitRetries < 0 {
		errs = append(errs, fmt.Errorf("hibp.max_rate_limit_retries must not be negative, got %d", c.HIBP.MaxRateLimitRetries))
	}
	if c.Run.Output != OutputText && c.Run.Output != OutputJSON {
		errs = append(errs, fmt.Errorf("run.output must be %q or %q, got %q", OutputText, OutputJSON, c.Run.Output))
	}

	return errors.Join(errs...)
}

func validateBaseURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}
