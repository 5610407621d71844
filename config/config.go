// Package config loads the application settings shared by all commands.
// Values come from a YAML file, a .env file and environment variables, in
// increasing precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DarioAlonsoCerezo/binnacle"
)

// DefaultFile is the config file Load reads when no path is given.
const DefaultFile = "binnacle.yaml"

// Environment variables recognized by Load. Each overrides the matching
// file value.
const (
	EnvDatabase = "BINNACLE_DB"
	EnvAccount  = "BINNACLE_ACCOUNT"
	EnvBroker   = "BINNACLE_BROKER"
	EnvCurrency = "BINNACLE_CURRENCY"
	EnvLogLevel = "BINNACLE_LOG_LEVEL"

	// EnvGeminiKey is read for the assistant. It is never stored in the
	// config file.
	EnvGeminiKey = "GEMINI_API_KEY"
)

// Config holds the settings shared by all commands.
type Config struct {
	Database string `yaml:"database"`  // SQLite database path
	Account  string `yaml:"account"`   // account imports and reports default to
	Broker   string `yaml:"broker"`    // statement format: tastytrade or ibkr
	Currency string `yaml:"currency"`  // reporting currency
	LogLevel string `yaml:"log_level"` // debug, info, warn or error

	// GeminiKey comes from the environment only.
	GeminiKey string `yaml:"-"`
}

// Default returns the configuration used when no file and no environment
// override is present.
func Default() *Config {
	return &Config{
		Database: "binnacle.db",
		Account:  "main",
		Broker:   "tastytrade",
		Currency: binnacle.DefaultCurrency,
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file, then .env,
// then environment variables. A missing DefaultFile is fine; a missing
// explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %q: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// nothing to read, defaults stand
	default:
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	// .env is optional and never wins over real environment variables.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	override(&cfg.Database, EnvDatabase)
	override(&cfg.Account, EnvAccount)
	override(&cfg.Broker, EnvBroker)
	override(&cfg.Currency, EnvCurrency)
	override(&cfg.LogLevel, EnvLogLevel)
	cfg.GeminiKey = os.Getenv(EnvGeminiKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func override(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Account == "" {
		return fmt.Errorf("account name is required")
	}
	switch c.Broker {
	case "tastytrade", "ibkr":
	default:
		return fmt.Errorf("broker must be tastytrade or ibkr, got %q", c.Broker)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code, got %q", c.Currency)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured log level to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log level must be debug, info, warn or error, got %q", c.LogLevel)
	}
}
