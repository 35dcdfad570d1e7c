package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default endpoints and timeouts for the Talkeys backend.
const (
	DefaultAPIBaseURL     = "https://api.talkeys.xyz/"
	DefaultRequestTimeout = 30 * time.Second
)

// GoogleConfig holds the OAuth client settings for the Google sign-in flow.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectPort int    `yaml:"redirect_port"`
}

// Config holds all configuration for the client.
type Config struct {
	APIBaseURL     string
	AuthBaseURL    string
	RequestTimeout time.Duration
	Google         GoogleConfig
	Environment    string
}

// fileConfig is the YAML layout. Durations are written as strings ("30s").
type fileConfig struct {
	APIBaseURL     string       `yaml:"api_base_url"`
	AuthBaseURL    string       `yaml:"auth_base_url"`
	RequestTimeout string       `yaml:"request_timeout"`
	Google         GoogleConfig `yaml:"google"`
}

// Load loads configuration from environment variables.
// It attempts to load from .env file if not in production.
// If path is non-empty, the YAML file at that location is read first and
// environment variables override its values.
func Load(path string) (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Load .env file if not in production.
	// In production we rely on system environment variables only.
	if env != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found or couldn't be loaded: %v", err)
		}
	}

	cfg := &Config{
		Environment:    env,
		APIBaseURL:     DefaultAPIBaseURL,
		RequestTimeout: DefaultRequestTimeout,
	}

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("TALKEYS_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("TALKEYS_AUTH_URL"); v != "" {
		cfg.AuthBaseURL = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Google.ClientSecret = v
	}

	// The auth backend is served from the same host unless overridden.
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = cfg.APIBaseURL
	}

	return cfg, nil
}

// DefaultPath returns the conventional location of the CLI config file,
// or an empty string when it does not exist.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "talkeys", "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.APIBaseURL != "" {
		cfg.APIBaseURL = fc.APIBaseURL
	}
	if fc.AuthBaseURL != "" {
		cfg.AuthBaseURL = fc.AuthBaseURL
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("parse request_timeout in %s: %w", path, err)
		}
		cfg.RequestTimeout = d
	}
	cfg.Google = fc.Google
	return nil
}
