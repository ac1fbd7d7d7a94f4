package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/restresource/pkg/resource"
)

// Client defaults.
const (
	DefaultClientBaseURL = "http://localhost:8080/api/v1"
	DefaultClientTimeout = 10 * time.Second
	DefaultClientLog     = "warn"
)

// Client environment variable names. They override the config file.
const (
	EnvClientBaseURL  = "TODOCTL_BASE_URL"
	EnvClientAPIKey   = "TODOCTL_API_KEY" //nolint:gosec // env var name, not a credential
	EnvClientUsername = "TODOCTL_USERNAME"
	EnvClientPassword = "TODOCTL_PASSWORD" //nolint:gosec // env var name, not a credential
	EnvClientTimeout  = "TODOCTL_TIMEOUT"
	EnvClientLogLevel = "TODOCTL_LOG_LEVEL"
)

// Client validation errors.
var (
	ErrInvalidBaseURL         = errors.New("base URL must be an absolute http or https URL")
	ErrInvalidTimeout         = errors.New("timeout must be positive")
	ErrConflictingCredentials = errors.New("set either an API key or a username, not both")
	ErrMissingPassword        = errors.New("password must be set together with username")
)

// Client holds the todoctl configuration.
//
//	baseURL: http://localhost:8080/api/v1
//	apiKey: secret
//	timeout: 5s
//	resource:
//	  strategy: optimistic
//	  remove:
//	    behavior: merge
type Client struct {
	BaseURL  string           `yaml:"baseURL"`
	APIKey   string           `yaml:"apiKey"`
	Username string           `yaml:"username"`
	Password string           `yaml:"password"`
	Timeout  time.Duration    `yaml:"timeout"`
	LogLevel string           `yaml:"logLevel"`
	Resource resource.Profile `yaml:"resource"`
}

// LoadClient reads the YAML file at path, applies TODOCTL_* environment
// overrides and validates the result. An empty path skips the file.
func LoadClient(path string) (*Client, error) {
	cfg := &Client{
		BaseURL:  DefaultClientBaseURL,
		Timeout:  DefaultClientTimeout,
		LogLevel: DefaultClientLog,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading client config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing client config: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading client config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating client config: %w", err)
	}

	return cfg, nil
}

func (c *Client) loadFromEnv() error {
	for name, dst := range map[string]*string{
		EnvClientBaseURL:  &c.BaseURL,
		EnvClientAPIKey:   &c.APIKey,
		EnvClientUsername: &c.Username,
		EnvClientPassword: &c.Password,
		EnvClientLogLevel: &c.LogLevel,
	} {
		if val := os.Getenv(name); val != "" {
			*dst = val
		}
	}

	if val := os.Getenv(EnvClientTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvClientTimeout, err)
		}
		c.Timeout = timeout
	}

	return nil
}

// Validate checks the client configuration.
func (c *Client) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.APIKey != "" && c.Username != "" {
		return ErrConflictingCredentials
	}

	if c.Username != "" && c.Password == "" {
		return ErrMissingPassword
	}

	if err := c.Resource.Validate(); err != nil {
		return fmt.Errorf("resource profile: %w", err)
	}

	return nil
}
