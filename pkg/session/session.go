// Package session provides Solr connection configuration and transport
// handle acquisition for mythix-orm-solr.
package session

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/th317erd/mythix-orm-solr/pkg/transport"
)

// Defaults applied by DefaultConfig and normalize.
const (
	DefaultBatchSize = 500
	DefaultFetchSize = 100
	DefaultTimeout   = 30 * time.Second
)

// Config holds the configuration for a Solr connection.
type Config struct {
	// BaseURL is the Solr root, e.g. "http://localhost:8983/solr".
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timeout bounds each transport round trip.
	Timeout time.Duration `yaml:"timeout"`

	// BatchSize partitions bulk operations; FetchSize is the select page size.
	BatchSize int `yaml:"batch_size"`
	FetchSize int `yaml:"fetch_size"`

	// CommitWrites appends commit=true to update requests so writes are
	// visible to searches immediately. Disable to lean on Solr autoCommit.
	CommitWrites *bool `yaml:"commit_writes"`

	// HTTPClient overrides the transport's HTTP client entirely.
	HTTPClient *http.Client `yaml:"-"`

	Logger *zap.Logger `yaml:"-"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	commit := true
	return &Config{
		BaseURL:      "http://localhost:8983/solr",
		Timeout:      DefaultTimeout,
		BatchSize:    DefaultBatchSize,
		FetchSize:    DefaultFetchSize,
		CommitWrites: &commit,
	}
}

// LoadConfig reads a YAML config file and fills unset values with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// UnmarshalYAML accepts human-readable durations ("10s", "2m") for timeout.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BaseURL      string `yaml:"base_url"`
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		Timeout      string `yaml:"timeout"`
		BatchSize    int    `yaml:"batch_size"`
		FetchSize    int    `yaml:"fetch_size"`
		CommitWrites *bool  `yaml:"commit_writes"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.BaseURL = raw.BaseURL
	c.Username = raw.Username
	c.Password = raw.Password
	c.BatchSize = raw.BatchSize
	c.FetchSize = raw.FetchSize
	c.CommitWrites = raw.CommitWrites
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		c.Timeout = d
	}
	return nil
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8983/solr"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FetchSize <= 0 {
		c.FetchSize = DefaultFetchSize
	}
	if c.CommitWrites == nil {
		commit := true
		c.CommitWrites = &commit
	}
}

// Session holds validated configuration and mints transport handles.
type Session struct {
	config *Config
}

// NewSession creates a new session with the given configuration
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("session: base URL is required")
	}

	return &Session{config: cfg}, nil
}

// Connect acquires a fresh transport handle. Each call creates a new handle;
// the caller owns its lifecycle.
func (s *Session) Connect() (*transport.Client, error) {
	return transport.New(transport.Config{
		BaseURL:    s.config.BaseURL,
		Username:   s.config.Username,
		Password:   s.config.Password,
		Timeout:    s.config.Timeout,
		HTTPClient: s.config.HTTPClient,
		Logger:     s.config.Logger,
	})
}

// Config returns the session configuration
func (s *Session) Config() *Config {
	return s.config
}

// CommitWrites reports whether update requests should carry commit=true.
func (s *Session) CommitWrites() bool {
	return s.config.CommitWrites == nil || *s.config.CommitWrites
}
