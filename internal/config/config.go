package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aetherium/aetherium-cli/internal/realtime"
	"gopkg.in/yaml.v3"
)

// Config holds the client configuration.
type Config struct {
	// Origin is the dashboard origin the dev endpoints are derived from.
	Origin string `yaml:"origin"`
	// Dev selects origin-relative endpoints instead of the local backend.
	Dev bool `yaml:"dev"`

	// Explicit endpoint overrides
	APIBase      string `yaml:"api_base,omitempty"`
	WebSocketURL string `yaml:"websocket_url,omitempty"`

	// StatePath is the sqlite file holding persisted client state.
	StatePath string `yaml:"state_path"`
	LogLevel  string `yaml:"log_level"`

	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// TimeoutConfig configures REST call timeouts.
type TimeoutConfig struct {
	Default    string `yaml:"default"`
	TaskCreate string `yaml:"task_create"`
}

// ReconnectConfig configures realtime reconnection backoff.
type ReconnectConfig struct {
	MinDelay string  `yaml:"min_delay"`
	MaxDelay string  `yaml:"max_delay"`
	Factor   float64 `yaml:"factor"`
}

// DefaultDir returns ~/.aetherium, falling back to the working directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aetherium"
	}
	return filepath.Join(home, ".aetherium")
}

// DefaultConfigPath returns the config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Origin:    "http://localhost:5173",
		Dev:       false,
		StatePath: filepath.Join(DefaultDir(), "state.db"),
		LogLevel:  "INFO",
		Timeouts: TimeoutConfig{
			Default:    "30s",
			TaskCreate: "120s",
		},
		Reconnect: ReconnectConfig{
			MinDelay: "1s",
			MaxDelay: "10s",
			Factor:   1.3,
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if origin := os.Getenv("AETHERIUM_ORIGIN"); origin != "" {
		c.Origin = origin
	}
	if dev := os.Getenv("AETHERIUM_DEV"); dev != "" {
		if v, err := strconv.ParseBool(dev); err == nil {
			c.Dev = v
		}
	}
	if path := os.Getenv("AETHERIUM_STATE"); path != "" {
		c.StatePath = path
	}
	if level := os.Getenv("AETHERIUM_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// APIBaseURL returns the REST base URL, ending in /api.
func (c *Config) APIBaseURL() string {
	if c.APIBase != "" {
		return strings.TrimRight(c.APIBase, "/")
	}
	if c.Dev {
		return strings.TrimRight(c.Origin, "/") + "/api"
	}
	return "http://localhost:8000/api"
}

// WebSocketEndpoint returns the realtime endpoint.
func (c *Config) WebSocketEndpoint() string {
	if c.WebSocketURL != "" {
		return c.WebSocketURL
	}
	return realtime.EndpointFor(c.Origin, c.Dev)
}

// GetDefaultTimeout returns the REST timeout as a duration.
func (c *Config) GetDefaultTimeout() time.Duration {
	return parseDuration(c.Timeouts.Default, 30*time.Second)
}

// GetTaskCreateTimeout returns the task creation timeout as a duration.
func (c *Config) GetTaskCreateTimeout() time.Duration {
	return parseDuration(c.Timeouts.TaskCreate, 120*time.Second)
}

// Backoff returns the reconnection policy.
func (c *Config) Backoff() realtime.Backoff {
	b := realtime.Backoff{
		Min:    parseDuration(c.Reconnect.MinDelay, realtime.DefaultBackoff.Min),
		Max:    parseDuration(c.Reconnect.MaxDelay, realtime.DefaultBackoff.Max),
		Factor: c.Reconnect.Factor,
	}
	if b.Factor < 1 {
		b.Factor = realtime.DefaultBackoff.Factor
	}
	return b
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Dev && c.Origin == "" && c.APIBase == "" {
		return fmt.Errorf("dev mode requires an origin (set AETHERIUM_ORIGIN or origin in %s)", DefaultConfigPath())
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path must not be empty")
	}
	if c.Reconnect.MinDelay != "" && c.Reconnect.MaxDelay != "" {
		if parseDuration(c.Reconnect.MinDelay, 0) > parseDuration(c.Reconnect.MaxDelay, time.Hour) {
			return fmt.Errorf("reconnect.min_delay exceeds reconnect.max_delay")
		}
	}
	return nil
}
