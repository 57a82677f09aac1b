package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aetherium/aetherium-cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AETHERIUM_ORIGIN", "AETHERIUM_DEV", "AETHERIUM_STATE", "AETHERIUM_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(testutil.CreateTempDir(t), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.APIBaseURL())
	assert.Equal(t, "ws://localhost:8000/ws", cfg.WebSocketEndpoint())
	assert.Equal(t, 30*time.Second, cfg.GetDefaultTimeout())
	assert.Equal(t, 120*time.Second, cfg.GetTaskCreateTimeout())
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(testutil.CreateTempDir(t), "config.yaml")
	content := []byte("origin: https://dash.example.com\ndev: true\ntimeouts:\n  default: 5s\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://dash.example.com/api", cfg.APIBaseURL())
	assert.Equal(t, "wss://dash.example.com/ws", cfg.WebSocketEndpoint())
	assert.Equal(t, 5*time.Second, cfg.GetDefaultTimeout())
	assert.Equal(t, 120*time.Second, cfg.GetTaskCreateTimeout(), "unset keys keep defaults")

	t.Setenv("AETHERIUM_DEV", "false")
	t.Setenv("AETHERIUM_LOG_LEVEL", "DEBUG")
	t.Setenv("AETHERIUM_STATE", "/tmp/other.db")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Dev)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "/tmp/other.db", cfg.StatePath)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(testutil.CreateTempDir(t), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("origin: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(testutil.CreateTempDir(t), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.APIBase = "http://api.internal:9000/api/"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://api.internal:9000/api", loaded.APIBaseURL())
}

func TestEnvOverrides_InvalidDevIgnored(t *testing.T) {
	t.Setenv("AETHERIUM_DEV", "maybe")
	cfg := &Config{Dev: true}
	cfg.applyEnvOverrides()
	assert.True(t, cfg.Dev)
}

func TestBackoff(t *testing.T) {
	cfg := DefaultConfig()
	b := cfg.Backoff()
	assert.Equal(t, time.Second, b.Min)
	assert.Equal(t, 10*time.Second, b.Max)
	assert.Equal(t, 1.3, b.Factor)

	cfg.Reconnect = ReconnectConfig{MinDelay: "junk", Factor: 0}
	b = cfg.Backoff()
	assert.Equal(t, time.Second, b.Min)
	assert.Equal(t, 1.3, b.Factor)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "dev without origin", mutate: func(c *Config) { c.Dev = true; c.Origin = "" }, wantErr: true},
		{name: "dev with api override", mutate: func(c *Config) { c.Dev = true; c.Origin = ""; c.APIBase = "http://x/api" }},
		{name: "empty state path", mutate: func(c *Config) { c.StatePath = "" }, wantErr: true},
		{name: "inverted delays", mutate: func(c *Config) { c.Reconnect.MinDelay = "20s" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
