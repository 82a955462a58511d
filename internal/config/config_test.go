package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	cfg, err := decode(newViper())
	require.NoError(t, err)
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := loadDefaults(t)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:5000", cfg.Backend.BaseURL)
	assert.Equal(t, []string{"pdf", "docx", "txt"}, cfg.App.AllowedExtensions)
	assert.Equal(t, "text", cfg.App.DefaultFormat)
	assert.Equal(t, time.Second, cfg.Watch.DebounceDelay)
	assert.True(t, cfg.Backend.CircuitBreaker.Enabled)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("RESUMEFIT_BACKEND_BASEURL", "https://ats.example.com/")
	t.Setenv("RESUMEFIT_APP_LOGLEVEL", "debug")
	t.Setenv("RESUMEFIT_SERVER_APIKEYS", "one, two")

	cfg := loadDefaults(t)

	assert.Equal(t, "https://ats.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, []string{"one", "two"}, cfg.Server.APIKeys)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"missing base url", func(c *Config) { c.Backend.BaseURL = "" }, "base URL is required"},
		{"bad scheme", func(c *Config) { c.Backend.BaseURL = "ftp://x" }, "must start with http"},
		{"negative timeout", func(c *Config) { c.Backend.Timeout = -time.Second }, "timeout"},
		{"bad threshold", func(c *Config) { c.Backend.CircuitBreaker.FailureThreshold = 1.5 }, "failure threshold"},
		{"bad log level", func(c *Config) { c.App.LogLevel = "trace" }, "invalid log level"},
		{"unsupported format", func(c *Config) { c.App.DefaultFormat = "yaml" }, "invalid default format"},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, "invalid timezone"},
		{"tls without files", func(c *Config) { c.Server.TLS.Mode = "server" }, "TLS configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestAllowedExtensionsNormalized(t *testing.T) {
	cfg := &Config{App: AppConfig{AllowedExtensions: []string{".PDF, docx ,txt"}}}
	cfg.applyAppDefaults()
	assert.Equal(t, []string{"pdf", "docx", "txt"}, cfg.App.AllowedExtensions)
}

func TestLocation(t *testing.T) {
	cfg := &Config{App: AppConfig{Timezone: "UTC"}}
	assert.Equal(t, time.UTC, cfg.Location())
}
