package llmgateway_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gw "github.com/ineyio/llmgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := gw.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "gpt-4", cfg.Defaults.Model)
	assert.Equal(t, 1000, cfg.Defaults.MaxTokens)
	assert.Equal(t, 0.7, cfg.Defaults.Temperature)
	assert.Equal(t, 30*time.Second, cfg.Defaults.Timeout)
	assert.Equal(t, time.Second, cfg.Defaults.RetryDelay)
	assert.Equal(t, 60, cfg.RateLimit.Capacity)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, int64(100000), cfg.Budget.DailyTokens)
	assert.Empty(t, cfg.Providers.Available())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("GCP_PROJECT_ID", "proj")
	t.Setenv("DEFAULT_LLM_MODEL", "claude-2")
	t.Setenv("DEFAULT_MAX_TOKENS", "256")
	t.Setenv("DEFAULT_TEMPERATURE", "0")
	t.Setenv("LLM_REQUEST_TIMEOUT", "12.5")
	t.Setenv("LLM_RETRY_DELAY", "0.25")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("TOKEN_BUDGET_DAILY", "777")

	cfg, err := gw.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "claude-2", cfg.Defaults.Model)
	assert.Equal(t, 256, cfg.Defaults.MaxTokens)
	assert.Equal(t, 0.0, cfg.Defaults.Temperature)
	assert.Equal(t, 12500*time.Millisecond, cfg.Defaults.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Defaults.RetryDelay)
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, int64(777), cfg.Budget.DailyTokens)
	assert.Equal(t, []string{"azure", "vertex"}, cfg.Providers.Available())
}

func TestConfigFromEnv_BadNumber(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")

	_, err := gw.ConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_PER_MINUTE")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_BEDROCK_KEY", "br-secret")

	yaml := `
defaults:
  model: claude-2
  timeout: 10s
rate_limit:
  capacity: 30
budget:
  daily_tokens: 5000
providers:
  bedrock:
    api_key: ${TEST_BEDROCK_KEY}
    region: eu-west-1
aliases:
  bedrock:
    claude-3: bedrock/anthropic.claude-3-sonnet
circuit_breaker:
  enabled: true
  max_failures: 3
`
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := gw.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-2", cfg.Defaults.Model)
	assert.Equal(t, 10*time.Second, cfg.Defaults.Timeout)
	assert.Equal(t, 1000, cfg.Defaults.MaxTokens, "unset fields keep defaults")
	assert.Equal(t, 30, cfg.RateLimit.Capacity)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, int64(5000), cfg.Budget.DailyTokens)
	assert.Equal(t, "br-secret", cfg.Providers.Bedrock.APIKey)
	assert.Equal(t, "eu-west-1", cfg.Providers.Bedrock.Region)
	assert.Equal(t, []string{"bedrock"}, cfg.Providers.Available())
	assert.Equal(t, "bedrock/anthropic.claude-3-sonnet", cfg.Aliases["bedrock"]["claude-3"])
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, uint32(3), cfg.CircuitBreaker.MaxFailures)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := gw.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*gw.Config)
	}{
		{"empty model", func(c *gw.Config) { c.Defaults.Model = "" }},
		{"zero max tokens", func(c *gw.Config) { c.Defaults.MaxTokens = 0 }},
		{"temperature too high", func(c *gw.Config) { c.Defaults.Temperature = 2.5 }},
		{"zero timeout", func(c *gw.Config) { c.Defaults.Timeout = 0 }},
		{"negative retry delay", func(c *gw.Config) { c.Defaults.RetryDelay = -time.Second }},
		{"zero capacity", func(c *gw.Config) { c.RateLimit.Capacity = 0 }},
		{"zero window", func(c *gw.Config) { c.RateLimit.Window = 0 }},
		{"zero budget", func(c *gw.Config) { c.Budget.DailyTokens = 0 }},
		{"empty alias target", func(c *gw.Config) {
			c.Aliases = map[string]map[string]string{"azure": {"x": ""}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := gw.DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
