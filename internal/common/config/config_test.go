package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "crmpush", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "android", cfg.App.Platform)
	assert.Equal(t, 30000, cfg.Backend.Timeout)
	assert.Equal(t, 50, cfg.Push.FeedLimit)
	assert.Equal(t, "push:message", cfg.Bridge.MessageChannel)
	assert.Equal(t, "push:opened", cfg.Bridge.OpenedChannel)
	assert.Equal(t, "push:token", cfg.Bridge.TokenChannel)
	assert.Equal(t, "crmpush:", cfg.Cache.KeyPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9104", cfg.Metrics.Address)
}

func TestApplyDefaults_DoesNotOverrideSetValues(t *testing.T) {
	cfg := &Config{}
	cfg.App.Platform = "ios"
	cfg.Push.FeedLimit = 20
	cfg.Backend.Timeout = 5000

	applyDefaults(cfg)

	assert.Equal(t, "ios", cfg.App.Platform)
	assert.Equal(t, 20, cfg.Push.FeedLimit)
	assert.Equal(t, 5000, cfg.Backend.Timeout)
}

func TestValidateConfig(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	err := validateConfig(cfg)
	require.Error(t, err, "base_url is required")
	assert.Contains(t, err.Error(), "backend.base_url")

	cfg.Backend.BaseURL = "https://api.example.com"
	require.NoError(t, validateConfig(cfg))

	cfg.App.Platform = "blackberry"
	err = validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.platform")
}

func TestOverrideEmptyConfig(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://env.example.com")
	t.Setenv("BRIDGE_REDIS_ADDRESS", "localhost:6380")

	cfg := &Config{}
	overrideEmptyConfig(cfg)

	assert.Equal(t, "https://env.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "localhost:6380", cfg.Bridge.Address)
}

func TestOverrideEmptyConfig_KeepsExplicitValues(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://env.example.com")

	cfg := &Config{}
	cfg.Backend.BaseURL = "https://explicit.example.com"
	overrideEmptyConfig(cfg)

	assert.Equal(t, "https://explicit.example.com", cfg.Backend.BaseURL)
}

func TestGetTimeout(t *testing.T) {
	cfg := BackendConfig{Timeout: 1500}
	assert.Equal(t, 1500*time.Millisecond, cfg.GetTimeout())
}
