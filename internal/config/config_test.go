package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 2*time.Minute, cfg.Cache.ResolutionTTL)
	assert.Equal(t, 30*time.Minute, cfg.Cache.ClientTTL)
	assert.Equal(t, 256, cfg.Cache.ClientCapacity)
	assert.Equal(t, 2*time.Minute, cfg.Upstream.Timeout)
	assert.Equal(t, "sqlite", cfg.ConfigStore.Kind)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("UPSTREAM_TIMEOUT", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
}
