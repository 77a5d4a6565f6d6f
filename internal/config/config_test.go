package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STREAMER_SERVER_ADDRESS", "http://localhost:8000")
	t.Setenv("STREAMER_REDIS_URL", "redis://localhost:6379")
	t.Setenv("STREAMER_API_KEY", "test-api-key")
	t.Setenv("STREAMER_SECRET_KEY", testSecretKey)
	t.Setenv("STREAMER_MAX_CLIENTS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.ServerAddress)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "test-api-key", cfg.APIKey)
	assert.Equal(t, 2, cfg.MaxClients)
	// Defaults
	assert.Equal(t, DefaultRedisPool, cfg.RedisPool)
	assert.Equal(t, DefaultStreamTTL, cfg.TTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServerAddress: "http://localhost:8000",
			RedisURL:      "redis://localhost:6379",
			APIKey:        "key",
			SecretKey:     testSecretKey,
		}
	}

	t.Run("valid config fills defaults", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DefaultRedisPool, cfg.RedisPool)
		assert.Equal(t, DefaultMaxClients, cfg.MaxClients)
		assert.Equal(t, DefaultStreamTTL, cfg.TTL)
	})

	t.Run("missing required fields", func(t *testing.T) {
		cfg := valid()
		cfg.ServerAddress = ""
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.RedisURL = ""
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.APIKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad secret key", func(t *testing.T) {
		for _, key := range []string{"", "short", "not-hex!", testSecretKey + "ff"} {
			cfg := valid()
			cfg.SecretKey = key
			assert.Error(t, cfg.Validate(), "key %q should be rejected", key)
		}
	})
}
