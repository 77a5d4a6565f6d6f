package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Defaults applied when the corresponding setting is absent.
const (
	DefaultRedisPool  = 4
	DefaultMaxClients = 20
	DefaultStreamTTL  = 600 // seconds
)

// Config is the main server configuration, loaded from STREAMER_* environment
// variables and/or an optional streamer.yaml file.
type Config struct {
	// Public base URL used to compose consumer stream URLs
	ServerAddress string `mapstructure:"server_address"`
	// Redis connection URL
	RedisURL string `mapstructure:"redis_url"`
	// Static Redis pool size
	RedisPool int `mapstructure:"redis_pool"`
	// Maximum number of concurrent exclusive (streaming) connections
	MaxClients int `mapstructure:"max_clients"`
	// Shared API key for producer endpoints
	APIKey string `mapstructure:"api_key"`
	// 64-character hex string (32 bytes) used for encrypting client tokens
	SecretKey string `mapstructure:"secret_key"`
	// Stream TTL in seconds
	TTL int `mapstructure:"ttl"`
}

var configKeys = []string{
	"server_address", "redis_url", "redis_pool", "max_clients",
	"api_key", "secret_key", "ttl",
}

// Load reads configuration from the environment and an optional config file.
// File settings are overridden by STREAMER_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("redis_pool", DefaultRedisPool)
	v.SetDefault("max_clients", DefaultMaxClients)
	v.SetDefault("ttl", DefaultStreamTTL)

	v.SetEnvPrefix("STREAMER")
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if cfgPath := os.Getenv("STREAMER_CONFIG_PATH"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("streamer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; env-only setups are fine.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.WatchConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and the secret key format.
func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("redis_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	key, err := hex.DecodeString(c.SecretKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("secret_key must be a 64-character hex string")
	}
	if c.RedisPool <= 0 {
		c.RedisPool = DefaultRedisPool
	}
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}
	if c.TTL <= 0 {
		c.TTL = DefaultStreamTTL
	}
	return nil
}
