package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig               `mapstructure:"server"`
	Redis       RedisConfig                `mapstructure:"redis"`
	RateLimit   RateLimitConfig            `mapstructure:"rate_limit"`
	Cache       CacheConfig                `mapstructure:"cache"`
	Upstream    UpstreamConfig             `mapstructure:"upstream"`
	ConfigStore ConfigStoreConfig          `mapstructure:"config_store"`
	Providers   map[string]ProviderDefault `mapstructure:"providers"`
}

type ServerConfig struct {
	Port     string   `mapstructure:"port"`
	Env      string   `mapstructure:"env"`
	BasePath string   `mapstructure:"base_path"`
	APIKeys  []string `mapstructure:"api_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	ResolutionTTL  time.Duration `mapstructure:"resolution_ttl"`
	ClientTTL      time.Duration `mapstructure:"client_ttl"`
	ClientCapacity int           `mapstructure:"client_capacity"`
}

type UpstreamConfig struct {
	// Timeout bounds a blocking vendor invocation. Streaming requests only
	// use it for the connect phase.
	Timeout time.Duration `mapstructure:"timeout"`
}

type ConfigStoreConfig struct {
	Kind    string `mapstructure:"kind"` // "http" or "sqlite"
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	Path    string `mapstructure:"path"` // sqlite only
}

// ProviderDefault holds the platform-owned credential references for one
// provider slug. Secret fields name entries in the secret store, never the
// credential itself.
type ProviderDefault struct {
	APIKeySecret         string `mapstructure:"api_key_secret"`
	Region               string `mapstructure:"region"`
	RoleARN              string `mapstructure:"role_arn"`
	Project              string `mapstructure:"project"`
	Location             string `mapstructure:"location"`
	ServiceAccountSecret string `mapstructure:"service_account_secret"`
	BaseURL              string `mapstructure:"base_url"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.base_path", "/v1")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("cache.resolution_ttl", 2*time.Minute)
	v.SetDefault("cache.client_ttl", 30*time.Minute)
	v.SetDefault("cache.client_capacity", 256)
	v.SetDefault("upstream.timeout", 2*time.Minute)
	v.SetDefault("config_store.kind", "sqlite")
	v.SetDefault("config_store.path", "gateway.db")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}
