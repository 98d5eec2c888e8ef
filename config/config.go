// Package config loads TripMesh runtime configuration from a config file and
// environment variables, with sane defaults for local development.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogJSON  bool   `mapstructure:"LOG_JSON"`

	// Model provider selection and credentials.
	ModelProvider   string  `mapstructure:"MODEL_PROVIDER"` // "openai", "anthropic" or "mock"
	ModelName       string  `mapstructure:"MODEL_NAME"`
	OpenAIAPIKey    string  `mapstructure:"OPENAI_API_KEY"`
	AnthropicAPIKey string  `mapstructure:"ANTHROPIC_API_KEY"`
	ModelRPS        float64 `mapstructure:"MODEL_RPS"`
	ModelBurst      int     `mapstructure:"MODEL_BURST"`

	// Routing thresholds.
	RouteConfidenceFloor float64 `mapstructure:"ROUTE_CONFIDENCE_FLOOR"`
	ContextSwitchOverlap float64 `mapstructure:"CONTEXT_SWITCH_OVERLAP"`

	// Thread persistence backend: "memory", "file" or "redis".
	ThreadStore   string `mapstructure:"THREAD_STORE"`
	ThreadDir     string `mapstructure:"THREAD_DIR"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// External data providers.
	TavilyAPIKey        string `mapstructure:"TAVILY_API_KEY"`
	AmadeusClientID     string `mapstructure:"AMADEUS_CLIENT_ID"`
	AmadeusClientSecret string `mapstructure:"AMADEUS_CLIENT_SECRET"`
	OpenMeteoBaseURL    string `mapstructure:"OPEN_METEO_BASE_URL"`

	// Client-side caching (seconds).
	ClientCacheTTL int `mapstructure:"CLIENT_CACHE_TTL"`

	// Router pattern file (optional override of built-in patterns).
	RouterPatternsPath string `mapstructure:"ROUTER_PATTERNS_PATH"`
}

// Load reads configuration from config.yaml (current dir or ./config) plus
// environment variables and returns the populated Config.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// no config file: environment variables and defaults only
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_JSON", false)

	v.SetDefault("MODEL_PROVIDER", "openai")
	v.SetDefault("MODEL_NAME", "")
	v.SetDefault("MODEL_RPS", 5.0)
	v.SetDefault("MODEL_BURST", 10)

	// Secrets must be registered too: AutomaticEnv only surfaces keys viper
	// already knows about, so an env-only deployment would otherwise drop them.
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("TAVILY_API_KEY", "")
	v.SetDefault("AMADEUS_CLIENT_ID", "")
	v.SetDefault("AMADEUS_CLIENT_SECRET", "")

	v.SetDefault("ROUTE_CONFIDENCE_FLOOR", 0.55)
	v.SetDefault("CONTEXT_SWITCH_OVERLAP", 0.2)

	v.SetDefault("THREAD_STORE", "memory")
	v.SetDefault("THREAD_DIR", "./data/threads")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("OPEN_METEO_BASE_URL", "https://api.open-meteo.com")
	v.SetDefault("CLIENT_CACHE_TTL", 600)
	v.SetDefault("ROUTER_PATTERNS_PATH", "")
}

// Validate checks cross-field constraints not expressible as defaults.
func (c *Config) Validate() error {
	switch strings.ToLower(c.ModelProvider) {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.ModelProvider)
	}

	switch strings.ToLower(c.ThreadStore) {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown THREAD_STORE %q", c.ThreadStore)
	}

	if c.RouteConfidenceFloor < 0 || c.RouteConfidenceFloor > 1 {
		return fmt.Errorf("ROUTE_CONFIDENCE_FLOOR must be in [0,1], got %f", c.RouteConfidenceFloor)
	}
	if c.ContextSwitchOverlap < 0 || c.ContextSwitchOverlap > 1 {
		return fmt.Errorf("CONTEXT_SWITCH_OVERLAP must be in [0,1], got %f", c.ContextSwitchOverlap)
	}

	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }
