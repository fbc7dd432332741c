// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quorum-research/survey-cli/internal/cost"
)

// Config holds the full application configuration. It is built once at
// startup and passed explicitly; there is no ambient mutable state.
type Config struct {
	Cache     CacheConfig          `yaml:"cache" mapstructure:"cache"`
	Anthropic AnthropicConfig      `yaml:"anthropic" mapstructure:"anthropic"`
	Run       RunConfig            `yaml:"run" mapstructure:"run"`
	Pricing   map[string]cost.Rate `yaml:"pricing" mapstructure:"pricing"`
	Server    ServerConfig         `yaml:"server" mapstructure:"server"`
	Log       LogConfig            `yaml:"log" mapstructure:"log"`
}

// CacheConfig selects and configures the response-cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, redis, memory
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB     int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	DefaultModel string  `yaml:"default_model" mapstructure:"default_model"`
	DefaultRPM   float64 `yaml:"default_rpm" mapstructure:"default_rpm"`
	DefaultTPM   float64 `yaml:"default_tpm" mapstructure:"default_tpm"`
}

// RunConfig tunes job execution.
type RunConfig struct {
	MaxConcurrency    int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	ValidationRetries int     `yaml:"validation_retries" mapstructure:"validation_retries"`
	ProviderRetries   int     `yaml:"provider_retries" mapstructure:"provider_retries"`
	CallTimeoutSecs   int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	SafetyFactor      float64 `yaml:"safety_factor" mapstructure:"safety_factor"`
	PollIntervalMs    int     `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and SURVEY_-prefixed
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "survey-cache.db")
	v.SetDefault("anthropic.default_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.default_rpm", 600)
	v.SetDefault("anthropic.default_tpm", 300000)
	v.SetDefault("run.max_concurrency", 64)
	v.SetDefault("run.validation_retries", 2)
	v.SetDefault("run.provider_retries", 3)
	v.SetDefault("run.call_timeout_secs", 120)
	v.SetDefault("run.safety_factor", 0.8)
	v.SetDefault("run.poll_interval_ms", 1000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pricing", defaultPricing())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func defaultPricing() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"anthropic/claude-haiku-4-5-20251001":  {"input": 0.80, "output": 4.00},
		"anthropic/claude-sonnet-4-5-20250929": {"input": 3.00, "output": 15.00},
		"anthropic/claude-opus-4-6":            {"input": 15.00, "output": 75.00},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
