package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ServiceName     string        `mapstructure:"service_name"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SMSConfig controls the provider integration and dispatch behaviour.
type SMSConfig struct {
	ProviderName        string        `mapstructure:"provider_name"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	DefaultMessageDelay time.Duration `mapstructure:"default_message_delay"`
	MaxImmediateBatch   int           `mapstructure:"max_immediate_batch"`
	MaxScheduledBatch   int           `mapstructure:"max_scheduled_batch"`
	PreviewLength       int           `mapstructure:"preview_length"`
}

// SchedulerConfig bounds the in-memory job store.
type SchedulerConfig struct {
	ResultMaxAge    time.Duration `mapstructure:"result_max_age"`
	ResultMaxCount  int           `mapstructure:"result_max_count"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// RateLimitConfig caps requests per client IP on the API surface.
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("SMSTOOL")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func applyDefaults(cfg *Config) {
	if cfg.SMS.DefaultMessageDelay <= 0 {
		cfg.SMS.DefaultMessageDelay = time.Second
	}
	if cfg.SMS.MaxImmediateBatch <= 0 {
		cfg.SMS.MaxImmediateBatch = 100
	}
	if cfg.SMS.MaxScheduledBatch <= 0 {
		cfg.SMS.MaxScheduledBatch = 1000
	}
	if cfg.SMS.PreviewLength <= 0 {
		cfg.SMS.PreviewLength = 50
	}
	if cfg.SMS.RequestTimeout <= 0 {
		cfg.SMS.RequestTimeout = 15 * time.Second
	}
	if cfg.Scheduler.JanitorInterval <= 0 {
		cfg.Scheduler.JanitorInterval = time.Minute
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = 15 * time.Minute
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = 100
	}
	if cfg.RateLimit.KeyPrefix == "" {
		cfg.RateLimit.KeyPrefix = "smstool:ratelimit"
	}
}
