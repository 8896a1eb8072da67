package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// storage
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`
	// zero keeps the driver default
	PostgresMaxConns int32  `toml:"postgres_max_conns"`
	RedisHost        string `toml:"redis_host"`
	RedisPort        string `toml:"redis_port"`
	// browser origins allowed by CORS and the session websocket
	AllowedOrigins []string `toml:"allowed_origins"`
	// profile cache, megabytes
	ProfileCacheSizeMB int `toml:"profile_cache_size_mb"`

	Analysis Analysis `toml:"analysis"`
}

type Analysis struct {
	AcquireTimeout Duration `toml:"acquire_timeout"`
	TickPeriod     Duration `toml:"tick_period"`
	MaxSessions    int      `toml:"max_sessions"`
	// NativeFrames keeps client frames at their own size instead of
	// rescaling them to 320x240.
	NativeFrames bool `toml:"native_frames"`
	// session creations allowed per minute and client IP
	SessionsRateLimitPerMin int `toml:"sessions_rate_limit_per_min"`
}

// Duration is a time.Duration read from a TOML string like "150ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the TOML file at path and returns the config of env, with
// defaults applied to the unset analysis values.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing in [%s]", env, path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid [%s] config: %w", env, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.ProfileCacheSizeMB <= 0 {
		c.ProfileCacheSizeMB = 10
	}
	if c.Analysis.AcquireTimeout.Duration <= 0 {
		c.Analysis.AcquireTimeout.Duration = 30 * time.Second
	}
	if c.Analysis.TickPeriod.Duration <= 0 {
		c.Analysis.TickPeriod.Duration = 150 * time.Millisecond
	}
	if c.Analysis.MaxSessions <= 0 {
		c.Analysis.MaxSessions = 100
	}
	if c.Analysis.SessionsRateLimitPerMin <= 0 {
		c.Analysis.SessionsRateLimitPerMin = 20
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return fmt.Errorf("postgres host and db name are required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("redis host is required")
	}
	return nil
}
