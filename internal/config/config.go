package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"sogif-site/internal/logging"
)

// Constants sources.
const (
	SourceHTTP     = "http"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Constants ConstantsConfig `mapstructure:"constants"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Leads     LeadsConfig     `mapstructure:"leads"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// ConstantsConfig selects and tunes the constants source and cache.
type ConstantsConfig struct {
	Source     string        `mapstructure:"source"`
	Revalidate time.Duration `mapstructure:"revalidate"`
	Warm       WarmConfig    `mapstructure:"warm"`
	HTTP       ConstantsHTTP `mapstructure:"http"`
	File       ConstantsFile `mapstructure:"file"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// WarmConfig drives background cache refreshes.
type WarmConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	AlertAfter   int           `mapstructure:"alert_after"`
}

// ConstantsHTTP describes the content API.
type ConstantsHTTP struct {
	BaseURL        string        `mapstructure:"base_url"`
	Path           string        `mapstructure:"path"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ConstantsFile points at a local JSON or YAML document.
type ConstantsFile struct {
	Path string `mapstructure:"path"`
}

// BreakerConfig tunes the upstream circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// RedisConfig enables the shared document mirror.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// LeadsConfig governs the lead-capture endpoint.
type LeadsConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	IPSalt      string          `mapstructure:"ip_salt"`
	RatePerHour float64         `mapstructure:"rate_per_hour"`
	Burst       int             `mapstructure:"burst"`
	Turnstile   TurnstileConfig `mapstructure:"turnstile"`
}

// TurnstileConfig describes Cloudflare Turnstile verification.
type TurnstileConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Required       bool          `mapstructure:"required"`
	Secret         string        `mapstructure:"secret"`
	VerifyURL      string        `mapstructure:"verify_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig routes operator notifications.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOGIF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sogif-site")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "sogif-site")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("constants.source", SourceHTTP)
	v.SetDefault("constants.revalidate", "1h")
	v.SetDefault("constants.warm.enabled", false)
	v.SetDefault("constants.warm.interval", "55m")
	v.SetDefault("constants.warm.align_to_start", false)
	v.SetDefault("constants.warm.startup_delay", "0s")
	v.SetDefault("constants.warm.alert_after", 3)
	v.SetDefault("constants.http.base_url", "")
	v.SetDefault("constants.http.path", "/api/site-constants")
	v.SetDefault("constants.http.token", "")
	v.SetDefault("constants.http.request_timeout", "10s")
	v.SetDefault("constants.http.user_agent", "")
	v.SetDefault("constants.file.path", "constants.yaml")
	v.SetDefault("constants.breaker.enabled", true)
	v.SetDefault("constants.breaker.max_failures", 3)
	v.SetDefault("constants.breaker.open_timeout", "1m")
	v.SetDefault("constants.redis.enabled", false)
	v.SetDefault("constants.redis.addr", "localhost:6379")
	v.SetDefault("constants.redis.password", "")
	v.SetDefault("constants.redis.db", 0)
	v.SetDefault("constants.redis.key", "sogif:constants")
	v.SetDefault("constants.redis.ttl", "30m")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("leads.enabled", true)
	v.SetDefault("leads.ip_salt", "")
	v.SetDefault("leads.rate_per_hour", 5.0)
	v.SetDefault("leads.burst", 3)
	v.SetDefault("leads.turnstile.enabled", false)
	v.SetDefault("leads.turnstile.required", false)
	v.SetDefault("leads.turnstile.secret", "")
	v.SetDefault("leads.turnstile.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("leads.turnstile.request_timeout", "5s")

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.request_timeout", "10s")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("export.dir", "exports")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Constants.Revalidate <= 0 {
		return fmt.Errorf("constants.revalidate must be greater than zero")
	}

	switch c.Constants.Source {
	case SourceHTTP:
		if c.Constants.HTTP.BaseURL == "" {
			return fmt.Errorf("constants.http.base_url is required when constants.source is %q", SourceHTTP)
		}
	case SourceFile:
		if c.Constants.File.Path == "" {
			return fmt.Errorf("constants.file.path is required when constants.source is %q", SourceFile)
		}
	case SourcePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when constants.source is %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("constants.source must be one of http, file, postgres (got %q)", c.Constants.Source)
	}

	if c.Constants.Warm.Enabled && c.Constants.Warm.Interval <= 0 {
		return fmt.Errorf("constants.warm.interval must be greater than zero")
	}
	if c.Constants.Redis.Enabled && c.Constants.Redis.Addr == "" {
		return fmt.Errorf("constants.redis.addr is required when the redis mirror is enabled")
	}
	if c.Leads.RatePerHour < 0 {
		return fmt.Errorf("leads.rate_per_hour cannot be negative")
	}
	if c.Leads.Turnstile.Enabled && c.Leads.Turnstile.Secret == "" {
		return fmt.Errorf("leads.turnstile.secret is required when turnstile is enabled")
	}
	if c.Leads.Turnstile.Required && !c.Leads.Turnstile.Enabled {
		return fmt.Errorf("leads.turnstile.required needs leads.turnstile.enabled")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveExportDir returns either the CLI override or config default.
func (c *Config) ResolveExportDir(override string) string {
	if override != "" {
		return override
	}
	return c.Export.Dir
}
