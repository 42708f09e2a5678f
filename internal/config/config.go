package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Analytics    AnalyticsConfig
	Tickets      TicketsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how identity tokens issued by the auth provider are verified.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds notification outbox settings.
type NotificationConfig struct {
	EmailFrom     string
	Stream        string
	RetryInterval time.Duration
}

// AnalyticsConfig holds snapshot caching settings.
type AnalyticsConfig struct {
	CacheTTL time.Duration
}

// TicketsConfig holds ticket store tunables.
type TicketsConfig struct {
	NumberPrefix       string
	MaxAttachmentBytes int64
	CommentRetries     int
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "complaint-desk")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.version", "dev")
	v.SetDefault("http.request_timeout_seconds", 30)
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.run_migrations", true)
	v.SetDefault("postgres.conn_max_idle_seconds", 30)
	v.SetDefault("postgres.conn_max_life_seconds", 300)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.jwt_secret", "dev-secret")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.access_token_ttl_minutes", 60)
	v.SetDefault("notify.email_from", "noreply@example.com")
	v.SetDefault("notify.stream", "notifications:tickets")
	v.SetDefault("notify.retry_interval", "30s")
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("tickets.number_prefix", "TCK")
	v.SetDefault("tickets.max_attachment_bytes", 10<<20)
	v.SetDefault("tickets.comment_retries", 3)

	cacheTTL, err := time.ParseDuration(v.GetString("analytics.cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYTICS_CACHE_TTL: %w", err)
	}

	retryInterval, err := time.ParseDuration(v.GetString("notify.retry_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_RETRY_INTERVAL: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  v.GetString("app.name"),
			Env:                   v.GetString("app.env"),
			Host:                  v.GetString("app.host"),
			Port:                  v.GetString("app.port"),
			Version:               v.GetString("app.version"),
			RequestTimeoutSeconds: v.GetInt("http.request_timeout_seconds"),
		},
		Postgres: PostgresConfig{
			DSN:            v.GetString("postgres.dsn"),
			MaxConns:       v.GetInt32("postgres.max_conns"),
			MinConns:       v.GetInt32("postgres.min_conns"),
			RunMigrations:  v.GetBool("postgres.run_migrations"),
			ConnMaxIdleSec: v.GetInt32("postgres.conn_max_idle_seconds"),
			ConnMaxLifeSec: v.GetInt32("postgres.conn_max_life_seconds"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("log.level"),
		},
		Auth: AuthConfig{
			JWTSecret:             v.GetString("auth.jwt_secret"),
			Issuer:                v.GetString("auth.issuer"),
			AccessTokenTTLMinutes: v.GetInt("auth.access_token_ttl_minutes"),
		},
		Notification: NotificationConfig{
			EmailFrom:     v.GetString("notify.email_from"),
			Stream:        v.GetString("notify.stream"),
			RetryInterval: retryInterval,
		},
		Analytics: AnalyticsConfig{
			CacheTTL: cacheTTL,
		},
		Tickets: TicketsConfig{
			NumberPrefix:       strings.ToUpper(strings.TrimSpace(v.GetString("tickets.number_prefix"))),
			MaxAttachmentBytes: v.GetInt64("tickets.max_attachment_bytes"),
			CommentRetries:     v.GetInt("tickets.comment_retries"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be provided")
	}
	if cfg.Tickets.NumberPrefix == "" {
		cfg.Tickets.NumberPrefix = "TCK"
	}
	if cfg.Tickets.MaxAttachmentBytes <= 0 {
		cfg.Tickets.MaxAttachmentBytes = 10 << 20
	}
	if cfg.Tickets.CommentRetries < 0 {
		cfg.Tickets.CommentRetries = 0
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime used when minting development tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}
