package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Events   EventsConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Tx       TxConfig
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

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the embedded database settings.
type SQLiteConfig struct {
	Path          string
	BusyTimeoutMS int
}

// BusyTimeout returns how long a writer waits on a locked database.
func (s SQLiteConfig) BusyTimeout() time.Duration {
	return time.Duration(s.BusyTimeoutMS) * time.Millisecond
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EventsConfig controls publication of committed workflow events.
type EventsConfig struct {
	Enabled          bool
	Stream           string
	Buffer           int
	PublishTimeoutMS int
}

// PublishTimeout bounds one write to the event stream.
func (e EventsConfig) PublishTimeout() time.Duration {
	return time.Duration(e.PublishTimeoutMS) * time.Millisecond
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	CheckDirectory        bool
}

// AccessTokenTTL returns the lifetime of minted bearer tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// TxConfig bounds the transient-contention retry loop.
type TxConfig struct {
	MaxAttempts int
	BaseMS      int
	CapMS       int
}

// BaseDelay returns the first backoff step.
func (t TxConfig) BaseDelay() time.Duration {
	return time.Duration(t.BaseMS) * time.Millisecond
}

// MaxDelay returns the backoff cap.
func (t TxConfig) MaxDelay() time.Duration {
	return time.Duration(t.CapMS) * time.Millisecond
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticketflow"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		SQLite: SQLiteConfig{
			Path:          getEnv("SQLITE_PATH", "ticketflow.db"),
			BusyTimeoutMS: getEnvAsInt("SQLITE_BUSY_TIMEOUT_MS", 5000),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Events: EventsConfig{
			Enabled:          getEnvAsBool("EVENTS_ENABLED", false),
			Stream:           getEnv("EVENTS_STREAM", "ticketflow.events"),
			Buffer:           getEnvAsInt("EVENTS_BUFFER", 1024),
			PublishTimeoutMS: getEnvAsInt("EVENTS_PUBLISH_TIMEOUT_MS", 500),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			CheckDirectory:        getEnvAsBool("AUTH_CHECK_DIRECTORY", false),
		},
		Tx: TxConfig{
			MaxAttempts: getEnvAsInt("TX_RETRY_MAX_ATTEMPTS", 5),
			BaseMS:      getEnvAsInt("TX_RETRY_BASE_MS", 20),
			CapMS:       getEnvAsInt("TX_RETRY_CAP_MS", 500),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Tx.MaxAttempts <= 0 {
		errs = append(errs, errors.New("TX_RETRY_MAX_ATTEMPTS must be positive"))
	}
	if c.Tx.BaseMS <= 0 {
		errs = append(errs, errors.New("TX_RETRY_BASE_MS must be positive"))
	}
	if c.Tx.CapMS < c.Tx.BaseMS {
		errs = append(errs, errors.New("TX_RETRY_CAP_MS must not be below TX_RETRY_BASE_MS"))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Events.Enabled && strings.TrimSpace(c.Events.Stream) == "" {
		errs = append(errs, errors.New("EVENTS_STREAM is required when EVENTS_ENABLED=true"))
	}
	if c.Events.Enabled && (c.Events.Buffer <= 0 || c.Events.PublishTimeoutMS <= 0) {
		errs = append(errs, errors.New("EVENTS_BUFFER and EVENTS_PUBLISH_TIMEOUT_MS must be positive"))
	}
	return errors.Join(errs...)
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

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
