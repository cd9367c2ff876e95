// Package config loads tuitiondesk settings from the environment.
// Every field carries its env var name and default in struct tags; Load
// applies them and Validate reports every problem at once so a bad deploy
// fails on startup rather than on the first request.
package config

import (
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Token backends.
const (
	TokensMemory = "memory"
	TokensRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Tokens   TokenConfig
	Backup   BackupConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"HOST" envAlt:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"PORT" envAlt:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" default:"120s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for running imports.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 120s)
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" default:"120s"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	// Driver is one of memory, postgres, mongo (default: memory)
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// PostgresURL is required when Driver is postgres.
	PostgresURL string `env:"DATABASE_URL" envAlt:"POSTGRES_URL"`

	// MongoURI is required when Driver is mongo.
	MongoURI      string `env:"MONGO_URI" envAlt:"MONGODB_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" default:"tuitiondesk"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// OpTimeout bounds a single store round trip (default: 5s)
	OpTimeout time.Duration `env:"STORE_OP_TIMEOUT" default:"5s"`
}

// TokenConfig configures the expiring link-token store.
type TokenConfig struct {
	// Backend is memory or redis (default: memory)
	Backend string `env:"TOKEN_BACKEND" default:"memory"`

	RedisAddr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`

	RegistrationTTL time.Duration `env:"REGISTRATION_LINK_TTL" default:"168h"`
	PaymentTTL      time.Duration `env:"PAYMENT_LINK_TTL" default:"72h"`

	// SweepInterval is how often the memory backend drops expired tokens (default: 1m)
	SweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" default:"1m"`
}

// BackupConfig holds export/import limits.
type BackupConfig struct {
	// MaxArchiveSize is the largest accepted upload, e.g. 52428800 or 50MB (default: 50MB)
	MaxArchiveSize int64 `env:"MAX_ARCHIVE_SIZE" default:"50MB"`

	// MaxConcurrentImports caps imports running at once (default: 2)
	MaxConcurrentImports int `env:"MAX_CONCURRENT_IMPORTS" default:"2"`

	// AcquireTimeout is how long an import waits for a slot (default: 30s)
	AcquireTimeout time.Duration `env:"IMPORT_ACQUIRE_TIMEOUT" default:"30s"`

	// RowConcurrency bounds parallel writes inside one restore phase (default: 8)
	RowConcurrency int `env:"IMPORT_ROW_CONCURRENCY" default:"8"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// ImportLimit is requests per minute for the import endpoint (default: 6)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"6"`
}

// SecurityConfig holds authentication and proxy settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// JWTSecret signs and verifies HS256 bearer tokens.
	JWTSecret  string `env:"JWT_SECRET"`
	RequireJWT bool   `env:"REQUIRE_JWT" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
