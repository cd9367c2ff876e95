package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables, applies defaults
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := lookup(envName, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookup returns the first non-empty value among the primary and alternate names.
func lookup(primary, alt string) string {
	if v := strings.TrimSpace(os.Getenv(primary)); v != "" {
		return v
	}
	if alt != "" {
		return strings.TrimSpace(os.Getenv(alt))
	}
	return ""
}

var durationType = reflect.TypeOf(time.Duration(0))

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		switch {
		case field.Type() == durationType:
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
		case field.Kind() == reflect.Int64:
			n, err := parseSize(value)
			if err != nil {
				return err
			}
			field.SetInt(n)
		default:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(int64(n))
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// parseSize accepts plain byte counts or a KB/MB/GB suffix (powers of 1024).
func parseSize(value string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %w", err)
	}
	return n * mult, nil
}

// Validate checks that the configuration is usable and reports every failure.
func (c *Config) Validate() error {
	var errs []string

	// Store
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if c.Store.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Store.MaxConns < c.Store.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Store.MaxConns, c.Store.MinConns))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, "MONGO_URI is required when STORE_DRIVER=mongo")
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, "MONGO_DATABASE must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: memory, postgres, mongo", c.Store.Driver))
	}
	if c.Store.OpTimeout <= 0 {
		errs = append(errs, "STORE_OP_TIMEOUT must be positive")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	// Tokens
	switch c.Tokens.Backend {
	case TokensMemory:
		if c.Tokens.SweepInterval <= 0 {
			errs = append(errs, "TOKEN_SWEEP_INTERVAL must be positive")
		}
	case TokensRedis:
		if c.Tokens.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR is required when TOKEN_BACKEND=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("TOKEN_BACKEND (%q) must be one of: memory, redis", c.Tokens.Backend))
	}
	if c.Tokens.RegistrationTTL <= 0 || c.Tokens.PaymentTTL <= 0 {
		errs = append(errs, "REGISTRATION_LINK_TTL and PAYMENT_LINK_TTL must be positive")
	}

	// Backup
	if c.Backup.MaxArchiveSize <= 0 {
		errs = append(errs, "MAX_ARCHIVE_SIZE must be positive")
	}
	if c.Backup.MaxConcurrentImports <= 0 {
		errs = append(errs, "MAX_CONCURRENT_IMPORTS must be positive")
	}
	if c.Backup.AcquireTimeout <= 0 {
		errs = append(errs, "IMPORT_ACQUIRE_TIMEOUT must be positive")
	}
	if c.Backup.RowConcurrency <= 0 {
		errs = append(errs, "IMPORT_ROW_CONCURRENCY must be positive")
	}

	// Rate limiting
	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.ImportLimit <= 0) {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
	}

	// Security
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty")
	}
	if c.Security.RequireJWT && c.Security.JWTSecret == "" {
		errs = append(errs, "REQUIRE_JWT is true but JWT_SECRET is empty")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a log-safe representation with credentials masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Store: {Driver: %q, URL: [MASKED], MaxConns: %d}, ", c.Store.Driver, c.Store.MaxConns)
	fmt.Fprintf(&b, "Tokens: {Backend: %q, RegistrationTTL: %s, PaymentTTL: %s}, ",
		c.Tokens.Backend, c.Tokens.RegistrationTTL, c.Tokens.PaymentTTL)
	fmt.Fprintf(&b, "Backup: {MaxArchiveSize: %d, MaxConcurrentImports: %d}, ",
		c.Backup.MaxArchiveSize, c.Backup.MaxConcurrentImports)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d, RequireJWT: %v}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys), c.Security.RequireJWT)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
