package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HOST", "SERVER_HOST", "PORT", "SERVER_PORT", "STORE_DRIVER", "DATABASE_URL", "POSTGRES_URL",
		"MONGO_URI", "MONGODB_URI", "MONGO_DATABASE", "TOKEN_BACKEND", "REDIS_ADDR",
		"MAX_ARCHIVE_SIZE", "MAX_CONCURRENT_IMPORTS", "REQUIRE_API_KEY", "API_KEYS",
		"JWT_SECRET", "REQUIRE_JWT", "LOG_LEVEL", "LOG_FORMAT", "TRUSTED_PROXIES",
		"REGISTRATION_LINK_TTL", "PAYMENT_LINK_TTL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, DriverMemory)
	}
	if cfg.Backup.MaxArchiveSize != 50<<20 {
		t.Errorf("Backup.MaxArchiveSize = %d, want %d", cfg.Backup.MaxArchiveSize, 50<<20)
	}
	if cfg.Tokens.RegistrationTTL != 168*time.Hour {
		t.Errorf("Tokens.RegistrationTTL = %s, want %s", cfg.Tokens.RegistrationTTL, 168*time.Hour)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want %q", cfg.Server.Addr(), "0.0.0.0:8080")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENT_IMPORTS", "4")
	t.Setenv("MAX_ARCHIVE_SIZE", "10MB")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("API_KEYS", "alpha, beta ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Backup.MaxConcurrentImports != 4 {
		t.Errorf("Backup.MaxConcurrentImports = %d, want %d", cfg.Backup.MaxConcurrentImports, 4)
	}
	if cfg.Backup.MaxArchiveSize != 10<<20 {
		t.Errorf("Backup.MaxArchiveSize = %d, want %d", cfg.Backup.MaxArchiveSize, 10<<20)
	}
	if len(cfg.Security.APIKeys) != 2 || cfg.Security.APIKeys[1] != "beta" {
		t.Errorf("Security.APIKeys = %v, want [alpha beta]", cfg.Security.APIKeys)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/alttest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.PostgresURL != "postgres://localhost/alttest" {
		t.Errorf("Store.PostgresURL = %q, want %q", cfg.Store.PostgresURL, "postgres://localhost/alttest")
	}
}

func TestLoad_ValidationCollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("REQUIRE_JWT", "true")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail")
	}
	for _, want := range []string{"MONGO_URI", "JWT_SECRET", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a non-numeric port")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"2KB", 2048},
		{"50MB", 50 << 20},
		{"1gb", 1 << 30},
		{"12B", 12},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSize(tt.in)
			if err != nil {
				t.Fatalf("parseSize(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestString_MasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://user:hunter2@db/app")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if strings.Contains(cfg.String(), "hunter2") {
		t.Errorf("String() leaked credentials: %s", cfg.String())
	}
}
