package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"POSTBOARD_CONFIG", "POSTBOARD_ADDR", "PORT", "POSTBOARD_STORE", "POSTBOARD_DB",
	"DATABASE_URL", "REDIS_URL", "POSTBOARD_CACHE_TTL", "POSTBOARD_SIGNING_KEY",
	"POSTBOARD_TOKEN_ALG", "POSTBOARD_TOKEN_TTL", "POSTBOARD_BCRYPT_COST",
	"POSTBOARD_MAX_PAGE_SIZE", "POSTBOARD_ALLOWED_ORIGINS", "POSTBOARD_LOG_LEVEL",
	"POSTBOARD_LOG_FORMAT", "POSTBOARD_ENV",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":5000" || cfg.StoreDriver != StoreSQLite || cfg.TokenTTL != time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxPageSize != 100 || cfg.BcryptCost != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "postboard.yaml")
	yamlDoc := strings.Join([]string{
		"addr: \":7000\"",
		"token_ttl: 30m",
		"max_page_size: 25",
		"allowed_origins: [\"https://a.example\"]",
		"log_format: text",
	}, "\n")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("POSTBOARD_MAX_PAGE_SIZE", "50")
	t.Setenv("POSTBOARD_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("Addr = %q, want file value", cfg.Addr)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL = %v, want 30m", cfg.TokenTTL)
	}
	if cfg.MaxPageSize != 50 {
		t.Errorf("MaxPageSize = %d, want env value 50", cfg.MaxPageSize)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://c.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestPortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8123")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8123" {
		t.Fatalf("Addr = %q, want :8123", cfg.Addr)
	}

	t.Setenv("POSTBOARD_ADDR", "127.0.0.1:9000")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("Addr = %q, want POSTBOARD_ADDR", cfg.Addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"production default key", func(c *Config) { c.Environment = "production" }, "production"},
		{"empty key", func(c *Config) { c.SigningKey = "" }, "signing_key"},
		{"unknown store", func(c *Config) { c.StoreDriver = "mongo" }, "unknown store"},
		{"postgres without url", func(c *Config) { c.StoreDriver = StorePostgres }, "database_url"},
		{"zero ttl", func(c *Config) { c.TokenTTL = 0 }, "token_ttl"},
		{"bcrypt cost", func(c *Config) { c.BcryptCost = 2 }, "bcrypt_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.Environment = "production"
	cfg.SigningKey = "a-real-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid production config rejected: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
