package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DevSigningKey is the fallback signing key. Validate refuses it when
// Environment is production.
const DevSigningKey = "dev-signing-key"

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Addr        string        `yaml:"addr"`
	StoreDriver string        `yaml:"store"`
	DBPath      string        `yaml:"db_path"`
	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`

	SigningKey string        `yaml:"signing_key"`
	TokenAlg   string        `yaml:"token_alg"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`

	// MaxPageSize caps the list limit; zero disables the cap.
	MaxPageSize int `yaml:"max_page_size"`
	// AllowedOrigins empty means any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	Environment string `yaml:"environment"`
}

func Default() Config {
	return Config{
		Addr:        ":5000",
		StoreDriver: StoreSQLite,
		DBPath:      "postboard.db",
		CacheTTL:    5 * time.Minute,
		SigningKey:  DevSigningKey,
		TokenAlg:    "blake3",
		TokenTTL:    time.Hour,
		BcryptCost:  10,
		MaxPageSize: 100,
		LogLevel:    "info",
		LogFormat:   "json",
		Environment: "development",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $POSTBOARD_CONFIG when path is empty), then the environment. The
// result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("POSTBOARD_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("POSTBOARD_ADDR"); addr != "" {
		c.Addr = addr
	} else if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	c.StoreDriver = envString("POSTBOARD_STORE", c.StoreDriver)
	c.DBPath = envString("POSTBOARD_DB", c.DBPath)
	c.DatabaseURL = envString("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = envString("REDIS_URL", c.RedisURL)
	c.CacheTTL = envDuration("POSTBOARD_CACHE_TTL", c.CacheTTL)
	c.SigningKey = envString("POSTBOARD_SIGNING_KEY", c.SigningKey)
	c.TokenAlg = envString("POSTBOARD_TOKEN_ALG", c.TokenAlg)
	c.TokenTTL = envDuration("POSTBOARD_TOKEN_TTL", c.TokenTTL)
	c.BcryptCost = envInt("POSTBOARD_BCRYPT_COST", c.BcryptCost)
	c.MaxPageSize = envInt("POSTBOARD_MAX_PAGE_SIZE", c.MaxPageSize)
	if v := os.Getenv("POSTBOARD_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	c.LogLevel = envString("POSTBOARD_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envString("POSTBOARD_LOG_FORMAT", c.LogFormat)
	c.Environment = envString("POSTBOARD_ENV", c.Environment)
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for the sqlite store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want sqlite or postgres)", c.StoreDriver))
	}
	if c.SigningKey == "" {
		errs = append(errs, errors.New("signing_key is required"))
	}
	if c.Production() && c.SigningKey == DevSigningKey {
		errs = append(errs, errors.New("signing_key must be set explicitly in production"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt_cost %d out of range 4-31", c.BcryptCost))
	}
	if c.MaxPageSize < 0 {
		errs = append(errs, errors.New("max_page_size must not be negative"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
