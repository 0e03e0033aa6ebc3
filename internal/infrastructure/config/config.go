package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port         string   `env:"PORT,          default=5050"`
	Env          string   `env:"ENV,           default=development"`
	LogLevel     string   `env:"LOG_LEVEL,     default=info"`
	StoreDriver  string   `env:"STORE_DRIVER,  default=mongo"`
	StoreTimeout Duration `env:"STORE_TIMEOUT, default=5s"`
	BcryptCost   int      `env:"BCRYPT_COST,   default=10"`

	JWT       JWTConfig
	Admin     AdminConfig
	Server    ServerConfig
	Mongo     MongoConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type JWTConfig struct {
	Secret    string   `env:"JWT_SECRET, required"`
	ExpiresIn Duration `env:"JWT_EXPIRES_IN, default=7d"`
}

type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME, default=admin"`
	Password string `env:"ADMIN_PASSWORD, default=admin4"`
}

type ServerConfig struct {
	ReadTimeout     Duration `env:"SERVER_READ_TIMEOUT,  default=10s"`
	WriteTimeout    Duration `env:"SERVER_WRITE_TIMEOUT, default=15s"`
	ShutdownTimeout Duration `env:"SHUTDOWN_TIMEOUT,     default=10s"`
	// TrustProxy reads client IPs from X-Forwarded-For sent by private-range proxies.
	TrustProxy bool `env:"TRUST_PROXY, default=false"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=auth_service"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN"`
}

// RedisConfig is optional: an empty Addr disables the attempt limiter.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type RateLimitConfig struct {
	Attempts int      `env:"RATE_LIMIT_ATTEMPTS, default=20"`
	Window   Duration `env:"RATE_LIMIT_WINDOW,   default=1m"`
}

// IsDevelopment reports whether the service runs in the development env.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads a .env file when present, then the process environment.
// Variables already set in the environment win over .env entries.
func Load(ctx context.Context) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWT.ExpiresIn.Std() <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	return nil
}

// Duration is a time.Duration that also accepts a whole-day suffix such as
// "7d", the format used for token lifetimes.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// EnvDecode implements envconfig.Decoder.
func (d *Duration) EnvDecode(val string) error {
	val = strings.TrimSpace(val)
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fmt.Errorf("invalid duration %q", val)
		}
		*d = Duration(time.Duration(n) * 24 * time.Hour)
		return nil
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
