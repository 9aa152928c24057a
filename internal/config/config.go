package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Worker   WorkerConfig
	Uploads  UploadsConfig
	RBAC     RBACConfig
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRPS float64       `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateBurst    int           `env:"RATE_LIMIT_BURST" envDefault:"100"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	Migrate  bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	// StatementTimeout bounds every query; zero leaves the server default.
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"30s"`
	MaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE" envDefault:"5m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"rentalcore"`
	TokenTTL  time.Duration `env:"JWT_TOKEN_TTL" envDefault:"12h"`
	OrgHeader string        `env:"ORG_HEADER" envDefault:"X-Org-ID"`
}

type WorkerConfig struct {
	Concurrency int    `env:"WORKER_CONCURRENCY" envDefault:"10"`
	OverdueCron string `env:"WORKER_OVERDUE_CRON" envDefault:"0 1 * * *"`
	CleanupCron string `env:"WORKER_UPLOAD_CLEANUP_CRON" envDefault:"0 * * * *"`
}

type UploadsConfig struct {
	Dir string        `env:"UPLOADS_DIR" envDefault:"storage/tmp"`
	TTL time.Duration `env:"UPLOADS_TTL" envDefault:"24h"`
}

type RBACConfig struct {
	GrantCacheTTL time.Duration `env:"RBAC_GRANT_CACHE_TTL" envDefault:"10m"`
}

// Load reads .env files when present, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	var existing []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}
