package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Gateway GatewayConfig
	Session SessionConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// GatewayConfig points at the remote identity service. An empty BaseURL
// selects the in-process stub gateway (development mode).
type GatewayConfig struct {
	BaseURL string        `env:"IDENTITY_BASE_URL"`
	Timeout time.Duration `env:"IDENTITY_TIMEOUT, default=10s"`
}

// SessionConfig holds the lifecycle thresholds.
type SessionConfig struct {
	RevalidateInterval time.Duration `env:"SESSION_REVALIDATE_INTERVAL, default=15m"`
	InactivityTimeout  time.Duration `env:"SESSION_INACTIVITY_TIMEOUT,  default=45m"`
	WarningWindow      time.Duration `env:"SESSION_WARNING_WINDOW,      default=5m"`
	// TTL bounds entries in the ephemeral tier, mirroring its
	// session-scoped nature.
	TTL          time.Duration `env:"SESSION_TTL,           default=12h"`
	CookieDomain string        `env:"SESSION_COOKIE_DOMAIN"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE, default=false"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=auth_lifecycle"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
