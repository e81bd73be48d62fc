package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// DefaultJWTSecret is only acceptable outside production
const DefaultJWTSecret = "dev-only-secret-change-me"

// Supported message store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverBadger   = "badger"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string `env:"PORT,default=8080"`
	Env  string `env:"ENV,default=development"`

	// Security
	AllowedOriginsRaw string `env:"ALLOWED_ORIGINS"`
	AllowedOrigins    []string
	JWTSecret         string `env:"JWT_SECRET,default=dev-only-secret-change-me"`
	TokenTTLHours     int    `env:"TOKEN_TTL_HOURS,default=24"`
	TrustUserIDParam  bool   `env:"TRUST_USER_ID_PARAM,default=false"`

	// Storage
	StoreDriver string `env:"STORE_DRIVER,default=memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"SQLITE_PATH,default=./data/messages.db"`
	BadgerPath  string `env:"BADGER_PATH,default=./data/badger"`

	// Rate Limiting
	RateLimitAPI int `env:"RATE_LIMIT_API,default=10"`
	RateLimitWS  int `env:"RATE_LIMIT_WS,default=5"`

	// Logging
	LogLevel string `env:"LOG_LEVEL,default=info"` // Options: debug, info, warn, error, silent

	// WebSocket
	MaxMessageSize int `env:"MAX_MESSAGE_SIZE,default=16384"`
	MaxTextLength  int `env:"MAX_TEXT_LENGTH,default=2000"`
	SendBufferSize int `env:"SEND_BUFFER_SIZE,default=256"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:             "8080",
		Env:              "development",
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		JWTSecret:        DefaultJWTSecret,
		TokenTTLHours:    int(domain.TokenTTL / time.Hour),
		StoreDriver:      DriverMemory,
		SQLitePath:       "./data/messages.db",
		BadgerPath:       "./data/badger",
		RateLimitAPI:     domain.DefaultRateLimitAPI,
		RateLimitWS:      domain.DefaultRateLimitWS,
		LogLevel:         "info",
		MaxMessageSize:   domain.MaxMessageSize,
		MaxTextLength:    domain.MaxTextLength,
		SendBufferSize:   domain.SendBufferSize,
		TrustUserIDParam: false,
	}
}

// Load reads a .env file if present and then the process environment
func Load() (*Config, error) {
	// Ignore error if not exists, e.g. in production
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.AllowedOriginsRaw != "" {
		cfg.AllowedOrigins = parseOrigins(cfg.AllowedOriginsRaw)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverBadger:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the %s driver", c.StoreDriver)
		}
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required for the %s driver", c.StoreDriver)
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.IsProduction() {
		if c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret {
			return fmt.Errorf("config: JWT_SECRET must be set in production")
		}
		if c.TrustUserIDParam {
			return fmt.Errorf("config: TRUST_USER_ID_PARAM cannot be enabled in production")
		}
	}

	if c.MaxTextLength <= 0 {
		c.MaxTextLength = domain.MaxTextLength
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = domain.MaxMessageSize
	}
	// A frame must hold the longest text the relay accepts
	if minFrame := domain.FrameSizeFor(c.MaxTextLength); c.MaxMessageSize < minFrame {
		c.MaxMessageSize = minFrame
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = domain.SendBufferSize
	}
	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment reports whether ENV is development
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// TokenTTL returns the session token lifetime
func (c *Config) TokenTTL() time.Duration {
	if c.TokenTTLHours <= 0 {
		return domain.TokenTTL
	}
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// APILimit returns the per-IP request rate for HTTP endpoints
func (c *Config) APILimit() rate.Limit {
	if c.RateLimitAPI <= 0 {
		return rate.Limit(domain.DefaultRateLimitAPI)
	}
	return rate.Limit(c.RateLimitAPI)
}

// WSLimit returns the per-IP rate for websocket upgrades
func (c *Config) WSLimit() rate.Limit {
	if c.RateLimitWS <= 0 {
		return rate.Limit(domain.DefaultRateLimitWS)
	}
	return rate.Limit(c.RateLimitWS)
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
