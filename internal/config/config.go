package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported store backends.
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// DefaultExchangeURL is the provider's session-data endpoint.
const DefaultExchangeURL = "https://demobackend.emergentagent.com/auth/v1/env/oauth/session-data"

// Config aggregates runtime configuration for the chessmate API.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Port        int    `env:"PORT"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	DataStore     string `env:"DATA_STORE" envDefault:"memory"`
	SessionStore  string `env:"SESSION_STORE"`
	DatabaseURL   string `env:"-"`
	MongoURL      string `env:"-"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"chessmate"`
	RedisURL      string `env:"-"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8081,http://localhost:19006"`

	ExchangeURL          string        `env:"EXCHANGE_URL"`
	ExchangeTimeout      time.Duration `env:"EXCHANGE_TIMEOUT" envDefault:"10s"`
	ExchangeClientID     string        `env:"EXCHANGE_CLIENT_ID"`
	ExchangeClientSecret string        `env:"-"`
	ExchangeTokenURL     string        `env:"EXCHANGE_TOKEN_URL"`

	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"0s"`
	UserListLimit        int           `env:"USER_LIST_LIMIT" envDefault:"1000"`
	LoginRatePerMinute   int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"30"`
}

// Load reads configuration from the environment (and an optional .env file) with
// defaults suitable for local development.
func Load() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	secrets := []struct {
		key  string
		path string
		dst  *string
	}{
		{"DATABASE_URL", "/run/secrets/chessmate_database_url", &cfg.DatabaseURL},
		{"MONGODB_URL", "/run/secrets/chessmate_mongodb_url", &cfg.MongoURL},
		{"REDIS_URL", "/run/secrets/chessmate_redis_url", &cfg.RedisURL},
		{"EXCHANGE_CLIENT_SECRET", "/run/secrets/chessmate_exchange_client_secret", &cfg.ExchangeClientSecret},
	}
	for _, s := range secrets {
		value, err := getEnvOrFile(s.key, s.path)
		if err != nil {
			return Config{}, err
		}
		*s.dst = strings.TrimSpace(value)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.DataStore = strings.ToLower(strings.TrimSpace(cfg.DataStore))
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	if cfg.SessionStore == "" {
		cfg.SessionStore = cfg.DataStore
	}
	if cfg.Port != 0 {
		cfg.HTTPPort = cfg.Port
	}
	if strings.TrimSpace(cfg.ExchangeURL) == "" {
		cfg.ExchangeURL = DefaultExchangeURL
	}
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DataStore {
	case StoreMemory, StoreMongo, StorePostgres:
	default:
		return fmt.Errorf("config: unsupported DATA_STORE %q", c.DataStore)
	}

	switch c.SessionStore {
	case c.DataStore, StoreRedis:
	default:
		return fmt.Errorf("config: SESSION_STORE must be %q or %q, got %q", c.DataStore, StoreRedis, c.SessionStore)
	}

	if c.DataStore == StorePostgres && c.DatabaseURL == "" {
		return errors.New("config: DATA_STORE is postgres but DATABASE_URL is not set")
	}
	if c.DataStore == StoreMongo && c.MongoURL == "" {
		return errors.New("config: DATA_STORE is mongo but MONGODB_URL is not set")
	}
	if c.SessionStore == StoreRedis && c.RedisURL == "" {
		return errors.New("config: SESSION_STORE is redis but REDIS_URL is not set")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: invalid port %d", c.HTTPPort)
	}
	if c.ExchangeTimeout <= 0 {
		return errors.New("config: EXCHANGE_TIMEOUT must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.UserListLimit <= 0 {
		return errors.New("config: USER_LIST_LIMIT must be positive")
	}
	if c.ExchangeClientID != "" && c.ExchangeTokenURL == "" {
		return errors.New("config: EXCHANGE_CLIENT_ID requires EXCHANGE_TOKEN_URL")
	}
	return nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
