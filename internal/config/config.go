package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the full runtime configuration, read from environment
// variables. Required Battle.net credentials are validated at load time so a
// misconfigured process refuses to start instead of failing per-request.
type Config struct {
	Env      string `env:"ENV" env-default:"development"`
	HTTP     HTTPConfig
	Redis    RedisConfig
	BNet     BNetConfig
	Sessions SessionConfig
	Cache    CacheConfig
}

type HTTPConfig struct {
	Port           string   `env:"PORT" env-default:"3000"`
	FrontendURL    string   `env:"FRONTEND_URL" env-default:"http://localhost:4200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-default:"http://localhost:4200"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// BNetConfig configures the upstream Battle.net OAuth2 client.
type BNetConfig struct {
	Region       string `env:"BNET_REGION" env-default:"eu"`
	ClientID     string `env:"BNET_CLIENT_ID" env-required:"true"`
	ClientSecret string `env:"BNET_CLIENT_SECRET" env-required:"true"`
	CallbackURL  string `env:"BNET_CALLBACK_URL" env-required:"true"`
	Scope        string `env:"BNET_SCOPE" env-default:"wow.profile"`

	HTTPTimeout time.Duration `env:"BNET_HTTP_TIMEOUT" env-default:"10s"`
}

// SessionConfig separates store retention from client-held cookie validity:
// ephemeral sessions keep a 24h store record but the cookie itself is
// browser-session scoped.
type SessionConfig struct {
	PersistentTTL time.Duration `env:"SESSION_PERSISTENT_TTL" env-default:"720h"`
	EphemeralTTL  time.Duration `env:"SESSION_EPHEMERAL_TTL" env-default:"24h"`
}

type CacheConfig struct {
	GameDataTTL time.Duration `env:"GAMEDATA_CACHE_TTL" env-default:"24h"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for main; it panics on a configuration error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// IsProduction reports whether the process runs with production hardening
// (secure cookies, strict same-site).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
