// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full service configuration, decoded from environment
// variables with sane development defaults.
type Config struct {
	HTTP struct {
		Addr           string   `env:"HTTP_ADDR,default=:8080"`
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR,default=localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB,default=0"`
	}

	App struct {
		URL    string `env:"APP_URL,default=http://localhost:8080"`
		Domain string `env:"APP_DOMAIN,default=localhost"`
	}

	Auth struct {
		JWTSecret string `env:"JWT_SECRET,default=dev-secret"`
	}

	Profile struct {
		BaseURL string `env:"NEYNAR_BASE_URL,default=https://api.neynar.com"`
		APIKey  string `env:"NEYNAR_API_KEY"`
	}

	Gen struct {
		BaseURL string `env:"OPENAI_BASE_URL,default=https://api.openai.com"`
		APIKey  string `env:"OPENAI_API_KEY"`
		Model   string `env:"OPENAI_MODEL,default=gpt-4o-mini"`
	}

	Chain struct {
		RPCURL string `env:"CHAIN_RPC_URL,default=https://mainnet.base.org"`
	}

	Challenge struct {
		// Cron expression for the daily resolve-and-rotate job.
		RotateSchedule string `env:"CHALLENGE_ROTATE_SCHEDULE,default=0 0 * * *"`
	}
}

// Load reads .env if present, then decodes the environment. Missing
// variables fall back to their declared defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
