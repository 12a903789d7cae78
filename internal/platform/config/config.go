package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName   string
	Env           string // "production" enforces real backing services
	LogLevel      string
	SessionSecret string // shared with the auth provider for token verification
	HTTP          HTTPConfig
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func Load() (AppConfig, error) {
	// Local development keeps settings in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg := AppConfig{
		ServiceName:   strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		Env:           strings.TrimSpace(os.Getenv("APP_ENV")),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		SessionSecret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		},
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "forum"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionSecret == "" && cfg.IsProduction() {
		return AppConfig{}, errors.New("SESSION_SECRET is required in production")
	}
	return cfg, nil
}
