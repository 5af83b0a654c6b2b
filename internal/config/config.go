package config

import (
	"fmt"
	"log/slog"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat client and the dev relay.
type Config struct {
	Endpoint     string        `env:"CHAT_ENDPOINT,default=ws://localhost:4000/ws" validate:"required,url"`
	Username     string        `env:"CHAT_USERNAME"`
	EchoMode     string        `env:"CHAT_ECHO_MODE,default=wait" validate:"oneof=wait optimistic"`
	RoomTitle    string        `env:"CHAT_ROOM_TITLE,default=Thrifty AI Chat" validate:"required"`
	ScrollDelay  time.Duration `env:"CHAT_SCROLL_DELAY,default=100ms" validate:"gte=0"`
	Viewport     int           `env:"CHAT_VIEWPORT,default=20" validate:"min=1"`
	SendBuffer   int           `env:"CHAT_SEND_BUFFER,default=256" validate:"min=1"`
	WriteTimeout time.Duration `env:"CHAT_WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	RelayAddr    string        `env:"CHAT_RELAY_ADDR,default=:4000" validate:"required"`
	LogFormat    string        `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`
	LogLevel     string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
}

// Load reads a .env file if one exists, then decodes and validates the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values after flags have been applied on top of the
// environment.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
