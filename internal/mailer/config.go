package mailer

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds SMTP and queue settings of the verification mail worker.
type Config struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`

	RedisAddr     string        `env:"USERSVC_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"USERSVC_REDIS_PASSWORD"`
	Topic         string        `env:"USERSVC_VERIFICATION_TOPIC" envDefault:"usersvc:verify-email"`
	PopTimeout    time.Duration `env:"MAILER_POP_TIMEOUT" envDefault:"5s"`
	RetryDelay    time.Duration `env:"MAILER_RETRY_DELAY" envDefault:"2s"`
	LogBackend    string        `env:"USERSVC_LOG_BACKEND" envDefault:"slog"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks the settings a relay cannot work without. Credentials
// stay optional for unauthenticated local relays.
func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}
	if c.Topic == "" {
		return fmt.Errorf("missing USERSVC_VERIFICATION_TOPIC environment variable")
	}
	return nil
}
