// Package config loads settings from the environment, with an optional
// .env file for development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the client needs. Durations come in as
// milliseconds to keep the env surface plain integers.
type Config struct {
	// Speech-to-text provider
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-3"`
	Language       string `envconfig:"CAPTURE_LANGUAGE" default:"en-US"` // fixed recognition locale

	// Generative-text backend
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""` // override for self-hosted backends

	// Capture session timing
	SilenceTimeoutMs  int     `envconfig:"SILENCE_TIMEOUT_MS" default:"2000"`
	MaxDurationMs     int     `envconfig:"MAX_DURATION_MS" default:"60000"`
	SpeakingThreshold float64 `envconfig:"SPEAKING_THRESHOLD" default:"0.15"`

	// Observability
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""` // empty disables the listener
}

// Load reads a .env file if present, then the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SilenceTimeoutMs <= 0 {
		return fmt.Errorf("SILENCE_TIMEOUT_MS must be positive, got %d", c.SilenceTimeoutMs)
	}
	if c.MaxDurationMs <= c.SilenceTimeoutMs {
		return fmt.Errorf("MAX_DURATION_MS (%d) must exceed SILENCE_TIMEOUT_MS (%d)",
			c.MaxDurationMs, c.SilenceTimeoutMs)
	}
	if c.SpeakingThreshold <= 0 || c.SpeakingThreshold >= 1 {
		return fmt.Errorf("SPEAKING_THRESHOLD must be in (0,1), got %g", c.SpeakingThreshold)
	}
	return nil
}

// SilenceTimeout is the quiet interval after the last transcript update
// that ends a session.
func (c *Config) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutMs) * time.Millisecond
}

// MaxDuration is the hard cap on session length.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMs) * time.Millisecond
}
