// Package config loads and validates process configuration from the
// environment, failing fast with a human-readable *Error on any
// invalid or inconsistent combination.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// SinkKind selects which delivery destination the session dispatches to.
type SinkKind string

const (
	SinkStdout SinkKind = "stdout"
	SinkHTTP   SinkKind = "http"
	SinkHook0  SinkKind = "hook0"
)

// Config is every environment-sourced setting this process reads.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	SlotName    string `env:"SLOT_NAME" envDefault:"sub"`
	PubName     string `env:"PUB_NAME" envDefault:"pub"`
	EventSink   string `env:"EVENT_SINK" envDefault:"stdout"`

	HTTPEndpointURL string `env:"HTTP_ENDPOINT_URL"`

	Hook0APIURL       string `env:"HOOK0_API_URL"`
	Hook0ApplicationID string `env:"HOOK0_APPLICATION_ID"`
	Hook0APIToken     string `env:"HOOK0_API_TOKEN"`

	EmailSMTPHost     string `env:"EMAIL_SMTP_HOST"`
	EmailSMTPPort     int    `env:"EMAIL_SMTP_PORT" envDefault:"587"`
	EmailSMTPUsername string `env:"EMAIL_SMTP_USERNAME"`
	EmailSMTPPassword string `env:"EMAIL_SMTP_PASSWORD"`
	EmailFrom         string `env:"EMAIL_FROM"`
	EmailTo           string `env:"EMAIL_TO"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	FeedbackIntervalSecs int `env:"FEEDBACK_INTERVAL_SECS" envDefault:"1"`
}

// Sink returns the normalized (lower-cased) sink selection.
func (c Config) Sink() SinkKind {
	return SinkKind(strings.ToLower(c.EventSink))
}

// FeedbackInterval is FeedbackIntervalSecs as a time.Duration.
func (c Config) FeedbackInterval() time.Duration {
	return time.Duration(c.FeedbackIntervalSecs) * time.Second
}

// NotifierConfigured reports whether every field the SMTP failure notifier
// needs has been set.
func (c Config) NotifierConfigured() bool {
	return c.EmailSMTPHost != "" && c.EmailSMTPUsername != "" && c.EmailSMTPPassword != "" &&
		c.EmailFrom != "" && c.EmailTo != ""
}

// Load parses environment variables into a Config and validates the
// sink-specific required fields for whichever EVENT_SINK was selected.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &Error{Message: "parsing environment: " + err.Error()}
	}

	switch cfg.Sink() {
	case SinkStdout:
		// no additional fields required
	case SinkHTTP:
		if cfg.HTTPEndpointURL == "" {
			return nil, &Error{Message: "HTTP_ENDPOINT_URL is required when EVENT_SINK=http"}
		}
		if !strings.HasPrefix(cfg.HTTPEndpointURL, "http://") && !strings.HasPrefix(cfg.HTTPEndpointURL, "https://") {
			return nil, &Error{Message: "HTTP_ENDPOINT_URL must begin with http:// or https://"}
		}
	case SinkHook0:
		if cfg.Hook0APIURL == "" || cfg.Hook0ApplicationID == "" || cfg.Hook0APIToken == "" {
			return nil, &Error{Message: "HOOK0_API_URL, HOOK0_APPLICATION_ID and HOOK0_API_TOKEN are required when EVENT_SINK=hook0"}
		}
	default:
		return nil, &Error{Message: "EVENT_SINK must be one of http, hook0, stdout, got " + cfg.EventSink}
	}

	if cfg.FeedbackIntervalSecs <= 0 {
		return nil, &Error{Message: "FEEDBACK_INTERVAL_SECS must be positive"}
	}

	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, &Error{Message: "LOG_FORMAT must be console or json, got " + cfg.LogFormat}
	}

	return cfg, nil
}
