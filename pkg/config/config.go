// Package config loads the console's process-wide configuration from a
// .env file and environment variables, following the same load order as
// the rest of the fleet: dotenv first, then typed env-var overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// ServerConfig controls the HTTP server binding.
type ServerConfig struct {
	Host  string `env:"INCIDENT_BACKEND_HOST"`
	Port  int    `env:"INCIDENT_BACKEND_PORT"`
	Debug bool   `env:"INCIDENT_BACKEND_RELOAD"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `env:"INCIDENT_BACKEND_LOG_LEVEL"`
}

// SimulatorConfig controls the action simulator client/host.
type SimulatorConfig struct {
	Host string `env:"INCIDENT_ACTION_SIM_HOST"`
	Port int    `env:"INCIDENT_ACTION_SIM_PORT"`
}

// SMTPConfig controls optional email delivery.
type SMTPConfig struct {
	Host     string `env:"INCIDENT_EMAIL_SMTP_HOST"`
	Port     int    `env:"INCIDENT_EMAIL_SMTP_PORT"`
	User     string `env:"INCIDENT_EMAIL_SMTP_USER"`
	Password string `env:"INCIDENT_EMAIL_SMTP_PASSWORD"`
	TLS      bool   `env:"INCIDENT_EMAIL_SMTP_TLS"`
	From     string `env:"INCIDENT_EMAIL_SMTP_FROM"`
}

// Configured reports whether enough SMTP settings are present to attempt
// delivery. A missing host means notification delivery is silently skipped.
func (s SMTPConfig) Configured() bool {
	return strings.TrimSpace(s.Host) != ""
}

// LLMConfig controls the report generator's primary (LLM-backed) path.
type LLMConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY"`
}

// Configured reports whether the LLM primary path may be attempted.
func (l LLMConfig) Configured() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

// MonitorConfig controls the Sampling Monitor's poll cadence and window.
type MonitorConfig struct {
	Interval time.Duration `env:"INCIDENT_MONITOR_INTERVAL"`
	Window   int           `env:"INCIDENT_MONITOR_WINDOW"`
}

// Config is the top-level process configuration.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Simulator SimulatorConfig
	SMTP      SMTPConfig
	LLM       LLMConfig
	Monitor   MonitorConfig
	DataDir   string `env:"INCIDENT_DATA_DIR"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Simulator: SimulatorConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Monitor: MonitorConfig{
			Interval: 5 * time.Second,
			Window:   5,
		},
		DataDir: "data",
	}
}

// Load loads configuration from a .env file (if present) and environment
// variables, applying typed defaults first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors when none of the tagged fields were present in
		// the environment; treat that as "no overrides" so local runs
		// work without exporting anything.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	cfg.normalize()

	return cfg, nil
}

func (c *Config) normalize() {
	if c.Monitor.Window <= 0 {
		c.Monitor.Window = 5
	}
	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = 5 * time.Second
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "data"
	}
}
