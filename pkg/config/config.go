package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/transport/goble"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	AuthKey               string        `yaml:"auth_key"`
	Address               string        `yaml:"address"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout" default:"30s"`
	IOTimeout             time.Duration `yaml:"io_timeout" default:"5s"`
	PollInterval          time.Duration `yaml:"poll_interval" default:"1s"`
	HeartRatePingInterval time.Duration `yaml:"heart_rate_ping_interval" default:"1s"`
	LogLevel              string        `yaml:"log_level" default:"info"`
	EventBuffer           int           `yaml:"event_buffer" default:"16"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	defaults.SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks intervals, the log level and, when set, the auth key.
func (c *Config) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"io_timeout", c.IOTimeout},
		{"poll_interval", c.PollInterval},
		{"heart_rate_ping_interval", c.HeartRatePingInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.value)
		}
	}

	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.AuthKey != "" {
		if _, err := protocol.ParseAuthKey(c.AuthKey); err != nil {
			return fmt.Errorf("auth_key: %w", err)
		}
	}
	return nil
}

// Key parses the configured auth key.
func (c *Config) Key() (protocol.AuthKey, error) {
	return protocol.ParseAuthKey(c.AuthKey)
}

// Level returns the configured log level, falling back to Info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// SessionOptions returns the session timing derived from the configuration.
func (c *Config) SessionOptions() *session.Options {
	opts := &session.Options{
		PollInterval:          c.PollInterval,
		HeartRatePingInterval: c.HeartRatePingInterval,
		IOTimeout:             c.IOTimeout,
	}
	defaults.SetDefaults(opts)
	return opts
}

// DialOptions returns the connection options derived from the configuration.
func (c *Config) DialOptions() *goble.DialOptions {
	return &goble.DialOptions{ConnectTimeout: c.ConnectTimeout}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
