package mq

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Name    string        `yaml:"name"` // subscriber identity; generated if empty
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Backoff BackoffConfig `yaml:"backoff"`
	Wire    WireConfig    `yaml:"wire"`
}

type ServerConfig struct {
	Host string `yaml:"host"` // default: "localhost"
	Port string `yaml:"port"` // default: "9540"
}

type ClientConfig struct {
	DialTimeoutMs    int64 `yaml:"dial_timeout_ms"`    // default: 0 (no timeout)
	IOTimeoutMs      int64 `yaml:"io_timeout_ms"`      // default: 0 (no timeout)
	RetryFailedSends bool  `yaml:"retry_failed_sends"` // default: false (drop on failure)
}

type WireConfig struct {
	Version      string `yaml:"version"`        // default: "HTTP/1.0"
	MaxBodyBytes int64  `yaml:"max_body_bytes"` // default: 8192, 0 keeps the default, negative disables
	LineBody     bool   `yaml:"line_body"`      // default: false
}

// DefaultConfig returns a Config with all default values.
// Name is left empty; New generates one when it is still empty.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: "9540",
		},
		Backoff: BackoffConfig{
			BaseDelayMs: 100,
			MaxDelayMs:  5000,
			Jitter:      true,
		},
		Wire: WireConfig{
			Version:      ProtocolVersion,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
	}
}

// Validate checks that all fields are within valid ranges.
// Returns an error describing the first validation failure.
func (c Config) Validate() error {
	if strings.ContainsAny(c.Name, " \t\r\n/") {
		return errors.New("mq: name must not contain whitespace or '/'")
	}

	if c.Server.Host == "" {
		return errors.New("mq: server host must not be empty")
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("mq: server port %q must be a number in 1..65535", c.Server.Port)
	}

	if c.Client.DialTimeoutMs < 0 || c.Client.IOTimeoutMs < 0 {
		return errors.New("mq: client timeouts must be >= 0")
	}

	if c.Backoff.BaseDelayMs > 0 && c.Backoff.MaxDelayMs < c.Backoff.BaseDelayMs {
		return errors.New("mq: backoff max_delay must be >= base_delay")
	}

	if c.Wire.Version == "" || strings.ContainsAny(c.Wire.Version, " \t\r\n") {
		return errors.New("mq: wire version must be a single non-empty token")
	}

	return nil
}

// WithDefaults returns a new Config with zero-value fields replaced by defaults.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	result := c

	// Server
	if result.Server.Host == "" {
		result.Server.Host = defaults.Server.Host
	}
	if result.Server.Port == "" {
		result.Server.Port = defaults.Server.Port
	}

	// Backoff: an untouched block takes the defaults wholesale, so Jitter can
	// default to true. A negative BaseDelayMs keeps the immediate retry.
	if result.Backoff == (BackoffConfig{}) {
		result.Backoff = defaults.Backoff
	}
	if result.Backoff.BaseDelayMs == 0 {
		result.Backoff.BaseDelayMs = defaults.Backoff.BaseDelayMs
	}
	if result.Backoff.MaxDelayMs == 0 {
		result.Backoff.MaxDelayMs = defaults.Backoff.MaxDelayMs
	}

	// Wire
	if result.Wire.Version == "" {
		result.Wire.Version = defaults.Wire.Version
	}
	if result.Wire.MaxBodyBytes == 0 {
		result.Wire.MaxBodyBytes = defaults.Wire.MaxBodyBytes
	}

	return result
}

// Address returns the server's "host:port".
func (c Config) Address() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// Codec returns the wire codec described by c.Wire.
func (c Config) Codec() Codec {
	codec := Codec{
		Version:      c.Wire.Version,
		MaxBodyBytes: c.Wire.MaxBodyBytes,
		LineBody:     c.Wire.LineBody,
	}
	if codec.MaxBodyBytes < 0 {
		codec.MaxBodyBytes = 0
	}
	return codec
}

// ConfigFromEnv reads the identity and server address from environment
// variables and returns a Config with those values set. Unset variables use
// defaults.
//
// Environment variables:
//   - MQ_NAME: client identity (falls back to USER)
//   - MQ_HOST: server hostname (default: "localhost")
//   - MQ_PORT: server port (default: "9540")
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.Name = os.Getenv("MQ_NAME")
	if cfg.Name == "" {
		cfg.Name = os.Getenv("USER")
	}
	if host := os.Getenv("MQ_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("MQ_PORT"); port != "" {
		cfg.Server.Port = port
	}

	return cfg
}

// LoadConfig reads a YAML config file. Missing fields take their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML config data.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
