package broker

import (
	"errors"
	"os"
	"time"

	"github.com/miamanabat/Message-Queue/pkg/mq"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Listen        string      `yaml:"listen"`          // default: ":9540"
	Backend       string      `yaml:"backend"`         // default: "memory"
	PollTimeoutMs int64       `yaml:"poll_timeout_ms"` // default: 1000, negative answers polls without waiting
	ReadTimeoutMs int64       `yaml:"read_timeout_ms"` // default: 5000
	MaxBodyBytes  int64       `yaml:"max_body_bytes"`  // default: 8192
	Redis         RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Address     string `yaml:"address"` // default: "localhost:6379"
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size"` // default: 10
	UseTLS      bool   `yaml:"use_tls"`   // default: false
	Namespace   string `yaml:"namespace"` // default: "mq"
	MaxQueueLen int64  `yaml:"max_queue_len"`
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() Config {
	return Config{
		Listen:        ":9540",
		Backend:       BackendMemory,
		PollTimeoutMs: 1000,
		ReadTimeoutMs: 5000,
		MaxBodyBytes:  mq.DefaultMaxBodyBytes,
		Redis: RedisConfig{
			Address:   "localhost:6379",
			PoolSize:  10,
			Namespace: "mq",
		},
	}
}

// Validate checks that all required fields are set and values are within valid ranges.
func (c Config) Validate() error {
	if c.Backend != BackendMemory && c.Backend != BackendRedis {
		return errors.New("broker: backend must be \"memory\" or \"redis\"")
	}

	if c.ReadTimeoutMs < 0 {
		return errors.New("broker: read_timeout must be >= 0")
	}

	if c.Backend == BackendRedis && c.Redis.Namespace == "" {
		return errors.New("broker: redis namespace must not be empty")
	}

	if c.Redis.MaxQueueLen < 0 {
		return errors.New("broker: redis max_queue_len must be >= 0")
	}

	return nil
}

// PollWait returns how long a poll waits for a message. It is zero when
// PollTimeoutMs is negative.
func (c Config) PollWait() time.Duration {
	if c.PollTimeoutMs < 0 {
		return 0
	}
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

// WithDefaults returns a new Config with zero-value fields replaced by defaults.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	result := c

	if result.Listen == "" {
		result.Listen = defaults.Listen
	}
	if result.Backend == "" {
		result.Backend = defaults.Backend
	}
	if result.PollTimeoutMs == 0 {
		result.PollTimeoutMs = defaults.PollTimeoutMs
	}
	if result.ReadTimeoutMs == 0 {
		result.ReadTimeoutMs = defaults.ReadTimeoutMs
	}
	if result.MaxBodyBytes == 0 {
		result.MaxBodyBytes = defaults.MaxBodyBytes
	}

	// Redis
	if result.Redis.Address == "" {
		result.Redis.Address = defaults.Redis.Address
	}
	if result.Redis.PoolSize == 0 {
		result.Redis.PoolSize = defaults.Redis.PoolSize
	}
	if result.Redis.Namespace == "" {
		result.Redis.Namespace = defaults.Redis.Namespace
	}

	return result
}

// ConfigFromEnv reads Redis connection settings from environment variables
// and returns a Config with those values set. Unset variables use defaults.
//
// Environment variables:
//   - REDIS_HOST: Redis hostname (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_USE_TLS: Enable TLS ("true" or "1") (default: false)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	cfg.Redis.Address = host + ":" + port

	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	tlsEnv := os.Getenv("REDIS_USE_TLS")
	cfg.Redis.UseTLS = (tlsEnv == "true" || tlsEnv == "1")

	return cfg
}
