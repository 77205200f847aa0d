package mq

import (
	"math"
	"math/rand"
	"time"
)

// uncappedMaxDelayMs bounds the delay when MaxDelayMs is unset.
const uncappedMaxDelayMs = int64(24 * time.Hour / time.Millisecond)

// BackoffConfig controls the delay between reconnect attempts of a worker.
type BackoffConfig struct {
	BaseDelayMs int64 `yaml:"base_delay_ms"` // <= 0 retries immediately (WithDefaults turns 0 into 100)
	MaxDelayMs  int64 `yaml:"max_delay_ms"`  // cap on the delay
	Jitter      bool  `yaml:"jitter"`        // add a random value in [0, BaseDelayMs)
}

// ComputeDelay returns the wait before retry number attempt.
//
// Formula: min(baseDelay * 2^(attempt-1) + jitter, maxDelay)
// - attempt is 1-indexed (attempt 1 = first retry after a failure)
// - attempt <= 0 is treated as attempt 1
// - a zero BaseDelayMs always yields 0
func ComputeDelay(attempt int, cfg BackoffConfig) time.Duration {
	if cfg.BaseDelayMs <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}

	delay := float64(cfg.BaseDelayMs) * math.Pow(2, float64(attempt-1))

	if cfg.Jitter {
		delay += rand.Float64() * float64(cfg.BaseDelayMs)
	}

	maxDelay := cfg.MaxDelayMs
	if maxDelay <= 0 {
		maxDelay = uncappedMaxDelayMs
	}
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	return time.Duration(delay) * time.Millisecond
}

// retryState counts consecutive failures of one worker.
type retryState struct {
	cfg      BackoffConfig
	failures int
}

// next records a failure and returns how long to wait before retrying.
func (s *retryState) next() time.Duration {
	s.failures++
	return ComputeDelay(s.failures, s.cfg)
}

func (s *retryState) reset() {
	s.failures = 0
}
