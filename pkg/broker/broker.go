package broker

import (
	"context"
	"fmt"
	"time"
)

// Broker stores subscriptions and the pending messages of each subscriber.
// Implementations must be safe for concurrent use.
type Broker interface {
	// Publish appends body to the queue of every subscriber of topic and
	// returns how many subscribers it reached.
	Publish(ctx context.Context, topic, body string) (int, error)

	Subscribe(ctx context.Context, name, topic string) error

	Unsubscribe(ctx context.Context, name, topic string) error

	// Next removes the oldest message queued for name, waiting up to wait
	// for one to arrive. ok is false when none arrived in time.
	Next(ctx context.Context, name string, wait time.Duration) (body string, ok bool, err error)

	Close() error
}

// NewBackend builds the Broker selected by cfg.Backend.
func NewBackend(cfg Config) (Broker, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(NewRedisClient(cfg.Redis), cfg.Redis), nil
	default:
		return nil, fmt.Errorf("broker: unknown backend %q", cfg.Backend)
	}
}
