package broker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Broker backed by Redis.
//
// Keys:
//   - {namespace}:topic:{topic}:subscribers  SET of subscriber names
//   - {namespace}:queue:{name}               LIST of pending bodies, oldest first
type Redis struct {
	client *redis.Client
	config RedisConfig
}

// NewRedisClient creates a go-redis client from cfg, enabling TLS with SNI
// when requested.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	if cfg.UseTLS {
		host, _, err := net.SplitHostPort(cfg.Address)
		if err != nil {
			host = cfg.Address
		}
		opts.TLSConfig = &tls.Config{
			ServerName: host,
		}
	}

	return redis.NewClient(opts)
}

// NewRedis creates a Redis broker on an existing client.
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	return &Redis{
		client: client,
		config: cfg,
	}
}

// Publish appends body to the list of every subscriber of topic.
//
// Redis commands: SMEMBERS {subscribers}; then in one pipeline, per
// subscriber, RPUSH {queue} body [LTRIM {queue} -max_queue_len -1]
func (r *Redis) Publish(ctx context.Context, topic, body string) (int, error) {
	names, err := r.client.SMembers(ctx, SubscribersKey(r.config.Namespace, topic)).Result()
	if err != nil {
		return 0, fmt.Errorf("smembers failed: %w", err)
	}
	if len(names) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	for _, name := range names {
		key := QueueKey(r.config.Namespace, name)
		pipe.RPush(ctx, key, body)
		if r.config.MaxQueueLen > 0 {
			pipe.LTrim(ctx, key, -r.config.MaxQueueLen, -1)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("pipeline failed: %w", err)
	}

	return len(names), nil
}

func (r *Redis) Subscribe(ctx context.Context, name, topic string) error {
	if err := r.client.SAdd(ctx, SubscribersKey(r.config.Namespace, topic), name).Err(); err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	return nil
}

func (r *Redis) Unsubscribe(ctx context.Context, name, topic string) error {
	if err := r.client.SRem(ctx, SubscribersKey(r.config.Namespace, topic), name).Err(); err != nil {
		return fmt.Errorf("srem failed: %w", err)
	}
	return nil
}

// Next pops the oldest body for name.
//
// Redis command: BLPOP {queue} {wait}, or LPOP {queue} when wait is 0
func (r *Redis) Next(ctx context.Context, name string, wait time.Duration) (string, bool, error) {
	key := QueueKey(r.config.Namespace, name)

	if wait <= 0 {
		body, err := r.client.LPop(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("lpop failed: %w", err)
		}
		return body, true, nil
	}

	result, err := r.client.BLPop(ctx, wait, key).Result()
	if errors.Is(err, redis.Nil) {
		// Timeout with nothing queued
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("blpop failed: %w", err)
	}

	// BLPOP replies with [key, value]
	if len(result) != 2 {
		return "", false, fmt.Errorf("blpop: unexpected reply length %d", len(result))
	}
	return result[1], true, nil
}

// Pending returns the number of bodies queued for name.
func (r *Redis) Pending(ctx context.Context, name string) (int64, error) {
	return r.client.LLen(ctx, QueueKey(r.config.Namespace, name)).Result()
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks that Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
