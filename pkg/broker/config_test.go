package broker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamanabat/Message-Queue/pkg/broker"
)

func TestUnit_BrokerConfig_AppliesDefaultsForZeroValues(t *testing.T) {
	resolved := broker.Config{}.WithDefaults()

	assert.Equal(t, ":9540", resolved.Listen)
	assert.Equal(t, broker.BackendMemory, resolved.Backend)
	assert.Equal(t, int64(1000), resolved.PollTimeoutMs)
	assert.Equal(t, int64(5000), resolved.ReadTimeoutMs)
	assert.Equal(t, int64(8192), resolved.MaxBodyBytes)

	assert.Equal(t, "localhost:6379", resolved.Redis.Address)
	assert.Equal(t, 10, resolved.Redis.PoolSize)
	assert.Equal(t, "mq", resolved.Redis.Namespace)
	assert.Zero(t, resolved.Redis.MaxQueueLen)

	assert.NoError(t, resolved.Validate())
}

func TestUnit_BrokerConfig_ValidationRejectsUnknownBackend(t *testing.T) {
	cfg := broker.DefaultConfig()
	cfg.Backend = "kafka"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestUnit_BrokerConfig_ValidationRejectsNegativeValues(t *testing.T) {
	cfg := broker.DefaultConfig()
	cfg.ReadTimeoutMs = -1
	assert.ErrorContains(t, cfg.Validate(), "read_timeout")

	cfg = broker.DefaultConfig()
	cfg.Redis.MaxQueueLen = -5
	assert.ErrorContains(t, cfg.Validate(), "max_queue_len")
}

func TestUnit_BrokerConfig_NegativePollTimeoutMeansNoWait(t *testing.T) {
	cfg := broker.Config{PollTimeoutMs: -1}.WithDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(-1), cfg.PollTimeoutMs)
	assert.Zero(t, cfg.PollWait())

	assert.Equal(t, time.Second, broker.Config{}.WithDefaults().PollWait())
}

func TestUnit_BrokerConfig_RedisRequiresNamespace(t *testing.T) {
	cfg := broker.DefaultConfig()
	cfg.Backend = broker.BackendRedis
	cfg.Redis.Namespace = ""

	assert.ErrorContains(t, cfg.Validate(), "namespace")
}

func TestUnit_BrokerConfig_FromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_USE_TLS", "1")

	cfg := broker.ConfigFromEnv()
	assert.Equal(t, "cache.internal:6380", cfg.Redis.Address)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.True(t, cfg.Redis.UseTLS)
}

func TestUnit_BrokerConfig_NewBackend(t *testing.T) {
	b, err := broker.NewBackend(broker.DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &broker.Memory{}, b)
	require.NoError(t, b.Close())

	cfg := broker.DefaultConfig()
	cfg.Backend = "nope"
	_, err = broker.NewBackend(cfg)
	assert.Error(t, err)
}
