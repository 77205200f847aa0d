package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamanabat/Message-Queue/pkg/mq"
)

func newIdleClient(t *testing.T) *mq.Client {
	t.Helper()
	cfg := mq.DefaultConfig()
	cfg.Name = "tester"

	client, err := mq.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Stop(context.Background())
		_ = client.Close()
	})
	return client
}

func TestChatCommand(t *testing.T) {
	client := newIdleClient(t)
	topic := "chat"

	quit, err := chatCommand(client, &topic, "   ")
	assert.NoError(t, err)
	assert.False(t, quit)

	quit, err = chatCommand(client, &topic, "topic news")
	assert.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, "news", topic)

	_, err = chatCommand(client, &topic, "topic")
	assert.Error(t, err)
	assert.Equal(t, "news", topic)

	_, err = chatCommand(client, &topic, "hello world")
	assert.NoError(t, err)

	_, err = chatCommand(client, &topic, "subscribe sports")
	assert.NoError(t, err)

	_, err = chatCommand(client, &topic, "unsubscribe "+mq.Sentinel)
	assert.ErrorIs(t, err, mq.ErrReserved)

	_, err = chatCommand(client, &topic, "subscribe")
	assert.ErrorIs(t, err, mq.ErrInvalidTopic)

	for _, line := range []string{"quit", "exit"} {
		quit, err = chatCommand(client, &topic, line)
		assert.NoError(t, err)
		assert.True(t, quit)
	}
}

func TestChatCommandAfterStop(t *testing.T) {
	client := newIdleClient(t)
	require.NoError(t, client.Stop(context.Background()))

	topic := "chat"
	_, err := chatCommand(client, &topic, "too late")
	assert.ErrorIs(t, err, mq.ErrShutdown)
}

func TestReadLines(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	var got []string
	for line := range readLines(done, strings.NewReader("one\ntwo\r\nthree")) {
		got = append(got, line)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestReadLinesStopsWhenDone(t *testing.T) {
	const total = 1000
	done := make(chan struct{})
	lines := readLines(done, strings.NewReader(strings.Repeat("line\n", total)))

	// Nobody is receiving yet, so the reader is parked on its first send.
	close(done)

	received := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				assert.Less(t, received, total, "reader kept sending after done")
				return
			}
			received++
		case <-timeout:
			t.Fatal("reader did not exit after done was closed")
		}
	}
}
