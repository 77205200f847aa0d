package broker_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miamanabat/Message-Queue/pkg/broker"
	"github.com/miamanabat/Message-Queue/pkg/mq"
)

// startServer runs a Server over b on a loopback port and returns its
// address. The server is stopped when the test ends.
func startServer(t *testing.T, b broker.Broker, cfg broker.Config) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := broker.NewServer(b, cfg)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ln.Addr().String()
}

// exchange sends raw on a fresh connection and decodes the response.
func exchange(t *testing.T, addr, raw string) *mq.Response {
	t.Helper()
	resp, err := roundTrip(addr, raw)
	require.NoError(t, err)
	return resp
}

func roundTrip(addr, raw string) (*mq.Response, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return nil, err
	}

	if _, err := conn.Write([]byte(raw)); err != nil {
		return nil, err
	}
	return mq.DefaultCodec().ReadResponse(bufio.NewReader(conn))
}

func clientConfig(name, addr string) mq.Config {
	host, port, _ := net.SplitHostPort(addr)
	return mq.Config{
		Name:   name,
		Server: mq.ServerConfig{Host: host, Port: port},
		Client: mq.ClientConfig{
			DialTimeoutMs: 1000,
			IOTimeoutMs:   5000,
		},
		Backoff: mq.BackoffConfig{BaseDelayMs: 5, MaxDelayMs: 50},
	}
}

func TestServer_Routes(t *testing.T) {
	addr := startServer(t, broker.NewMemory(), broker.Config{PollTimeoutMs: 50})

	resp := exchange(t, addr, "PUT /subscription/alice/chat HTTP/1.0\r\n\r\n")
	assert.Equal(t, mq.StatusOK, resp.StatusCode)

	resp = exchange(t, addr, "PUT /topic/chat HTTP/1.0\r\nContent-Length: 5\r\n\r\nhello")
	assert.Equal(t, mq.StatusOK, resp.StatusCode)

	resp = exchange(t, addr, "GET /queue/alice HTTP/1.0\r\n\r\n")
	assert.True(t, resp.OK())
	assert.Equal(t, "hello", string(resp.Body))

	resp = exchange(t, addr, "GET /queue/alice HTTP/1.0\r\n\r\n")
	assert.Equal(t, mq.StatusNoContent, resp.StatusCode)

	resp = exchange(t, addr, "DELETE /subscription/alice/chat HTTP/1.0\r\n\r\n")
	assert.Equal(t, mq.StatusOK, resp.StatusCode)
}

func TestServer_RejectsBadRequests(t *testing.T) {
	addr := startServer(t, broker.NewMemory(), broker.Config{PollTimeoutMs: 50})

	cases := map[string]struct {
		raw  string
		code int
	}{
		"unknown route":        {"GET /nope HTTP/1.0\r\n\r\n", mq.StatusNotFound},
		"empty topic":          {"PUT /topic/ HTTP/1.0\r\n\r\n", mq.StatusNotFound},
		"subscription no name": {"PUT /subscription/chat HTTP/1.0\r\n\r\n", mq.StatusNotFound},
		"get topic":            {"GET /topic/chat HTTP/1.0\r\n\r\n", mq.StatusMethodNotAllowed},
		"post subscription":    {"POST /subscription/a/chat HTTP/1.0\r\n\r\n", mq.StatusMethodNotAllowed},
		"put queue":            {"PUT /queue/a HTTP/1.0\r\n\r\n", mq.StatusMethodNotAllowed},
		"garbage":              {"hello\r\n\r\n", mq.StatusBadRequest},
		"short body":           {"PUT /topic/chat HTTP/1.0\r\nContent-Length: 3\r\n\r\n", mq.StatusBadRequest},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			raw := tc.raw
			if name == "short body" {
				// Half-close so the server sees EOF instead of waiting.
				conn, err := net.Dial("tcp", addr)
				require.NoError(t, err)
				defer conn.Close()
				_, err = conn.Write([]byte(raw))
				require.NoError(t, err)
				require.NoError(t, conn.(*net.TCPConn).CloseWrite())

				resp, err := mq.DefaultCodec().ReadResponse(bufio.NewReader(conn))
				require.NoError(t, err)
				assert.Equal(t, tc.code, resp.StatusCode)
				return
			}

			resp := exchange(t, addr, raw)
			assert.Equal(t, tc.code, resp.StatusCode)
		})
	}
}

func TestServer_NegativePollTimeoutAnswersAtOnce(t *testing.T) {
	addr := startServer(t, broker.NewMemory(), broker.Config{PollTimeoutMs: -1})

	start := time.Now()
	resp := exchange(t, addr, "GET /queue/alice HTTP/1.0\r\n\r\n")
	assert.Equal(t, mq.StatusNoContent, resp.StatusCode)
	assert.Less(t, time.Since(start), time.Second)

	exchange(t, addr, "PUT /subscription/alice/chat HTTP/1.0\r\n\r\n")
	exchange(t, addr, "PUT /topic/chat HTTP/1.0\r\nContent-Length: 2\r\n\r\nyo")
	resp = exchange(t, addr, "GET /queue/alice HTTP/1.0\r\n\r\n")
	assert.True(t, resp.OK())
	assert.Equal(t, "yo", string(resp.Body))
}

func TestServer_LongPollReleasedOnShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := broker.NewServer(broker.NewMemory(), broker.Config{PollTimeoutMs: 60000})
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	type result struct {
		resp *mq.Response
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := roundTrip(ln.Addr().String(), "GET /queue/alice HTTP/1.0\r\n\r\n")
		got <- result{resp, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case r := <-got:
		require.NoError(t, r.err)
		assert.Equal(t, mq.StatusNoContent, r.resp.StatusCode)
	case <-time.After(5 * time.Second):
		t.Fatal("long-poll was not released")
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_TwoClientChat(t *testing.T) {
	mem := broker.NewMemory()
	addr := startServer(t, mem, broker.Config{PollTimeoutMs: 200})

	alice, err := mq.New(clientConfig("alice", addr))
	require.NoError(t, err)
	bob, err := mq.New(clientConfig("bob", addr))
	require.NoError(t, err)
	require.NoError(t, alice.Start())
	require.NoError(t, bob.Start())

	require.NoError(t, alice.Subscribe("chat"))
	require.NoError(t, bob.Subscribe("chat"))
	require.Eventually(t, func() bool {
		return len(mem.Subscribers("chat")) == 2 && len(mem.Subscribers(mq.Sentinel)) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Publish("chat", "hi bob"))
	require.NoError(t, bob.Publish("chat", "hi alice"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, c := range []*mq.Client{alice, bob} {
		var got []string
		for i := 0; i < 2; i++ {
			body, err := c.RetrieveContext(ctx)
			require.NoError(t, err)
			got = append(got, body)
		}
		assert.ElementsMatch(t, []string{"hi bob", "hi alice"}, got, c.Name())
	}

	// alice's stop marker is echoed to every subscriber of the shutdown
	// topic, so bob observes it as ErrNoMessage.
	require.NoError(t, alice.Stop(ctx))
	require.NoError(t, alice.Close())

	_, err = bob.RetrieveContext(ctx)
	assert.ErrorIs(t, err, mq.ErrNoMessage)

	require.NoError(t, bob.Stop(ctx))
	require.NoError(t, bob.Close())
}

func TestServer_ClientUnsubscribeStopsDelivery(t *testing.T) {
	mem := broker.NewMemory()
	addr := startServer(t, mem, broker.Config{PollTimeoutMs: 200})

	c, err := mq.New(clientConfig("carol", addr))
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, c.Stop(ctx))
		require.NoError(t, c.Close())
	}()

	require.NoError(t, c.Subscribe("news"))
	require.NoError(t, c.Unsubscribe("news"))
	require.NoError(t, c.Subscribe("sports"))
	require.Eventually(t, func() bool {
		return len(mem.Subscribers("sports")) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, mem.Subscribers("news"))

	require.NoError(t, c.Publish("news", "ignored"))
	require.NoError(t, c.Publish("sports", strings.Repeat("goal ", 3)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	body, err := c.RetrieveContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "goal goal goal ", body)
}
