package mq_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/miamanabat/Message-Queue/pkg/mq"
)

// WaitFor polls condition every 10ms until it returns true or timeout expires.
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("WaitFor timed out after %v", timeout)
}

// fakeServer accepts one request per connection, records it, and answers
// GET /queue/{name} from per-name mailboxes or with 204 when empty.
type fakeServer struct {
	ln    net.Listener
	codec mq.Codec

	mu        sync.Mutex
	raw       []string
	requests  []*mq.Request
	mailboxes map[string][]string
	wg        sync.WaitGroup
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{
		ln:        ln,
		codec:     mq.DefaultCodec(),
		mailboxes: make(map[string][]string),
	}
	s.wg.Add(1)
	go s.serve()

	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *fakeServer) Port() string {
	return strings.TrimPrefix(s.ln.Addr().String(), "127.0.0.1:")
}

// Enqueue makes body the next answer to GET /queue/{name}.
func (s *fakeServer) Enqueue(name, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailboxes[name] = append(s.mailboxes[name], body)
}

// Raw returns the bytes of every non-GET request in arrival order.
func (s *fakeServer) Raw() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.raw...)
}

// Lines returns "METHOD URI BODY" for every non-GET request.
func (s *fakeServer) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, 0, len(s.requests))
	for _, r := range s.requests {
		line := r.Method() + " " + r.URI()
		if r.HasBody() {
			line += " " + r.Body()
		}
		lines = append(lines, line)
	}
	return lines
}

func (s *fakeServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var raw bytes.Buffer
	r, err := s.codec.ReadRequest(bufio.NewReader(io.TeeReader(conn, &raw)))
	if err != nil {
		_ = s.codec.WriteResponse(conn, mq.StatusBadRequest, nil)
		return
	}

	if r.Method() == mq.MethodGet {
		name := strings.TrimPrefix(r.URI(), "/queue/")
		s.mu.Lock()
		box := s.mailboxes[name]
		var body string
		ok := len(box) > 0
		if ok {
			body = box[0]
			s.mailboxes[name] = box[1:]
		}
		s.mu.Unlock()

		if !ok {
			_ = s.codec.WriteResponse(conn, mq.StatusNoContent, nil)
			return
		}
		_ = s.codec.WriteResponse(conn, mq.StatusOK, []byte(body))
		return
	}

	s.mu.Lock()
	s.raw = append(s.raw, raw.String())
	s.requests = append(s.requests, r)
	s.mu.Unlock()

	_ = s.codec.WriteResponse(conn, mq.StatusOK, nil)
}

// testConfig returns a client config pointed at port with fast, deterministic
// backoff.
func testConfig(name, port string) mq.Config {
	return mq.Config{
		Name: name,
		Server: mq.ServerConfig{
			Host: "127.0.0.1",
			Port: port,
		},
		Client: mq.ClientConfig{
			DialTimeoutMs: 1000,
			IOTimeoutMs:   2000,
		},
		Backoff: mq.BackoffConfig{
			BaseDelayMs: 5,
			MaxDelayMs:  20,
		},
	}
}

// unusedPort returns a port with no listener behind it.
func unusedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return strings.TrimPrefix(addr, "127.0.0.1:")
}

// flakyDialer refuses every dial until Heal is called.
type flakyDialer struct {
	healthy  atomic.Bool
	attempts atomic.Int64
	dialer   net.Dialer
}

func (d *flakyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.attempts.Add(1)
	if !d.healthy.Load() {
		return nil, errors.New("connection refused")
	}
	return d.dialer.DialContext(ctx, network, address)
}

func (d *flakyDialer) Heal() {
	d.healthy.Store(true)
}

// stopClient stops and closes c, failing the test on error.
func stopClient(t *testing.T, c *mq.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Close())
}
