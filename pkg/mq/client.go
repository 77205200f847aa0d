package mq

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dialer opens the duplex connection used for a single request/response
// exchange. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithDialer replaces the default TCP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the logger used by the client and its workers.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client publishes, subscribes, and retrieves messages for one subscriber
// identity. Outgoing requests are transmitted by a pusher goroutine and
// incoming messages are collected by a puller goroutine.
type Client struct {
	name   string
	config Config
	codec  Codec
	dialer Dialer
	logger *slog.Logger

	outgoing *Queue[*Request]
	incoming *Queue[*Request]

	// Lifecycle. mu orders public enqueues against Stop so that nothing but
	// the stop marker is enqueued once shutdown is set.
	mu       sync.Mutex
	shutdown atomic.Bool
	started  bool
	closed   bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a client with empty queues. The config is completed with
// defaults and validated; on failure no client is returned and the error
// wraps ErrCreate.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreate, err)
	}

	name := cfg.Name
	if name == "" {
		name = generateClientName("mq")
	}
	cfg.Name = name

	c := &Client{
		name:     name,
		config:   cfg,
		codec:    cfg.Codec(),
		dialer:   &net.Dialer{Timeout: time.Duration(cfg.Client.DialTimeoutMs) * time.Millisecond},
		logger:   slog.Default(),
		outgoing: NewQueue[*Request](),
		incoming: NewQueue[*Request](),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("client", name)

	return c, nil
}

// Name returns the subscriber identity.
func (c *Client) Name() string {
	return c.name
}

// Publish queues body for delivery to topic. It does not wait for the
// server.
func (c *Client) Publish(topic, body string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if body == Sentinel {
		return fmt.Errorf("%w: body %q", ErrReserved, body)
	}
	if err := c.codec.checkBodySize(int64(len(body))); err != nil {
		return err
	}
	return c.enqueue(NewRequestWithBody(MethodPut, TopicURI(topic), body))
}

// Subscribe queues a subscription of this client to topic.
func (c *Client) Subscribe(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	return c.enqueue(NewRequest(MethodPut, SubscriptionURI(c.name, topic)))
}

// Unsubscribe queues removal of this client's subscription to topic.
func (c *Client) Unsubscribe(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	return c.enqueue(NewRequest(MethodDelete, SubscriptionURI(c.name, topic)))
}

// Retrieve blocks until a message arrives and returns its body. The
// shutdown marker is reported as ErrNoMessage.
func (c *Client) Retrieve() (string, error) {
	return c.RetrieveContext(context.Background())
}

// RetrieveContext is like Retrieve but returns ctx.Err() if ctx ends first.
func (c *Client) RetrieveContext(ctx context.Context) (string, error) {
	r, err := c.incoming.PopContext(ctx)
	if err != nil {
		return "", err
	}
	if r.IsSentinel() {
		return "", ErrNoMessage
	}
	return r.Body(), nil
}

// Start launches the pusher and puller, then subscribes to the shutdown
// topic so the server's echo of the stop marker reaches Retrieve.
func (c *Client) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.shutdown.Load() {
		c.mu.Unlock()
		return ErrShutdown
	}
	c.started = true

	var g errgroup.Group
	g.Go(func() error {
		c.pusher()
		return nil
	})
	g.Go(func() error {
		c.puller()
		return nil
	})
	go func() {
		defer close(c.doneCh)
		_ = g.Wait()
		c.logger.Debug("workers stopped")
	}()

	c.outgoing.Push(NewRequest(MethodPut, SubscriptionURI(c.name, Sentinel)))
	c.mu.Unlock()

	c.logger.Info("client started", "server", c.config.Address())
	return nil
}

// Stop sets the shutdown flag, publishes the stop marker, and waits for
// both workers to finish their current iteration and exit.
//
// The pusher transmits every request queued before Stop, then the marker.
// With no timeouts configured a peer that never answers stalls Stop; ctx
// bounds the wait, in which case ctx.Err() is returned and the workers are
// left to finish on their own.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.shutdown.Load() {
		// The flag is set before the marker is queued: a pusher that takes
		// the marker must already see shutdown, or it parks in Pop forever.
		c.shutdown.Store(true)
		if c.started {
			c.outgoing.Push(newStopMarker())
		}
		close(c.stopCh)
	}
	started := c.started
	c.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases both queues and any requests still in them. It must follow
// a completed Stop.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if !c.shutdown.Load() {
		return ErrStillRunning
	}
	if c.started {
		select {
		case <-c.doneCh:
		default:
			return ErrStillRunning
		}
	}

	outgoing := c.outgoing.Drain()
	incoming := c.incoming.Drain()
	c.closed = true

	if len(outgoing)+len(incoming) > 0 {
		c.logger.Info("released queued requests",
			"outgoing", len(outgoing),
			"incoming", len(incoming))
	}
	return nil
}

// IsShutdown reports whether Stop has been called.
func (c *Client) IsShutdown() bool {
	return c.shutdown.Load()
}

func (c *Client) enqueue(r *Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown.Load() {
		return ErrShutdown
	}
	c.outgoing.Push(r)
	return nil
}

// wait sleeps for d or until Stop is called, whichever comes first.
func (c *Client) wait(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-c.stopCh:
	}
}

// dial opens a fresh connection to the server and applies the I/O deadline.
func (c *Client) dial(worker string) (net.Conn, error) {
	addr := c.config.Address()
	conn, err := c.dialer.DialContext(context.Background(), "tcp", addr)
	if err != nil {
		dialFailures.WithLabelValues(worker).Inc()
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	if ms := c.config.Client.IOTimeoutMs; ms > 0 {
		if err := conn.SetDeadline(time.Now().Add(time.Duration(ms) * time.Millisecond)); err != nil {
			conn.Close()
			return nil, &ConnectionError{Addr: addr, Err: err}
		}
	}
	return conn, nil
}

func newStopMarker() *Request {
	return NewRequestWithBody(MethodPut, TopicURI(Sentinel), Sentinel)
}

func isStopMarker(r *Request) bool {
	return r.IsSentinel() && r.method == MethodPut && r.uri == TopicURI(Sentinel)
}

// validateTopic rejects names that would break the request line and the
// reserved shutdown topic.
func validateTopic(topic string) error {
	if topic == "" || strings.IndexFunc(topic, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if topic == Sentinel {
		return fmt.Errorf("%w: topic %q", ErrReserved, topic)
	}
	return nil
}

// generateClientName creates a unique client name.
// Format: {prefix}-{hostname}-{pid}-{short_uuid}
func generateClientName(prefix string) string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}

	pid := os.Getpid()
	shortUUID := uuid.New().String()[:8]

	return fmt.Sprintf("%s-%s-%d-%s", prefix, hostname, pid, shortUUID)
}
