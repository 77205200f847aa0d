package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/miamanabat/Message-Queue/pkg/mq"
)

// Memory is an in-process Broker. Each subscriber gets an mq.Queue, so a
// long-poll parks on the same blocking queue the client uses.
type Memory struct {
	mu          sync.Mutex
	subscribers map[string]map[string]struct{} // topic -> names
	queues      map[string]*mq.Queue[string]   // name -> pending bodies
}

// NewMemory creates an empty in-memory broker.
func NewMemory() *Memory {
	return &Memory{
		subscribers: make(map[string]map[string]struct{}),
		queues:      make(map[string]*mq.Queue[string]),
	}
}

func (m *Memory) Publish(_ context.Context, topic, body string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := m.subscribers[topic]
	for name := range names {
		m.queueLocked(name).Push(body)
	}
	return len(names), nil
}

func (m *Memory) Subscribe(_ context.Context, name, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, ok := m.subscribers[topic]
	if !ok {
		names = make(map[string]struct{})
		m.subscribers[topic] = names
	}
	names[name] = struct{}{}
	m.queueLocked(name)
	return nil
}

func (m *Memory) Unsubscribe(_ context.Context, name, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := m.subscribers[topic]
	delete(names, name)
	if len(names) == 0 {
		delete(m.subscribers, topic)
	}
	return nil
}

// Next waits on the queue of name. Queues are created by Subscribe only; a
// poll for any other name waits out its timeout.
func (m *Memory) Next(ctx context.Context, name string, wait time.Duration) (string, bool, error) {
	m.mu.Lock()
	q, ok := m.queues[name]
	m.mu.Unlock()

	if !ok {
		return "", false, sleepContext(ctx, wait)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	body, err := q.PopContext(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, nil
	}
	return body, true, nil
}

// Pending returns the number of messages queued for name.
func (m *Memory) Pending(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[name]; ok {
		return q.Len()
	}
	return 0
}

// Subscribers returns the names subscribed to topic, sorted.
func (m *Memory) Subscribers(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.subscribers[topic]))
	for name := range m.subscribers[topic] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Memory) Close() error {
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) queueLocked(name string) *mq.Queue[string] {
	q, ok := m.queues[name]
	if !ok {
		q = mq.NewQueue[string]()
		m.queues[name] = q
	}
	return q
}
