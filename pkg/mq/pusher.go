package mq

import (
	"fmt"
	"io"
)

// pusher drains the outgoing queue, transmitting each request on its own
// connection.
//
// It checks for shutdown only at the top of an iteration, and exits once
// shutdown is set and the stop marker has been taken off the queue. Stop sets
// the flag and enqueues the marker under c.mu, and nothing is enqueued after
// it, so the blocking Pop always has something to return and the flag is
// visible once the marker has been popped.
func (c *Client) pusher() {
	retry := retryState{cfg: c.config.Backoff}
	var pending *Request
	markerSeen := false

	for !(markerSeen && c.shutdown.Load()) {
		r := pending
		pending = nil
		if r == nil {
			r = c.outgoing.Pop()
		}
		if isStopMarker(r) {
			markerSeen = true
		}

		if err := c.send(r); err != nil {
			c.logger.Warn("send failed", "request", r.String(), "error", err)
			if c.config.Client.RetryFailedSends && !c.shutdown.Load() {
				pending = r
			} else {
				requestsDropped.Inc()
			}
			c.wait(retry.next())
			continue
		}

		retry.reset()
		requestsSent.WithLabelValues(r.Method()).Inc()
	}
}

// send performs one exchange: connect, write r, read and discard the whole
// response, close.
func (c *Client) send(r *Request) error {
	conn, err := c.dial(workerPusher)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := c.codec.WriteRequest(conn, r); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	n, err := io.Copy(io.Discard, conn)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("request sent", "request", r.String(), "response_bytes", n)
	return nil
}
