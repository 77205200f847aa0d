package mq

import (
	"bufio"
	"errors"
	"fmt"
)

// puller polls the server for this client's queued messages and pushes each
// one onto the incoming queue. Shutdown is checked at the top of every
// iteration; an exchange in progress always completes.
func (c *Client) puller() {
	retry := retryState{cfg: c.config.Backoff}
	uri := QueueURI(c.name)

	for !c.shutdown.Load() {
		body, err := c.poll(uri)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Code == StatusNoContent {
				// Empty long-poll: pace at the base delay without growing it.
				retry.reset()
				c.wait(ComputeDelay(1, c.config.Backoff))
				continue
			}

			if errors.Is(err, ErrConnection) {
				c.logger.Warn("poll failed", "error", err)
			} else {
				badResponses.Inc()
				c.logger.Debug("poll rejected", "error", err)
			}
			c.wait(retry.next())
			continue
		}

		retry.reset()
		c.incoming.Push(NewRequestWithBody(MethodGet, uri, body))
		messagesReceived.Inc()
	}
}

// poll performs one GET exchange and returns the message body.
func (c *Client) poll(uri string) (string, error) {
	conn, err := c.dial(workerPuller)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := c.codec.WriteRequest(conn, NewRequest(MethodGet, uri)); err != nil {
		return "", fmt.Errorf("write request: %w", err)
	}

	resp, err := c.codec.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	return string(resp.Body), nil
}
