package mq

import (
	"errors"
	"fmt"
)

var (
	ErrConnection        = errors.New("mq: connection failed")
	ErrMalformedResponse = errors.New("mq: malformed response")
	ErrMalformedRequest  = errors.New("mq: malformed request")
	ErrCreate            = errors.New("mq: cannot create client")

	ErrShutdown       = errors.New("mq: client is shut down")
	ErrNoMessage      = errors.New("mq: no message")
	ErrReserved       = errors.New("mq: reserved sentinel value")
	ErrInvalidTopic   = errors.New("mq: invalid topic")
	ErrBodyTooLarge   = errors.New("mq: body exceeds size limit")
	ErrAlreadyStarted = errors.New("mq: client already started")
	ErrStillRunning   = errors.New("mq: client still running")
)

// ConnectionError reports a failed dial to the server.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mq: connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// StatusError is returned when a response carries a status other than 200.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mq: unexpected status %d %s", e.Code, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrMalformedResponse
}
