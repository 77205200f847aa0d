package broker

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miamanabat/Message-Queue/pkg/mq"
)

// Server serves the mq wire protocol on top of a Broker.
type Server struct {
	broker Broker
	config Config
	codec  mq.Codec
	logger *slog.Logger

	conns sync.WaitGroup
}

// NewServer creates a Server. cfg is completed with defaults.
func NewServer(b Broker, cfg Config) *Server {
	cfg = cfg.WithDefaults()

	codec := mq.DefaultCodec()
	codec.MaxBodyBytes = cfg.MaxBodyBytes

	return &Server{
		broker: b,
		config: cfg,
		codec:  codec,
		logger: slog.Default(),
	}
}

// SetLogger replaces the default logger.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// waits for open connections to finish. Pending long-polls are released
// through ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		s.logger.Info("broker listening", "addr", ln.Addr().String())
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}

			s.conns.Add(1)
			go func() {
				defer s.conns.Done()
				s.handle(gctx, conn)
			}()
		}
	})

	err := g.Wait()
	s.conns.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// handle serves exactly one request on conn and closes it.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if ms := s.config.ReadTimeoutMs; ms > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(time.Duration(ms) * time.Millisecond))
	}

	req, err := s.codec.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		s.logger.Debug("bad request", "remote", conn.RemoteAddr().String(), "error", err)
		s.respond(conn, "-", mq.StatusBadRequest, nil)
		return
	}

	code, body := s.route(ctx, req)
	s.respond(conn, req.Method(), code, body)
}

func (s *Server) respond(conn net.Conn, method string, code int, body []byte) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	if err := s.codec.WriteResponse(conn, code, body); err != nil {
		s.logger.Debug("write response failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// route dispatches req to the broker and returns the status code and body.
func (s *Server) route(ctx context.Context, req *mq.Request) (int, []byte) {
	uri := req.URI()

	switch {
	case strings.HasPrefix(uri, "/topic/"):
		topic := strings.TrimPrefix(uri, "/topic/")
		if topic == "" {
			return mq.StatusNotFound, nil
		}
		if req.Method() != mq.MethodPut {
			return mq.StatusMethodNotAllowed, nil
		}
		n, err := s.broker.Publish(ctx, topic, req.Body())
		if err != nil {
			s.logger.Error("publish failed", "topic", topic, "error", err)
			return mq.StatusInternalError, nil
		}
		messagesEnqueued.Add(float64(n))
		s.logger.Debug("published", "topic", topic, "subscribers", n)
		return mq.StatusOK, nil

	case strings.HasPrefix(uri, "/subscription/"):
		name, topic, ok := strings.Cut(strings.TrimPrefix(uri, "/subscription/"), "/")
		if !ok || name == "" || topic == "" {
			return mq.StatusNotFound, nil
		}
		var err error
		switch req.Method() {
		case mq.MethodPut:
			err = s.broker.Subscribe(ctx, name, topic)
		case mq.MethodDelete:
			err = s.broker.Unsubscribe(ctx, name, topic)
		default:
			return mq.StatusMethodNotAllowed, nil
		}
		if err != nil {
			s.logger.Error("subscription update failed", "name", name, "topic", topic, "error", err)
			return mq.StatusInternalError, nil
		}
		return mq.StatusOK, nil

	case strings.HasPrefix(uri, "/queue/"):
		name := strings.TrimPrefix(uri, "/queue/")
		if name == "" {
			return mq.StatusNotFound, nil
		}
		if req.Method() != mq.MethodGet {
			return mq.StatusMethodNotAllowed, nil
		}
		body, ok, err := s.broker.Next(ctx, name, s.config.PollWait())
		if err != nil {
			if ctx.Err() != nil {
				return mq.StatusNoContent, nil
			}
			s.logger.Error("poll failed", "name", name, "error", err)
			return mq.StatusInternalError, nil
		}
		if !ok {
			return mq.StatusNoContent, nil
		}
		messagesDelivered.Inc()
		return mq.StatusOK, []byte(body)
	}

	return mq.StatusNotFound, nil
}
