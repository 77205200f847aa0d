package mq

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// ProtocolVersion is the version tag sent on every request line.
	ProtocolVersion = "HTTP/1.0"

	// DefaultMaxBodyBytes is the largest body a line-oriented peer with a
	// fixed read buffer accepts.
	DefaultMaxBodyBytes = 8192

	maxLineBytes = 64 * 1024
)

// Codec encodes requests and decodes requests and responses in the text wire
// format:
//
//	METHOD URI VERSION\r\n
//	[Content-Length: N\r\n]
//	\r\n
//	[body]
type Codec struct {
	Version      string // default: ProtocolVersion
	MaxBodyBytes int64  // 0 disables the limit
	LineBody     bool   // read response bodies as a single line instead of Content-Length bytes
}

// DefaultCodec returns a Codec with the protocol defaults.
func DefaultCodec() Codec {
	return Codec{
		Version:      ProtocolVersion,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (c Codec) version() string {
	if c.Version == "" {
		return ProtocolVersion
	}
	return c.Version
}

// Encode renders r in wire format.
func (c Codec) Encode(r *Request) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %s\r\n", r.method, r.uri, c.version())
	if r.body != nil {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(r.body))
		buf.Write(r.body)
	} else {
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// WriteRequest encodes r onto w.
func (c Codec) WriteRequest(w io.Writer, r *Request) error {
	if err := c.checkBodySize(int64(len(r.body))); err != nil {
		return err
	}
	_, err := w.Write(c.Encode(r))
	return err
}

// WriteResponse writes a status line and, when body is non-nil, a
// Content-Length header followed by the body.
func (c Codec) WriteResponse(w io.Writer, code int, body []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s\r\n", c.version(), code, StatusText(code))
	if body != nil {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(body))
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadResponse decodes one response. A non-200 status is not an error here;
// callers check Response.OK.
func (c Codec) ReadResponse(br *bufio.Reader) (*Response, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, malformedResponse("status line: %v", err)
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, malformedResponse("status line %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, malformedResponse("status code %q", parts[1])
	}

	resp := &Response{
		Proto:         parts[0],
		StatusCode:    code,
		ContentLength: -1,
	}
	if len(parts) == 3 {
		resp.Status = parts[2]
	}

	resp.ContentLength, err = c.readHeaders(br)
	if err != nil {
		return nil, malformedResponse("%v", err)
	}

	resp.Body, err = c.readResponseBody(br, resp.ContentLength)
	if err != nil {
		return nil, malformedResponse("%v", err)
	}

	return resp, nil
}

// ReadRequest decodes one request. Without a Content-Length header the
// request has no body.
func (c Codec) ReadRequest(br *bufio.Reader) (*Request, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("%w: request line: %v", ErrMalformedRequest, err)
	}

	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, line)
	}

	length, err := c.readHeaders(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	r := &Request{method: fields[0], uri: fields[1]}
	if length < 0 {
		return r, nil
	}

	if err := c.checkBodySize(length); err != nil {
		return nil, err
	}
	r.body = make([]byte, length)
	if _, err := io.ReadFull(br, r.body); err != nil {
		return nil, fmt.Errorf("%w: short body: %v", ErrMalformedRequest, err)
	}
	return r, nil
}

// readHeaders consumes header lines up to the blank line and returns the
// Content-Length, or -1 when absent. Other headers are ignored.
func (c Codec) readHeaders(br *bufio.Reader) (int64, error) {
	length := int64(-1)
	for {
		line, err := readLine(br)
		if err != nil {
			return 0, fmt.Errorf("missing header block: %v", err)
		}
		if line == "" {
			return length, nil
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad Content-Length %q", value)
		}
		length = n
	}
}

func (c Codec) readResponseBody(br *bufio.Reader, length int64) ([]byte, error) {
	if c.LineBody {
		line, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if err := c.checkBodySize(int64(len(line))); err != nil {
			return nil, err
		}
		return []byte(line), nil
	}

	if length >= 0 {
		if err := c.checkBodySize(length); err != nil {
			return nil, err
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, fmt.Errorf("short body: %v", err)
		}
		return body, nil
	}

	// No Content-Length: the body runs to EOF.
	src := io.Reader(br)
	if c.MaxBodyBytes > 0 {
		src = io.LimitReader(br, c.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if err := c.checkBodySize(int64(len(body))); err != nil {
		return nil, err
	}
	return body, nil
}

func (c Codec) checkBodySize(n int64) error {
	if c.MaxBodyBytes > 0 && n > c.MaxBodyBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrBodyTooLarge, n, c.MaxBodyBytes)
	}
	return nil
}

// readLine returns the next line without its "\n" or "\r\n" terminator. A
// final unterminated line is returned together with io.EOF; an empty stream
// yields io.EOF alone.
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if len(line)+len(chunk) > maxLineBytes {
			return "", errors.New("line too long")
		}
		line = append(line, chunk...)

		switch {
		case err == nil:
			return strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return strings.TrimSuffix(string(line), "\r"), io.EOF
		default:
			return "", err
		}
	}
}

func malformedResponse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
