package mq

// Request is one method/uri/body triple travelling over the wire. It is
// immutable once built.
type Request struct {
	method string
	uri    string
	body   []byte // nil when absent
}

// NewRequest builds a Request without a body.
func NewRequest(method, uri string) *Request {
	return &Request{method: method, uri: uri}
}

// NewRequestWithBody builds a Request carrying body. An empty body is still
// sent with "Content-Length: 0".
func NewRequestWithBody(method, uri, body string) *Request {
	b := []byte(body)
	if b == nil {
		b = []byte{}
	}
	return &Request{method: method, uri: uri, body: b}
}

func (r *Request) Method() string { return r.method }

func (r *Request) URI() string { return r.uri }

// Body returns a copy of the body, or "" when there is none.
func (r *Request) Body() string { return string(r.body) }

func (r *Request) HasBody() bool { return r.body != nil }

// IsSentinel reports whether the body is the shutdown marker.
func (r *Request) IsSentinel() bool {
	return r.body != nil && string(r.body) == Sentinel
}

func (r *Request) String() string {
	return r.method + " " + r.uri
}

// Response is a decoded status line, Content-Length, and body.
type Response struct {
	Proto         string
	StatusCode    int
	Status        string // reason phrase, e.g. "OK"
	ContentLength int64  // -1 when the header was absent
	Body          []byte
}

// OK reports whether the response carries the success token.
func (r *Response) OK() bool {
	return r.StatusCode == StatusOK
}

const (
	StatusOK               = 200
	StatusNoContent        = 204
	StatusBadRequest       = 400
	StatusNotFound         = 404
	StatusMethodNotAllowed = 405
	StatusInternalError    = 500
)

// StatusText returns the reason phrase the broker uses for code.
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusNoContent:
		return "No Content"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusInternalError:
		return "Internal Server Error"
	}
	return "Unknown"
}
