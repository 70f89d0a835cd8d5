package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Transport sends one fully formed request and returns the raw result. The
// timeout bounds the whole exchange; implementations must return an error
// matching context.DeadlineExceeded or a net.Error with Timeout() when it
// expires.
type Transport interface {
	Do(ctx context.Context, req *Request, timeout time.Duration) (*Response, error)
}

// Request is the immutable wire form of an outgoing request
type Request struct {
	method string
	url    string
	header map[string]string
	body   []byte
}

// NewRequest copies header and body so later caller mutation has no effect
func NewRequest(method, url string, header map[string]string, body []byte) *Request {
	h := make(map[string]string, len(header))
	for k, v := range header {
		h[k] = v
	}
	var b []byte
	if len(body) > 0 {
		b = append([]byte(nil), body...)
	}
	return &Request{
		method: strings.ToUpper(method),
		url:    url,
		header: h,
		body:   b,
	}
}

// Method returns the uppercased HTTP method
func (r *Request) Method() string { return r.method }

// URL returns the absolute request URL
func (r *Request) URL() string { return r.url }

// Header returns a single header value
func (r *Request) Header(key string) string { return r.header[key] }

// Headers returns a copy of the header mapping
func (r *Request) Headers() map[string]string {
	h := make(map[string]string, len(r.header))
	for k, v := range r.header {
		h[k] = v
	}
	return h
}

// Body returns a copy of the body bytes, nil when there is no body
func (r *Request) Body() []byte {
	if r.body == nil {
		return nil
	}
	return append([]byte(nil), r.body...)
}

// String renders the request for debug logs
func (r *Request) String() string {
	return fmt.Sprintf("%s %s headers=%s body=%s", r.method, r.url, formatHeaders(r.header), r.body)
}

// Response is an immutable transport result. The structured body is parsed
// on first access and reused afterwards.
type Response struct {
	statusCode int
	header     http.Header
	body       []byte

	once      sync.Once
	parsed    interface{}
	parsedErr error
}

// NewResponse builds a response from raw transport output
func NewResponse(statusCode int, header http.Header, body []byte) *Response {
	return &Response{
		statusCode: statusCode,
		header:     header.Clone(),
		body:       append([]byte(nil), body...),
	}
}

// StatusCode returns the HTTP status code
func (r *Response) StatusCode() int { return r.statusCode }

// Header returns a copy of the response headers
func (r *Response) Header() http.Header { return r.header.Clone() }

// Body returns a copy of the raw body
func (r *Response) Body() []byte { return append([]byte(nil), r.body...) }

// IsSuccessful reports a 2xx status
func (r *Response) IsSuccessful() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// JSON returns the body decoded into generic JSON values. Numbers are kept
// as json.Number so large integers and prices survive.
func (r *Response) JSON() (interface{}, error) {
	r.once.Do(func() {
		dec := json.NewDecoder(strings.NewReader(string(r.body)))
		dec.UseNumber()
		r.parsedErr = dec.Decode(&r.parsed)
	})
	return r.parsed, r.parsedErr
}

// Decode unmarshals the raw body into v
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.body, v)
}

// String renders the response for debug logs
func (r *Response) String() string {
	flat := make(map[string]string, len(r.header))
	for k := range r.header {
		flat[k] = r.header.Get(k)
	}
	return fmt.Sprintf("status=%d headers=%s body=%s", r.statusCode, formatHeaders(flat), r.body)
}

func formatHeaders(h map[string]string) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(h[k])
	}
	b.WriteString("}")
	return b.String()
}
