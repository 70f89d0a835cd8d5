package kumex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrAuthRequired is wrapped by a ConfigurationError when a private endpoint
// is called on a client without credentials
var ErrAuthRequired = errors.New("endpoint requires credentials")

// ConfigurationError reports invalid or missing settings, detected before
// anything is sent
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("kumex: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError reports a request that never produced an HTTP response:
// connection, DNS or TLS failure, or the timeout expiring
type TransportError struct {
	Method string
	URL    string
	Err    error

	timeout bool
}

func newTransportError(method, url string, err error) *TransportError {
	return &TransportError{
		Method:  method,
		URL:     url,
		Err:     err,
		timeout: isTimeoutCause(err),
	}
}

func (e *TransportError) Error() string {
	if e.timeout {
		return fmt.Sprintf("kumex: %s %s timed out: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("kumex: %s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call's deadline expired
func (e *TransportError) Timeout() bool { return e.timeout }

// HTTPError reports a non-2xx status. Code and Message hold the exchange's
// error payload when the body could be parsed.
type HTTPError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Code       string
	Message    string
}

func newHTTPError(statusCode int, header http.Header, body []byte) *HTTPError {
	e := &HTTPError{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
	}
	e.Code, e.Message = parseErrorBody(body)
	return e
}

func (e *HTTPError) Error() string {
	if e.Code != "" || e.Message != "" {
		return fmt.Sprintf("kumex: server responded with a %d status code (code: %s, message: %s)", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("kumex: server responded with a %d status code: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// SerializationError reports a response body that could not be decoded
type SerializationError struct {
	Body []byte
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("kumex: error parsing response: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// APIError is a business error returned inside a 2xx envelope
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kumex: the endpoint returned an API error (code: %s, message: %s)", e.Code, e.Message)
}

// IsTimeout reports whether err is a timed out call
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}

func isTimeoutCause(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseErrorBody extracts code and msg from {"code":"400100","msg":"..."}.
// Codes are strings on this exchange but numbers are tolerated.
func parseErrorBody(body []byte) (string, string) {
	var payload struct {
		Code json.RawMessage `json:"code"`
		Msg  string          `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	return strings.Trim(string(payload.Code), `"`), payload.Msg
}
