package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTransport sends requests through net/http
type HTTPTransport struct {
	httpClient *http.Client
}

// NewHTTPTransport creates a transport. skipVerifyTLS disables certificate
// verification and is meant for sandbox proxies only.
func NewHTTPTransport(skipVerifyTLS bool) *HTTPTransport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if skipVerifyTLS {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &HTTPTransport{
		httpClient: &http.Client{Transport: base},
	}
}

// NewHTTPTransportWithClient wraps an existing client
func NewHTTPTransportWithClient(c *http.Client) *HTTPTransport {
	if c == nil {
		c = http.DefaultClient
	}
	return &HTTPTransport{httpClient: c}
}

// Do implements Transport
func (t *HTTPTransport) Do(ctx context.Context, r *Request, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	return NewResponse(resp.StatusCode, resp.Header, respBody), nil
}

var _ Transport = (*HTTPTransport)(nil)
