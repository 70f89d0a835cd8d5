package transport

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyTransport sends requests through a resty client. Resty's retry
// support is left disabled.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport creates a resty-backed transport
func NewRestyTransport(skipVerifyTLS bool) *RestyTransport {
	c := resty.New()
	if skipVerifyTLS {
		c.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}
	return &RestyTransport{client: c}
}

// NewRestyTransportWithClient wraps an existing resty client
func NewRestyTransportWithClient(c *resty.Client) *RestyTransport {
	if c == nil {
		c = resty.New()
	}
	return &RestyTransport{client: c}
}

// Do implements Transport
func (t *RestyTransport) Do(ctx context.Context, r *Request, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := t.client.R().
		SetContext(ctx).
		SetHeaders(r.header)
	if len(r.body) > 0 {
		req.SetBody(r.body)
	}

	resp, err := req.Execute(r.method, r.url)
	if err != nil {
		return nil, err
	}

	return NewResponse(resp.StatusCode(), resp.Header(), resp.Body()), nil
}

var _ Transport = (*RestyTransport)(nil)
