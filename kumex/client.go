package kumex

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"kumex-futures-sdk/auth"
	"kumex-futures-sdk/config"
	"kumex-futures-sdk/internal/logging"
	"kumex-futures-sdk/transport"

	"github.com/rs/zerolog"
)

// Settings configures a Client. All fields are optional.
type Settings struct {
	BaseURI       string          // defaults to the production host
	SkipVerifyTLS bool            // only used when the client builds its own transport
	DebugMode     bool            // installs a DebugObserver on Logger
	Timeout       time.Duration   // used when a call passes no timeout
	Logger        *zerolog.Logger // nil discards SDK logs
}

// DefaultSettings returns production settings with the default timeout
func DefaultSettings() Settings {
	return Settings{
		BaseURI: config.ProductionBaseURI,
		Timeout: config.DefaultTimeout,
	}
}

// Client signs and dispatches REST calls to the futures exchange. It holds no
// per-call state and is safe for concurrent use.
type Client struct {
	baseURI   string
	timeout   time.Duration
	auth      *auth.HeaderProvider
	transport transport.Transport
	observers []Observer
	logger    zerolog.Logger
}

// NewClient creates a client. creds may be nil for public endpoints only; t
// may be nil to use the net/http transport.
func NewClient(settings Settings, creds *auth.Credentials, t transport.Transport, observers ...Observer) (*Client, error) {
	baseURI := strings.TrimRight(strings.TrimSpace(settings.BaseURI), "/")
	if baseURI == "" {
		baseURI = config.ProductionBaseURI
	}
	u, err := url.Parse(baseURI)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &ConfigurationError{Field: "base URI", Err: fmt.Errorf("%q is not an absolute http(s) URL", baseURI)}
	}

	if settings.Timeout < 0 {
		return nil, &ConfigurationError{Field: "timeout", Err: fmt.Errorf("negative timeout %s", settings.Timeout)}
	}
	timeout := settings.Timeout
	if timeout == 0 {
		timeout = config.DefaultTimeout
	}

	if creds != nil {
		if err := creds.Validate(); err != nil {
			return nil, &ConfigurationError{Field: "credentials", Err: err}
		}
	}

	if t == nil {
		t = transport.NewHTTPTransport(settings.SkipVerifyTLS)
	}

	logger := logging.Nop()
	if settings.Logger != nil {
		logger = *settings.Logger
	}

	all := make([]Observer, 0, len(observers)+1)
	if settings.DebugMode {
		all = append(all, NewDebugObserver(logger))
	}
	for _, o := range observers {
		if o != nil {
			all = append(all, o)
		}
	}

	return &Client{
		baseURI:   baseURI,
		timeout:   timeout,
		auth:      auth.NewHeaderProvider(creds),
		transport: t,
		observers: all,
		logger:    logger,
	}, nil
}

// WithClock returns a copy of the client whose signatures use now for the
// timestamp
func (c *Client) WithClock(now func() time.Time) *Client {
	cp := *c
	cp.auth = c.auth.WithClock(now)
	return &cp
}

// BaseURI returns the host every request is sent to
func (c *Client) BaseURI() string { return c.baseURI }

// Authenticated reports whether the client signs its requests
func (c *Client) Authenticated() bool { return c.auth.Enabled() }

// Call builds, signs and dispatches one request. Caller headers are kept
// unless they collide with an auth header, Content-Type or User-Agent. A zero
// timeout uses the client default. A non-2xx status is returned as an
// HTTPError together with the response.
func (c *Client) Call(ctx context.Context, method, uri string, params map[string]interface{}, headers map[string]string, timeout time.Duration) (*transport.Response, error) {
	req, err := NewRequest(method, c.baseURI, uri, params)
	if err != nil {
		return nil, err
	}

	req.SetHeaders(headers)

	authHeaders, err := c.auth.Headers(req.Method(), req.RequestPath(), req.Body())
	if err != nil {
		return nil, &ConfigurationError{Field: "credentials", Err: err}
	}
	req.SetHeaders(authHeaders)

	if req.Body() != "" {
		req.SetHeader("Content-Type", "application/json")
	}
	req.SetHeader("User-Agent", UserAgent)

	wire := req.Build()
	if timeout <= 0 {
		timeout = c.timeout
	}

	id := CorrelationID(ctx)
	if id == "" {
		id = logging.NewCorrelationID()
		ctx = logging.WithCorrelationID(ctx, id)
	}

	for _, o := range c.observers {
		o.BeforeDispatch(ctx, wire)
	}

	start := time.Now()
	resp, err := c.transport.Do(ctx, wire, timeout)
	elapsed := time.Since(start)

	for _, o := range c.observers {
		o.AfterDispatch(ctx, wire, resp, err, elapsed)
	}

	if err != nil {
		te := newTransportError(wire.Method(), wire.URL(), err)
		c.logger.Warn().
			Err(err).
			Str("correlation_id", id).
			Str("method", wire.Method()).
			Str("path", req.RequestPath()).
			Bool("timeout", te.Timeout()).
			Msg("Request failed")
		return nil, te
	}

	if !resp.IsSuccessful() {
		return resp, newHTTPError(resp.StatusCode(), resp.Header(), resp.Body())
	}
	return resp, nil
}

// Do calls the endpoint and decodes the data field of the response envelope
// into out. out may be nil when the caller needs no payload.
func (c *Client) Do(ctx context.Context, method, uri string, params map[string]interface{}, out interface{}) error {
	resp, err := c.Call(ctx, method, uri, params, nil, 0)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

func (c *Client) requireAuth() error {
	if !c.auth.Enabled() {
		return &ConfigurationError{Field: "credentials", Err: ErrAuthRequired}
	}
	return nil
}
