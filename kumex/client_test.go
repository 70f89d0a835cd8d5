package kumex

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"kumex-futures-sdk/auth"
	"kumex-futures-sdk/config"
	"kumex-futures-sdk/transport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedClock = func() time.Time { return time.UnixMilli(1700000000000) }

type captured struct {
	Method     string
	RequestURI string
	Header     http.Header
	Body       string
}

// exchange is a fake REST host that records every request and replies with a
// fixed status and body
type exchange struct {
	mu       sync.Mutex
	requests []captured
	status   int
	body     string
	delay    time.Duration
}

func newExchange(t *testing.T, status int, body string) (*exchange, *httptest.Server) {
	t.Helper()
	ex := &exchange{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		ex.mu.Lock()
		ex.requests = append(ex.requests, captured{
			Method:     r.Method,
			RequestURI: r.RequestURI,
			Header:     r.Header.Clone(),
			Body:       string(raw),
		})
		delay, status, body := ex.delay, ex.status, ex.body
		ex.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return ex, srv
}

func (e *exchange) last(t *testing.T) captured {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.requests)
	return e.requests[len(e.requests)-1]
}

func (e *exchange) all() []captured {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]captured(nil), e.requests...)
}

func (e *exchange) setDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

func testCredentials(t *testing.T, version string) *auth.Credentials {
	t.Helper()
	creds, err := auth.NewCredentials("key", "secret", "passphrase", version)
	require.NoError(t, err)
	return creds
}

func newTestClient(t *testing.T, baseURI string, creds *auth.Credentials, observers ...Observer) *Client {
	t.Helper()
	c, err := NewClient(Settings{BaseURI: baseURI}, creds, nil, observers...)
	require.NoError(t, err)
	return c.WithClock(fixedClock)
}

func TestCallSignsGetRequest(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":{}}`)
	c := newTestClient(t, srv.URL, testCredentials(t, auth.KeyVersionSigned))

	_, err := c.Call(context.Background(), "GET", "/api/v1/position", map[string]interface{}{"symbol": "XBTUSDM"}, nil, 0)
	require.NoError(t, err)

	got := ex.last(t)
	assert.Equal(t, "/api/v1/position?symbol=XBTUSDM", got.RequestURI)
	assert.Equal(t, "key", got.Header.Get(auth.HeaderKey))
	assert.Equal(t, "1700000000000", got.Header.Get(auth.HeaderTimestamp))
	assert.Equal(t, "iF1g4xlPTVTRtuEptv61yeQWpgretrFd9sG4PW41s5k=", got.Header.Get(auth.HeaderSign))
	assert.Equal(t, "sWd5rQWAxDzYJTY6K2sov6seA0l3uNP70anWxITg8IA=", got.Header.Get(auth.HeaderPassphrase))
	assert.Equal(t, "2", got.Header.Get(auth.HeaderKeyVersion))
	assert.Equal(t, UserAgent, got.Header.Get("User-Agent"))
	assert.Empty(t, got.Header.Get("Content-Type"))
	assert.Empty(t, got.Body)
}

func TestCallResignsIdentically(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":[]}`)
	c := newTestClient(t, srv.URL, testCredentials(t, ""))
	params := map[string]interface{}{"symbol": "XBTUSDM", "limit": 10}

	for i := 0; i < 2; i++ {
		_, err := c.Call(context.Background(), "GET", "/api/v1/orders", params, nil, 0)
		require.NoError(t, err)
	}

	requests := ex.all()
	require.Len(t, requests, 2)
	for _, r := range requests {
		assert.Equal(t, "/api/v1/orders?limit=10&symbol=XBTUSDM", r.RequestURI)
		assert.Equal(t, "kMq4+N6XVT9jZcqdEcGPjl79X4cn01V/suwaqpFYpQY=", r.Header.Get(auth.HeaderSign))
	}
}

func TestCallSignsPostBody(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":{"orderId":"1"}}`)
	c := newTestClient(t, srv.URL, testCredentials(t, ""))

	_, err := c.Call(context.Background(), "POST", "/api/v1/orders", map[string]interface{}{
		"symbol": "XBTUSDM", "side": "buy", "size": 1,
	}, nil, 0)
	require.NoError(t, err)

	got := ex.last(t)
	assert.Equal(t, `{"side":"buy","size":1,"symbol":"XBTUSDM"}`, got.Body)
	assert.Equal(t, "/api/v1/orders", got.RequestURI)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "pYnwp6oH6VWzmcogeRXq3Fk+iaHKTDojP5rKMd7CD6g=", got.Header.Get(auth.HeaderSign))
}

func TestCallLegacyKeyVersionSendsPlainPassphrase(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000"}`)
	c := newTestClient(t, srv.URL, testCredentials(t, auth.KeyVersionLegacy))

	_, err := c.Call(context.Background(), "GET", "/api/v1/status", nil, nil, 0)
	require.NoError(t, err)

	got := ex.last(t)
	assert.Equal(t, "passphrase", got.Header.Get(auth.HeaderPassphrase))
	assert.Equal(t, "1", got.Header.Get(auth.HeaderKeyVersion))
}

func TestCallWithoutCredentials(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":1700000000000}`)
	c := newTestClient(t, srv.URL, nil)
	assert.False(t, c.Authenticated())

	resp, err := c.Call(context.Background(), "GET", "/api/v1/timestamp", nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	got := ex.last(t)
	assert.Equal(t, "/api/v1/timestamp", got.RequestURI)
	for name := range got.Header {
		assert.NotContains(t, name, "Kc-Api", "unexpected auth header %s", name)
	}
	assert.Equal(t, UserAgent, got.Header.Get("User-Agent"))
}

func TestCallHeaderPrecedence(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000"}`)
	c := newTestClient(t, srv.URL, testCredentials(t, ""))

	_, err := c.Call(context.Background(), "GET", "/api/v1/status", nil, map[string]string{
		"User-Agent": "custom/1.0",
		"kc-api-key": "spoofed",
		"X-Trace":    "abc",
	}, 0)
	require.NoError(t, err)

	got := ex.last(t)
	assert.Equal(t, UserAgent, got.Header.Get("User-Agent"))
	assert.Equal(t, "key", got.Header.Get(auth.HeaderKey))
	assert.Equal(t, []string{"key"}, got.Header.Values(auth.HeaderKey))
	assert.Equal(t, "abc", got.Header.Get("X-Trace"))
}

func TestCallHTTPError(t *testing.T) {
	_, srv := newExchange(t, http.StatusBadRequest, `{"code":"400100","msg":"Invalid"}`)
	c := newTestClient(t, srv.URL, testCredentials(t, ""))

	resp, err := c.Call(context.Background(), "GET", "/api/v1/position", map[string]interface{}{"symbol": "BAD"}, nil, 0)
	require.Error(t, err)
	require.NotNil(t, resp)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "400100", httpErr.Code)
	assert.Equal(t, "Invalid", httpErr.Message)
	assert.JSONEq(t, `{"code":"400100","msg":"Invalid"}`, string(httpErr.Body))
	assert.False(t, IsTimeout(err))
}

func TestCallHTTPErrorWithPlainBody(t *testing.T) {
	_, srv := newExchange(t, http.StatusBadGateway, `upstream unavailable`)
	c := newTestClient(t, srv.URL, nil)

	_, err := c.Call(context.Background(), "GET", "/api/v1/status", nil, nil, 0)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Empty(t, httpErr.Code)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestCallTimeout(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000"}`)
	ex.setDelay(time.Second)
	c := newTestClient(t, srv.URL, nil)

	start := time.Now()
	_, err := c.Call(context.Background(), "GET", "/api/v1/status", nil, nil, 50*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout())
	assert.True(t, IsTimeout(err))
}

func TestCallConnectionFailure(t *testing.T) {
	_, srv := newExchange(t, http.StatusOK, `{}`)
	base := srv.URL
	srv.Close()

	c := newTestClient(t, base, nil)
	_, err := c.Call(context.Background(), "GET", "/api/v1/status", nil, nil, time.Second)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.False(t, te.Timeout())
	assert.Equal(t, "GET", te.Method)
}

func TestDoDecodesEnvelope(t *testing.T) {
	_, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":{"status":"open","msg":"ok"}}`)
	c := newTestClient(t, srv.URL, nil)

	var status ServiceStatus
	require.NoError(t, c.Do(context.Background(), "GET", "/api/v1/status", nil, &status))
	assert.Equal(t, "open", status.Status)
	assert.Equal(t, "ok", status.Message)
}

func TestDoAPIError(t *testing.T) {
	_, srv := newExchange(t, http.StatusOK, `{"code":"300000","msg":"Order does not exist"}`)
	c := newTestClient(t, srv.URL, nil)

	err := c.Do(context.Background(), "GET", "/api/v1/status", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "300000", apiErr.Code)
	assert.Equal(t, "Order does not exist", apiErr.Message)
}

func TestDoSerializationError(t *testing.T) {
	_, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":`)
	c := newTestClient(t, srv.URL, nil)

	err := c.Do(context.Background(), "GET", "/api/v1/status", nil, nil)
	var serErr *SerializationError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, `{"code":"200000","data":`, string(serErr.Body))

	_, srv = newExchange(t, http.StatusOK, `{"code":"200000","data":"not-an-object"}`)
	c = newTestClient(t, srv.URL, nil)
	var status ServiceStatus
	err = c.Do(context.Background(), "GET", "/api/v1/status", nil, &status)
	assert.True(t, errors.As(err, &serErr))
}

type recordingObserver struct {
	before []string
	after  []string
	status []int
}

func (o *recordingObserver) BeforeDispatch(ctx context.Context, req *transport.Request) {
	o.before = append(o.before, CorrelationID(ctx))
}

func (o *recordingObserver) AfterDispatch(ctx context.Context, req *transport.Request, resp *transport.Response, err error, elapsed time.Duration) {
	o.after = append(o.after, CorrelationID(ctx))
	if resp != nil {
		o.status = append(o.status, resp.StatusCode())
	}
}

func TestObserverSeesCorrelationID(t *testing.T) {
	_, srv := newExchange(t, http.StatusOK, `{"code":"200000"}`)
	obs := &recordingObserver{}
	c := newTestClient(t, srv.URL, nil, obs)

	for i := 0; i < 2; i++ {
		_, err := c.Call(context.Background(), "GET", "/api/v1/status", nil, nil, 0)
		require.NoError(t, err)
	}

	require.Len(t, obs.before, 2)
	require.Len(t, obs.after, 2)
	assert.NotEmpty(t, obs.before[0])
	assert.Equal(t, obs.before, obs.after)
	assert.NotEqual(t, obs.before[0], obs.before[1])
	assert.Equal(t, []int{200, 200}, obs.status)
}

func TestDebugModeLogsRequestAndResponse(t *testing.T) {
	_, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":"pong"}`)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	c, err := NewClient(Settings{BaseURI: srv.URL, DebugMode: true, Logger: &logger}, testCredentials(t, ""), nil)
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "POST", "/api/v1/orders", map[string]interface{}{"symbol": "XBTUSDM"}, nil, 0)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Sent a HTTP request")
	assert.Contains(t, out, "Received a HTTP response")
	assert.Contains(t, out, `"correlation_id"`)
	assert.Contains(t, out, "/api/v1/orders")
	assert.Contains(t, out, `\"symbol\":\"XBTUSDM\"`)
	assert.NotContains(t, out, "sWd5rQWAxDzYJTY6K2sov6seA0l3uNP70anWxITg8IA=")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Settings{BaseURI: "not a url"}, nil, nil)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "base URI", cfgErr.Field)

	_, err = NewClient(Settings{Timeout: -time.Second}, nil, nil)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "timeout", cfgErr.Field)

	c, err := NewClient(Settings{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api-futures.kucoin.com", c.BaseURI())
}

func TestPrivateEndpointRequiresCredentials(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000"}`)
	c := newTestClient(t, srv.URL, nil)

	_, err := c.AccountOverview(context.Background(), "XBT")
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Empty(t, ex.all())
}

func TestNewFromConfig(t *testing.T) {
	ex, srv := newExchange(t, http.StatusOK, `{"code":"200000","data":{"status":"open"}}`)

	cfg := &config.Config{
		APIConfig: config.APIConfig{BaseURI: srv.URL, Transport: config.TransportResty, Timeout: time.Second},
		CredentialsConfig: config.CredentialsConfig{
			APIKey: "key", APISecret: "secret", Passphrase: "passphrase",
		},
		LoggingConfig: config.LoggingConfig{Level: "off", Output: "stderr"},
	}
	c, closer, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer closer.Close()
	assert.True(t, c.Authenticated())

	status, err := c.ServiceStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open", status.Status)
	assert.Equal(t, "key", ex.last(t).Header.Get(auth.HeaderKey))

	cfg.CredentialsConfig.APISecret = ""
	_, _, err = NewFromConfig(context.Background(), cfg)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "credentials", cfgErr.Field)
}
