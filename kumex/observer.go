package kumex

import (
	"context"
	"time"

	"kumex-futures-sdk/auth"
	"kumex-futures-sdk/internal/logging"
	"kumex-futures-sdk/transport"

	"github.com/rs/zerolog"
)

// Observer is notified around every dispatch. Both hooks run synchronously on
// the calling goroutine; ctx carries the call's correlation id.
type Observer interface {
	BeforeDispatch(ctx context.Context, req *transport.Request)
	AfterDispatch(ctx context.Context, req *transport.Request, resp *transport.Response, err error, elapsed time.Duration)
}

// CorrelationID returns the id the client assigned to the call carried by ctx
func CorrelationID(ctx context.Context) string {
	return logging.CorrelationID(ctx)
}

// DebugObserver logs every request and its outcome at debug level
type DebugObserver struct {
	logger zerolog.Logger
}

// NewDebugObserver creates an observer writing to logger
func NewDebugObserver(logger zerolog.Logger) *DebugObserver {
	return &DebugObserver{logger: logger}
}

// BeforeDispatch logs the outgoing request
func (o *DebugObserver) BeforeDispatch(ctx context.Context, req *transport.Request) {
	o.logger.Debug().
		Str("correlation_id", CorrelationID(ctx)).
		Str("method", req.Method()).
		Str("url", req.URL()).
		Interface("headers", redact(req.Headers())).
		Str("body", string(req.Body())).
		Msg("Sent a HTTP request")
}

// AfterDispatch logs the response, or the error when none arrived
func (o *DebugObserver) AfterDispatch(ctx context.Context, req *transport.Request, resp *transport.Response, err error, elapsed time.Duration) {
	if err != nil {
		o.logger.Debug().
			Err(err).
			Str("correlation_id", CorrelationID(ctx)).
			Str("method", req.Method()).
			Str("url", req.URL()).
			Dur("elapsed", elapsed).
			Msg("HTTP request failed")
		return
	}

	o.logger.Debug().
		Str("correlation_id", CorrelationID(ctx)).
		Int("status", resp.StatusCode()).
		Interface("headers", resp.Header()).
		Str("body", string(resp.Body())).
		Dur("elapsed", elapsed).
		Msg("Received a HTTP response")
}

func redact(headers map[string]string) map[string]string {
	if v, ok := headers[auth.HeaderPassphrase]; ok && v != "" {
		headers[auth.HeaderPassphrase] = "****"
	}
	return headers
}
