package auth

import (
	"strconv"
	"time"
)

// Authentication header names
const (
	HeaderKey        = "KC-API-KEY"
	HeaderSign       = "KC-API-SIGN"
	HeaderTimestamp  = "KC-API-TIMESTAMP"
	HeaderPassphrase = "KC-API-PASSPHRASE"
	HeaderKeyVersion = "KC-API-KEY-VERSION"
)

// HeaderProvider produces the signed header set for one request
type HeaderProvider struct {
	creds *Credentials
	now   func() time.Time
}

// NewHeaderProvider creates a provider for the given credentials. A nil
// credential set yields a provider that returns no headers.
func NewHeaderProvider(creds *Credentials) *HeaderProvider {
	return &HeaderProvider{
		creds: creds,
		now:   time.Now,
	}
}

// WithClock returns a copy of the provider reading time from now
func (p *HeaderProvider) WithClock(now func() time.Time) *HeaderProvider {
	return &HeaderProvider{
		creds: p.creds,
		now:   now,
	}
}

// Enabled reports whether the provider holds credentials
func (p *HeaderProvider) Enabled() bool {
	return p != nil && p.creds != nil
}

// Credentials returns the credentials backing the provider
func (p *HeaderProvider) Credentials() *Credentials {
	if p == nil {
		return nil
	}
	return p.creds
}

// Headers captures the current timestamp and signs method, request path and
// body with it. requestPath must already include the query string for
// GET/DELETE requests, body must be the exact bytes that will be sent.
func (p *HeaderProvider) Headers(method, requestPath, body string) (map[string]string, error) {
	if !p.Enabled() {
		return nil, nil
	}
	timestamp := strconv.FormatInt(p.now().UnixMilli(), 10)
	return p.HeadersAt(timestamp, method, requestPath, body)
}

// HeadersAt signs with an explicit timestamp in milliseconds
func (p *HeaderProvider) HeadersAt(timestamp, method, requestPath, body string) (map[string]string, error) {
	if !p.Enabled() {
		return nil, nil
	}
	if err := p.creds.Validate(); err != nil {
		return nil, err
	}

	sign, err := Sign(p.creds.secret, CanonicalString(timestamp, method, requestPath, body))
	if err != nil {
		return nil, err
	}

	passphrase := p.creds.passphrase
	if p.creds.version != KeyVersionLegacy {
		passphrase, err = SignPassphrase(p.creds.secret, p.creds.passphrase)
		if err != nil {
			return nil, err
		}
	}

	return map[string]string{
		HeaderKey:        p.creds.key,
		HeaderSign:       sign,
		HeaderTimestamp:  timestamp,
		HeaderPassphrase: passphrase,
		HeaderKeyVersion: p.creds.version,
	}, nil
}
