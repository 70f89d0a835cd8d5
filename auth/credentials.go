package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Key versions accepted by the exchange
const (
	// KeyVersionLegacy keys send the passphrase as given
	KeyVersionLegacy = "1"
	// KeyVersionSigned keys send the passphrase HMAC-signed with the secret
	KeyVersionSigned = "2"
	// DefaultKeyVersion is used when no version is configured
	DefaultKeyVersion = KeyVersionSigned
)

var (
	// ErrMissingKey is returned when credentials have no API key
	ErrMissingKey = errors.New("api key is empty")
	// ErrMissingSecret is returned when credentials have no API secret
	ErrMissingSecret = errors.New("api secret is empty")
	// ErrMissingPassphrase is returned when credentials have no passphrase
	ErrMissingPassphrase = errors.New("api passphrase is empty")
)

// Credentials holds an API key triple. The zero value is not usable, build
// one with NewCredentials.
type Credentials struct {
	key        string
	secret     string
	passphrase string
	version    string
}

// NewCredentials validates and builds an immutable credential set.
// An empty version selects DefaultKeyVersion.
func NewCredentials(key, secret, passphrase, version string) (*Credentials, error) {
	// The key and version are identifiers, a stray newline there breaks every
	// call. Secret and passphrase are signed as given.
	c := &Credentials{
		key:        strings.TrimSpace(key),
		secret:     secret,
		passphrase: passphrase,
		version:    strings.TrimSpace(version),
	}
	if c.version == "" {
		c.version = DefaultKeyVersion
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first missing or invalid field
func (c *Credentials) Validate() error {
	switch {
	case c == nil:
		return ErrMissingKey
	case c.key == "":
		return ErrMissingKey
	case strings.TrimSpace(c.secret) == "":
		return ErrMissingSecret
	case strings.TrimSpace(c.passphrase) == "":
		return ErrMissingPassphrase
	}
	if c.version != KeyVersionLegacy && c.version != KeyVersionSigned {
		return fmt.Errorf("unsupported api key version %q", c.version)
	}
	return nil
}

// Key returns the API key
func (c *Credentials) Key() string { return c.key }

// Secret returns the API secret
func (c *Credentials) Secret() string { return c.secret }

// Passphrase returns the plaintext passphrase
func (c *Credentials) Passphrase() string { return c.passphrase }

// Version returns the API key version
func (c *Credentials) Version() string { return c.version }

// String masks everything except the first characters of the key
func (c *Credentials) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Credentials{key=%s..., version=%s}", mask(c.key), c.version)
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4]
}
