package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Sign returns base64(HMAC-SHA256(secret, canonical))
func Sign(secret, canonical string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// SignPassphrase signs the passphrase with the same scheme as Sign. The
// exchange rejects plaintext passphrases for version 2 keys.
func SignPassphrase(secret, passphrase string) (string, error) {
	return Sign(secret, passphrase)
}

// CanonicalString builds the exact byte sequence the exchange reconstructs:
// timestamp + METHOD + request path (with query) + body
func CanonicalString(timestamp, method, requestPath, body string) string {
	var b strings.Builder
	b.Grow(len(timestamp) + len(method) + len(requestPath) + len(body))
	b.WriteString(timestamp)
	b.WriteString(strings.ToUpper(method))
	b.WriteString(requestPath)
	b.WriteString(body)
	return b.String()
}
