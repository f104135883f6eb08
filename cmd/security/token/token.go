package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	// RefreshPrefix tags refresh-token strings.
	RefreshPrefix = "rt_"
	// APIKeyPrefix tags API-key strings.
	APIKeyPrefix = "apk_"

	nonceBytes = 32
)

// New mints a bare token string: hex(SHA-256(payload || nonce)).
// The payload binds the token material to its claims; the nonce makes
// every mint unique even for identical payloads.
func New(payload []byte) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	h := sha256.New()
	_, _ = h.Write(payload)
	_, _ = h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NewRefresh mints a refresh-token string ("rt_" + 64 hex chars).
func NewRefresh(payload []byte) (string, error) {
	s, err := New(payload)
	if err != nil {
		return "", err
	}
	return RefreshPrefix + s, nil
}

// NewAPIKey mints an API-key string ("apk_" + 64 hex chars).
func NewAPIKey(payload []byte) (string, error) {
	s, err := New(payload)
	if err != nil {
		return "", err
	}
	return APIKeyPrefix + s, nil
}

// IsRefresh reports whether s carries the refresh-token tag.
func IsRefresh(s string) bool { return strings.HasPrefix(s, RefreshPrefix) }

// IsAPIKey reports whether s carries the API-key tag.
func IsAPIKey(s string) bool { return strings.HasPrefix(s, APIKeyPrefix) }

// Equal compares two token strings in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
// Used where a stable 64-char digest of arbitrary material is needed.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
