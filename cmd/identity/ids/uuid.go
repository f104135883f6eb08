// Package ids provides identifier primitives used across pulse entities.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// NewUUID returns a new random UUID in canonical dashed form.
func NewUUID() string {
	return uuid.NewString()
}

// Normalize parses s as a UUID, accepting both the 36-char dashed and the
// 32-char compact form, and returns the canonical dashed form.
func Normalize(s string) (string, bool) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// Valid reports whether s parses as a UUID (dashed or compact).
func Valid(s string) bool {
	_, ok := Normalize(s)
	return ok
}
