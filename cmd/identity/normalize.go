package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Agents report OS account names; trim + lower-case is the whole policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHostname canonicalizes machine hostnames.
func NormalizeHostname(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
