package authapi

import (
	"net"
	"net/http"
	"strings"
)

// clientIP extracts the caller address, preferring the first
// X-Forwarded-For hop when a proxy supplied one.
func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rolesToAny(roles []string) []any {
	if len(roles) == 0 {
		return nil
	}
	out := make([]any, len(roles))
	for i, r := range roles {
		out[i] = r
	}
	return out
}
