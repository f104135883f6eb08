package token

import (
	"time"

	sectoken "pulse/cmd/security/token"
)

// Type is the credential kind.
type Type string

const (
	// TypeUser is a short-lived interactive bearer token.
	TypeUser Type = "user"
	// TypeService is a long-lived agent credential.
	TypeService Type = "service"
	// TypeAPI is a service API key.
	TypeAPI Type = "api"
	// TypeRefresh is the rotation credential paired with a user token.
	TypeRefresh Type = "refresh"
)

// Token mirrors an auth_tokens row.
type Token struct {
	ID               string
	TokenID          string // the credential string the client presents
	Type             Type
	UserID           string
	Data             map[string]any
	DeviceInfo       map[string]any
	ExpiresAt        time.Time
	Revoked          bool
	RevocationReason *string
	LastUsedAt       *time.Time

	CreatedAt time.Time
	CreatedBy *string
	UpdatedAt time.Time
	UpdatedBy *string
}

// Valid reports whether the token is unrevoked and unexpired at now.
func (t Token) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Classify derives the credential kind from the token string shape and,
// for unprefixed strings, from its data payload.
func Classify(tokenString string, data map[string]any) Type {
	switch {
	case sectoken.IsRefresh(tokenString):
		return TypeRefresh
	case sectoken.IsAPIKey(tokenString):
		return TypeAPI
	}
	if data != nil {
		if _, ok := data["service_id"]; ok {
			return TypeService
		}
	}
	return TypeUser
}
