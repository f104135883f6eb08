package token

import (
	"context"
	"time"
)

// Store abstracts token persistence. The database is the source of truth;
// the service layers its cache on top.
type Store interface {
	// Upsert inserts the token row; on a token_id conflict it refreshes
	// expires_at and clears any revocation.
	Upsert(ctx context.Context, t Token) error

	// Get loads a token row by its token string.
	Get(ctx context.Context, tokenString string) (Token, error)

	// TouchLastUsed records a successful validation.
	TouchLastUsed(ctx context.Context, tokenString string, at time.Time) error

	// Revoke marks one token revoked with a reason. ErrNotFound when the
	// token string matches no row.
	Revoke(ctx context.Context, tokenString, reason string, at time.Time) error

	// RevokeAllForUser bulk-revokes and returns the affected count.
	RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int64, error)

	// LoadActive returns all unrevoked, unexpired tokens for cache seeding.
	LoadActive(ctx context.Context, now time.Time) ([]Token, error)

	// DeleteExpired removes rows with expires_at < now and returns the
	// deleted token strings so the cache can evict them.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}
