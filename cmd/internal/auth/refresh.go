package auth

import (
	"context"

	"pulse/cmd/internal/token"
)

// RefreshRevocationReason marks refresh tokens consumed by rotation.
const RefreshRevocationReason = "used for refresh"

// RotateRefresh consumes a refresh token and issues a new user/refresh
// pair carrying the same data payload. The presented token is revoked
// first so it can never be replayed.
func (f *Framework) RotateRefresh(ctx context.Context, refreshToken string) (access, refresh token.Token, err error) {
	t, ok := f.tokens.ValidateFull(ctx, refreshToken)
	if !ok || t.Type != token.TypeRefresh {
		return token.Token{}, token.Token{}, ErrUnauthorized
	}

	if err := f.tokens.Revoke(ctx, refreshToken, RefreshRevocationReason); err != nil {
		return token.Token{}, token.Token{}, err
	}

	access, err = f.tokens.Issue(ctx, token.TypeUser, t.UserID, t.Data, t.DeviceInfo, &t.UserID)
	if err != nil {
		return token.Token{}, token.Token{}, err
	}
	refresh, err = f.tokens.Issue(ctx, token.TypeRefresh, t.UserID, t.Data, t.DeviceInfo, &t.UserID)
	if err != nil {
		return token.Token{}, token.Token{}, err
	}

	f.log.Info("auth.refresh.rotated", "user_id", t.UserID)
	return access, refresh, nil
}
