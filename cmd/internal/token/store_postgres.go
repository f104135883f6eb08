package token

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/identity/ids"
	"pulse/cmd/internal/repo"
)

// PostgresStore implements Store over the auth_tokens table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const tokenColumns = `id, token_id, token_type, user_id, token_data, device_info,
	expires_at, revoked, revocation_reason, last_used_at,
	created_at, created_by, updated_at, updated_by`

// Upsert inserts the token; a token_id conflict refreshes the expiry and
// clears revocation, per the save contract.
func (s *PostgresStore) Upsert(ctx context.Context, t Token) error {
	if t.ID == "" {
		t.ID = ids.NewUUID()
	}
	_, err := repo.Q(ctx, s.pool).Exec(ctx, `
		INSERT INTO auth_tokens (
			id, token_id, token_type, user_id, token_data, device_info,
			expires_at, revoked, revocation_reason, last_used_at,
			created_at, created_by, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NULL, NULL, $8, $9, $8, $9)
		ON CONFLICT (token_id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at,
			revoked = FALSE,
			revocation_reason = NULL,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`, t.ID, t.TokenID, string(t.Type), t.UserID, t.Data, t.DeviceInfo,
		t.ExpiresAt, t.CreatedAt, t.CreatedBy)
	return err
}

// Get loads a token row by its token string.
func (s *PostgresStore) Get(ctx context.Context, tokenString string) (Token, error) {
	var t Token
	var typ string
	err := repo.Q(ctx, s.pool).QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM auth_tokens
		WHERE token_id = $1
	`, tokenString).Scan(
		&t.ID, &t.TokenID, &typ, &t.UserID, &t.Data, &t.DeviceInfo,
		&t.ExpiresAt, &t.Revoked, &t.RevocationReason, &t.LastUsedAt,
		&t.CreatedAt, &t.CreatedBy, &t.UpdatedAt, &t.UpdatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, err
	}
	t.Type = Type(typ)
	return t, nil
}

// TouchLastUsed records a successful validation.
func (s *PostgresStore) TouchLastUsed(ctx context.Context, tokenString string, at time.Time) error {
	_, err := repo.Q(ctx, s.pool).Exec(ctx, `
		UPDATE auth_tokens
		SET last_used_at = $2
		WHERE token_id = $1
	`, tokenString, at)
	return err
}

// Revoke marks one token revoked (idempotent on the reason).
func (s *PostgresStore) Revoke(ctx context.Context, tokenString, reason string, at time.Time) error {
	tag, err := repo.Q(ctx, s.pool).Exec(ctx, `
		UPDATE auth_tokens
		SET revoked = TRUE,
		    revocation_reason = COALESCE(revocation_reason, $2),
		    updated_at = $3
		WHERE token_id = $1
	`, tokenString, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllForUser bulk-revokes a user's unrevoked tokens.
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int64, error) {
	tag, err := repo.Q(ctx, s.pool).Exec(ctx, `
		UPDATE auth_tokens
		SET revoked = TRUE,
		    revocation_reason = COALESCE(revocation_reason, $2),
		    updated_at = $3
		WHERE user_id = $1 AND NOT revoked
	`, userID, reason, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// LoadActive returns every live token for cache seeding at boot.
func (s *PostgresStore) LoadActive(ctx context.Context, now time.Time) ([]Token, error) {
	rows, err := repo.Q(ctx, s.pool).Query(ctx, `
		SELECT `+tokenColumns+`
		FROM auth_tokens
		WHERE NOT revoked AND expires_at > $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		var typ string
		if err := rows.Scan(
			&t.ID, &t.TokenID, &typ, &t.UserID, &t.Data, &t.DeviceInfo,
			&t.ExpiresAt, &t.Revoked, &t.RevocationReason, &t.LastUsedAt,
			&t.CreatedAt, &t.CreatedBy, &t.UpdatedAt, &t.UpdatedBy,
		); err != nil {
			return nil, err
		}
		t.Type = Type(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteExpired removes rows past their expiry and returns the deleted
// token strings.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := repo.Q(ctx, s.pool).Query(ctx, `
		DELETE FROM auth_tokens
		WHERE expires_at < $1
		RETURNING token_id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}
