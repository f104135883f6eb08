package token

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store used by tests and by other packages'
// tests that need a working token Service without Postgres.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Token
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Token)}
}

func (m *MemoryStore) Upsert(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[t.TokenID]; ok {
		existing.ExpiresAt = t.ExpiresAt
		existing.Revoked = false
		existing.RevocationReason = nil
		existing.UpdatedAt = t.UpdatedAt
		existing.UpdatedBy = t.UpdatedBy
		m.rows[t.TokenID] = existing
		return nil
	}
	m.rows[t.TokenID] = t
	return nil
}

func (m *MemoryStore) Get(_ context.Context, tokenString string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[tokenString]
	if !ok {
		return Token{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) TouchLastUsed(_ context.Context, tokenString string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[tokenString]; ok {
		t.LastUsedAt = &at
		m.rows[tokenString] = t
	}
	return nil
}

func (m *MemoryStore) Revoke(_ context.Context, tokenString, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[tokenString]
	if !ok {
		return ErrNotFound
	}
	t.Revoked = true
	if t.RevocationReason == nil {
		t.RevocationReason = &reason
	}
	t.UpdatedAt = at
	m.rows[tokenString] = t
	return nil
}

func (m *MemoryStore) RevokeAllForUser(_ context.Context, userID, reason string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.rows {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevocationReason = &reason
			t.UpdatedAt = at
			m.rows[k] = t
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) LoadActive(_ context.Context, now time.Time) ([]Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Token
	for _, t := range m.rows {
		if t.Valid(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []string
	for k, t := range m.rows {
		if t.ExpiresAt.Before(now) {
			delete(m.rows, k)
			deleted = append(deleted, k)
		}
	}
	return deleted, nil
}
