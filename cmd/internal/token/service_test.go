package token

import (
	"context"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc := NewService(DefaultConfig(), nil, store)
	t.Cleanup(svc.Close)
	return svc, store
}

func TestIssueValidateRevoke_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, TypeUser, "u1", map[string]any{"roles": []any{"admin"}}, nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(tok.TokenID) != 64 {
		t.Fatalf("user token should be bare 64 hex chars, got %q", tok.TokenID)
	}

	ok, data := svc.Validate(ctx, tok.TokenID)
	if !ok {
		t.Fatalf("freshly issued token should validate")
	}
	if data == nil {
		t.Fatalf("expected token data back")
	}

	if err := svc.Revoke(ctx, tok.TokenID, "logout"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, _ := svc.Validate(ctx, tok.TokenID); ok {
		t.Fatalf("revoked token must not validate")
	}
}

func TestValidate_ExpiredEvictsFromCache(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, TypeUser, "u1", nil, nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Move the clock past the expiry.
	svc.now = func() time.Time { return tok.ExpiresAt.Add(time.Second) }

	if ok, _ := svc.Validate(ctx, tok.TokenID); ok {
		t.Fatalf("expired token must not validate")
	}
	if svc.CacheSize() != 0 {
		t.Fatalf("expired token should be evicted, cache size %d", svc.CacheSize())
	}
}

func TestValidate_CacheMissRefreshesFromStore(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Row exists in the store but not in the cache (e.g., issued before a
	// restart).
	err := store.Upsert(ctx, Token{
		TokenID:   "rt_" + "a1b2",
		Type:      TypeRefresh,
		UserID:    "u1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if ok, _ := svc.Validate(ctx, "rt_a1b2"); !ok {
		t.Fatalf("store-backed token should validate on cache miss")
	}
	if svc.CacheSize() != 1 {
		t.Fatalf("validated token should now be cached")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	t1, _ := svc.Issue(ctx, TypeUser, "u1", nil, nil, nil)
	t2, _ := svc.Issue(ctx, TypeRefresh, "u1", nil, nil, nil)
	t3, _ := svc.Issue(ctx, TypeUser, "u2", nil, nil, nil)

	n, err := svc.RevokeAllForUser(ctx, "u1", "security")
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revocations, got %d", n)
	}

	if ok, _ := svc.Validate(ctx, t1.TokenID); ok {
		t.Fatalf("u1 user token should be revoked")
	}
	if ok, _ := svc.Validate(ctx, t2.TokenID); ok {
		t.Fatalf("u1 refresh token should be revoked")
	}
	if ok, _ := svc.Validate(ctx, t3.TokenID); !ok {
		t.Fatalf("u2 token should survive")
	}
}

func TestSweepExpired_Idempotent(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = store.Upsert(ctx, Token{TokenID: "dead1", Type: TypeUser, UserID: "u1", ExpiresAt: now.Add(-time.Minute), CreatedAt: now})
	_ = store.Upsert(ctx, Token{TokenID: "dead2", Type: TypeUser, UserID: "u1", ExpiresAt: now.Add(-time.Hour), CreatedAt: now})
	_ = store.Upsert(ctx, Token{TokenID: "live1", Type: TypeUser, UserID: "u1", ExpiresAt: now.Add(time.Hour), CreatedAt: now})

	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("first sweep should delete 2, got %d", n)
	}

	n, err = svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired (2nd): %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep should delete 0, got %d", n)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		s    string
		data map[string]any
		want Type
	}{
		{s: "rt_abcdef", want: TypeRefresh},
		{s: "apk_abcdef", want: TypeAPI},
		{s: "abcdef", data: map[string]any{"service_id": "svc1"}, want: TypeService},
		{s: "abcdef", data: map[string]any{"other": 1}, want: TypeUser},
		{s: "abcdef", want: TypeUser},
	}
	for _, tc := range cases {
		if got := Classify(tc.s, tc.data); got != tc.want {
			t.Fatalf("Classify(%q)=%q want %q", tc.s, got, tc.want)
		}
	}
}

func TestUpsert_RefreshesExpiryAndClearsRevocation(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tok, err := svc.Issue(ctx, TypeService, "u1", map[string]any{"service_id": "svc1"}, nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, tok.TokenID, "rotation"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	tok.ExpiresAt = now.Add(48 * time.Hour)
	if err := svc.Save(ctx, tok); err != nil {
		t.Fatalf("Save (upsert): %v", err)
	}

	got, err := store.Get(ctx, tok.TokenID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Revoked || got.RevocationReason != nil {
		t.Fatalf("upsert must clear revocation, got revoked=%v", got.Revoked)
	}
	if !got.ExpiresAt.Equal(tok.ExpiresAt) {
		t.Fatalf("upsert must refresh expiry")
	}
}
