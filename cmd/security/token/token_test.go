package token

import (
	"strings"
	"testing"
)

func TestNew_UniquePerMint(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"user_id":"u1"}`)

	a, err := New(payload)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(payload)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("expected 64 hex chars, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("two mints of the same payload must differ")
	}
}

func TestPrefixes(t *testing.T) {
	t.Parallel()

	rt, err := NewRefresh([]byte("x"))
	if err != nil {
		t.Fatalf("NewRefresh: %v", err)
	}
	ak, err := NewAPIKey([]byte("x"))
	if err != nil {
		t.Fatalf("NewAPIKey: %v", err)
	}

	if !IsRefresh(rt) || IsAPIKey(rt) {
		t.Fatalf("refresh token misclassified: %q", rt)
	}
	if !IsAPIKey(ak) || IsRefresh(ak) {
		t.Fatalf("api key misclassified: %q", ak)
	}
	if !strings.HasPrefix(rt, "rt_") || !strings.HasPrefix(ak, "apk_") {
		t.Fatalf("unexpected tags: %q %q", rt, ak)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	if !Equal("abc", "abc") {
		t.Fatalf("Equal should match identical strings")
	}
	if Equal("abc", "abd") {
		t.Fatalf("Equal should reject different strings")
	}
}
