package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	// Keep test runs fast; Verify tolerates smaller settings.
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	hash, err := cfg.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}

	ok, err := cfg.Verify(hash, "correct horse battery")
	if err != nil || !ok {
		t.Fatalf("Verify match: ok=%v err=%v", ok, err)
	}

	ok, err = cfg.Verify(hash, "wrong password")
	if err != nil || ok {
		t.Fatalf("Verify mismatch: ok=%v err=%v", ok, err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	cases := []string{
		"",
		"plainly-not-a-hash",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=3,p=1$c2FsdA$aGFzaA",
	}
	for _, in := range cases {
		if _, err := cfg.Verify(in, "pw"); err != ErrInvalidHash {
			t.Fatalf("Verify(%q): want ErrInvalidHash, got %v", in, err)
		}
	}
}

func TestValidate_Policy(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("want ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate(strings.Repeat("a", 300)); err != ErrPasswordTooLong {
		t.Fatalf("want ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("long enough"); err != nil {
		t.Fatalf("want nil, got %v", err)
	}
}
