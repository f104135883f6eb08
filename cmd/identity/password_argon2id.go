package identity

import (
	"crypto/rand"
	"encoding/base64"

	"pulse/cmd/security/password"
)

// HashPassword returns a PHC-style Argon2id hash using the effective
// security/password configuration (env + defaults).
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		cfg = password.DefaultConfig()
	}
	return cfg.Hash(plain)
}

// VerifyPassword checks plain against an encoded hash.
func VerifyPassword(plain, encodedHash string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		cfg = password.DefaultConfig()
	}
	return cfg.Verify(encodedHash, plain)
}

// RandomPasswordHash hashes 32 random bytes. Auto-created agent users get
// one of these: the account exists for attribution, not for password login.
func RandomPasswordHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return HashPassword(base64.RawURLEncoding.EncodeToString(b))
}
