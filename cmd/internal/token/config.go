package token

import (
	"os"
	"time"
)

// Config holds the token subsystem's expiry policy and sweep cadence.
type Config struct {
	UserTTL    time.Duration
	ServiceTTL time.Duration
	RefreshTTL time.Duration
	APITTL     time.Duration

	SweepInterval time.Duration
}

// DefaultConfig returns the standard expiries: user 24h, service 7d,
// refresh 30d, api 365d; sweep hourly.
func DefaultConfig() Config {
	return Config{
		UserTTL:       24 * time.Hour,
		ServiceTTL:    7 * 24 * time.Hour,
		RefreshTTL:    30 * 24 * time.Hour,
		APITTL:        365 * 24 * time.Hour,
		SweepInterval: time.Hour,
	}
}

// LoadConfigFromEnv loads overrides from TOKEN_USER_TTL, TOKEN_SERVICE_TTL,
// TOKEN_REFRESH_TTL, TOKEN_API_TTL, and TOKEN_SWEEP_INTERVAL (Go duration
// strings). Invalid or non-positive values keep the default.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.UserTTL = envDuration("TOKEN_USER_TTL", cfg.UserTTL)
	cfg.ServiceTTL = envDuration("TOKEN_SERVICE_TTL", cfg.ServiceTTL)
	cfg.RefreshTTL = envDuration("TOKEN_REFRESH_TTL", cfg.RefreshTTL)
	cfg.APITTL = envDuration("TOKEN_API_TTL", cfg.APITTL)
	cfg.SweepInterval = envDuration("TOKEN_SWEEP_INTERVAL", cfg.SweepInterval)
	return cfg
}

// TTL returns the configured lifetime for a credential kind.
func (c Config) TTL(t Type) time.Duration {
	switch t {
	case TypeService:
		return c.ServiceTTL
	case TypeRefresh:
		return c.RefreshTTL
	case TypeAPI:
		return c.APITTL
	default:
		return c.UserTTL
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
