package app

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// RequestTimeout bounds each request's context.
	RequestTimeout time.Duration
	// StatementTimeout is applied server-side to every SQL statement.
	StatementTimeout time.Duration

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int32
	DBMinConns int32

	// AutoCreateUsers lets the service-token handshake create first-seen
	// users instead of rejecting them.
	AutoCreateUsers bool
	// EmailDomain is the domain synthesized into auto-created users'
	// email addresses.
	EmailDomain string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("HTTP_LISTEN", "0.0.0.0:8080"),
		LogLevel: EnvString("LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("HTTP_WRITE_TIMEOUT", 35*time.Second),
		IdleTimeout:       EnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("HTTP_MAX_HEADER_BYTES", 1<<20),

		RequestTimeout:   EnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		StatementTimeout: EnvDuration("STATEMENT_TIMEOUT", 10*time.Second),

		DBHost:     EnvString("DB_HOST", "localhost"),
		DBPort:     EnvString("DB_PORT", "5432"),
		DBName:     EnvString("DB_NAME", "pulse"),
		DBUser:     EnvString("DB_USER", "pulse"),
		DBPassword: EnvString("DB_PASSWORD", ""),
		DBMaxConns: EnvInt32("DB_MAX_CONNS", 10),
		DBMinConns: EnvInt32("DB_MIN_CONNS", 0),

		AutoCreateUsers: EnvBool("AUTO_CREATE_USERS", false),
		EmailDomain:     EnvString("EMAIL_DOMAIN", "example.com"),
	}
}

// DatabaseURL assembles the pgx connection string from the DB_* parts.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		url.QueryEscape(c.DBUser),
		url.QueryEscape(c.DBPassword),
		net.JoinHostPort(c.DBHost, c.DBPort),
		url.PathEscape(c.DBName),
	)
}
