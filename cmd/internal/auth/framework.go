package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pulse/cmd/identity"
	"pulse/cmd/internal/metrics"
	"pulse/cmd/internal/token"
)

// Level is the auth requirement an endpoint declares.
type Level int

const (
	// LevelNone lets an anonymous request through; a supplied credential
	// is still validated and rejected when invalid.
	LevelNone Level = iota
	// LevelUser requires any valid credential.
	LevelUser
	// LevelAdmin requires the "admin" role.
	LevelAdmin
	// LevelSuperAdmin requires the "superadmin" role.
	LevelSuperAdmin
)

// Identity is the resolved caller of a request.
type Identity struct {
	// UserID is the acting user (token owner). For service tokens and API
	// keys this is the user the credential was issued under.
	UserID string
	// ServiceID is set for service tokens and API keys.
	ServiceID string
	// TokenType is the credential kind that authenticated the request.
	TokenType token.Type
	// Data is the token's data payload.
	Data map[string]any
	// TokenString is the presented credential (for logout/revoke).
	TokenString string
	// Anonymous marks a LevelNone request that carried no credential.
	Anonymous bool
}

// UserDirectory is the slice of identity persistence the framework needs.
type UserDirectory interface {
	GetUserByName(ctx context.Context, name string) (identity.User, error)
	CreateUser(ctx context.Context, in identity.CreateUserInput) (identity.User, error)
}

// Config controls framework policy.
type Config struct {
	// AutoCreateUsers enables lazy user creation for first-seen usernames
	// reported by authenticated agents.
	AutoCreateUsers bool
	// EmailDomain is the domain synthesized into auto-created users'
	// email addresses.
	EmailDomain string
}

// Framework validates credentials and resolves identities.
type Framework struct {
	log    *slog.Logger
	cfg    Config
	tokens *token.Service
	users  UserDirectory
}

// New constructs a Framework.
func New(log *slog.Logger, cfg Config, tokens *token.Service, users UserDirectory) *Framework {
	if log == nil {
		log = slog.Default()
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "agents.local"
	}
	return &Framework{log: log, cfg: cfg, tokens: tokens, users: users}
}

// Tokens exposes the underlying token service to the auth API handlers.
func (f *Framework) Tokens() *token.Service { return f.tokens }

// Authenticate resolves the caller of r against the required level.
// Returns ErrUnauthorized or ErrForbidden on rejection.
func (f *Framework) Authenticate(r *http.Request, lvl Level) (Identity, error) {
	candidates := extractCredentials(r)

	if len(candidates) == 0 {
		if lvl == LevelNone {
			return Identity{Anonymous: true}, nil
		}
		metrics.AuthRequests.WithLabelValues("unauthorized").Inc()
		return Identity{}, ErrUnauthorized
	}

	for _, cand := range candidates {
		t, ok := f.tokens.ValidateFull(r.Context(), cand)
		if !ok {
			continue
		}

		id := Identity{
			UserID:      t.UserID,
			TokenType:   t.Type,
			Data:        t.Data,
			TokenString: cand,
		}
		if t.Type == token.TypeService || t.Type == token.TypeAPI {
			if sid, ok := t.Data["service_id"].(string); ok {
				id.ServiceID = sid
			}
		}

		if err := checkLevel(id, lvl); err != nil {
			metrics.AuthRequests.WithLabelValues("forbidden").Inc()
			f.log.Warn("auth.forbidden", "user_id", id.UserID, "token_type", string(id.TokenType))
			return Identity{}, err
		}
		metrics.AuthRequests.WithLabelValues("ok").Inc()
		return id, nil
	}

	metrics.AuthRequests.WithLabelValues("unauthorized").Inc()
	f.log.Warn("auth.invalid_credential", "path", r.URL.Path)
	return Identity{}, ErrUnauthorized
}

func checkLevel(id Identity, lvl Level) error {
	switch lvl {
	case LevelAdmin:
		if !id.HasRole("admin") && !id.HasRole("superadmin") {
			return ErrForbidden
		}
	case LevelSuperAdmin:
		if !id.HasRole("superadmin") {
			return ErrForbidden
		}
	}
	return nil
}

// HasRole reports whether the token data's roles array carries name.
func (id Identity) HasRole(name string) bool {
	if id.Data == nil {
		return false
	}
	roles, ok := id.Data["roles"].([]any)
	if !ok {
		return false
	}
	for _, r := range roles {
		if s, ok := r.(string); ok && strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// extractCredentials returns candidates in the documented order:
// Bearer token, X-API-Key, ServiceToken.
func extractCredentials(r *http.Request) []string {
	var out []string

	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if t, ok := schemeToken(authz, "Bearer"); ok {
		out = append(out, t)
	}
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		out = append(out, k)
	}
	if t, ok := schemeToken(authz, "ServiceToken"); ok {
		out = append(out, t)
	}
	return out
}

func schemeToken(header, scheme string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) {
		return "", false
	}
	t := strings.TrimSpace(parts[1])
	return t, t != ""
}

// ResolveUserForTracking maps an agent-reported username to a user,
// creating one when auto-create is enabled.
func (f *Framework) ResolveUserForTracking(ctx context.Context, username string) (identity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return identity.User{}, ErrUserNotFound
	}

	u, err := f.users.GetUserByName(ctx, username)
	if err == nil {
		return u, nil
	}
	if !identity.IsNotFound(err) {
		return identity.User{}, err
	}
	if !f.cfg.AutoCreateUsers {
		return identity.User{}, ErrUserNotFound
	}

	hash, err := identity.RandomPasswordHash()
	if err != nil {
		return identity.User{}, err
	}
	email := identity.NormalizeEmail(username + "@" + f.cfg.EmailDomain)

	created, err := f.users.CreateUser(ctx, identity.CreateUserInput{
		Name:         username,
		Email:        &email,
		PasswordHash: hash,
		Active:       true,
		Verified:     false,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		// Lost a race with a concurrent first-sight of the same username.
		if identity.IsConflict(err) {
			return f.users.GetUserByName(ctx, username)
		}
		return identity.User{}, err
	}

	f.log.Info("auth.user.auto_created", "user_id", created.ID, "name", created.Name)
	return created, nil
}
