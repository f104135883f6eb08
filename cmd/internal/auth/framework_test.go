package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"pulse/cmd/identity"
	"pulse/cmd/internal/token"
)

type fakeDirectory struct {
	users   map[string]identity.User
	created int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]identity.User)}
}

func (d *fakeDirectory) GetUserByName(_ context.Context, name string) (identity.User, error) {
	u, ok := d.users[identity.NormalizeUsername(name)]
	if !ok {
		return identity.User{}, identity.OpError{Op: "fake.GetUserByName", Kind: identity.ErrNotFound}
	}
	return u, nil
}

func (d *fakeDirectory) CreateUser(_ context.Context, in identity.CreateUserInput) (identity.User, error) {
	norm := identity.NormalizeUsername(in.Name)
	if _, ok := d.users[norm]; ok {
		return identity.User{}, identity.ConflictError{Op: "fake.CreateUser", Field: "name"}
	}
	u := identity.User{ID: "u-" + norm, Name: in.Name, Email: in.Email, Active: in.Active, Verified: in.Verified}
	d.users[norm] = u
	d.created++
	return u, nil
}

func newTestFramework(t *testing.T, cfg Config) (*Framework, *token.Service, *fakeDirectory) {
	t.Helper()
	svc := token.NewService(token.DefaultConfig(), nil, token.NewMemoryStore())
	t.Cleanup(svc.Close)
	dir := newFakeDirectory()
	return New(nil, cfg, svc, dir), svc, dir
}

func issue(t *testing.T, svc *token.Service, typ token.Type, userID string, data map[string]any) string {
	t.Helper()
	tok, err := svc.Issue(context.Background(), typ, userID, data, nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok.TokenID
}

func TestAuthenticate_BearerUserToken(t *testing.T) {
	t.Parallel()

	fw, svc, _ := newTestFramework(t, Config{})
	ts := issue(t, svc, token.TypeUser, "u1", nil)

	r := httptest.NewRequest("GET", "/api/sessions", nil)
	r.Header.Set("Authorization", "Bearer "+ts)

	id, err := fw.Authenticate(r, LevelUser)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != "u1" || id.TokenType != token.TypeUser {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthenticate_APIKeyAndServiceToken(t *testing.T) {
	t.Parallel()

	fw, svc, _ := newTestFramework(t, Config{})
	apiKey := issue(t, svc, token.TypeAPI, "u1", map[string]any{"service_id": "agent-7"})
	svcTok := issue(t, svc, token.TypeService, "u1", map[string]any{"service_id": "agent-7"})

	r := httptest.NewRequest("POST", "/api/batch", nil)
	r.Header.Set("X-API-Key", apiKey)
	id, err := fw.Authenticate(r, LevelUser)
	if err != nil {
		t.Fatalf("api key auth: %v", err)
	}
	if id.ServiceID != "agent-7" || id.TokenType != token.TypeAPI {
		t.Fatalf("unexpected identity: %+v", id)
	}

	r = httptest.NewRequest("POST", "/api/batch", nil)
	r.Header.Set("Authorization", "ServiceToken "+svcTok)
	id, err = fw.Authenticate(r, LevelUser)
	if err != nil {
		t.Fatalf("service token auth: %v", err)
	}
	if id.ServiceID != "agent-7" || id.TokenType != token.TypeService {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthenticate_Levels(t *testing.T) {
	t.Parallel()

	fw, svc, _ := newTestFramework(t, Config{})
	plain := issue(t, svc, token.TypeUser, "u1", nil)
	admin := issue(t, svc, token.TypeUser, "u2", map[string]any{"roles": []any{"admin"}})
	super := issue(t, svc, token.TypeUser, "u3", map[string]any{"roles": []any{"superadmin"}})

	cases := []struct {
		name    string
		token   string
		lvl     Level
		wantErr error
	}{
		{name: "anonymous none", token: "", lvl: LevelNone, wantErr: nil},
		{name: "anonymous user", token: "", lvl: LevelUser, wantErr: ErrUnauthorized},
		{name: "plain user", token: plain, lvl: LevelUser, wantErr: nil},
		{name: "plain admin", token: plain, lvl: LevelAdmin, wantErr: ErrForbidden},
		{name: "admin admin", token: admin, lvl: LevelAdmin, wantErr: nil},
		{name: "admin superadmin", token: admin, lvl: LevelSuperAdmin, wantErr: ErrForbidden},
		{name: "super admin-level", token: super, lvl: LevelAdmin, wantErr: nil},
		{name: "super superadmin", token: super, lvl: LevelSuperAdmin, wantErr: nil},
	}

	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/x", nil)
		if tc.token != "" {
			r.Header.Set("Authorization", "Bearer "+tc.token)
		}
		id, err := fw.Authenticate(r, tc.lvl)
		if err != tc.wantErr {
			t.Fatalf("%s: err=%v want=%v", tc.name, err, tc.wantErr)
		}
		if tc.wantErr == nil && tc.token == "" && !id.Anonymous {
			t.Fatalf("%s: expected anonymous identity", tc.name)
		}
	}
}

func TestAuthenticate_InvalidCredentialRejected(t *testing.T) {
	t.Parallel()

	fw, _, _ := newTestFramework(t, Config{})

	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("Authorization", "Bearer "+strings.Repeat("f", 64))
	if _, err := fw.Authenticate(r, LevelUser); err != ErrUnauthorized {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestRotateRefresh(t *testing.T) {
	t.Parallel()

	fw, svc, _ := newTestFramework(t, Config{})
	ctx := context.Background()
	rt := issue(t, svc, token.TypeRefresh, "u1", map[string]any{"roles": []any{"admin"}})

	access, refresh, err := fw.RotateRefresh(ctx, rt)
	if err != nil {
		t.Fatalf("RotateRefresh: %v", err)
	}
	if access.Type != token.TypeUser || refresh.Type != token.TypeRefresh {
		t.Fatalf("unexpected pair: %q %q", access.Type, refresh.Type)
	}

	// The consumed token must be dead with the canonical reason.
	if _, _, err := fw.RotateRefresh(ctx, rt); err != ErrUnauthorized {
		t.Fatalf("replayed refresh should be unauthorized, got %v", err)
	}

	// The new access token validates and carries the roles forward.
	gotTok, ok := svc.ValidateFull(ctx, access.TokenID)
	if !ok {
		t.Fatalf("new access token should validate")
	}
	roles, _ := gotTok.Data["roles"].([]any)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("roles not carried forward: %+v", gotTok.Data)
	}
}

func TestRotateRefresh_RejectsUserToken(t *testing.T) {
	t.Parallel()

	fw, svc, _ := newTestFramework(t, Config{})
	ut := issue(t, svc, token.TypeUser, "u1", nil)

	if _, _, err := fw.RotateRefresh(context.Background(), ut); err != ErrUnauthorized {
		t.Fatalf("user token must not refresh, got %v", err)
	}
}

func TestResolveUserForTracking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("existing user", func(t *testing.T) {
		fw, _, dir := newTestFramework(t, Config{AutoCreateUsers: true, EmailDomain: "corp.example"})
		dir.users["alice"] = identity.User{ID: "u-alice", Name: "alice"}

		u, err := fw.ResolveUserForTracking(ctx, "Alice")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if u.ID != "u-alice" || dir.created != 0 {
			t.Fatalf("should return existing user without creating")
		}
	})

	t.Run("auto-create enabled", func(t *testing.T) {
		fw, _, dir := newTestFramework(t, Config{AutoCreateUsers: true, EmailDomain: "corp.example"})

		u, err := fw.ResolveUserForTracking(ctx, "bob")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if dir.created != 1 {
			t.Fatalf("expected a created user")
		}
		if u.Email == nil || *u.Email != "bob@corp.example" {
			t.Fatalf("synthesized email wrong: %v", u.Email)
		}
		if !u.Active || u.Verified {
			t.Fatalf("auto-created user must be active and unverified")
		}
	})

	t.Run("auto-create disabled", func(t *testing.T) {
		fw, _, _ := newTestFramework(t, Config{AutoCreateUsers: false})

		if _, err := fw.ResolveUserForTracking(ctx, "carol"); err != ErrUserNotFound {
			t.Fatalf("want ErrUserNotFound, got %v", err)
		}
	})
}
