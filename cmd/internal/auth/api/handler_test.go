package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pulse/cmd/identity"
	"pulse/cmd/identity/ids"
	"pulse/cmd/internal/auth"
	"pulse/cmd/internal/token"
)

type fakeStore struct {
	byName map[string]identity.UserAuth
	roles  map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byName: make(map[string]identity.UserAuth),
		roles:  make(map[string][]string),
	}
}

func (s *fakeStore) addUser(t *testing.T, name, password string, active bool, roles ...string) identity.User {
	t.Helper()
	hash, err := identity.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := identity.User{ID: ids.NewUUID(), Name: name, Active: active}
	s.byName[identity.NormalizeUsername(name)] = identity.UserAuth{User: u, PasswordHash: hash}
	s.roles[u.ID] = roles
	return u
}

func (s *fakeStore) CreateUser(_ context.Context, in identity.CreateUserInput) (identity.User, error) {
	norm := identity.NormalizeUsername(in.Name)
	if _, ok := s.byName[norm]; ok {
		return identity.User{}, identity.ConflictError{Op: "fake.CreateUser", Field: "name"}
	}
	u := identity.User{ID: ids.NewUUID(), Name: in.Name, Email: in.Email, Active: in.Active, Verified: in.Verified}
	s.byName[norm] = identity.UserAuth{User: u, PasswordHash: in.PasswordHash}
	return u, nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (identity.User, error) {
	for _, rec := range s.byName {
		if rec.User.ID == id {
			return rec.User, nil
		}
	}
	return identity.User{}, identity.OpError{Op: "fake.GetUserByID", Kind: identity.ErrNotFound}
}

func (s *fakeStore) GetUserByName(_ context.Context, name string) (identity.User, error) {
	rec, ok := s.byName[identity.NormalizeUsername(name)]
	if !ok {
		return identity.User{}, identity.OpError{Op: "fake.GetUserByName", Kind: identity.ErrNotFound}
	}
	return rec.User, nil
}

func (s *fakeStore) GetUserAuthByName(_ context.Context, name string) (identity.UserAuth, error) {
	rec, ok := s.byName[identity.NormalizeUsername(name)]
	if !ok {
		return identity.UserAuth{}, identity.OpError{Op: "fake.GetUserAuthByName", Kind: identity.ErrNotFound}
	}
	return rec, nil
}

func (s *fakeStore) ResolveMachine(_ context.Context, in identity.ResolveMachineInput) (identity.Machine, error) {
	return identity.Machine{
		ID:       ids.NewUUID(),
		Name:     identity.NormalizeHostname(in.Name),
		UniqueID: in.UniqueID,
		Active:   true,
	}, nil
}

func (s *fakeStore) AssignRoleDiscipline(context.Context, string, string, string, time.Time) error {
	return nil
}

func (s *fakeStore) RoleNamesForUser(_ context.Context, userID string) ([]string, error) {
	return s.roles[userID], nil
}

func newTestHandler(t *testing.T) (*Handler, *token.Service, *fakeStore) {
	t.Helper()
	svc := token.NewService(token.DefaultConfig(), nil, token.NewMemoryStore())
	t.Cleanup(svc.Close)
	store := newFakeStore()
	fw := auth.New(nil, auth.Config{AutoCreateUsers: true, EmailDomain: "corp.example"}, svc, store)
	return NewHandler(nil, fw, store, nil), svc, store
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range hdr {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func TestLogin(t *testing.T) {
	t.Parallel()

	h, svc, store := newTestHandler(t)
	u := store.addUser(t, "alice", "s3cret-pass", true, "admin")

	rec := postJSON(t, h.handleLogin, "/api/auth/login",
		`{"username":"alice","password":"s3cret-pass"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp tokenPairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("missing tokens: %+v", resp)
	}
	if resp.User == nil || resp.User.ID != u.ID || len(resp.User.Roles) != 1 {
		t.Fatalf("user block wrong: %+v", resp.User)
	}

	got, ok := svc.ValidateFull(context.Background(), resp.AccessToken)
	if !ok || got.Type != token.TypeUser || got.UserID != u.ID {
		t.Fatalf("issued access token does not validate: %+v", got)
	}
	roles, _ := got.Data["roles"].([]any)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("roles not embedded in token data: %+v", got.Data)
	}
}

func TestLogin_Rejections(t *testing.T) {
	t.Parallel()

	h, _, store := newTestHandler(t)
	store.addUser(t, "alice", "s3cret-pass", true)
	store.addUser(t, "mallory", "whatever-pw", false)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "bad password", body: `{"username":"alice","password":"wrong"}`, status: 401},
		{name: "unknown user", body: `{"username":"ghost","password":"wrong"}`, status: 401},
		{name: "inactive user", body: `{"username":"mallory","password":"whatever-pw"}`, status: 403},
		{name: "missing fields", body: `{"username":""}`, status: 400},
	}
	for _, tc := range cases {
		rec := postJSON(t, h.handleLogin, "/api/auth/login", tc.body, nil)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.status)
		}
	}
}

func TestRefreshEndpoint_RotatesAndRejectsReplay(t *testing.T) {
	t.Parallel()

	h, svc, store := newTestHandler(t)
	u := store.addUser(t, "alice", "s3cret-pass", true)
	rt, err := svc.Issue(context.Background(), token.TypeRefresh, u.ID, nil, nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := postJSON(t, h.handleRefresh, "/api/auth/refresh",
		`{"refresh_token":"`+rt.TokenID+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.handleRefresh, "/api/auth/refresh",
		`{"refresh_token":"`+rt.TokenID+`"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", rec.Code)
	}
}

func TestLogout_RevokesPresentedToken(t *testing.T) {
	t.Parallel()

	h, svc, store := newTestHandler(t)
	u := store.addUser(t, "alice", "s3cret-pass", true)
	at, err := svc.Issue(context.Background(), token.TypeUser, u.ID, nil, nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := postJSON(t, h.handleLogout, "/api/auth/logout", ``,
		map[string]string{"Authorization": "Bearer " + at.TokenID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	if _, ok := svc.ValidateFull(context.Background(), at.TokenID); ok {
		t.Fatalf("token should be dead after logout")
	}
}

func TestServiceToken(t *testing.T) {
	t.Parallel()

	h, svc, store := newTestHandler(t)
	admin := store.addUser(t, "root", "s3cret-pass", true, "admin")
	adminTok, _ := svc.Issue(context.Background(), token.TypeUser, admin.ID,
		map[string]any{"roles": []any{"admin"}}, nil, nil)
	plain := store.addUser(t, "bob", "s3cret-pass", true)
	plainTok, _ := svc.Issue(context.Background(), token.TypeUser, plain.ID, nil, nil, nil)

	body := `{"service_id":"agent-7","username":"carol","computer_name":"WS-042","machine_unique_id":"hw-99"}`

	rec := postJSON(t, h.handleServiceToken, "/api/auth/service-token", body,
		map[string]string{"Authorization": "Bearer " + plainTok.TokenID})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", rec.Code)
	}

	rec = postJSON(t, h.handleServiceToken, "/api/auth/service-token", body,
		map[string]string{"Authorization": "Bearer " + adminTok.TokenID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp serviceTokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, ok := svc.ValidateFull(context.Background(), resp.ServiceToken)
	if !ok || got.Type != token.TypeService {
		t.Fatalf("service token does not validate: %+v", got)
	}
	if got.Data["service_id"] != "agent-7" || got.Data["machine_id"] != resp.MachineID {
		t.Fatalf("token data wrong: %+v", got.Data)
	}

	// carol did not exist; auto-create must have made her.
	if _, err := store.GetUserByName(context.Background(), "carol"); err != nil {
		t.Fatalf("auto-created user missing: %v", err)
	}
}
