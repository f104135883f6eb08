package trackapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pulse/cmd/identity"
	"pulse/cmd/identity/ids"
	"pulse/cmd/internal/auth"
	"pulse/cmd/internal/token"
	"pulse/cmd/internal/tracking/ingest"
	"pulse/cmd/internal/tracking/session"
)

type noUsers struct{}

func (noUsers) GetUserByName(context.Context, string) (identity.User, error) {
	return identity.User{}, identity.OpError{Op: "noUsers.GetUserByName", Kind: identity.ErrNotFound}
}

func (noUsers) CreateUser(context.Context, identity.CreateUserInput) (identity.User, error) {
	return identity.User{}, identity.OpError{Op: "noUsers.CreateUser", Kind: identity.ErrInvalidInput}
}

type testEnv struct {
	mux    *http.ServeMux
	svc    *token.Service
	store  *session.MemoryStore
	sink   *ingest.MemorySink
	bearer string
	userID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	svc := token.NewService(token.DefaultConfig(), nil, token.NewMemoryStore())
	t.Cleanup(svc.Close)
	fw := auth.New(nil, auth.Config{}, svc, noUsers{})

	store := session.NewMemoryStore()
	engine := session.NewEngine(nil, store)

	sink := ingest.NewMemorySink()
	writers := ingest.NewWriters(nil, sink)
	pipeline := ingest.NewPipeline(nil, writers, nil)

	h := NewHandler(nil, fw, engine, store, writers, pipeline, nil)
	mux := http.NewServeMux()
	h.Register(mux)

	userID := ids.NewUUID()
	tok, err := svc.Issue(context.Background(), token.TypeUser, userID, nil, nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	return &testEnv{mux: mux, svc: svc, store: store, sink: sink, bearer: tok.TokenID, userID: userID}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+e.bearer)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, r)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var s sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session: %v (%s)", err, rec.Body.String())
	}
	return s
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	machineID := ids.NewUUID()
	resolveBody := func(at string) string {
		return `{"user_id":"` + env.userID + `","machine_id":"` + machineID + `","login_time":"` + at + `"}`
	}

	// Fresh handshake opens a session.
	rec := env.do(t, "POST", "/api/sessions", resolveBody("2026-03-01T09:00:00Z"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("fresh resolve: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	s1 := decodeSession(t, rec)
	if s1.LogoutTime != nil || s1.ContinuedFrom != nil {
		t.Fatalf("fresh session malformed: %+v", s1)
	}

	// End at noon, resolve again the same day: same id, reopened, 200.
	rec = env.do(t, "POST", "/api/sessions/"+s1.ID+"/end", `{"logout_time":"2026-03-01T12:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("end: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, "POST", "/api/sessions", resolveBody("2026-03-01T13:00:00Z"))
	if rec.Code != http.StatusOK {
		t.Fatalf("reopen: status = %d, want 200", rec.Code)
	}
	if got := decodeSession(t, rec); got.ID != s1.ID || got.LogoutTime != nil {
		t.Fatalf("reopen should return the original session: %+v", got)
	}

	// End for the day, resolve next morning: continuation, 201.
	env.do(t, "POST", "/api/sessions/"+s1.ID+"/end", `{"logout_time":"2026-03-01T17:00:00Z"}`)
	rec = env.do(t, "POST", "/api/sessions", resolveBody("2026-03-02T08:30:00Z"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("next day: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	s2 := decodeSession(t, rec)
	if s2.ContinuedFrom == nil || *s2.ContinuedFrom != s1.ID {
		t.Fatalf("continuation link missing: %+v", s2)
	}
	if s2.TimeSincePreviousSession == nil || *s2.TimeSincePreviousSession != 55800 {
		t.Fatalf("gap = %v, want 55800", s2.TimeSincePreviousSession)
	}

	// Chain and stats are visible over HTTP.
	rec = env.do(t, "GET", "/api/sessions/"+s1.ID+"/chain", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("chain: status = %d", rec.Code)
	}
	var chain chainResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &chain); err != nil {
		t.Fatalf("decode chain: %v", err)
	}
	if len(chain.Chain) != 2 || chain.Chain[0].ID != s1.ID || chain.Chain[1].ID != s2.ID {
		t.Fatalf("chain wrong: %+v", chain)
	}

	rec = env.do(t, "GET", "/api/sessions/"+s1.ID+"/chain/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status = %d", rec.Code)
	}
	var st statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.TotalSessions != 2 || st.TotalGapSeconds != 55800 {
		t.Fatalf("stats wrong: %+v", st)
	}
}

func TestSessionEndpoints_RequireAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	r := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestBatchEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	machineID := ids.NewUUID()

	rec := env.do(t, "POST", "/api/sessions",
		`{"user_id":"`+env.userID+`","machine_id":"`+machineID+`","login_time":"2026-03-02T09:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("resolve: %d", rec.Code)
	}
	sid := decodeSession(t, rec).ID

	// Coerced items all succeed.
	rec = env.do(t, "POST", "/api/sessions/"+sid+"/batch", `{
		"activity_events": [
			{"event_type":"keyboard","event_time":"2026-03-02T09:01:00Z"},
			{"event_type":"warp-drive"},
			{"event_type":"mouse_move","event_time":"2026-03-02T09:02:00Z"}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res ingest.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.ProcessedCounts["activity_events_success"] != 3 {
		t.Fatalf("batch result wrong: %+v", res)
	}

	// Explicit null session_id fails that item only.
	rec = env.do(t, "POST", "/api/batch", `{
		"session_id": "`+sid+`",
		"activity_events": [
			{"event_type":"keyboard"},
			{"session_id": null}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch with bad item: status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success || res.ProcessedCounts["activity_events_failure"] != 1 {
		t.Fatalf("expected one failed item: %+v", res)
	}
	if len(res.ActivityFailures) != 1 || res.ActivityFailures[0].Index != 1 {
		t.Fatalf("failure index wrong: %+v", res.ActivityFailures)
	}

	// Unknown session 404s before any writer runs.
	rec = env.do(t, "POST", "/api/sessions/"+ids.NewUUID()+"/batch",
		`{"activity_events":[{"event_type":"keyboard"}]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: status = %d, want 404", rec.Code)
	}

	// No items at all is a validation failure.
	rec = env.do(t, "POST", "/api/sessions/"+sid+"/batch", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch: status = %d, want 400", rec.Code)
	}
}
