// Package authapi exposes the authentication endpoints: password login,
// refresh rotation, logout, and agent service-token issuance.
package authapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/identity"
	"pulse/cmd/internal/auth"
	"pulse/cmd/internal/httpx"
	"pulse/cmd/internal/token"
)

// Handler wires the auth endpoints to the framework and identity store.
type Handler struct {
	log   *slog.Logger
	fw    *auth.Framework
	users identity.Store

	// pool is only used for the audit log; nil disables auditing.
	pool *pgxpool.Pool

	// dummyHash keeps login timing flat for unknown usernames.
	dummyHash string
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, fw *auth.Framework, users identity.Store, pool *pgxpool.Pool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{log: log, fw: fw, users: users, pool: pool}
	if hash, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}
	return h
}

// Register wires the auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/service-token", h.handleServiceToken)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		httpx.WriteValidationError(w, "username and password are required",
			[]string{"username: required", "password: required"})
		return
	}

	ctx := r.Context()
	ip, ua := clientIP(r), strings.TrimSpace(r.UserAgent())

	rec, err := h.users.GetUserAuthByName(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) {
			// Burn the same hashing cost as a real check.
			_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
			h.auditLoginFailed(ctx, nil, ip, ua, username, "unknown_user")
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "invalid credentials")
			return
		}
		httpx.WriteErr(w, h.log, err)
		return
	}

	ok, err := identity.VerifyPassword(req.Password, rec.PasswordHash)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	if !ok {
		h.auditLoginFailed(ctx, &rec.User.ID, ip, ua, username, "bad_password")
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "invalid credentials")
		return
	}
	if !rec.User.Active {
		h.auditLoginFailed(ctx, &rec.User.ID, ip, ua, username, "inactive")
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "account disabled")
		return
	}

	roles, err := h.users.RoleNamesForUser(ctx, rec.User.ID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	data := map[string]any{"username": rec.User.Name}
	if r := rolesToAny(roles); r != nil {
		data["roles"] = r
	}
	deviceInfo := map[string]any{"ip": ip, "user_agent": ua}

	tokens := h.fw.Tokens()
	access, err := tokens.Issue(ctx, token.TypeUser, rec.User.ID, data, deviceInfo, &rec.User.ID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	refresh, err := tokens.Issue(ctx, token.TypeRefresh, rec.User.ID, data, deviceInfo, &rec.User.ID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	h.auditLoginSuccess(ctx, rec.User.ID, ip, ua)
	h.log.Info("auth.login.ok", "user_id", rec.User.ID)

	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  access.TokenID,
		RefreshToken: refresh.TokenID,
		ExpiresAt:    access.ExpiresAt,
		User: &userResponse{
			ID:    rec.User.ID,
			Name:  rec.User.Name,
			Email: rec.User.Email,
			Roles: roles,
		},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httpx.WriteValidationError(w, "refresh_token is required", []string{"refresh_token: required"})
		return
	}

	ctx := r.Context()
	access, refresh, err := h.fw.RotateRefresh(ctx, req.RefreshToken)
	if err != nil {
		h.auditRefreshFailed(ctx, clientIP(r), r.UserAgent())
		httpx.WriteErr(w, h.log, err)
		return
	}

	h.auditRefreshSuccess(ctx, access.UserID, clientIP(r), r.UserAgent())
	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  access.TokenID,
		RefreshToken: refresh.TokenID,
		ExpiresAt:    access.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	ctx := r.Context()
	if err := h.fw.Tokens().Revoke(ctx, id.TokenString, "logout"); err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	h.auditLogout(ctx, id.UserID, clientIP(r), r.UserAgent())
	w.WriteHeader(http.StatusNoContent)
}

// handleServiceToken issues an agent service token. The caller must
// present an API key or hold the admin role.
func (h *Handler) handleServiceToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	if id.TokenType != token.TypeAPI && !id.HasRole("admin") && !id.HasRole("superadmin") {
		httpx.WriteErr(w, h.log, auth.ErrForbidden)
		return
	}

	var req serviceTokenRequest
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}
	var fieldErrs []string
	for _, f := range []struct{ name, v string }{
		{"service_id", req.ServiceID},
		{"username", req.Username},
		{"computer_name", req.ComputerName},
		{"machine_unique_id", req.MachineUniqueID},
	} {
		if strings.TrimSpace(f.v) == "" {
			fieldErrs = append(fieldErrs, f.name+": required")
		}
	}
	if len(fieldErrs) > 0 {
		httpx.WriteValidationError(w, "missing required fields", fieldErrs)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	machine, err := h.users.ResolveMachine(ctx, identity.ResolveMachineInput{
		Name:     req.ComputerName,
		UniqueID: req.MachineUniqueID,
		MAC:      req.MAC,
		OS:       req.OS,
		CPU:      req.CPU,
		GPU:      req.GPU,
		RAM:      req.RAM,
		Now:      now,
	})
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	user, err := h.fw.ResolveUserForTracking(ctx, req.Username)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	data := map[string]any{
		"service_id": req.ServiceID,
		"username":   user.Name,
		"machine_id": machine.ID,
	}
	actor := id.UserID
	svcTok, err := h.fw.Tokens().Issue(ctx, token.TypeService, user.ID, data, nil, &actor)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	h.auditServiceToken(ctx, actor, user.ID, machine.ID, req.ServiceID, clientIP(r), r.UserAgent())
	h.log.Info("auth.service_token.issued",
		"service_id", req.ServiceID, "user_id", user.ID, "machine_id", machine.ID)

	httpx.WriteJSON(w, http.StatusCreated, serviceTokenResponse{
		ServiceToken: svcTok.TokenID,
		ExpiresAt:    svcTok.ExpiresAt,
		UserID:       user.ID,
		MachineID:    machine.ID,
	})
}
