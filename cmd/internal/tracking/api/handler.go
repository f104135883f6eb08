// Package trackapi exposes the tracking endpoints: session resolution
// and lifecycle, chain queries, batch ingestion, and the thin per-stream
// CRUD surface.
package trackapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/identity/ids"
	"pulse/cmd/internal/auth"
	"pulse/cmd/internal/httpx"
	"pulse/cmd/internal/tracking/ingest"
	"pulse/cmd/internal/tracking/session"
)

// Handler wires the tracking endpoints to the engine and pipeline.
type Handler struct {
	log      *slog.Logger
	fw       *auth.Framework
	engine   *session.Engine
	sessions session.Store
	writers  *ingest.Writers
	pipeline *ingest.Pipeline

	// pool backs the per-stream CRUD tables; nil leaves them unregistered.
	pool *pgxpool.Pool
}

// NewHandler constructs a tracking Handler.
func NewHandler(log *slog.Logger, fw *auth.Framework, engine *session.Engine, sessions session.Store, writers *ingest.Writers, pipeline *ingest.Pipeline, pool *pgxpool.Pool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log: log, fw: fw, engine: engine, sessions: sessions,
		writers: writers, pipeline: pipeline, pool: pool,
	}
}

// Register wires the tracking routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/sessions", h.handleResolve)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/end", h.handleEnd)
	mux.HandleFunc("GET /api/sessions/{id}/chain", h.handleChain)
	mux.HandleFunc("GET /api/sessions/{id}/chain/stats", h.handleChainStats)
	mux.HandleFunc("POST /api/batch", h.handleBatch)
	mux.HandleFunc("POST /api/sessions/{id}/batch", h.handleBatch)

	if h.pool != nil {
		h.registerStreams(mux)
	}
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	var req resolveRequest
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = id.UserID
	}
	machineID := req.MachineID
	if machineID == "" {
		if m, ok := id.Data["machine_id"].(string); ok {
			machineID = m
		}
	}
	if userID == "" || machineID == "" {
		httpx.WriteValidationError(w, "user_id and machine_id are required",
			[]string{"user_id: required", "machine_id: required"})
		return
	}

	in := session.ResolveInput{
		UserID:            userID,
		MachineID:         machineID,
		IPAddress:         req.IPAddress,
		SessionData:       req.SessionData,
		IsRemote:          req.IsRemote,
		TerminalSessionID: req.TerminalSessionID,
	}
	if req.LoginTime != nil {
		in.Now = *req.LoginTime
	}

	res, err := h.engine.ResolveOrCreate(r.Context(), in)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	status := http.StatusOK
	if res.Action == session.ActionOpened {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, toSessionResponse(res.Session))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.fw.Authenticate(r, auth.LevelUser); err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	sid, ok := ids.Normalize(r.PathValue("id"))
	if !ok {
		httpx.WriteErr(w, h.log, session.ErrInvalidInput)
		return
	}
	s, err := h.sessions.GetByID(r.Context(), sid)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(s))
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	var req endRequest
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}

	var at time.Time
	if req.LogoutTime != nil {
		at = *req.LogoutTime
	}
	actor := id.UserID
	s, err := h.engine.EndSession(r.Context(), r.PathValue("id"), at, &actor)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(s))
}

func (h *Handler) handleChain(w http.ResponseWriter, r *http.Request) {
	if _, err := h.fw.Authenticate(r, auth.LevelUser); err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	sid, ok := ids.Normalize(r.PathValue("id"))
	if !ok {
		httpx.WriteErr(w, h.log, session.ErrInvalidInput)
		return
	}
	chain, err := h.engine.Chain(r.Context(), sid)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	out := make([]sessionResponse, len(chain))
	for i, s := range chain {
		out[i] = toSessionResponse(s)
	}
	httpx.WriteJSON(w, http.StatusOK, chainResponse{SessionID: sid, Chain: out})
}

func (h *Handler) handleChainStats(w http.ResponseWriter, r *http.Request) {
	if _, err := h.fw.Authenticate(r, auth.LevelUser); err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	sid, ok := ids.Normalize(r.PathValue("id"))
	if !ok {
		httpx.WriteErr(w, h.log, session.ErrInvalidInput)
		return
	}
	st, err := h.engine.Stats(r.Context(), sid)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatsResponse(sid, st))
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	id, err := h.fw.Authenticate(r, auth.LevelUser)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	var req ingest.BatchRequest
	if err := httpx.DecodeJSON(w, r, httpx.DefaultMaxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidationFailed, "invalid request body")
		return
	}

	// Path-scoped form wins over the body's session_id.
	raw := r.PathValue("id")
	if raw == "" {
		raw = req.SessionID
	}
	sid, ok := ids.Normalize(raw)
	if !ok {
		httpx.WriteValidationError(w, "session_id is required", []string{"session_id: required"})
		return
	}

	ctx := r.Context()
	if _, err := h.sessions.GetByID(ctx, sid); err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}

	res, err := h.pipeline.Run(ctx, sid, req, id.UserID)
	if err != nil {
		httpx.WriteErr(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
