package authapi

import (
	"context"
	"strings"
)

func (h *Handler) auditLoginFailed(ctx context.Context, userID *string, ip, ua, identifier, reason string) {
	h.insertAudit(ctx, "auth.login.failed", userID, ip, ua, map[string]any{
		"identifier": identifier,
		"reason":     reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, ip, ua string) {
	h.insertAudit(ctx, "auth.login.success", &userID, ip, ua, nil)
}

func (h *Handler) auditRefreshFailed(ctx context.Context, ip, ua string) {
	h.insertAudit(ctx, "auth.refresh.failed", nil, ip, ua, nil)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, userID, ip, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", &userID, ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, userID, ip, ua string) {
	h.insertAudit(ctx, "auth.logout", &userID, ip, ua, nil)
}

func (h *Handler) auditServiceToken(ctx context.Context, actorID, userID, machineID, serviceID, ip, ua string) {
	h.insertAudit(ctx, "auth.service_token.issued", &actorID, ip, ua, map[string]any{
		"user_id":    userID,
		"machine_id": machineID,
		"service_id": serviceID,
	})
}

// insertAudit records one auth event. Best-effort: failures are logged,
// never surfaced, and a nil pool disables auditing entirely.
func (h *Handler) insertAudit(ctx context.Context, action string, userID *string, ip, ua string, meta map[string]any) {
	if h == nil || h.pool == nil {
		return
	}

	var ipVal any
	if v := strings.TrimSpace(ip); v != "" {
		ipVal = v
	}
	var uaVal any
	if v := strings.TrimSpace(ua); v != "" {
		uaVal = v
	}
	var metaVal any
	if len(meta) > 0 {
		metaVal = meta
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, created_at, ip, user_agent, meta)
		VALUES ($1, $2, now(), $3, $4, $5)
	`, userID, action, ipVal, uaVal, metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}
