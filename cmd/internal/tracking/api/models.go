package trackapi

import (
	"time"

	"pulse/cmd/internal/tracking/session"
)

type resolveRequest struct {
	UserID            string         `json:"user_id"`
	MachineID         string         `json:"machine_id"`
	LoginTime         *time.Time     `json:"login_time"`
	IPAddress         *string        `json:"ip_address"`
	SessionData       map[string]any `json:"session_data"`
	IsRemote          bool           `json:"is_remote"`
	TerminalSessionID *string        `json:"terminal_session_id"`
}

type endRequest struct {
	LogoutTime *time.Time `json:"logout_time"`
}

type sessionResponse struct {
	ID                       string         `json:"id"`
	UserID                   string         `json:"user_id"`
	MachineID                string         `json:"machine_id"`
	IPAddress                *string        `json:"ip_address,omitempty"`
	SessionData              map[string]any `json:"session_data,omitempty"`
	LoginTime                time.Time      `json:"login_time"`
	LogoutTime               *time.Time     `json:"logout_time"`
	ContinuedFrom            *string        `json:"continued_from_session,omitempty"`
	ContinuedBy              *string        `json:"continued_by_session,omitempty"`
	PreviousSessionEndTime   *time.Time     `json:"previous_session_end_time,omitempty"`
	TimeSincePreviousSession *int64         `json:"time_since_previous_session,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		ID:                       s.ID,
		UserID:                   s.UserID,
		MachineID:                s.MachineID,
		IPAddress:                s.IPAddress,
		SessionData:              s.SessionData,
		LoginTime:                s.LoginTime,
		LogoutTime:               s.LogoutTime,
		ContinuedFrom:            s.ContinuedFrom,
		ContinuedBy:              s.ContinuedBy,
		PreviousSessionEndTime:   s.PreviousSessionEndTime,
		TimeSincePreviousSession: s.TimeSincePreviousSession,
		CreatedAt:                s.Audit.CreatedAt,
		UpdatedAt:                s.Audit.UpdatedAt,
	}
}

type chainResponse struct {
	SessionID string            `json:"session_id"`
	Chain     []sessionResponse `json:"chain"`
}

type statsResponse struct {
	SessionID            string    `json:"session_id"`
	TotalSessions        int       `json:"total_sessions"`
	FirstLogin           time.Time `json:"first_login"`
	LastActivity         time.Time `json:"last_activity"`
	TotalDurationSeconds int64     `json:"total_duration_seconds"`
	TotalGapSeconds      int64     `json:"total_gap_seconds"`
	SpanSeconds          int64     `json:"span_seconds"`
	ContinuityPercent    float64   `json:"continuity_percent"`
}

func toStatsResponse(sid string, st session.ChainStats) statsResponse {
	return statsResponse{
		SessionID:            sid,
		TotalSessions:        st.TotalSessions,
		FirstLogin:           st.FirstLogin,
		LastActivity:         st.LastActivity,
		TotalDurationSeconds: int64(st.TotalDuration / time.Second),
		TotalGapSeconds:      int64(st.TotalGap / time.Second),
		SpanSeconds:          int64(st.Span / time.Second),
		ContinuityPercent:    st.ContinuityPercent,
	}
}
