package trackapi

import (
	"time"

	"pulse/cmd/internal/repo"
	"pulse/cmd/internal/tracking/ingest"
)

// Row types double as scan targets (db tags) and response bodies (json
// tags) for the thin CRUD endpoints.

type activityRow struct {
	ID        string         `db:"id" json:"id"`
	SessionID string         `db:"session_id" json:"session_id"`
	AppID     *string        `db:"app_id" json:"app_id,omitempty"`
	EventType string         `db:"event_type" json:"event_type"`
	EventTime time.Time      `db:"event_time" json:"event_time"`
	EventData map[string]any `db:"event_data" json:"event_data,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	CreatedBy *string        `db:"created_by" json:"created_by,omitempty"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
	UpdatedBy *string        `db:"updated_by" json:"updated_by,omitempty"`
}

type sessionEventRow struct {
	ID                string         `db:"id" json:"id"`
	SessionID         string         `db:"session_id" json:"session_id"`
	EventType         string         `db:"event_type" json:"event_type"`
	EventTime         time.Time      `db:"event_time" json:"event_time"`
	UserID            string         `db:"user_id" json:"user_id"`
	PreviousUserID    *string        `db:"previous_user_id" json:"previous_user_id,omitempty"`
	MachineID         *string        `db:"machine_id" json:"machine_id,omitempty"`
	TerminalSessionID *string        `db:"terminal_session_id" json:"terminal_session_id,omitempty"`
	IsRemote          bool           `db:"is_remote" json:"is_remote"`
	EventData         map[string]any `db:"event_data" json:"event_data,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	CreatedBy         *string        `db:"created_by" json:"created_by,omitempty"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
	UpdatedBy         *string        `db:"updated_by" json:"updated_by,omitempty"`
}

type appUsageRow struct {
	ID          string     `db:"id" json:"id"`
	SessionID   string     `db:"session_id" json:"session_id"`
	AppID       string     `db:"app_id" json:"app_id"`
	WindowTitle *string    `db:"window_title" json:"window_title,omitempty"`
	StartTime   time.Time  `db:"start_time" json:"start_time"`
	EndTime     *time.Time `db:"end_time" json:"end_time"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CreatedBy   *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	UpdatedBy   *string    `db:"updated_by" json:"updated_by,omitempty"`
}

type metricRow struct {
	ID              string    `db:"id" json:"id"`
	SessionID       string    `db:"session_id" json:"session_id"`
	CPUUsage        float64   `db:"cpu_usage" json:"cpu_usage"`
	GPUUsage        float64   `db:"gpu_usage" json:"gpu_usage"`
	MemoryUsage     float64   `db:"memory_usage" json:"memory_usage"`
	MeasurementTime time.Time `db:"measurement_time" json:"measurement_time"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	CreatedBy       *string   `db:"created_by" json:"created_by,omitempty"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
	UpdatedBy       *string   `db:"updated_by" json:"updated_by,omitempty"`
}

var activityTable = repo.Table[activityRow]{
	Name: "activity_events",
	SelectList: `id, session_id, app_id, event_type, event_time, event_data,
		created_at, created_by, updated_at, updated_by`,
	UpdateSQL: `UPDATE activity_events
		SET app_id = $2, event_type = $3, event_time = $4, event_data = $5,
		    updated_at = $6, updated_by = $7
		WHERE id = $1`,
	UpdateArgs: func(m *activityRow) []any {
		return []any{m.ID, m.AppID, m.EventType, m.EventTime, m.EventData, m.UpdatedAt, m.UpdatedBy}
	},
}

var sessionEventTable = repo.Table[sessionEventRow]{
	Name: "session_events",
	SelectList: `id, session_id, event_type, event_time, user_id, previous_user_id,
		machine_id, terminal_session_id, is_remote, event_data,
		created_at, created_by, updated_at, updated_by`,
	UpdateSQL: `UPDATE session_events
		SET event_type = $2, event_time = $3, event_data = $4,
		    updated_at = $5, updated_by = $6
		WHERE id = $1`,
	UpdateArgs: func(m *sessionEventRow) []any {
		return []any{m.ID, m.EventType, m.EventTime, m.EventData, m.UpdatedAt, m.UpdatedBy}
	},
}

var appUsageTable = repo.Table[appUsageRow]{
	Name: "app_usages",
	SelectList: `id, session_id, app_id, window_title, start_time, end_time, is_active,
		created_at, created_by, updated_at, updated_by`,
	UpdateSQL: `UPDATE app_usages
		SET window_title = $2, end_time = $3, is_active = $4,
		    updated_at = $5, updated_by = $6
		WHERE id = $1`,
	UpdateArgs: func(m *appUsageRow) []any {
		return []any{m.ID, m.WindowTitle, m.EndTime, m.IsActive, m.UpdatedAt, m.UpdatedBy}
	},
}

var metricTable = repo.Table[metricRow]{
	Name: "system_metrics",
	SelectList: `id, session_id, cpu_usage, gpu_usage, memory_usage, measurement_time,
		created_at, created_by, updated_at, updated_by`,
	UpdateSQL: `UPDATE system_metrics
		SET cpu_usage = $2, gpu_usage = $3, memory_usage = $4, measurement_time = $5,
		    updated_at = $6, updated_by = $7
		WHERE id = $1`,
	UpdateArgs: func(m *metricRow) []any {
		return []any{m.ID, m.CPUUsage, m.GPUUsage, m.MemoryUsage, m.MeasurementTime, m.UpdatedAt, m.UpdatedBy}
	},
}

func toActivityRow(e ingest.ActivityEvent) activityRow {
	return activityRow{
		ID: e.ID, SessionID: e.SessionID, AppID: e.AppID,
		EventType: e.EventType, EventTime: e.EventTime, EventData: e.EventData,
		CreatedAt: e.Audit.CreatedAt, CreatedBy: e.Audit.CreatedBy,
		UpdatedAt: e.Audit.UpdatedAt, UpdatedBy: e.Audit.UpdatedBy,
	}
}

func toSessionEventRow(e ingest.SessionEvent) sessionEventRow {
	return sessionEventRow{
		ID: e.ID, SessionID: e.SessionID,
		EventType: e.EventType, EventTime: e.EventTime,
		UserID: e.UserID, PreviousUserID: e.PreviousUserID,
		MachineID: e.MachineID, TerminalSessionID: e.TerminalSessionID,
		IsRemote: e.IsRemote, EventData: e.EventData,
		CreatedAt: e.Audit.CreatedAt, CreatedBy: e.Audit.CreatedBy,
		UpdatedAt: e.Audit.UpdatedAt, UpdatedBy: e.Audit.UpdatedBy,
	}
}

func toAppUsageRow(u ingest.AppUsage) appUsageRow {
	return appUsageRow{
		ID: u.ID, SessionID: u.SessionID, AppID: u.AppID,
		WindowTitle: u.WindowTitle, StartTime: u.StartTime, EndTime: u.EndTime,
		IsActive:  u.IsActive,
		CreatedAt: u.Audit.CreatedAt, CreatedBy: u.Audit.CreatedBy,
		UpdatedAt: u.Audit.UpdatedAt, UpdatedBy: u.Audit.UpdatedBy,
	}
}

func toMetricRow(m ingest.SystemMetric) metricRow {
	return metricRow{
		ID: m.ID, SessionID: m.SessionID,
		CPUUsage: m.CPUUsage, GPUUsage: m.GPUUsage, MemoryUsage: m.MemoryUsage,
		MeasurementTime: m.MeasurementTime,
		CreatedAt:       m.Audit.CreatedAt, CreatedBy: m.Audit.CreatedBy,
		UpdatedAt: m.Audit.UpdatedAt, UpdatedBy: m.Audit.UpdatedBy,
	}
}
