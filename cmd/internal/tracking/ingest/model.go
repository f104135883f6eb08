package ingest

import (
	"encoding/json"
	"time"

	"pulse/cmd/identity"
)

// Activity event types the agents emit.
const (
	EventMouseClick = "mouse_click"
	EventMouseMove  = "mouse_move"
	EventKeyboard   = "keyboard"
	EventAFKStart   = "afk_start"
	EventAFKEnd     = "afk_end"
	EventAppFocus   = "app_focus"
	EventAppUnfocus = "app_unfocus"
)

// OS session event types.
const (
	SessionLogin            = "login"
	SessionLogout           = "logout"
	SessionLock             = "lock"
	SessionUnlock           = "unlock"
	SessionSwitchUser       = "switch_user"
	SessionRemoteConnect    = "remote_connect"
	SessionRemoteDisconnect = "remote_disconnect"
)

var activityEventTypes = map[string]bool{
	EventMouseClick: true, EventMouseMove: true, EventKeyboard: true,
	EventAFKStart: true, EventAFKEnd: true,
	EventAppFocus: true, EventAppUnfocus: true,
}

var sessionEventTypes = map[string]bool{
	SessionLogin: true, SessionLogout: true,
	SessionLock: true, SessionUnlock: true, SessionSwitchUser: true,
	SessionRemoteConnect: true, SessionRemoteDisconnect: true,
}

// ValidActivityEventType reports whether s is a known activity event type.
func ValidActivityEventType(s string) bool { return activityEventTypes[s] }

// ValidSessionEventType reports whether s is a known OS session event type.
func ValidSessionEventType(s string) bool { return sessionEventTypes[s] }

// ActivityEvent is a discrete input observation tied to a session.
type ActivityEvent struct {
	ID        string
	SessionID string
	AppID     *string
	EventType string
	EventTime time.Time
	EventData map[string]any

	Audit identity.Audit
}

// AppUsage is a foreground-focus interval. Open usage has a nil EndTime.
type AppUsage struct {
	ID          string
	SessionID   string
	AppID       string
	WindowTitle *string
	StartTime   time.Time
	EndTime     *time.Time
	IsActive    bool

	Audit identity.Audit
}

// SystemMetric is one resource-usage sample; percentages are 0..100.
type SystemMetric struct {
	ID              string
	SessionID       string
	CPUUsage        float64
	GPUUsage        float64
	MemoryUsage     float64
	MeasurementTime time.Time

	Audit identity.Audit
}

// SessionEvent is an OS-level session transition.
type SessionEvent struct {
	ID                string
	SessionID         string
	EventType         string
	EventTime         time.Time
	UserID            string
	PreviousUserID    *string
	MachineID         *string
	TerminalSessionID *string
	IsRemote          bool
	EventData         map[string]any

	Audit identity.Audit
}

// AFKPeriod is an away-from-keyboard interval derived from afk_start
// and afk_end activity events. Open period has a nil EndTime.
type AFKPeriod struct {
	ID        string
	SessionID string
	StartTime time.Time
	EndTime   *time.Time

	Audit identity.Audit
}

// OptionalID distinguishes an absent session_id field from an explicit
// null, which agents sometimes send and which must be rejected rather
// than silently inherit the batch session.
type OptionalID struct {
	Set   bool
	Value *string
}

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// ActivityEventInput is the wire shape of one activity item.
type ActivityEventInput struct {
	SessionID OptionalID     `json:"session_id"`
	AppID     *string        `json:"app_id"`
	EventType string         `json:"event_type"`
	EventTime *time.Time     `json:"event_time"`
	EventData map[string]any `json:"event_data"`
}

// AppUsageInput is the wire shape of one app-usage item.
type AppUsageInput struct {
	SessionID   OptionalID `json:"session_id"`
	AppID       string     `json:"app_id"`
	WindowTitle *string    `json:"window_title"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	IsActive    *bool      `json:"is_active"`
}

// SystemMetricInput is the wire shape of one metrics sample.
type SystemMetricInput struct {
	SessionID       OptionalID `json:"session_id"`
	CPUUsage        *float64   `json:"cpu_usage"`
	GPUUsage        *float64   `json:"gpu_usage"`
	MemoryUsage     *float64   `json:"memory_usage"`
	MeasurementTime *time.Time `json:"measurement_time"`
}

// SessionEventInput is the wire shape of one OS session event.
type SessionEventInput struct {
	SessionID         OptionalID     `json:"session_id"`
	EventType         string         `json:"event_type"`
	EventTime         *time.Time     `json:"event_time"`
	UserID            *string        `json:"user_id"`
	PreviousUserID    *string        `json:"previous_user_id"`
	MachineID         *string        `json:"machine_id"`
	TerminalSessionID *string        `json:"terminal_session_id"`
	IsRemote          bool           `json:"is_remote"`
	EventData         map[string]any `json:"event_data"`
}
