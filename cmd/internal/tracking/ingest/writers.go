package ingest

import (
	"context"
	"log/slog"
	"time"

	"pulse/cmd/identity/ids"
)

// Sink is the persistence boundary the writers push into.
type Sink interface {
	InsertActivityEvent(ctx context.Context, e ActivityEvent) error
	InsertAppUsage(ctx context.Context, u AppUsage) error
	InsertSystemMetric(ctx context.Context, m SystemMetric) error
	InsertSessionEvent(ctx context.Context, e SessionEvent) error

	// OpenAFK opens an AFK period unless the session already has one open.
	OpenAFK(ctx context.Context, p AFKPeriod) error
	// CloseAFK closes the session's open AFK period at the given instant.
	// No-op when none is open or the instant does not follow its start.
	CloseAFK(ctx context.Context, sessionID string, at time.Time, by *string) error
}

// Writers validates, coerces, and persists agent observations, one
// method per stream.
type Writers struct {
	log  *slog.Logger
	sink Sink
	now  func() time.Time
}

// NewWriters constructs Writers over sink.
func NewWriters(log *slog.Logger, sink Sink) *Writers {
	if log == nil {
		log = slog.Default()
	}
	return &Writers{log: log, sink: sink, now: time.Now}
}

// resolveSessionID applies the per-item override when present, falling
// back to the batch session. An explicit null rejects the item.
func resolveSessionID(batchSessionID string, item OptionalID) (string, error) {
	raw := batchSessionID
	if item.Set {
		if item.Value == nil {
			return "", ValidationError{Reason: "session_id is null"}
		}
		raw = *item.Value
	}
	id, ok := ids.Normalize(raw)
	if !ok {
		return "", ValidationError{Reason: "session_id is not a valid uuid"}
	}
	return id, nil
}

func (w *Writers) stamp(now time.Time, actor string) (time.Time, *string) {
	by := &actor
	if actor == "" {
		by = nil
	}
	return now, by
}

// WriteActivity persists one activity event. Unknown event types fall
// back to mouse_click and a missing event time falls back to now, both
// with a warning. afk_start and afk_end additionally maintain the
// session's AFK periods.
func (w *Writers) WriteActivity(ctx context.Context, sessionID string, in ActivityEventInput, actor string) (ActivityEvent, error) {
	sid, err := resolveSessionID(sessionID, in.SessionID)
	if err != nil {
		return ActivityEvent{}, err
	}

	now, by := w.stamp(w.now().UTC(), actor)

	eventType := in.EventType
	if !activityEventTypes[eventType] {
		w.log.Warn("ingest.activity.event_type_defaulted", "got", eventType, "session_id", sid)
		eventType = EventMouseClick
	}
	eventTime := now
	if in.EventTime != nil {
		eventTime = in.EventTime.UTC()
	} else {
		w.log.Warn("ingest.activity.event_time_defaulted", "session_id", sid)
	}

	e := ActivityEvent{
		ID:        ids.NewUUID(),
		SessionID: sid,
		AppID:     in.AppID,
		EventType: eventType,
		EventTime: eventTime,
		EventData: in.EventData,
	}
	e.Audit.CreatedAt, e.Audit.CreatedBy = now, by
	e.Audit.UpdatedAt, e.Audit.UpdatedBy = now, by

	if err := w.sink.InsertActivityEvent(ctx, e); err != nil {
		return ActivityEvent{}, err
	}

	switch eventType {
	case EventAFKStart:
		p := AFKPeriod{ID: ids.NewUUID(), SessionID: sid, StartTime: eventTime}
		p.Audit.CreatedAt, p.Audit.CreatedBy = now, by
		p.Audit.UpdatedAt, p.Audit.UpdatedBy = now, by
		if err := w.sink.OpenAFK(ctx, p); err != nil {
			return ActivityEvent{}, err
		}
	case EventAFKEnd:
		if err := w.sink.CloseAFK(ctx, sid, eventTime, by); err != nil {
			return ActivityEvent{}, err
		}
	}
	return e, nil
}

// WriteAppUsage persists one focus interval. app_id is required; a set
// end time must come after the start.
func (w *Writers) WriteAppUsage(ctx context.Context, sessionID string, in AppUsageInput, actor string) (AppUsage, error) {
	sid, err := resolveSessionID(sessionID, in.SessionID)
	if err != nil {
		return AppUsage{}, err
	}
	if in.AppID == "" {
		return AppUsage{}, ValidationError{Reason: "app_id is required"}
	}

	now, by := w.stamp(w.now().UTC(), actor)

	start := now
	if in.StartTime != nil {
		start = in.StartTime.UTC()
	} else {
		w.log.Warn("ingest.app_usage.start_time_defaulted", "session_id", sid)
	}
	var end *time.Time
	if in.EndTime != nil {
		e := in.EndTime.UTC()
		if !e.After(start) {
			return AppUsage{}, ValidationError{Reason: "end_time must be after start_time"}
		}
		end = &e
	}
	active := end == nil
	if in.IsActive != nil {
		active = *in.IsActive
	}

	u := AppUsage{
		ID:          ids.NewUUID(),
		SessionID:   sid,
		AppID:       in.AppID,
		WindowTitle: in.WindowTitle,
		StartTime:   start,
		EndTime:     end,
		IsActive:    active,
	}
	u.Audit.CreatedAt, u.Audit.CreatedBy = now, by
	u.Audit.UpdatedAt, u.Audit.UpdatedBy = now, by

	if err := w.sink.InsertAppUsage(ctx, u); err != nil {
		return AppUsage{}, err
	}
	return u, nil
}

// WriteMetric persists one resource sample; missing percentages default
// to zero and out-of-range values are clamped to [0, 100].
func (w *Writers) WriteMetric(ctx context.Context, sessionID string, in SystemMetricInput, actor string) (SystemMetric, error) {
	sid, err := resolveSessionID(sessionID, in.SessionID)
	if err != nil {
		return SystemMetric{}, err
	}

	now, by := w.stamp(w.now().UTC(), actor)

	at := now
	if in.MeasurementTime != nil {
		at = in.MeasurementTime.UTC()
	}

	m := SystemMetric{
		ID:              ids.NewUUID(),
		SessionID:       sid,
		CPUUsage:        clampPercent(in.CPUUsage),
		GPUUsage:        clampPercent(in.GPUUsage),
		MemoryUsage:     clampPercent(in.MemoryUsage),
		MeasurementTime: at,
	}
	m.Audit.CreatedAt, m.Audit.CreatedBy = now, by
	m.Audit.UpdatedAt, m.Audit.UpdatedBy = now, by

	if err := w.sink.InsertSystemMetric(ctx, m); err != nil {
		return SystemMetric{}, err
	}
	return m, nil
}

// WriteSessionEvent persists one OS session transition. The event user
// defaults to the acting identity and unknown event types fall back to
// login with a warning.
func (w *Writers) WriteSessionEvent(ctx context.Context, sessionID string, in SessionEventInput, actor string) (SessionEvent, error) {
	sid, err := resolveSessionID(sessionID, in.SessionID)
	if err != nil {
		return SessionEvent{}, err
	}

	now, by := w.stamp(w.now().UTC(), actor)

	eventType := in.EventType
	if !sessionEventTypes[eventType] {
		w.log.Warn("ingest.session_event.event_type_defaulted", "got", eventType, "session_id", sid)
		eventType = SessionLogin
	}
	eventTime := now
	if in.EventTime != nil {
		eventTime = in.EventTime.UTC()
	} else {
		w.log.Warn("ingest.session_event.event_time_defaulted", "session_id", sid)
	}
	userID := actor
	if in.UserID != nil && *in.UserID != "" {
		userID = *in.UserID
	}
	if userID == "" {
		return SessionEvent{}, ValidationError{Reason: "user_id is required"}
	}

	e := SessionEvent{
		ID:                ids.NewUUID(),
		SessionID:         sid,
		EventType:         eventType,
		EventTime:         eventTime,
		UserID:            userID,
		PreviousUserID:    in.PreviousUserID,
		MachineID:         in.MachineID,
		TerminalSessionID: in.TerminalSessionID,
		IsRemote:          in.IsRemote,
		EventData:         in.EventData,
	}
	e.Audit.CreatedAt, e.Audit.CreatedBy = now, by
	e.Audit.UpdatedAt, e.Audit.UpdatedBy = now, by

	if err := w.sink.InsertSessionEvent(ctx, e); err != nil {
		return SessionEvent{}, err
	}
	return e, nil
}

// ClampPercent clamps v into [0, 100].
func ClampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func clampPercent(v *float64) float64 {
	if v == nil {
		return 0
	}
	return ClampPercent(*v)
}
