package session

import (
	"time"

	"pulse/cmd/identity"
)

// Session is one user's presence window on one machine.
//
// LogoutTime is nil while the session is open. ContinuedFrom and
// ContinuedBy form a bidirectional chain across calendar days;
// PreviousSessionEndTime and TimeSincePreviousSession are denormalized
// from the predecessor at link time so chain stats never need a join.
type Session struct {
	ID        string
	UserID    string
	MachineID string

	IPAddress   *string
	SessionData map[string]any

	LoginTime  time.Time
	LogoutTime *time.Time

	ContinuedFrom            *string
	ContinuedBy              *string
	PreviousSessionEndTime   *time.Time
	TimeSincePreviousSession *int64 // seconds

	Audit identity.Audit
}

// Active reports whether the session is still open.
func (s Session) Active() bool { return s.LogoutTime == nil }

// Duration is the session's length; open sessions are measured up to now.
func (s Session) Duration(now time.Time) time.Duration {
	end := now
	if s.LogoutTime != nil {
		end = *s.LogoutTime
	}
	if end.Before(s.LoginTime) {
		return 0
	}
	return end.Sub(s.LoginTime)
}

// Action says what resolution did with the session it returned.
type Action string

const (
	// ActionOpened means a brand-new session row was inserted.
	ActionOpened Action = "opened"
	// ActionReopened means today's existing session had its logout cleared.
	ActionReopened Action = "reopened"
)

// ResolveInput is the normalized input to session resolution.
type ResolveInput struct {
	UserID    string
	MachineID string

	// Now is the resolution instant; zero means the engine clock.
	Now time.Time

	IPAddress         *string
	SessionData       map[string]any
	IsRemote          bool
	TerminalSessionID *string
}

// ResolveResult is what resolution produced.
type ResolveResult struct {
	Session Session
	Action  Action
}

// dayWindow returns the UTC calendar-day bounds containing t.
func dayWindow(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
