package session

import (
	"context"
	"log/slog"
	"time"

	"pulse/cmd/identity/ids"
	"pulse/cmd/internal/metrics"
)

// Engine drives session lifecycle decisions over a Store.
type Engine struct {
	log   *slog.Logger
	store Store
	now   func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(log *slog.Logger, store Store) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log, store: store, now: time.Now}
}

// ResolveOrCreate resolves the session a handshake should attach to.
//
// Inside one transaction it closes any straggling active session for
// the pair, reopens today's session when one exists, and otherwise
// inserts a fresh session linked back to the most recently ended one.
func (e *Engine) ResolveOrCreate(ctx context.Context, in ResolveInput) (ResolveResult, error) {
	userID, ok := ids.Normalize(in.UserID)
	if !ok {
		return ResolveResult{}, ErrInvalidInput
	}
	machineID, ok := ids.Normalize(in.MachineID)
	if !ok {
		return ResolveResult{}, ErrInvalidInput
	}
	now := in.Now
	if now.IsZero() {
		now = e.now()
	}
	now = now.UTC()

	var res ResolveResult
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockPair(ctx, userID, machineID); err != nil {
			return err
		}

		active, err := tx.ActiveSessions(ctx, userID, machineID)
		if err != nil {
			return err
		}
		for _, s := range active {
			if err := tx.Close(ctx, s.ID, now, &userID); err != nil {
				return err
			}
		}
		if len(active) > 0 {
			e.log.Warn("session.stragglers_closed",
				"user_id", userID, "machine_id", machineID, "count", len(active))
		}

		dayStart, dayEnd := dayWindow(now)
		today, found, err := tx.LatestOnDay(ctx, userID, machineID, dayStart, dayEnd)
		if err != nil {
			return err
		}
		if found {
			if err := tx.Reopen(ctx, today.ID, now, &userID); err != nil {
				return err
			}
			today.LogoutTime = nil
			today.Audit.UpdatedAt = now
			res = ResolveResult{Session: today, Action: ActionReopened}
			return nil
		}

		prev, hasPrev, err := tx.LatestClosed(ctx, userID, machineID)
		if err != nil {
			return err
		}

		s := Session{
			ID:          ids.NewUUID(),
			UserID:      userID,
			MachineID:   machineID,
			IPAddress:   in.IPAddress,
			SessionData: mergedSessionData(in),
			LoginTime:   now,
		}
		s.Audit.CreatedAt = now
		s.Audit.CreatedBy = &userID
		s.Audit.UpdatedAt = now

		if hasPrev && prev.LogoutTime != nil {
			gap := int64(now.Sub(*prev.LogoutTime) / time.Second)
			if gap < 0 {
				gap = 0
			}
			s.ContinuedFrom = &prev.ID
			s.PreviousSessionEndTime = prev.LogoutTime
			s.TimeSincePreviousSession = &gap
		}

		if err := tx.Insert(ctx, s); err != nil {
			return err
		}
		if s.ContinuedFrom != nil {
			if err := tx.SetContinuedBy(ctx, prev.ID, s.ID, now, &userID); err != nil {
				return err
			}
		}
		res = ResolveResult{Session: s, Action: ActionOpened}
		return nil
	})
	if err != nil {
		return ResolveResult{}, err
	}

	metrics.SessionsResolved.WithLabelValues(string(res.Action)).Inc()
	e.log.Info("session.resolved",
		"session_id", res.Session.ID, "action", string(res.Action),
		"user_id", userID, "machine_id", machineID)
	return res, nil
}

// EndSession closes a session at the given instant. Re-ending a closed
// session with the same timestamp is a no-op; a timestamp at or before
// login is rejected.
func (e *Engine) EndSession(ctx context.Context, id string, at time.Time, by *string) (Session, error) {
	sid, ok := ids.Normalize(id)
	if !ok {
		return Session{}, ErrInvalidInput
	}
	if at.IsZero() {
		at = e.now()
	}
	at = at.UTC()

	var out Session
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		s, err := tx.Get(ctx, sid)
		if err != nil {
			return err
		}
		if !at.After(s.LoginTime) {
			return ErrInvalidTime
		}
		if s.LogoutTime != nil && s.LogoutTime.Equal(at) {
			out = s
			return nil
		}
		if err := tx.Close(ctx, sid, at, by); err != nil {
			return err
		}
		s.LogoutTime = &at
		s.Audit.UpdatedAt = at
		out = s
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	e.log.Info("session.ended", "session_id", out.ID, "logout_time", at)
	return out, nil
}

func mergedSessionData(in ResolveInput) map[string]any {
	if !in.IsRemote && in.TerminalSessionID == nil {
		return in.SessionData
	}
	merged := make(map[string]any, len(in.SessionData)+2)
	for k, v := range in.SessionData {
		merged[k] = v
	}
	if in.IsRemote {
		merged["is_remote"] = true
	}
	if in.TerminalSessionID != nil {
		merged["terminal_session_id"] = *in.TerminalSessionID
	}
	return merged
}
