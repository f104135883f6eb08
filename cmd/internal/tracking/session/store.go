package session

import (
	"context"
	"time"
)

// Store is the session persistence boundary.
type Store interface {
	// InTx runs fn inside a transaction. Everything the engine mutates
	// goes through the Tx handed to fn.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetByID(ctx context.Context, id string) (Session, error)

	// CountForPair returns the total session count for a (user, machine)
	// pair. The chain walker uses it as its iteration bound.
	CountForPair(ctx context.Context, userID, machineID string) (int, error)
}

// Tx is the transactional mutation surface resolution runs against.
// Row-returning methods take row locks where the backend supports them.
type Tx interface {
	// LockPair serializes concurrent resolutions of the same pair for the
	// rest of the transaction.
	LockPair(ctx context.Context, userID, machineID string) error

	Get(ctx context.Context, id string) (Session, error)

	// ActiveSessions returns the pair's open sessions, newest login first.
	ActiveSessions(ctx context.Context, userID, machineID string) ([]Session, error)

	// LatestOnDay returns the pair's most recent session whose login falls
	// in [dayStart, dayEnd), open or closed.
	LatestOnDay(ctx context.Context, userID, machineID string, dayStart, dayEnd time.Time) (Session, bool, error)

	// LatestClosed returns the pair's most recently ended session.
	LatestClosed(ctx context.Context, userID, machineID string) (Session, bool, error)

	Insert(ctx context.Context, s Session) error

	// Close stamps logout_time on an open session. Closing an already
	// closed session overwrites the stamp; callers gate idempotence.
	Close(ctx context.Context, id string, at time.Time, by *string) error

	// Reopen clears logout_time, turning today's session active again.
	Reopen(ctx context.Context, id string, now time.Time, by *string) error

	// SetContinuedBy links a closed session forward to its successor.
	SetContinuedBy(ctx context.Context, id, successorID string, now time.Time, by *string) error
}
