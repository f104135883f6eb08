package session

import "errors"

var (
	// ErrNotFound is returned when a session id resolves to no row.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidInput flags malformed resolution or end inputs.
	ErrInvalidInput = errors.New("invalid session input")

	// ErrInvalidTime is returned when an end timestamp does not come
	// after the session's login time.
	ErrInvalidTime = errors.New("end time must be after login time")

	// ErrConflict is surfaced when the open-session unique index fires,
	// meaning a concurrent writer won the pair.
	ErrConflict = errors.New("session conflict")
)
