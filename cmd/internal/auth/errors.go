package auth

import "errors"

var (
	// ErrUnauthorized is returned when no valid credential accompanies a
	// request that requires one.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when a valid credential lacks the role an
	// endpoint requires.
	ErrForbidden = errors.New("forbidden")

	// ErrUserNotFound is returned by user resolution when the username is
	// unknown and auto-creation is disabled.
	ErrUserNotFound = errors.New("user not found")
)
