package token

import "errors"

var (
	// ErrNotFound is returned when a token string matches no row.
	ErrNotFound = errors.New("token not found")
	// ErrInvalidInput is returned for malformed save/issue requests.
	ErrInvalidInput = errors.New("invalid token input")
)
