package ingest

import "errors"

// ValidationError rejects one item without poisoning the batch.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string { return e.Reason }

// IsValidation reports whether err is a per-item validation rejection.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// ErrEmptyBatch is returned when no stream carries any item.
var ErrEmptyBatch = errors.New("batch carries no items")
