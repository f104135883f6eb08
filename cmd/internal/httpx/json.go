package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// DefaultMaxBody bounds request bodies; batch payloads from chatty
// agents stay well under this.
const DefaultMaxBody int64 = 4 << 20

// ErrorBody is the error envelope every non-2xx response carries.
type ErrorBody struct {
	Error   bool           `json:"error"`
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
	Errors  []string       `json:"errors,omitempty"`
}

// WriteJSON writes v as the JSON response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorBody{Error: true, Message: msg, Code: code})
}

// WriteValidationError writes a 400 with the field-level error list.
func WriteValidationError(w http.ResponseWriter, msg string, fieldErrors []string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{
		Error:   true,
		Message: msg,
		Code:    CodeValidationFailed,
		Errors:  fieldErrors,
	})
}

// DecodeJSON decodes a single JSON value from the request body, bounded
// by maxBytes, rejecting unknown fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
