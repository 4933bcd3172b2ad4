package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionExpired is returned for any authenticated call the server
// answered with 401. By then the session has already been invalidated.
var ErrSessionExpired = errors.New("session expired or invalid token")

// Error is the normalized failure of an API call.
type Error struct {
	Op      string          // operation label, e.g. "list todos"
	Status  int             // HTTP status; 0 for transport failures
	Message string          // server-supplied message, else a per-op fallback
	Payload json.RawMessage // raw server error body when it was JSON
	Err     error           // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Message returns the user-facing text of err: the server message for API
// errors, err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if errors.Is(ae.Err, ErrSessionExpired) {
			return ErrSessionExpired.Error()
		}
		return ae.Message
	}
	return err.Error()
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// serverMessage pulls {"error": "..."} (or "message") out of a body.
func serverMessage(body []byte) (string, json.RawMessage) {
	if len(body) == 0 || !json.Valid(body) {
		return "", nil
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", json.RawMessage(body)
	}
	if eb.Error != "" {
		return eb.Error, json.RawMessage(body)
	}
	return eb.Message, json.RawMessage(body)
}
