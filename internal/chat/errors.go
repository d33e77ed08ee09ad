package chat

import "errors"

// ErrNotFound is returned by store lookups for unknown message ids.
var ErrNotFound = errors.New("message not found")

// ValidationError rejects a malformed message before persistence. The
// sender is notified synchronously; nothing is stored.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid message: " + e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
