package signalling

import "fmt"

// InvalidMessageError rejects a malformed or unsupported envelope. The
// coordinator reports it back to the sender as an ERROR envelope; the
// connection stays open.
type InvalidMessageError struct {
	Reason string
}

func (e *InvalidMessageError) Error() string { return e.Reason }

func invalidf(format string, args ...any) *InvalidMessageError {
	return &InvalidMessageError{Reason: fmt.Sprintf(format, args...)}
}

// OfflineError means the addressed user has no live session.
type OfflineError struct {
	UserID int64
}

func (e *OfflineError) Error() string {
	return fmt.Sprintf("user %d is offline", e.UserID)
}

// SendError wraps a transport write failure. Delivery is at-most-once and
// best effort: the failure is logged, never retried.
type SendError struct {
	UserID int64
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send message to user %d: %v", e.UserID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
