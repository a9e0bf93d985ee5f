package auth

import (
	"errors"
	"fmt"
)

// AuthenticationError is returned when login or registration succeeded at
// the transport level but produced no usable token.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Message
}

// SessionExpiredError reports why a persisted session was rejected.
type SessionExpiredError struct {
	Reason string
	Err    error
}

func (e *SessionExpiredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session expired: %s: %v", e.Reason, e.Err)
	}
	return "session expired: " + e.Reason
}

func (e *SessionExpiredError) Unwrap() error { return e.Err }

// IsSessionExpired reports whether err (or any error in its chain) is a
// SessionExpiredError.
func IsSessionExpired(err error) bool {
	var expired *SessionExpiredError
	return errors.As(err, &expired)
}
