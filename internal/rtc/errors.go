package rtc

import (
	"errors"
	"fmt"
)

// ErrGrantExpired signals that a cached grant's expiry has passed. The
// session handles it internally by re-issuing before the next connect; it
// only escapes to callers when re-issuance itself keeps failing.
var ErrGrantExpired = errors.New("access grant expired")

// ErrSessionTerminal is returned by commands issued against a session that
// has already reached Disconnected or Failed.
var ErrSessionTerminal = errors.New("session is terminal")

// ConnectError records a single failed connect or reconnect attempt. It
// feeds the retry counter; callers only see it as the cause of a terminal
// Failed state once the retry ceiling is exhausted.
type ConnectError struct {
	Attempt int
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect attempt %d: %v", e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// DeviceError reports a local media device problem (permission denied,
// device unavailable). It never affects session state.
type DeviceError struct {
	Kind TrackKind
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s device: %v", e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
