package rtc

// State is the connection state of a session.
//
// Transitions:
//
//	Idle -> Connecting -> Connected <-> Reconnecting
//	Connecting/Reconnecting -> Failed        (retry ceiling exhausted)
//	any non-terminal        -> Disconnected  (explicit leave)
//
// Disconnected and Failed are terminal; a finished session is discarded and
// a new one started by the caller.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateFailed
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFailed
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange is a connection-state notification delivered to subscribers.
// Err is non-nil only when To is StateFailed and carries the final connect
// error.
type StateChange struct {
	From State
	To   State
	Err  error
}
