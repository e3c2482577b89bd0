package rtc

import (
	"context"

	"github.com/vmarchenko/parley/internal/grant"
)

// Transport abstracts the media backend a session connects through. A
// transport handle is constructed and passed in per session; there is no
// process-wide shared instance.
type Transport interface {
	// Connect dials the room encoded in the grant token. It blocks until
	// the connection is established or ctx is done.
	Connect(ctx context.Context, url, token string) (Conn, error)
}

// Conn is one live connection to a room.
//
// Events delivers the typed event stream in the order the backend emitted
// it; the channel is closed when the connection is torn down. The first
// event on a healthy connection is ConnectedEvent.
type Conn interface {
	Events() <-chan Event

	// SetAudioEnabled toggles publication of the local microphone track.
	// Failures are local device problems (*DeviceError) and leave the
	// connection intact.
	SetAudioEnabled(enabled bool) error

	// SetVideoEnabled toggles publication of the local camera track.
	SetVideoEnabled(enabled bool) error

	// Close tears the connection down and releases transport resources.
	// Safe to call more than once.
	Close(ctx context.Context) error
}

// RemoteTrack is a subscription to one remote participant's published
// track. Whoever receives it from a TrackSubscribedEvent owns it and must
// Close it exactly once to release the rendering resources bound to it.
type RemoteTrack interface {
	ID() string
	Kind() TrackKind
	Close() error
}

// GrantSource supplies access grants for connect and reconnect attempts.
// The session calls it once per join and again whenever the cached grant
// has expired.
type GrantSource interface {
	Grant(ctx context.Context, room string) (*grant.AccessGrant, error)
}

// GrantSourceFunc adapts a function to the GrantSource interface.
type GrantSourceFunc func(ctx context.Context, room string) (*grant.AccessGrant, error)

func (f GrantSourceFunc) Grant(ctx context.Context, room string) (*grant.AccessGrant, error) {
	return f(ctx, room)
}
