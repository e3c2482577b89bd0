package roomsvc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors surfaced by the registry.
var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrEmptyName    = errors.New("room name is empty")
)

// ControlPlaneError wraps a failure from the media backend's control plane,
// preserving the upstream status for callers that want to retry.
type ControlPlaneError struct {
	Op     string
	Status string
	Err    error
}

func (e *ControlPlaneError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: upstream %s: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ControlPlaneError) Unwrap() error {
	return e.Err
}

// Room is a point-in-time snapshot of a server-tracked room. Participant
// counts are live reads, not transactional with concurrent joins.
type Room struct {
	Name             string
	CreatedAt        time.Time
	IdleTimeout      time.Duration
	MaxParticipants  int
	ParticipantCount int
}

// CreateOptions are the policy knobs for a new room. Zero values mean "use
// the registry defaults".
type CreateOptions struct {
	IdleTimeout     time.Duration
	MaxParticipants int
}

// ControlPlane abstracts the media backend's room API.
//
// CreateRoom must fail with ErrRoomExists when the name is taken; when two
// creates race, the control plane picks the single winner. DeleteRoom must
// fail with ErrRoomNotFound when the room is absent.
type ControlPlane interface {
	CreateRoom(ctx context.Context, name string, opts CreateOptions) (Room, error)
	DeleteRoom(ctx context.Context, name string) error
	ListRooms(ctx context.Context) ([]Room, error)
}
