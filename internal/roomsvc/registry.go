package roomsvc

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Registry manages named rooms against the media backend's control plane.
//
// Creation policy: explicit CreateRoom is a strict pre-provisioning call and
// fails with ErrRoomExists on a name collision. Rooms may also come into
// existence implicitly when the first holder of a valid grant joins; the two
// paths are deliberately decoupled, so a grant can be issued for a room the
// registry has never seen.
type Registry struct {
	plane    ControlPlane
	defaults CreateOptions
	log      *zerolog.Logger
}

// NewRegistry builds a Registry over the given control plane. The defaults
// fill in any CreateOptions field left zero by callers.
func NewRegistry(plane ControlPlane, defaults CreateOptions, logger *zerolog.Logger) *Registry {
	return &Registry{
		plane:    plane,
		defaults: defaults,
		log:      logger,
	}
}

// CreateRoom creates a named room. Fails with ErrRoomExists if the name is
// taken and ErrEmptyName if the name is blank.
func (r *Registry) CreateRoom(ctx context.Context, name string, opts CreateOptions) (Room, error) {
	if name == "" {
		return Room{}, ErrEmptyName
	}

	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = r.defaults.IdleTimeout
	}
	if opts.MaxParticipants == 0 {
		opts.MaxParticipants = r.defaults.MaxParticipants
	}

	room, err := r.plane.CreateRoom(ctx, name, opts)
	if err != nil {
		return Room{}, fmt.Errorf("create room %q: %w", name, err)
	}

	r.log.Info().
		Str("room", room.Name).
		Dur("idle_timeout", room.IdleTimeout).
		Int("max_participants", room.MaxParticipants).
		Msg("room created")
	return room, nil
}

// DeleteRoom removes a room, forcibly disconnecting any connected sessions.
// Fails with ErrRoomNotFound when the room is absent.
func (r *Registry) DeleteRoom(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}

	if err := r.plane.DeleteRoom(ctx, name); err != nil {
		return fmt.Errorf("delete room %q: %w", name, err)
	}

	r.log.Info().Str("room", name).Msg("room deleted")
	return nil
}

// ListRooms returns current room snapshots including live participant
// counts. Point-in-time read: counts may lag concurrent joins and leaves.
func (r *Registry) ListRooms(ctx context.Context) ([]Room, error) {
	rooms, err := r.plane.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
