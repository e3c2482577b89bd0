package roomsvc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"
)

// roomAPI is the slice of the LiveKit room service this control plane
// consumes. lksdk.RoomServiceClient satisfies it.
type roomAPI interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
	ListRooms(ctx context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error)
}

// LiveKitControlPlane implements ControlPlane against a LiveKit deployment.
//
// LiveKit's own create is an upsert, so room uniqueness cannot be delegated
// upstream; the check-and-create sequence runs under a mutex instead, which
// resolves concurrent creators in this process to a single winner. Creators
// going through other processes bypass that mutex and land on the upsert.
type LiveKitControlPlane struct {
	mu  sync.Mutex
	api roomAPI
}

// NewLiveKitControlPlane creates a control-plane client for the given host
// and API key pair.
func NewLiveKitControlPlane(host, apiKey, apiSecret string) *LiveKitControlPlane {
	return &LiveKitControlPlane{
		api: lksdk.NewRoomServiceClient(host, apiKey, apiSecret),
	}
}

// CreateRoom creates the room upstream, failing with ErrRoomExists when the
// name is already live.
func (p *LiveKitControlPlane) CreateRoom(ctx context.Context, name string, opts CreateOptions) (Room, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.api.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err != nil {
		return Room{}, &ControlPlaneError{Op: "create room", Status: twirpStatus(err), Err: err}
	}
	if len(existing.GetRooms()) > 0 {
		return Room{}, ErrRoomExists
	}

	room, err := p.api.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    uint32(opts.IdleTimeout / time.Second),
		MaxParticipants: uint32(opts.MaxParticipants),
	})
	if err != nil {
		if isTwirpCode(err, twirp.AlreadyExists) {
			return Room{}, ErrRoomExists
		}
		return Room{}, &ControlPlaneError{Op: "create room", Status: twirpStatus(err), Err: err}
	}

	return fromLiveKitRoom(room), nil
}

// DeleteRoom removes the room upstream, disconnecting any participants.
func (p *LiveKitControlPlane) DeleteRoom(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.api.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err != nil {
		return &ControlPlaneError{Op: "delete room", Status: twirpStatus(err), Err: err}
	}
	if len(existing.GetRooms()) == 0 {
		return ErrRoomNotFound
	}

	if _, err := p.api.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name}); err != nil {
		if isTwirpCode(err, twirp.NotFound) {
			return ErrRoomNotFound
		}
		return &ControlPlaneError{Op: "delete room", Status: twirpStatus(err), Err: err}
	}
	return nil
}

// ListRooms returns snapshots of all live rooms.
func (p *LiveKitControlPlane) ListRooms(ctx context.Context) ([]Room, error) {
	resp, err := p.api.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, &ControlPlaneError{Op: "list rooms", Status: twirpStatus(err), Err: err}
	}

	rooms := make([]Room, 0, len(resp.GetRooms()))
	for _, room := range resp.GetRooms() {
		rooms = append(rooms, fromLiveKitRoom(room))
	}
	return rooms, nil
}

func fromLiveKitRoom(room *livekit.Room) Room {
	return Room{
		Name:             room.GetName(),
		CreatedAt:        time.Unix(room.GetCreationTime(), 0),
		IdleTimeout:      time.Duration(room.GetEmptyTimeout()) * time.Second,
		MaxParticipants:  int(room.GetMaxParticipants()),
		ParticipantCount: int(room.GetNumParticipants()),
	}
}

func isTwirpCode(err error, code twirp.ErrorCode) bool {
	var twerr twirp.Error
	if errors.As(err, &twerr) {
		return twerr.Code() == code
	}
	return false
}

func twirpStatus(err error) string {
	var twerr twirp.Error
	if errors.As(err, &twerr) {
		return string(twerr.Code())
	}
	return ""
}
