package roomsvc

import (
	"context"
	"sync"
	"time"
)

// FakeControlPlane is an in-memory ControlPlane for tests and local
// development. Create races resolve to a single winner under its mutex.
type FakeControlPlane struct {
	mu    sync.Mutex
	rooms map[string]Room

	now func() time.Time
}

// NewFakeControlPlane creates an empty fake control plane.
func NewFakeControlPlane() *FakeControlPlane {
	return &FakeControlPlane{
		rooms: make(map[string]Room),
		now:   time.Now,
	}
}

func (f *FakeControlPlane) CreateRoom(_ context.Context, name string, opts CreateOptions) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[name]; ok {
		return Room{}, ErrRoomExists
	}

	room := Room{
		Name:            name,
		CreatedAt:       f.now(),
		IdleTimeout:     opts.IdleTimeout,
		MaxParticipants: opts.MaxParticipants,
	}
	f.rooms[name] = room
	return room, nil
}

func (f *FakeControlPlane) DeleteRoom(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[name]; !ok {
		return ErrRoomNotFound
	}
	delete(f.rooms, name)
	return nil
}

func (f *FakeControlPlane) ListRooms(_ context.Context) ([]Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rooms := make([]Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// SetParticipantCount adjusts the live count reported for a room, simulating
// joins and leaves happening on the media server.
func (f *FakeControlPlane) SetParticipantCount(name string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if room, ok := f.rooms[name]; ok {
		room.ParticipantCount = count
		f.rooms[name] = room
	}
}

var _ ControlPlane = (*FakeControlPlane)(nil)
