package roomsvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"
)

// upsertRoomAPI mimics the LiveKit room service: create never fails on a
// taken name, it returns the existing room.
type upsertRoomAPI struct {
	mu    sync.Mutex
	rooms map[string]*livekit.Room

	createCalls int
}

func newUpsertRoomAPI() *upsertRoomAPI {
	return &upsertRoomAPI{rooms: make(map[string]*livekit.Room)}
}

func (a *upsertRoomAPI) CreateRoom(_ context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.createCalls++
	if room, ok := a.rooms[req.Name]; ok {
		return room, nil
	}
	room := &livekit.Room{
		Name:            req.Name,
		CreationTime:    time.Now().Unix(),
		EmptyTimeout:    req.EmptyTimeout,
		MaxParticipants: req.MaxParticipants,
	}
	a.rooms[req.Name] = room
	return room, nil
}

func (a *upsertRoomAPI) DeleteRoom(_ context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.rooms, req.Room)
	return &livekit.DeleteRoomResponse{}, nil
}

func (a *upsertRoomAPI) ListRooms(_ context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	resp := &livekit.ListRoomsResponse{}
	if len(req.Names) == 0 {
		for _, room := range a.rooms {
			resp.Rooms = append(resp.Rooms, room)
		}
		return resp, nil
	}
	for _, name := range req.Names {
		if room, ok := a.rooms[name]; ok {
			resp.Rooms = append(resp.Rooms, room)
		}
	}
	return resp, nil
}

func TestLiveKitCreateRoomConcurrentSingleWinner(t *testing.T) {
	api := newUpsertRoomAPI()
	plane := &LiveKitControlPlane{api: api}

	const racers = 8
	var (
		start    = make(chan struct{})
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		rejected int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := plane.CreateRoom(context.Background(), "standup", CreateOptions{MaxParticipants: 20})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrRoomExists):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if winners != 1 {
		t.Errorf("got %d winners, want exactly 1", winners)
	}
	if rejected != racers-1 {
		t.Errorf("got %d ErrRoomExists, want %d", rejected, racers-1)
	}
	// The upsert itself never rejects duplicates, so a single upstream
	// create proves the losers were stopped before reaching it.
	if api.createCalls != 1 {
		t.Errorf("upstream create called %d times, want 1", api.createCalls)
	}
}

func TestLiveKitCreateRoomDuplicateSequential(t *testing.T) {
	plane := &LiveKitControlPlane{api: newUpsertRoomAPI()}

	if _, err := plane.CreateRoom(context.Background(), "standup", CreateOptions{}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := plane.CreateRoom(context.Background(), "standup", CreateOptions{}); !errors.Is(err, ErrRoomExists) {
		t.Errorf("second create err = %v, want ErrRoomExists", err)
	}
}

func TestLiveKitDeleteRoomNotFound(t *testing.T) {
	plane := &LiveKitControlPlane{api: newUpsertRoomAPI()}

	if err := plane.DeleteRoom(context.Background(), "ghost"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("delete err = %v, want ErrRoomNotFound", err)
	}
}

func TestLiveKitDeleteRoomRemoves(t *testing.T) {
	plane := &LiveKitControlPlane{api: newUpsertRoomAPI()}

	if _, err := plane.CreateRoom(context.Background(), "standup", CreateOptions{IdleTimeout: 10 * time.Minute}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := plane.DeleteRoom(context.Background(), "standup"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rooms, err := plane.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("expected no rooms after delete, got %v", rooms)
	}
}
