package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vmarchenko/parley/internal/roomsvc"
)

func TestRoomWatchStream(t *testing.T) {
	server, plane := createTestServer(t)
	token := createTestToken(t, "alice")

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/api/livekit/rooms/watch"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// First snapshot arrives immediately and is empty.
	var snapshot []RoomResponse
	if err := wsjson.Read(ctx, conn, &snapshot); err != nil {
		t.Fatalf("failed to read first snapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Errorf("expected empty first snapshot, got %v", snapshot)
	}

	// A room created behind the stream's back shows up on a later tick.
	if _, err := plane.CreateRoom(ctx, "standup", roomsvc.CreateOptions{MaxParticipants: 20}); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := wsjson.Read(ctx, conn, &snapshot); err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		if len(snapshot) == 1 && snapshot[0].Name == "standup" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room never appeared in the stream, last snapshot: %v", snapshot)
		}
	}
}

func TestRoomWatchRequiresAuth(t *testing.T) {
	server, _ := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/livekit/rooms/watch", nil)
	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.Code)
	}
}
