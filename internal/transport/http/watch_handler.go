package http

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vmarchenko/parley/internal/roomsvc"
)

// WatchHandler streams room-list snapshots over a WebSocket so operator
// UIs can follow room churn without polling the REST endpoint.
type WatchHandler struct {
	registry *roomsvc.Registry
	interval time.Duration
	log      *zerolog.Logger
}

// NewWatchHandler builds a new room-watch handler.
func NewWatchHandler(registry *roomsvc.Registry, interval time.Duration, logger *zerolog.Logger) *WatchHandler {
	return &WatchHandler{
		registry: registry,
		interval: interval,
		log:      logger,
	}
}

// Watch upgrades the connection and pushes a snapshot immediately, then on
// every tick until the client goes away.
// GET /api/livekit/rooms/watch
func (h *WatchHandler) Watch(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends data; the read loop only notices closure.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if err := h.push(ctx, conn); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}
			h.log.Warn().Err(err).Msg("room watch stream ended with error")
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closing")
			return
		}
	}
}

func (h *WatchHandler) push(ctx context.Context, conn *websocket.Conn) error {
	rooms, err := h.registry.ListRooms(ctx)
	if err != nil {
		return err
	}

	snapshot := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		snapshot = append(snapshot, roomResponse(room))
	}
	return wsjson.Write(ctx, conn, snapshot)
}
