package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vmarchenko/parley/internal/roomsvc"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	registry *roomsvc.Registry
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(registry *roomsvc.Registry, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		registry: registry,
		log:      logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
	// IdleTimeoutSeconds and MaxParticipants fall back to server defaults
	// when omitted.
	IdleTimeoutSeconds int `json:"idle_timeout_seconds,omitempty"`
	MaxParticipants    int `json:"max_participants,omitempty"`
}

// MessageResponse represents a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	Name               string `json:"name"`
	CreatedAt          string `json:"created_at"`
	IdleTimeoutSeconds int    `json:"idle_timeout_seconds"`
	MaxParticipants    int    `json:"max_participants"`
	NumParticipants    int    `json:"num_participants"`
}

func roomResponse(room roomsvc.Room) RoomResponse {
	return RoomResponse{
		Name:               room.Name,
		CreatedAt:          room.CreatedAt.Format(time.RFC3339),
		IdleTimeoutSeconds: int(room.IdleTimeout / time.Second),
		MaxParticipants:    room.MaxParticipants,
		NumParticipants:    room.ParticipantCount,
	}
}

// CreateRoom handles explicit room creation. Unlike implicit creation on
// first join, an explicit create of an existing name is rejected.
// POST /api/livekit/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.registry.CreateRoom(c.Request.Context(), req.Name, roomsvc.CreateOptions{
		IdleTimeout:     time.Duration(req.IdleTimeoutSeconds) * time.Second,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		if errors.Is(err, roomsvc.ErrRoomExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this name already exists"})
			return
		}
		if errors.Is(err, roomsvc.ErrEmptyName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room name is empty"})
			return
		}
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_name", room.Name).Msg("room created successfully")
	c.JSON(http.StatusCreated, roomResponse(room))
}

// ListRooms handles listing active rooms.
// GET /api/livekit/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.registry.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomResponse(room))
	}

	h.log.Debug().Int("room_count", len(rooms)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}

// DeleteRoom handles room deletion, disconnecting all its participants.
// DELETE /api/livekit/rooms/:name
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	name := c.Param("name")

	if err := h.registry.DeleteRoom(c.Request.Context(), name); err != nil {
		if errors.Is(err, roomsvc.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		if errors.Is(err, roomsvc.ErrEmptyName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room name is empty"})
			return
		}
		h.log.Error().Err(err).Str("room_name", name).Msg("failed to delete room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_name", name).Msg("room deleted successfully")
	c.JSON(http.StatusOK, MessageResponse{Message: "room deleted successfully"})
}
