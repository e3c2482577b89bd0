package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vmarchenko/parley/internal/grant"
)

// TokenHandlers provides HTTP handlers for access-grant issuance.
type TokenHandlers struct {
	issuer *grant.Issuer
	wsURL  string
	log    *zerolog.Logger
}

// NewTokenHandlers creates a new token handlers instance.
func NewTokenHandlers(issuer *grant.Issuer, wsURL string, logger *zerolog.Logger) *TokenHandlers {
	return &TokenHandlers{
		issuer: issuer,
		wsURL:  wsURL,
		log:    logger,
	}
}

// TokenRequest represents the token request body. Capabilities is optional;
// omitting it requests everything the issuer allows.
type TokenRequest struct {
	RoomName     string   `json:"room_name" binding:"required,min=1,max=64"`
	Capabilities []string `json:"capabilities"`
}

// TokenResponse represents the issued grant in API responses.
type TokenResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	URL          string    `json:"url"`
	Identity     string    `json:"identity"`
	RoomName     string    `json:"room_name"`
	Capabilities []string  `json:"capabilities"`
}

// IssueToken mints a time-boxed access grant for the authenticated identity.
// POST /api/livekit/token
func (h *TokenHandlers) IssueToken(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		h.log.Error().Msg("identity not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid token request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var requested grant.CapabilitySet
	if req.Capabilities != nil {
		caps := make([]grant.Capability, 0, len(req.Capabilities))
		for _, name := range req.Capabilities {
			caps = append(caps, grant.Capability(name))
		}
		requested = grant.NewCapabilitySet(caps...)
	}

	g, err := h.issuer.Issue(identity, req.RoomName, requested)
	if err != nil {
		if errors.Is(err, grant.ErrNoIdentity) || errors.Is(err, grant.ErrNoRoom) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Str("identity", identity).Str("room", req.RoomName).Msg("failed to issue grant")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	names := make([]string, 0, len(g.Capabilities))
	for _, capability := range g.Capabilities.Slice() {
		names = append(names, string(capability))
	}

	h.log.Info().Str("identity", identity).Str("room", req.RoomName).Time("expires_at", g.ExpiresAt).Msg("grant issued")
	c.JSON(http.StatusOK, TokenResponse{
		Token:        g.Token,
		ExpiresAt:    g.ExpiresAt,
		URL:          h.wsURL,
		Identity:     g.Identity,
		RoomName:     g.Room,
		Capabilities: names,
	})
}
