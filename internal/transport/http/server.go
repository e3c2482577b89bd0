package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vmarchenko/parley/internal/auth"
	"github.com/vmarchenko/parley/internal/config"
	"github.com/vmarchenko/parley/internal/grant"
	"github.com/vmarchenko/parley/internal/roomsvc"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds an HTTP server with all API routes wired.
func NewServer(issuer *grant.Issuer, registry *roomsvc.Registry, verifier *auth.Verifier, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	tokenHandlers := NewTokenHandlers(issuer, cfg.LiveKit.WSURL, logger)
	roomHandlers := NewRoomHandlers(registry, logger)
	watchHandler := NewWatchHandler(registry, cfg.WatchInterval, logger)

	api := router.Group("/api/livekit")
	api.Use(AuthMiddleware(verifier, logger))
	{
		api.POST("/token", tokenHandlers.IssueToken)
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.GET("/rooms", roomHandlers.ListRooms)
		api.DELETE("/rooms/:name", roomHandlers.DeleteRoom)
		api.GET("/rooms/watch", watchHandler.Watch)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
