package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmarchenko/parley/internal/auth"
	"github.com/vmarchenko/parley/internal/config"
	"github.com/vmarchenko/parley/internal/grant"
	"github.com/vmarchenko/parley/internal/roomsvc"
	transporthttp "github.com/vmarchenko/parley/internal/transport/http"
)

// App wires together the grant issuer, room registry, and transport layer.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.LiveKit.APIKey == "" || cfg.LiveKit.APISecret == "" {
		return nil, fmt.Errorf("livekit api key and secret are required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	issuer := grant.NewIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, grant.WithTTL(cfg.GrantTTL))

	plane := roomsvc.NewLiveKitControlPlane(cfg.LiveKit.Host, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	registry := roomsvc.NewRegistry(plane, roomsvc.CreateOptions{
		IdleTimeout:     cfg.RoomIdleTimeout,
		MaxParticipants: cfg.RoomMaxParticipants,
	}, logger)

	verifier := auth.NewVerifier(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})

	logger.Info().Str("livekit_host", cfg.LiveKit.Host).Msg("control plane initialized")

	server := transporthttp.NewServer(issuer, registry, verifier, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
