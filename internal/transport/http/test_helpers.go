package http

import (
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmarchenko/parley/internal/auth"
	"github.com/vmarchenko/parley/internal/config"
	"github.com/vmarchenko/parley/internal/grant"
	"github.com/vmarchenko/parley/internal/roomsvc"
)

const testJWTSecret = "test-secret"

// createTestServer wires a full server around a fake control plane.
func createTestServer(t *testing.T) (*stdhttp.Server, *roomsvc.FakeControlPlane) {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = testJWTSecret
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	cfg.LiveKit.WSURL = "ws://livekit.test"
	cfg.WatchInterval = 10 * time.Millisecond

	disabledLogger := zerolog.New(nil)

	issuer := grant.NewIssuer("test-api-key", "test-api-secret", grant.WithTTL(cfg.GrantTTL))
	plane := roomsvc.NewFakeControlPlane()
	registry := roomsvc.NewRegistry(plane, roomsvc.CreateOptions{
		IdleTimeout:     cfg.RoomIdleTimeout,
		MaxParticipants: cfg.RoomMaxParticipants,
	}, &disabledLogger)
	verifier := auth.NewVerifier(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})

	return NewServer(issuer, registry, verifier, &cfg, &disabledLogger), plane
}

// createTestToken mints a bearer token the test server accepts.
func createTestToken(t *testing.T, identity string) string {
	t.Helper()

	token, err := auth.MintForTest(&auth.JWTConfig{
		Secret:   []byte(testJWTSecret),
		Issuer:   "test",
		Audience: "test",
	}, identity, time.Hour)
	if err != nil {
		t.Fatalf("failed to mint test token: %v", err)
	}
	return token
}
