package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	lkauth "github.com/livekit/protocol/auth"
)

func TestIssueToken(t *testing.T) {
	server, _ := createTestServer(t)
	token := createTestToken(t, "alice")

	reqBody := bytes.NewBufferString(`{"room_name":"standup"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/livekit/token", reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &tokenResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if tokenResp.Identity != "alice" {
		t.Errorf("expected identity 'alice', got '%s'", tokenResp.Identity)
	}
	if tokenResp.RoomName != "standup" {
		t.Errorf("expected room 'standup', got '%s'", tokenResp.RoomName)
	}
	if tokenResp.URL != "ws://livekit.test" {
		t.Errorf("expected media URL 'ws://livekit.test', got '%s'", tokenResp.URL)
	}
	if len(tokenResp.Capabilities) != 4 {
		t.Errorf("expected all four capabilities, got %v", tokenResp.Capabilities)
	}
	if remaining := time.Until(tokenResp.ExpiresAt); remaining < 4*time.Minute || remaining > 6*time.Minute {
		t.Errorf("expected roughly 5m lifetime, got %v", remaining)
	}

	// The embedded media token must verify against the API secret and
	// carry the room join grant.
	verifier, err := lkauth.ParseAPIToken(tokenResp.Token)
	if err != nil {
		t.Fatalf("failed to parse media token: %v", err)
	}
	claims, err := verifier.Verify([]byte("test-api-secret"))
	if err != nil {
		t.Fatalf("failed to verify media token: %v", err)
	}
	if claims.Identity != "alice" {
		t.Errorf("media token identity = %q, want alice", claims.Identity)
	}
	if claims.Video == nil || !claims.Video.RoomJoin || claims.Video.Room != "standup" {
		t.Errorf("media token missing room join grant: %+v", claims.Video)
	}
}

func TestIssueTokenSubsetCapabilities(t *testing.T) {
	server, _ := createTestServer(t)
	token := createTestToken(t, "viewer")

	reqBody := bytes.NewBufferString(`{"room_name":"standup","capabilities":["join","subscribe"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/livekit/token", reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &tokenResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if len(tokenResp.Capabilities) != 2 {
		t.Fatalf("expected 2 capabilities, got %v", tokenResp.Capabilities)
	}

	verifier, err := lkauth.ParseAPIToken(tokenResp.Token)
	if err != nil {
		t.Fatalf("failed to parse media token: %v", err)
	}
	claims, err := verifier.Verify([]byte("test-api-secret"))
	if err != nil {
		t.Fatalf("failed to verify media token: %v", err)
	}
	if claims.Video.GetCanPublish() {
		t.Error("subscribe-only token must not allow publishing")
	}
	if !claims.Video.GetCanSubscribe() {
		t.Error("subscribe-only token must allow subscribing")
	}
}

func TestIssueTokenValidation(t *testing.T) {
	server, _ := createTestServer(t)
	token := createTestToken(t, "alice")

	// Missing room name
	reqBody := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/api/livekit/token", reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.Code)
	}

	// No auth
	reqBody = bytes.NewBufferString(`{"room_name":"standup"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/livekit/token", reqBody)
	req.Header.Set("Content-Type", "application/json")

	resp = httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.Code)
	}
}
