package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vmarchenko/parley/internal/grant"
)

// IssuerGrantSource adapts a local issuer into a GrantSource for one
// identity. Used server-side and in tests; remote clients use
// HTTPGrantSource.
func IssuerGrantSource(issuer *grant.Issuer, identity string) GrantSourceFunc {
	return func(_ context.Context, room string) (*grant.AccessGrant, error) {
		return issuer.Issue(identity, room, nil)
	}
}

// HTTPGrantSource fetches grants from the token endpoint, authenticating
// with the bearer token the auth subsystem issued to this client.
type HTTPGrantSource struct {
	BaseURL   string
	AuthToken string
	Client    *http.Client
}

type tokenRequest struct {
	RoomName string `json:"room_name"`
}

type tokenResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	URL          string    `json:"url"`
	Identity     string    `json:"identity"`
	RoomName     string    `json:"room_name"`
	Capabilities []string  `json:"capabilities"`
}

// Grant requests a fresh access grant for the given room.
func (s *HTTPGrantSource) Grant(ctx context.Context, room string) (*grant.AccessGrant, error) {
	body, err := json.Marshal(tokenRequest{RoomName: room})
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/livekit/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.AuthToken)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request grant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request grant: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode grant response: %w", err)
	}
	if !tr.ExpiresAt.After(time.Now()) {
		// A server handing out already-expired grants is misconfigured;
		// connecting with one would only burn a retry attempt.
		return nil, fmt.Errorf("grant for %q: %w", room, ErrGrantExpired)
	}

	caps := make([]grant.Capability, 0, len(tr.Capabilities))
	for _, c := range tr.Capabilities {
		caps = append(caps, grant.Capability(c))
	}

	return &grant.AccessGrant{
		Identity:     tr.Identity,
		Room:         tr.RoomName,
		Capabilities: grant.NewCapabilitySet(caps...),
		IssuedAt:     time.Now(),
		ExpiresAt:    tr.ExpiresAt,
		Token:        tr.Token,
	}, nil
}
