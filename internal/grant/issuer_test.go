package grant

import (
	"errors"
	"testing"
	"time"

	lkauth "github.com/livekit/protocol/auth"
)

const (
	testAPIKey    = "APItestkey12345"
	testAPISecret = "secretsecretsecretsecretsecret12"
)

func TestIssueFullCapabilities(t *testing.T) {
	issued := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	issuer := NewIssuer(testAPIKey, testAPISecret, withClock(func() time.Time { return issued }))

	g, err := issuer.Issue("alice", "standup", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if g.Identity != "alice" || g.Room != "standup" {
		t.Fatalf("unexpected grant subject: %+v", g)
	}
	if !g.ExpiresAt.After(g.IssuedAt) {
		t.Fatalf("expiresAt %v not after issuedAt %v", g.ExpiresAt, g.IssuedAt)
	}
	if got, want := g.ExpiresAt.Sub(g.IssuedAt), DefaultTTL; got != want {
		t.Fatalf("ttl = %v, want %v", got, want)
	}
	for _, c := range []Capability{CapabilityJoin, CapabilityPublish, CapabilitySubscribe, CapabilityPublishData} {
		if !g.Capabilities.Has(c) {
			t.Errorf("expected capability %q granted", c)
		}
	}
}

func TestIssuedTokenVerifies(t *testing.T) {
	issuer := NewIssuer(testAPIKey, testAPISecret)

	g, err := issuer.Issue("alice", "standup", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier, err := lkauth.ParseAPIToken(g.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if verifier.APIKey() != testAPIKey {
		t.Errorf("api key = %q, want %q", verifier.APIKey(), testAPIKey)
	}

	claims, err := verifier.Verify(testAPISecret)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if verifier.Identity() != "alice" {
		t.Errorf("identity = %q, want alice", verifier.Identity())
	}
	if claims.Video == nil {
		t.Fatal("missing video grant")
	}
	if !claims.Video.RoomJoin || claims.Video.Room != "standup" {
		t.Errorf("unexpected video grant: %+v", claims.Video)
	}
	if !claims.Video.GetCanPublish() || !claims.Video.GetCanSubscribe() || !claims.Video.GetCanPublishData() {
		t.Errorf("expected publish/subscribe/publish-data allowed: %+v", claims.Video)
	}
}

func TestIssueIntersectsRequestedWithPolicy(t *testing.T) {
	issuer := NewIssuer(testAPIKey, testAPISecret,
		WithAllowed(NewCapabilitySet(CapabilityJoin, CapabilitySubscribe)))

	g, err := issuer.Issue("bob", "standup", NewCapabilitySet(CapabilityJoin, CapabilityPublish))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if !g.Capabilities.Has(CapabilityJoin) {
		t.Error("join should survive the intersection")
	}
	if g.Capabilities.Has(CapabilityPublish) {
		t.Error("publish is outside the policy ceiling and must not be granted")
	}
	if g.Capabilities.Has(CapabilitySubscribe) {
		t.Error("subscribe was not requested and must not be granted")
	}
}

func TestIssueRejectsMissingIdentityOrRoom(t *testing.T) {
	issuer := NewIssuer(testAPIKey, testAPISecret)

	if _, err := issuer.Issue("", "standup", nil); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}
	if _, err := issuer.Issue("alice", "", nil); !errors.Is(err, ErrNoRoom) {
		t.Errorf("expected ErrNoRoom, got %v", err)
	}
}

func TestGrantExpired(t *testing.T) {
	issued := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	issuer := NewIssuer(testAPIKey, testAPISecret,
		WithTTL(time.Minute), withClock(func() time.Time { return issued }))

	g, err := issuer.Issue("alice", "standup", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if g.Expired(issued.Add(30 * time.Second)) {
		t.Error("grant should be valid before its TTL elapses")
	}
	if !g.Expired(issued.Add(time.Minute)) {
		t.Error("grant should be expired exactly at expiresAt")
	}
}
