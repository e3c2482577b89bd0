package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vmarchenko/parley/internal/grant"
)

// fakeTrack counts releases so tests can assert scoped cleanup.
type fakeTrack struct {
	id     string
	kind   TrackKind
	closes atomic.Int32
}

func newFakeTrack(id string, kind TrackKind) *fakeTrack {
	return &fakeTrack{id: id, kind: kind}
}

func (t *fakeTrack) ID() string      { return t.id }
func (t *fakeTrack) Kind() TrackKind { return t.kind }

func (t *fakeTrack) Close() error {
	t.closes.Add(1)
	return nil
}

func (t *fakeTrack) released() bool { return t.closes.Load() > 0 }

// fakeConn is a scripted transport connection.
type fakeConn struct {
	events   chan Event
	audioErr error
	videoErr error
	closes   atomic.Int32

	mu         sync.Mutex
	audioCalls []bool
	videoCalls []bool
}

func newFakeConn(snapshot ...ParticipantInfo) *fakeConn {
	c := &fakeConn{events: make(chan Event, 32)}
	c.events <- ConnectedEvent{Participants: snapshot}
	return c
}

func (c *fakeConn) Events() <-chan Event { return c.events }

func (c *fakeConn) SetAudioEnabled(enabled bool) error {
	c.mu.Lock()
	c.audioCalls = append(c.audioCalls, enabled)
	c.mu.Unlock()
	return c.audioErr
}

func (c *fakeConn) SetVideoEnabled(enabled bool) error {
	c.mu.Lock()
	c.videoCalls = append(c.videoCalls, enabled)
	c.mu.Unlock()
	return c.videoErr
}

func (c *fakeConn) Close(context.Context) error {
	c.closes.Add(1)
	return nil
}

func (c *fakeConn) push(ev Event) {
	c.events <- ev
}

type connectOutcome struct {
	conn *fakeConn
	err  error
}

// fakeTransport plays back scripted connect outcomes and records how many
// attempts overlap, which must never exceed one per session.
type fakeTransport struct {
	mu      sync.Mutex
	script  []connectOutcome
	calls   int
	tokens  []string
	delay   time.Duration
	inUse   atomic.Int32
	maxSeen atomic.Int32
}

func (t *fakeTransport) Connect(ctx context.Context, _ string, token string) (Conn, error) {
	cur := t.inUse.Add(1)
	defer t.inUse.Add(-1)
	for {
		seen := t.maxSeen.Load()
		if cur <= seen || t.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens = append(t.tokens, token)

	idx := t.calls
	t.calls++
	if idx >= len(t.script) {
		if len(t.script) == 0 {
			return nil, errors.New("no scripted outcome")
		}
		idx = len(t.script) - 1
	}

	out := t.script[idx]
	if out.err != nil {
		return nil, out.err
	}
	return out.conn, nil
}

func (t *fakeTransport) connectCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *fakeTransport) tokenAt(i int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.tokens) {
		return ""
	}
	return t.tokens[i]
}

// fakeGrants issues counted grants with a configurable lifetime.
type fakeGrants struct {
	mu       sync.Mutex
	identity string
	ttl      time.Duration
	issued   int
	err      error
}

func (g *fakeGrants) Grant(_ context.Context, room string) (*grant.AccessGrant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.issued++
	now := time.Now()
	return &grant.AccessGrant{
		Identity:     g.identity,
		Room:         room,
		Capabilities: grant.AllCapabilities(),
		IssuedAt:     now,
		ExpiresAt:    now.Add(g.ttl),
		Token:        fmt.Sprintf("token-%d", g.issued),
	}, nil
}

func (g *fakeGrants) issuedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}

// testOptions returns session options with fast tuning for tests.
func testOptions(transport Transport, grants GrantSource) Options {
	return Options{
		URL:       "ws://test",
		Room:      "standup",
		Identity:  "alice",
		Grants:    grants,
		Transport: transport,
		Backoff: Backoff{
			Base:        10 * time.Millisecond,
			Multiplier:  2,
			Cap:         50 * time.Millisecond,
			MaxAttempts: 5,
		},
		ReconnectGrace:  10 * time.Millisecond,
		ReconcileWindow: 50 * time.Millisecond,
		ConnectTimeout:  time.Second,
	}
}

// waitState drains state changes until the wanted state shows up.
func waitState(t *testing.T, s *Session, want State) StateChange {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case change, ok := <-s.StateChanges():
			if !ok {
				t.Fatalf("state channel closed while waiting for %v", want)
			}
			if change.To == want {
				return change
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v (current %v)", want, s.State())
		}
	}
}

// waitRoster polls the roster snapshot until cond holds.
func waitRoster(t *testing.T, s *Session, cond func([]Participant) bool) []Participant {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Participants()
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for roster condition, last snapshot: %+v", s.Participants())
	return nil
}

func findParticipant(snap []Participant, identity string) (Participant, bool) {
	for _, p := range snap {
		if p.Identity == identity {
			return p, true
		}
	}
	return Participant{}, false
}
