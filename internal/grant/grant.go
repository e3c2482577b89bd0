package grant

import (
	"errors"
	"time"
)

// Capability names a single permission encoded into an access grant.
type Capability string

const (
	CapabilityJoin        Capability = "join"
	CapabilityPublish     Capability = "publish"
	CapabilitySubscribe   Capability = "subscribe"
	CapabilityPublishData Capability = "publish-data"
)

// Errors returned by the issuer.
var (
	ErrNoIdentity = errors.New("no verified identity")
	ErrNoRoom     = errors.New("room name is empty")
)

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// AllCapabilities returns the full capability set.
func AllCapabilities() CapabilitySet {
	return NewCapabilitySet(CapabilityJoin, CapabilityPublish, CapabilitySubscribe, CapabilityPublishData)
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Intersect returns the capabilities present in both sets.
func (s CapabilitySet) Intersect(other CapabilitySet) CapabilitySet {
	out := make(CapabilitySet)
	for c := range s {
		if other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Slice returns the capabilities in a stable order.
func (s CapabilitySet) Slice() []Capability {
	order := []Capability{CapabilityJoin, CapabilityPublish, CapabilitySubscribe, CapabilityPublishData}
	out := make([]Capability, 0, len(s))
	for _, c := range order {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// AccessGrant is a signed, time-limited credential authorizing one identity
// to join one room with a fixed capability set. Immutable once issued.
type AccessGrant struct {
	Identity     string
	Room         string
	Capabilities CapabilitySet
	IssuedAt     time.Time
	ExpiresAt    time.Time

	// Token is the signed form handed to clients; opaque to them.
	Token string
}

// Expired reports whether the grant is no longer usable at the given time.
func (g *AccessGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}
