package grant

import (
	"fmt"
	"time"

	lkauth "github.com/livekit/protocol/auth"
)

// DefaultTTL is how long an issued grant stays valid. Grants are cheap to
// mint, so the TTL is short enough to force re-issuance per join.
const DefaultTTL = 5 * time.Minute

// Issuer mints signed access grants against the media backend's key pair.
// Stateless: issuance never contacts the room registry, so a grant may name
// a room that does not exist yet.
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
	allowed   CapabilitySet
	now       func() time.Time
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithTTL overrides the default grant lifetime.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithAllowed restricts the capability ceiling the issuer will grant.
func WithAllowed(allowed CapabilitySet) IssuerOption {
	return func(i *Issuer) {
		i.allowed = allowed
	}
}

// withClock is used by tests to pin issuance time.
func withClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an Issuer for the given API key pair. By default any
// authenticated identity may receive the full capability set.
func NewIssuer(apiKey, apiSecret string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       DefaultTTL,
		allowed:   AllCapabilities(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a grant for identity to access room with the intersection of
// requested and allowed capabilities. A nil requested set means "everything
// the policy allows". The display name mirrors the identity.
func (i *Issuer) Issue(identity, room string, requested CapabilitySet) (*AccessGrant, error) {
	if identity == "" {
		return nil, ErrNoIdentity
	}
	if room == "" {
		return nil, ErrNoRoom
	}

	granted := i.allowed
	if requested != nil {
		granted = requested.Intersect(i.allowed)
	}

	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	video := &lkauth.VideoGrant{
		RoomJoin: granted.Has(CapabilityJoin),
		Room:     room,
	}
	video.SetCanPublish(granted.Has(CapabilityPublish))
	video.SetCanSubscribe(granted.Has(CapabilitySubscribe))
	video.SetCanPublishData(granted.Has(CapabilityPublishData))

	at := lkauth.NewAccessToken(i.apiKey, i.apiSecret)
	at.SetVideoGrant(video).
		SetIdentity(identity).
		SetName(identity).
		SetValidFor(i.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("sign grant: %w", err)
	}

	return &AccessGrant{
		Identity:     identity,
		Room:         room,
		Capabilities: granted,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		Token:        token,
	}, nil
}

// TTL reports the configured grant lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}
