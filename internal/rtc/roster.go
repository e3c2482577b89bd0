package rtc

import (
	"sort"

	"github.com/rs/zerolog"
)

// Participant is a read-only snapshot of one roster entry.
type Participant struct {
	Identity string
	IsLocal  bool
	Tracks   []TrackInfo
}

// TrackInfo describes one published track in a snapshot.
type TrackInfo struct {
	ID   string
	Kind TrackKind
}

// roster is the live set of participants and their subscribed tracks. It is
// owned by the session's event loop and must never be touched from other
// goroutines; external readers get copies via snapshot.
type roster struct {
	local   string
	entries map[string]*rosterEntry
	// pending parks track events whose owner has not joined yet; they are
	// replayed in arrival order once the join event shows up.
	pending map[string][]TrackSubscribedEvent
	log     *zerolog.Logger
}

type rosterEntry struct {
	identity string
	tracks   map[string]RemoteTrack
	order    []string
	// stale marks an entry awaiting confirmation after a reconnect.
	stale bool
}

func newRoster(localIdentity string, logger *zerolog.Logger) *roster {
	return &roster{
		local:   localIdentity,
		entries: make(map[string]*rosterEntry),
		pending: make(map[string][]TrackSubscribedEvent),
		log:     logger,
	}
}

func (r *roster) addParticipant(identity string) {
	if identity == "" || identity == r.local {
		return
	}
	entry, ok := r.entries[identity]
	if !ok {
		entry = &rosterEntry{identity: identity, tracks: make(map[string]RemoteTrack)}
		r.entries[identity] = entry
	}
	entry.stale = false

	// Replay any track events that raced ahead of this join.
	for _, ev := range r.pending[identity] {
		r.attachTrack(entry, ev.Track)
	}
	delete(r.pending, identity)
}

func (r *roster) removeParticipant(identity string) {
	r.discardPending(identity)
	entry, ok := r.entries[identity]
	if !ok {
		return
	}
	r.releaseTracks(entry)
	delete(r.entries, identity)
}

func (r *roster) addTrack(ev TrackSubscribedEvent) {
	if ev.Track == nil {
		return
	}
	entry, ok := r.entries[ev.Identity]
	if !ok {
		// Owner not announced yet; park the event until the join arrives.
		r.log.Debug().Str("identity", ev.Identity).Str("track", ev.Track.ID()).
			Msg("buffering track for unknown participant")
		r.pending[ev.Identity] = append(r.pending[ev.Identity], ev)
		return
	}
	r.attachTrack(entry, ev.Track)
}

func (r *roster) removeTrack(identity, trackID string) {
	entry, ok := r.entries[identity]
	if !ok {
		return
	}
	track, ok := entry.tracks[trackID]
	if !ok {
		return
	}
	if err := track.Close(); err != nil {
		r.log.Warn().Err(err).Str("track", trackID).Msg("failed to release track")
	}
	delete(entry.tracks, trackID)
	for i, id := range entry.order {
		if id == trackID {
			entry.order = append(entry.order[:i], entry.order[i+1:]...)
			break
		}
	}
}

// markAllStale flags every remote entry as unconfirmed. Called when a
// reconnect succeeds, before the new connection's events are processed.
func (r *roster) markAllStale() {
	for _, entry := range r.entries {
		entry.stale = true
	}
}

// confirm applies a server membership snapshot: present identities are
// confirmed (and added if missing). Absent entries stay stale until the
// reconciliation window closes.
func (r *roster) confirm(snapshot []ParticipantInfo) {
	for _, p := range snapshot {
		r.addParticipant(p.Identity)
	}
}

// pruneStale removes every entry still unconfirmed at the end of the
// reconciliation window, releasing its tracks. Returns the pruned
// identities.
func (r *roster) pruneStale() []string {
	var pruned []string
	for identity, entry := range r.entries {
		if !entry.stale {
			continue
		}
		r.releaseTracks(entry)
		r.discardPending(identity)
		delete(r.entries, identity)
		pruned = append(pruned, identity)
	}
	sort.Strings(pruned)
	return pruned
}

// clear empties the roster and releases every held track. Called on
// session teardown.
func (r *roster) clear() {
	for identity, entry := range r.entries {
		r.releaseTracks(entry)
		delete(r.entries, identity)
	}
	for identity := range r.pending {
		r.discardPending(identity)
	}
}

// snapshot returns a copy safe to hand outside the event loop. The local
// participant is listed first, remotes sorted by identity.
func (r *roster) snapshot() []Participant {
	out := make([]Participant, 0, len(r.entries)+1)
	out = append(out, Participant{Identity: r.local, IsLocal: true})

	identities := make([]string, 0, len(r.entries))
	for identity := range r.entries {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	for _, identity := range identities {
		entry := r.entries[identity]
		tracks := make([]TrackInfo, 0, len(entry.order))
		for _, id := range entry.order {
			tracks = append(tracks, TrackInfo{ID: id, Kind: entry.tracks[id].Kind()})
		}
		out = append(out, Participant{Identity: identity, Tracks: tracks})
	}
	return out
}

func (r *roster) attachTrack(entry *rosterEntry, track RemoteTrack) {
	id := track.ID()
	if old, ok := entry.tracks[id]; ok {
		// Same track re-announced; release the superseded handle.
		if err := old.Close(); err != nil {
			r.log.Warn().Err(err).Str("track", id).Msg("failed to release superseded track")
		}
		entry.tracks[id] = track
		return
	}
	entry.tracks[id] = track
	entry.order = append(entry.order, id)
}

func (r *roster) releaseTracks(entry *rosterEntry) {
	for id, track := range entry.tracks {
		if err := track.Close(); err != nil {
			r.log.Warn().Err(err).Str("track", id).Msg("failed to release track")
		}
		delete(entry.tracks, id)
	}
	entry.order = nil
}

func (r *roster) discardPending(identity string) {
	for _, ev := range r.pending[identity] {
		if err := ev.Track.Close(); err != nil {
			r.log.Warn().Err(err).Str("track", ev.Track.ID()).Msg("failed to release buffered track")
		}
	}
	delete(r.pending, identity)
}
