package rtc

// TrackKind distinguishes audio from video tracks.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Quality is a coarse connection-quality indicator reported per participant.
type Quality int

const (
	QualityPoor Quality = iota
	QualityGood
	QualityExcellent
)

// ParticipantInfo identifies a remote participant in a membership snapshot.
type ParticipantInfo struct {
	Identity string
}

// Event is the closed set of notifications a transport connection delivers.
// Transport adapters translate backend callbacks into exactly these
// variants and drop anything unrecognized at the boundary.
type Event interface {
	isEvent()
}

// ConnectedEvent is the first event on a healthy connection. Participants
// is the server-confirmed membership snapshot at connect time; after a
// reconnect it drives roster reconciliation.
type ConnectedEvent struct {
	Participants []ParticipantInfo
}

// DisconnectedEvent reports that the transport lost the connection.
type DisconnectedEvent struct {
	Reason string
}

// ParticipantJoinedEvent reports a remote participant joining the room.
type ParticipantJoinedEvent struct {
	Identity string
}

// ParticipantLeftEvent reports a remote participant leaving the room.
type ParticipantLeftEvent struct {
	Identity string
}

// TrackSubscribedEvent reports a remote track becoming available. The
// session takes ownership of Track and must release it exactly once.
type TrackSubscribedEvent struct {
	Identity string
	Track    RemoteTrack
}

// TrackUnsubscribedEvent reports a remote track going away.
type TrackUnsubscribedEvent struct {
	Identity string
	TrackID  string
}

// QualityChangedEvent reports a connection-quality change for a participant.
type QualityChangedEvent struct {
	Identity string
	Quality  Quality
}

func (ConnectedEvent) isEvent()         {}
func (DisconnectedEvent) isEvent()      {}
func (ParticipantJoinedEvent) isEvent() {}
func (ParticipantLeftEvent) isEvent()   {}
func (TrackSubscribedEvent) isEvent()   {}
func (TrackUnsubscribedEvent) isEvent() {}
func (QualityChangedEvent) isEvent()    {}
