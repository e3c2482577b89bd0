package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// LiveKitTransport connects sessions to a LiveKit deployment.
type LiveKitTransport struct {
	log *zerolog.Logger
}

// NewLiveKitTransport creates the production transport.
func NewLiveKitTransport(logger *zerolog.Logger) *LiveKitTransport {
	return &LiveKitTransport{log: logger}
}

// Connect dials the room encoded in the grant token and returns a live
// connection once the handshake completes.
func (t *LiveKitTransport) Connect(ctx context.Context, url, token string) (Conn, error) {
	conn := &liveKitConn{
		events: make(chan Event, 64),
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
		log:    t.log,
	}

	type connectResult struct {
		room *lksdk.Room
		err  error
	}
	resultC := make(chan connectResult, 1)

	go func() {
		room, err := lksdk.ConnectToRoomWithToken(url, token, conn.callback())
		resultC <- connectResult{room: room, err: err}
	}()

	select {
	case res := <-resultC:
		if res.err != nil {
			conn.abandon()
			return nil, fmt.Errorf("connect to room: %w", res.err)
		}
		conn.room = res.room
		// Queue the connected snapshot first, then open the gate for the
		// callbacks parked in emit during the handshake.
		conn.events <- ConnectedEvent{Participants: conn.membership()}
		close(conn.ready)
		return conn, nil
	case <-ctx.Done():
		// The dial goroutine finishes on its own; make sure a late success
		// does not leak a connection or a parked callback.
		go func() {
			if res := <-resultC; res.err == nil && res.room != nil {
				conn.room = res.room
			}
			conn.abandon()
		}()
		return nil, ctx.Err()
	}
}

// liveKitConn bridges lksdk callbacks onto the typed event stream. The
// first event on the stream is always ConnectedEvent: callbacks fired
// during the handshake wait on ready until Connect has queued it.
type liveKitConn struct {
	room   *lksdk.Room
	events chan Event
	ready  chan struct{}
	closed chan struct{}
	once   sync.Once
	log    *zerolog.Logger

	mu     sync.Mutex
	micPub *lksdk.LocalTrackPublication
	camPub *lksdk.LocalTrackPublication
}

func (c *liveKitConn) callback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			c.emit(ParticipantJoinedEvent{Identity: string(rp.Identity())})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			c.emit(ParticipantLeftEvent{Identity: string(rp.Identity())})
		},
		OnDisconnectedWithReason: func(reason lksdk.DisconnectionReason) {
			c.emit(DisconnectedEvent{Reason: fmt.Sprint(reason)})
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				c.emit(TrackSubscribedEvent{
					Identity: string(rp.Identity()),
					Track: &liveKitRemoteTrack{
						id:   pub.SID(),
						kind: trackKindOf(pub.Kind()),
						pub:  pub,
					},
				})
			},
			OnTrackUnsubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				c.emit(TrackUnsubscribedEvent{Identity: string(rp.Identity()), TrackID: pub.SID()})
			},
			OnConnectionQualityChanged: func(update *livekit.ConnectionQualityInfo, p lksdk.Participant) {
				c.emit(QualityChangedEvent{
					Identity: string(p.Identity()),
					Quality:  qualityOf(update.GetQuality()),
				})
			},
		},
	}
}

func (c *liveKitConn) membership() []ParticipantInfo {
	remotes := c.room.GetRemoteParticipants()
	infos := make([]ParticipantInfo, 0, len(remotes))
	for _, rp := range remotes {
		infos = append(infos, ParticipantInfo{Identity: string(rp.Identity())})
	}
	return infos
}

// emit blocks until the session loop takes the event, preserving delivery
// order, but gives up once the connection is closed. Events fired before
// the handshake completes wait for the connected snapshot to go first.
func (c *liveKitConn) emit(ev Event) {
	select {
	case <-c.ready:
	case <-c.closed:
		return
	}
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

func (c *liveKitConn) Events() <-chan Event {
	return c.events
}

// SetAudioEnabled publishes the microphone track on first enable and
// toggles mute afterwards.
func (c *liveKitConn) SetAudioEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.micPub == nil {
		if !enabled {
			return nil
		}
		track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		})
		if err != nil {
			return &DeviceError{Kind: TrackKindAudio, Err: err}
		}
		pub, err := c.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
			Name:   "microphone",
			Source: livekit.TrackSource_MICROPHONE,
		})
		if err != nil {
			return &DeviceError{Kind: TrackKindAudio, Err: err}
		}
		c.micPub = pub
		return nil
	}

	c.micPub.SetMuted(!enabled)
	return nil
}

// SetVideoEnabled publishes the camera track on first enable and toggles
// mute afterwards.
func (c *liveKitConn) SetVideoEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.camPub == nil {
		if !enabled {
			return nil
		}
		track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
		})
		if err != nil {
			return &DeviceError{Kind: TrackKindVideo, Err: err}
		}
		pub, err := c.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
			Name:   "camera",
			Source: livekit.TrackSource_CAMERA,
		})
		if err != nil {
			return &DeviceError{Kind: TrackKindVideo, Err: err}
		}
		c.camPub = pub
		return nil
	}

	c.camPub.SetMuted(!enabled)
	return nil
}

func (c *liveKitConn) Close(_ context.Context) error {
	c.abandon()
	return nil
}

// abandon tears the connection down, releasing any callback parked in emit.
func (c *liveKitConn) abandon() {
	c.once.Do(func() {
		close(c.closed)
		if c.room != nil {
			c.room.Disconnect()
		}
	})
}

type liveKitRemoteTrack struct {
	id   string
	kind TrackKind
	pub  *lksdk.RemoteTrackPublication
	once sync.Once
}

func (t *liveKitRemoteTrack) ID() string {
	return t.id
}

func (t *liveKitRemoteTrack) Kind() TrackKind {
	return t.kind
}

// Close releases the subscription backing this track.
func (t *liveKitRemoteTrack) Close() error {
	var err error
	t.once.Do(func() {
		err = t.pub.SetSubscribed(false)
	})
	return err
}

func trackKindOf(kind lksdk.TrackKind) TrackKind {
	if kind == lksdk.TrackKindVideo {
		return TrackKindVideo
	}
	return TrackKindAudio
}

func qualityOf(q livekit.ConnectionQuality) Quality {
	switch q {
	case livekit.ConnectionQuality_EXCELLENT:
		return QualityExcellent
	case livekit.ConnectionQuality_GOOD:
		return QualityGood
	default:
		return QualityPoor
	}
}
