package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vmarchenko/parley/internal/grant"
)

// Default tuning for the session state machine.
const (
	DefaultReconnectGrace  = 2 * time.Second
	DefaultReconcileWindow = 5 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
)

// Options configures a session.
type Options struct {
	// URL is the media endpoint passed to the transport.
	URL string
	// Room is the room to join.
	Room string
	// Identity is the local participant's identity; it must match the
	// identity the grant source issues grants for.
	Identity string

	Grants    GrantSource
	Transport Transport

	// Backoff drives both the initial connect and every reconnect cycle.
	// Zero value means DefaultBackoff.
	Backoff Backoff
	// ReconnectGrace is the fixed wait after an unexpected disconnect
	// before the first reconnect attempt, riding out brief blips.
	ReconnectGrace time.Duration
	// ReconcileWindow bounds how long stale roster entries survive after a
	// reconnect before being pruned.
	ReconcileWindow time.Duration
	// ConnectTimeout applies to each grant issuance and connect attempt.
	ConnectTimeout time.Duration

	Logger *zerolog.Logger
}

type commandKind int

const (
	cmdDisconnect commandKind = iota
	cmdSetAudio
	cmdSetVideo
	cmdSnapshot
)

type command struct {
	kind   commandKind
	enable bool
	errC   chan error
	snapC  chan []Participant
}

type attemptResult struct {
	conn  Conn
	grant *grant.AccessGrant
	err   error
}

// Session owns one connection lifecycle to one room. All mutable state is
// confined to the run goroutine; external callers interact through
// serialized commands and snapshot reads.
type Session struct {
	id   string
	opts Options
	log  zerolog.Logger

	cmds    chan command
	stateCh chan StateChange
	done    chan struct{}

	state atomic.Int32

	errMu   sync.Mutex
	lastErr error

	// Everything below is owned by the run goroutine.
	conn            Conn
	connEvents      <-chan Event
	cachedGrant     *grant.AccessGrant
	attemptCount    int
	attemptInFlight bool
	attemptCancel   context.CancelFunc
	attemptCh       chan attemptResult
	reconnecting    bool
	stopped         bool
	audioOn         bool
	videoOn         bool
	roster          *roster

	retryTimer     *time.Timer
	retryC         <-chan time.Time
	reconcileTimer *time.Timer
	reconcileC     <-chan time.Time
}

// Join starts a session for the given room and returns its handle. The
// session begins connecting immediately; watch StateChanges for progress.
func Join(opts Options) (*Session, error) {
	if opts.Room == "" {
		return nil, errors.New("room is required")
	}
	if opts.Identity == "" {
		return nil, errors.New("identity is required")
	}
	if opts.Grants == nil {
		return nil, errors.New("grant source is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Backoff.MaxAttempts == 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.ReconnectGrace == 0 {
		opts.ReconnectGrace = DefaultReconnectGrace
	}
	if opts.ReconcileWindow == 0 {
		opts.ReconcileWindow = DefaultReconcileWindow
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}

	s := &Session{
		id:        uuid.New().String(),
		opts:      opts,
		cmds:      make(chan command),
		stateCh:   make(chan StateChange, 32),
		done:      make(chan struct{}),
		attemptCh: make(chan attemptResult),
	}
	s.log = opts.Logger.With().
		Str("session", s.id).
		Str("room", opts.Room).
		Str("identity", opts.Identity).
		Logger()
	s.roster = newRoster(opts.Identity, &s.log)
	s.state.Store(int32(StateIdle))

	go s.run()
	return s, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Room returns the room this session is bound to.
func (s *Session) Room() string { return s.opts.Room }

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Err returns the error that drove the session to StateFailed, or nil.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// StateChanges delivers connection-state notifications. The channel is
// buffered and never blocks the session; it is closed after the terminal
// transition.
func (s *Session) StateChanges() <-chan StateChange { return s.stateCh }

// Participants returns a snapshot of the roster. After the session reaches
// a terminal state the roster is empty and only the local entry remains.
func (s *Session) Participants() []Participant {
	cmd := command{kind: cmdSnapshot, snapC: make(chan []Participant, 1)}
	select {
	case s.cmds <- cmd:
		return <-cmd.snapC
	case <-s.done:
		return []Participant{{Identity: s.opts.Identity, IsLocal: true}}
	}
}

// EnableAudio toggles publication of the local microphone. Device failures
// come back as *DeviceError and never change session state.
func (s *Session) EnableAudio(enabled bool) error {
	return s.setDevice(cmdSetAudio, enabled)
}

// EnableVideo toggles publication of the local camera.
func (s *Session) EnableVideo(enabled bool) error {
	return s.setDevice(cmdSetVideo, enabled)
}

func (s *Session) setDevice(kind commandKind, enabled bool) error {
	cmd := command{kind: kind, enable: enabled, errC: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
		return <-cmd.errC
	case <-s.done:
		return ErrSessionTerminal
	}
}

// Disconnect leaves the room, releasing all local and remote tracks. It
// interrupts any pending retry wait or in-flight connect attempt and
// transitions to StateDisconnected before returning. Idempotent: calling it
// on an already-terminal session is a no-op.
func (s *Session) Disconnect() {
	cmd := command{kind: cmdDisconnect, errC: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
		<-cmd.errC
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.stateCh)
	defer close(s.done)

	s.transition(StateConnecting, nil)
	s.startAttempt()

	for !s.stopped {
		select {
		case res := <-s.attemptCh:
			s.onAttemptResult(res)
		case ev, ok := <-s.connEvents:
			s.onTransportEvent(ev, ok)
		case <-s.retryC:
			s.onRetryTimer()
		case <-s.reconcileC:
			s.onReconcileTimer()
		case cmd := <-s.cmds:
			s.onCommand(cmd)
		}
	}

	s.stopTimers()
}

// startAttempt launches one connect attempt in a helper goroutine. The
// in-flight flag guarantees at most one outstanding attempt per session no
// matter how many disconnect events or timers fire.
func (s *Session) startAttempt() {
	if s.attemptInFlight {
		return
	}
	s.attemptInFlight = true

	ctx, cancel := context.WithCancel(context.Background())
	s.attemptCancel = cancel
	cached := s.cachedGrant

	go func() {
		g := cached
		if g == nil || g.Expired(time.Now()) {
			if g != nil {
				s.log.Debug().Time("expires_at", g.ExpiresAt).Msg("cached grant expired, re-issuing")
			}
			gctx, gcancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
			fresh, err := s.opts.Grants.Grant(gctx, s.opts.Room)
			gcancel()
			if err != nil {
				s.deliver(attemptResult{err: fmt.Errorf("issue grant: %w", err)})
				return
			}
			g = fresh
		}

		cctx, ccancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
		conn, err := s.opts.Transport.Connect(cctx, s.opts.URL, g.Token)
		ccancel()
		if err != nil {
			s.deliver(attemptResult{err: err})
			return
		}
		s.deliver(attemptResult{conn: conn, grant: g})
	}()
}

// deliver hands the attempt outcome to the run loop, or disposes of it if
// the session ended while the attempt was in flight.
func (s *Session) deliver(res attemptResult) {
	select {
	case s.attemptCh <- res:
	case <-s.done:
		if res.conn != nil {
			_ = res.conn.Close(context.Background())
		}
	}
}

func (s *Session) onAttemptResult(res attemptResult) {
	s.attemptInFlight = false
	s.attemptCancel = nil

	if res.err != nil {
		s.attemptCount++
		cerr := &ConnectError{Attempt: s.attemptCount, Err: res.err}
		s.setErr(cerr)

		if s.opts.Backoff.Exhausted(s.attemptCount) {
			s.log.Error().Err(cerr).Int("attempts", s.attemptCount).Msg("retry ceiling exhausted")
			s.shutdown(StateFailed, cerr)
			return
		}

		delay := s.opts.Backoff.Delay(s.attemptCount)
		s.log.Warn().Err(cerr).Dur("retry_in", delay).Msg("connect attempt failed")
		s.armRetry(delay)
		return
	}

	s.cachedGrant = res.grant
	s.conn = res.conn
	s.connEvents = res.conn.Events()
	s.attemptCount = 0
	s.setErr(nil)

	if s.reconnecting {
		s.reconnecting = false
		// Everyone currently known is unconfirmed until the new
		// connection's membership snapshot (or a fresh join event) vouches
		// for them.
		s.roster.markAllStale()
		s.armReconcile(s.opts.ReconcileWindow)
	}

	s.transition(StateConnected, nil)
	s.applyDeviceState()
}

func (s *Session) onTransportEvent(ev Event, ok bool) {
	if !ok {
		s.connEvents = nil
		s.onDisconnected("event stream closed")
		return
	}

	switch ev := ev.(type) {
	case ConnectedEvent:
		s.roster.confirm(ev.Participants)
	case DisconnectedEvent:
		s.onDisconnected(ev.Reason)
	case ParticipantJoinedEvent:
		s.roster.addParticipant(ev.Identity)
	case ParticipantLeftEvent:
		s.roster.removeParticipant(ev.Identity)
	case TrackSubscribedEvent:
		s.roster.addTrack(ev)
	case TrackUnsubscribedEvent:
		s.roster.removeTrack(ev.Identity, ev.TrackID)
	case QualityChangedEvent:
		s.log.Debug().Str("peer", ev.Identity).Int("quality", int(ev.Quality)).Msg("connection quality changed")
	default:
		// Closed event set: anything else is a transport bug.
		s.log.Warn().Type("event", ev).Msg("dropping unrecognized transport event")
	}
}

func (s *Session) onDisconnected(reason string) {
	if s.State() != StateConnected {
		return
	}

	s.log.Warn().Str("reason", reason).Msg("transport disconnected")
	s.closeConn()
	// A reconciliation window from a previous reconnect must not prune
	// entries while we are offline again; the next successful reconnect
	// opens a fresh window against the new membership snapshot.
	s.stopReconcile()
	s.reconnecting = true
	s.attemptCount = 0
	s.transition(StateReconnecting, nil)

	// Fixed grace before the first attempt so a brief blip does not turn
	// into a reconnect storm.
	s.armRetry(s.opts.ReconnectGrace)
}

func (s *Session) onRetryTimer() {
	s.retryC = nil
	s.retryTimer = nil

	if s.attemptInFlight {
		return
	}
	if st := s.State(); st != StateConnecting && st != StateReconnecting {
		return
	}
	s.startAttempt()
}

func (s *Session) onReconcileTimer() {
	s.reconcileC = nil
	s.reconcileTimer = nil

	pruned := s.roster.pruneStale()
	if len(pruned) > 0 {
		s.log.Info().Strs("pruned", pruned).Msg("reconciled roster after reconnect")
	}
}

func (s *Session) onCommand(cmd command) {
	switch cmd.kind {
	case cmdDisconnect:
		s.shutdown(StateDisconnected, nil)
		cmd.errC <- nil

	case cmdSetAudio:
		cmd.errC <- s.applyAudio(cmd.enable)

	case cmdSetVideo:
		cmd.errC <- s.applyVideo(cmd.enable)

	case cmdSnapshot:
		cmd.snapC <- s.roster.snapshot()
	}
}

func (s *Session) applyAudio(enabled bool) error {
	if s.conn == nil {
		// Not connected; remember the desired state and apply on connect.
		s.audioOn = enabled
		return nil
	}
	if err := s.conn.SetAudioEnabled(enabled); err != nil {
		return err
	}
	s.audioOn = enabled
	return nil
}

func (s *Session) applyVideo(enabled bool) error {
	if s.conn == nil {
		s.videoOn = enabled
		return nil
	}
	if err := s.conn.SetVideoEnabled(enabled); err != nil {
		return err
	}
	s.videoOn = enabled
	return nil
}

// applyDeviceState re-asserts the desired local device state on a fresh
// connection. Device failures here are logged and absorbed.
func (s *Session) applyDeviceState() {
	if s.audioOn {
		if err := s.conn.SetAudioEnabled(true); err != nil {
			s.log.Warn().Err(err).Msg("failed to re-enable audio after connect")
		}
	}
	if s.videoOn {
		if err := s.conn.SetVideoEnabled(true); err != nil {
			s.log.Warn().Err(err).Msg("failed to re-enable video after connect")
		}
	}
}

// shutdown moves the session to a terminal state, releasing every resource:
// the in-flight attempt, the transport connection, and all roster tracks.
func (s *Session) shutdown(to State, err error) {
	s.cancelAttempt()
	s.stopTimers()
	s.closeConn()
	s.roster.clear()
	s.audioOn = false
	s.videoOn = false
	s.transition(to, err)
	s.stopped = true
}

func (s *Session) cancelAttempt() {
	if s.attemptCancel != nil {
		s.attemptCancel()
		s.attemptCancel = nil
	}
	s.attemptInFlight = false
}

func (s *Session) closeConn() {
	if s.conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	if err := s.conn.Close(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to close transport connection")
	}
	cancel()
	s.conn = nil
	s.connEvents = nil
}

func (s *Session) armRetry(d time.Duration) {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = time.NewTimer(d)
	s.retryC = s.retryTimer.C
}

func (s *Session) armReconcile(d time.Duration) {
	if s.reconcileTimer != nil {
		s.reconcileTimer.Stop()
	}
	s.reconcileTimer = time.NewTimer(d)
	s.reconcileC = s.reconcileTimer.C
}

func (s *Session) stopTimers() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
		s.retryC = nil
	}
	s.stopReconcile()
}

func (s *Session) stopReconcile() {
	if s.reconcileTimer != nil {
		s.reconcileTimer.Stop()
		s.reconcileTimer = nil
		s.reconcileC = nil
	}
}

func (s *Session) transition(to State, err error) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	s.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("connection state changed")

	select {
	case s.stateCh <- StateChange{From: from, To: to, Err: err}:
	default:
		s.log.Warn().Msg("state change dropped: slow subscriber")
	}
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}
