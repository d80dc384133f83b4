package service

import (
	"context"
	"sync"

	"github.com/dyadchat/dyad/internal/core/domain"
	"github.com/dyadchat/dyad/internal/core/port"
	"github.com/rs/zerolog/log"
)

// CallService owns the single active call session and drives its lifecycle:
// it decides when to create or replace the negotiation engine, when queued
// candidates are replayed, how renegotiation offers are handled, and
// performs idempotent teardown.
//
// All mutating operations are serialized on s.mu. The suspension points
// (media acquisition, offer/answer creation, description application) run
// with the lock released; every in-flight result is checked against the
// session epoch before it is applied and discarded when a newer session has
// taken over in the meantime.
type CallService struct {
	local    domain.Participant
	gateway  port.SignalGateway
	media    port.MediaProvider
	engines  port.EngineFactory
	observer port.CallObserver

	mu           sync.Mutex
	sess         *domain.CallSession
	engine       port.NegotiationEngine
	queue        *domain.CandidateQueue
	stream       port.LocalStream
	mute         domain.MuteVideoState
	pendingOffer *domain.SignalingMessage

	// pendingQueue collects candidates trickled by the pending offerer
	// while a call with a different remote is active; they become the
	// preserved queue if that offer is accepted.
	pendingQueue *domain.CandidateQueue

	// remoteReady is true once the current engine has a remote description
	// applied AND the candidate queue has been drained through it. Until
	// then inbound candidates are queued, which keeps arrival order intact
	// across the description-application boundary.
	remoteReady bool

	// epoch identifies the current negotiation attempt. It is bumped on
	// every teardown and engine replacement; stale async results carry an
	// older epoch and are dropped.
	epoch uint64
}

func NewCallService(local domain.Participant, gateway port.SignalGateway, media port.MediaProvider, engines port.EngineFactory, observer port.CallObserver) *CallService {
	return &CallService{
		local:    local,
		gateway:  gateway,
		media:    media,
		engines:  engines,
		observer: observer,
	}
}

// Session returns a snapshot of the current session, or nil when idle.
func (s *CallService) Session() *domain.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil
	}
	snapshot := *s.sess
	return &snapshot
}

// LocalMedia returns the active local stream for self-view rendering, or
// nil when no media is captured.
func (s *CallService) LocalMedia() port.LocalStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// MuteState returns the current local/remote mute and camera indicators.
func (s *CallService) MuteState() domain.MuteVideoState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mute
}

// StartCall initiates an outbound call. Any prior session is torn down
// unconditionally first: starting a new call always wins over a stale one.
// A media acquisition failure aborts the attempt before any signaling
// message is sent.
func (s *CallService) StartCall(ctx context.Context, remote domain.Participant, mode domain.CallMode) error {
	if remote.ID.IsZero() {
		return domain.NewCallError(domain.CodeNoDestination, "start call", domain.ErrNoDestination)
	}
	if !mode.IsValid() {
		return domain.NewCallError(domain.CodeInvalidState, "start call", domain.ErrUnsupportedMode)
	}

	s.mu.Lock()
	s.resetLocked()
	eng, epoch, err := s.newEngineLocked()
	if err != nil {
		s.mu.Unlock()
		return domain.NewCallError(domain.CodeEngineCreateFailed, "start call", err)
	}
	s.engine = eng
	s.queue = domain.NewCandidateQueue()
	s.sess = &domain.CallSession{
		Local:  s.local,
		Remote: remote,
		Mode:   mode,
		Role:   domain.RoleCaller,
		State:  domain.StateCalling,
	}
	s.mu.Unlock()

	stream, merr := s.media.Acquire(ctx, mode)
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return domain.NewCallError(domain.CodeCallSuperseded, "start call", domain.ErrCallSuperseded)
	}
	if merr != nil {
		s.resetLocked()
		s.mu.Unlock()
		log.Error().Err(merr).Str("mode", string(mode)).Msg("local media unavailable, aborting call")
		return domain.NewCallError(domain.MediaErrorCode(merr), "start call", merr)
	}
	s.stream = stream
	if err := eng.AttachLocalStream(stream); err != nil {
		s.resetLocked()
		s.mu.Unlock()
		return domain.NewCallError(domain.CodeMediaCaptureFailed, "start call", err)
	}
	s.mu.Unlock()

	offer, err := eng.CreateOffer(ctx)
	if err == nil {
		err = eng.SetLocalDescription(ctx, offer)
	}
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return domain.NewCallError(domain.CodeCallSuperseded, "start call", domain.ErrCallSuperseded)
	}
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		s.notifyIdle()
		return domain.NewCallError(domain.CodeOfferFailed, "start call", err)
	}
	s.mu.Unlock()

	if err := s.gateway.Send(ctx, domain.NewOffer(remote.ID, mode, offer)); err != nil {
		log.Warn().Err(err).Str("to", remote.ID.String()).Msg("dropping call offer, gateway unavailable")
		return domain.NewCallError(domain.CodeSendFailed, "start call", err)
	}

	log.Info().Str("to", remote.ID.String()).Str("mode", string(mode)).Msg("call offer sent")
	s.observer.CallStateChanged(port.CallStateChange{InCall: true, Role: domain.RoleCaller, State: domain.StateCalling})
	return nil
}

// EndCall tears the session down and resets to idle. It is idempotent: with
// no session and no engine it returns immediately and sends nothing. Every
// cleanup step runs even when an earlier one fails; a half-closed session
// is worse than a fully-closed one. notifyRemote must be false when the
// teardown was triggered by a call_end received from the remote, so a
// teardown is never echoed back to the peer that requested it.
func (s *CallService) EndCall(ctx context.Context, notifyRemote bool) error {
	s.mu.Lock()
	if s.sess == nil && s.engine == nil {
		s.mu.Unlock()
		return nil
	}
	var remoteID domain.UserID
	if s.sess != nil {
		remoteID = s.sess.Remote.ID
	}
	s.resetLocked()
	s.mu.Unlock()

	if notifyRemote && !remoteID.IsZero() {
		if err := s.gateway.Send(ctx, domain.NewCallEnd(remoteID)); err != nil {
			log.Warn().Err(err).Str("to", remoteID.String()).Msg("could not notify remote of hang-up")
		}
	}
	log.Info().Bool("notify_remote", notifyRemote).Msg("call ended")
	s.notifyIdle()
	return nil
}

// ToggleMic flips the local microphone and mirrors the new state over the
// side channel. Returns the new muted state. With no local stream the
// current state is returned unchanged.
func (s *CallService) ToggleMic() bool {
	s.mu.Lock()
	if s.stream == nil {
		muted := s.mute.MicMuted
		s.mu.Unlock()
		return muted
	}
	s.mute.MicMuted = !s.mute.MicMuted
	muted := s.mute.MicMuted
	s.stream.SetAudioEnabled(!muted)
	eng := s.engine
	s.mu.Unlock()

	s.sendStatus(eng, domain.StatusMessage{Kind: domain.StatusMic, Muted: muted})
	return muted
}

// ToggleCamera flips the local camera and mirrors the new state over the
// side channel. Returns the new camera-off state.
func (s *CallService) ToggleCamera() bool {
	s.mu.Lock()
	if s.stream == nil {
		off := s.mute.CameraOff
		s.mu.Unlock()
		return off
	}
	s.mute.CameraOff = !s.mute.CameraOff
	off := s.mute.CameraOff
	s.stream.SetVideoEnabled(!off)
	eng := s.engine
	s.mu.Unlock()

	s.sendStatus(eng, domain.StatusMessage{Kind: domain.StatusVideo, Off: off})
	return off
}

// sendStatus mirrors a toggle over the side channel, fire-and-forget. A
// closed channel only means the remote won't see the indicator until it
// opens; the toggle has already been applied locally.
func (s *CallService) sendStatus(eng port.NegotiationEngine, msg domain.StatusMessage) {
	if eng == nil {
		return
	}
	if err := eng.SendStatus(msg); err != nil {
		log.Debug().Err(err).Str("kind", string(msg.Kind)).Msg("status not mirrored")
	}
}

// newEngineLocked bumps the epoch and creates a fresh negotiation engine
// whose event callbacks are bound to that epoch; events from a replaced
// engine are dropped on arrival. Caller holds s.mu.
func (s *CallService) newEngineLocked() (port.NegotiationEngine, uint64, error) {
	s.epoch++
	epoch := s.epoch
	s.remoteReady = false
	events := port.EngineEvents{
		OnCandidate: func(c domain.IceCandidate) {
			s.onLocalCandidate(epoch, c)
		},
		OnRemoteTrack: func(t port.RemoteTrack) {
			s.onRemoteTrack(epoch, t)
		},
		OnStateChange: func(st domain.LinkState) {
			s.onLinkState(epoch, st)
		},
		OnStatus: func(m domain.StatusMessage) {
			s.onRemoteStatus(epoch, m)
		},
	}
	eng, err := s.engines.New(events)
	if err != nil {
		return nil, 0, err
	}
	return eng, epoch, nil
}

// resetLocked releases every session resource and returns the service to
// idle. No signaling is sent and no observer notification fires here; the
// callers decide both. Caller holds s.mu.
func (s *CallService) resetLocked() {
	s.epoch++
	s.remoteReady = false
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			log.Warn().Err(err).Msg("closing negotiation engine")
		}
		s.engine = nil
	}
	s.queue = nil
	s.pendingOffer = nil
	s.pendingQueue = nil
	s.mute = domain.MuteVideoState{}
	s.sess = nil
}

func (s *CallService) notifyIdle() {
	s.observer.CallStateChanged(port.CallStateChange{InCall: false, State: domain.StateIdle})
}

// onLocalCandidate forwards an engine-generated candidate to the remote
// peer via the gateway.
func (s *CallService) onLocalCandidate(epoch uint64, cand domain.IceCandidate) {
	s.mu.Lock()
	if s.epoch != epoch || s.sess == nil {
		s.mu.Unlock()
		log.Debug().Msg("dropping local candidate for superseded session")
		return
	}
	remoteID := s.sess.Remote.ID
	s.mu.Unlock()

	if err := s.gateway.Send(context.Background(), domain.NewCandidateSignal(remoteID, cand)); err != nil {
		log.Warn().Err(err).Str("to", remoteID.String()).Msg("dropping local candidate, gateway unavailable")
	}
}

func (s *CallService) onRemoteTrack(epoch uint64, track port.RemoteTrack) {
	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		return
	}
	log.Debug().Str("kind", track.Kind()).Str("track_id", track.ID()).Msg("remote track received")
	s.observer.RemoteTrack(track)
}

func (s *CallService) onRemoteStatus(epoch uint64, msg domain.StatusMessage) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	switch msg.Kind {
	case domain.StatusMic:
		s.mute.RemoteMicMuted = msg.Muted
	case domain.StatusVideo:
		s.mute.RemoteCameraOff = msg.Off
	}
	state := s.mute
	s.mu.Unlock()
	s.observer.RemoteStatusChanged(state)
}

// onLinkState reacts to transport-level state changes. A failed link ends
// the call locally; the detail stays in the logs, the user only sees the
// call ending.
func (s *CallService) onLinkState(epoch uint64, state domain.LinkState) {
	switch state {
	case domain.LinkFailed:
		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			return
		}
		log.Error().Msg("negotiation transport failed, ending call")
		s.resetLocked()
		s.mu.Unlock()
		s.notifyIdle()
	case domain.LinkDisconnected:
		log.Warn().Msg("negotiation transport disconnected")
	case domain.LinkConnected:
		log.Debug().Msg("negotiation transport connected")
	}
}
