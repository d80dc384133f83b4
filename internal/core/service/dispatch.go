package service

import (
	"context"

	"github.com/dyadchat/dyad/internal/core/domain"
	"github.com/dyadchat/dyad/internal/core/port"
	"github.com/rs/zerolog/log"
)

// HandleSignal routes one inbound signaling message. The gateway adapter
// calls it from a single goroutine, so messages are processed strictly in
// arrival order; no reordering or batching happens here.
func (s *CallService) HandleSignal(ctx context.Context, msg domain.SignalingMessage) error {
	log.Debug().Str("type", string(msg.Type)).Str("from", msg.From.String()).Msg("signal received")
	switch msg.Type {
	case domain.SignalCallOffer:
		return s.handleOffer(ctx, msg)
	case domain.SignalCallAnswer:
		return s.handleAnswer(ctx, msg)
	case domain.SignalIceCandidate:
		return s.handleCandidate(msg)
	case domain.SignalCallEnd:
		return s.handleEnd(ctx, msg)
	default:
		log.Debug().Str("type", string(msg.Type)).Msg("ignoring unknown signal")
		return nil
	}
}

// handleOffer distinguishes a renegotiation (offer from the current remote
// while connected: applied silently, this is how an in-call mode switch
// arrives) from a fresh incoming call, which rings the UI layer and waits
// for its decision.
func (s *CallService) handleOffer(ctx context.Context, msg domain.SignalingMessage) error {
	if msg.SDP == nil || !msg.Mode.IsValid() || msg.From.IsZero() {
		return domain.NewCallError(domain.CodeInvalidState, "handle offer", domain.ErrMissingSDP)
	}

	s.mu.Lock()
	if s.sess != nil && s.sess.Remote.ID == msg.From &&
		(s.sess.State == domain.StateConnected || s.sess.State == domain.StateRenegotiating) {
		s.sess.State = domain.StateRenegotiating
		s.mu.Unlock()
		log.Info().Str("from", msg.From.String()).Str("mode", string(msg.Mode)).Msg("renegotiation offer, accepting")
		return s.acceptOffer(ctx, msg, true)
	}
	offer := msg
	s.pendingOffer = &offer
	if s.sess == nil {
		s.sess = &domain.CallSession{
			Local:  s.local,
			Remote: domain.Participant{ID: msg.From},
			Mode:   msg.Mode,
			Role:   domain.RoleCallee,
			State:  domain.StateRinging,
		}
		s.queue = domain.NewCandidateQueue()
		s.mute = domain.MuteVideoState{}
	} else {
		// Busy with another peer: the offerer trickles its candidates
		// exactly once, so they collect here until the user decides.
		s.pendingQueue = domain.NewCandidateQueue()
	}
	s.mu.Unlock()

	log.Info().Str("from", msg.From.String()).Str("mode", string(msg.Mode)).Msg("incoming call")
	s.observer.IncomingCall(port.IncomingCall{
		From:   msg.From,
		Mode:   msg.Mode,
		Accept: func() error { return s.acceptPending(offer) },
		Reject: func() { s.rejectPending(offer) },
	})
	return nil
}

// acceptPending consumes the stored offer if it is still the pending one;
// a superseded invitation is a no-op.
func (s *CallService) acceptPending(offer domain.SignalingMessage) error {
	s.mu.Lock()
	if s.pendingOffer == nil || s.pendingOffer.From != offer.From {
		s.mu.Unlock()
		return domain.NewCallError(domain.CodeInvalidState, "accept offer", domain.ErrNoPendingOffer)
	}
	s.pendingOffer = nil
	s.mu.Unlock()
	return s.acceptOffer(context.Background(), offer, false)
}

// rejectPending discards the stored offer and tells the offerer the call is
// over. The ringing session (if any) is reset; an active call with another
// peer is untouched.
func (s *CallService) rejectPending(offer domain.SignalingMessage) {
	s.mu.Lock()
	if s.pendingOffer == nil || s.pendingOffer.From != offer.From {
		s.mu.Unlock()
		return
	}
	s.pendingOffer = nil
	s.pendingQueue = nil
	if s.sess != nil && s.sess.State == domain.StateRinging && s.sess.Remote.ID == offer.From {
		s.resetLocked()
	}
	s.mu.Unlock()

	if err := s.gateway.Send(context.Background(), domain.NewCallEnd(offer.From)); err != nil {
		log.Warn().Err(err).Str("to", offer.From.String()).Msg("could not notify rejection")
	}
	log.Info().Str("from", offer.From.String()).Msg("incoming call rejected")
}

// acceptOffer runs the accept procedure for an incoming or renegotiation
// offer: replace the engine while preserving already-queued candidates,
// apply the remote description, replay the queue, capture local media for
// the response mode, then answer.
func (s *CallService) acceptOffer(ctx context.Context, offer domain.SignalingMessage, renegotiation bool) error {
	s.mu.Lock()
	// Candidates queued while ringing (or while the renegotiation offer was
	// in flight) belong to this attempt and must survive the engine
	// replacement below.
	preserved := s.queue
	if s.sess != nil && s.sess.Remote.ID != offer.From {
		// Accepting a call from a different peer tears the old session
		// down; its candidates are meaningless for the new round, but
		// whatever the pending offerer trickled in the meantime is not.
		preserved = s.pendingQueue
		s.resetLocked()
	}
	if preserved == nil {
		preserved = domain.NewCandidateQueue()
	}
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			log.Warn().Err(err).Msg("closing superseded negotiation engine")
		}
		s.engine = nil
	}
	eng, epoch, err := s.newEngineLocked()
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		s.notifyIdle()
		return domain.NewCallError(domain.CodeEngineCreateFailed, "accept offer", err)
	}
	s.engine = eng
	s.queue = preserved
	if s.sess == nil {
		s.sess = &domain.CallSession{Local: s.local, Remote: domain.Participant{ID: offer.From}, Role: domain.RoleCallee}
		s.mute = domain.MuteVideoState{}
	}
	s.sess.Mode = offer.Mode
	if renegotiation {
		// Answering this round does not change who placed the call.
		s.sess.State = domain.StateRenegotiating
	} else {
		s.sess.Role = domain.RoleCallee
	}
	s.mu.Unlock()

	err = eng.SetRemoteDescription(ctx, *offer.SDP)
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return domain.NewCallError(domain.CodeCallSuperseded, "accept offer", domain.ErrCallSuperseded)
	}
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		s.notifyIdle()
		return domain.NewCallError(domain.CodeRemoteDescriptionFailed, "accept offer", err)
	}
	// Replay queued candidates before anything else proceeds, in
	// particular before the answer is created.
	s.drainQueueLocked(eng)
	s.remoteReady = true
	s.mu.Unlock()

	stream, merr := s.media.Acquire(ctx, offer.Mode.AnswerMode())
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return domain.NewCallError(domain.CodeCallSuperseded, "accept offer", domain.ErrCallSuperseded)
	}
	if merr != nil {
		// Non-fatal: continue without local tracks so the remote's media
		// still flows one way.
		log.Warn().Err(merr).Str("code", domain.MediaErrorCode(merr).String()).Msg("answering without local media")
	} else if err := eng.AttachLocalStream(stream); err != nil {
		log.Warn().Err(err).Msg("could not attach local tracks, answering receive-only")
		stream.Stop()
	} else {
		s.stream = stream
	}
	s.mu.Unlock()

	answer, err := eng.CreateAnswer(ctx)
	if err == nil {
		err = eng.SetLocalDescription(ctx, answer)
	}
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return domain.NewCallError(domain.CodeCallSuperseded, "accept offer", domain.ErrCallSuperseded)
	}
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		s.notifyIdle()
		return domain.NewCallError(domain.CodeAnswerFailed, "accept offer", err)
	}
	s.sess.State = domain.StateConnected
	role := s.sess.Role
	s.mu.Unlock()

	if err := s.gateway.Send(ctx, domain.NewAnswer(offer.From, answer)); err != nil {
		log.Warn().Err(err).Str("to", offer.From.String()).Msg("dropping call answer, gateway unavailable")
		return domain.NewCallError(domain.CodeSendFailed, "accept offer", err)
	}

	log.Info().Str("from", offer.From.String()).Str("mode", string(offer.Mode)).Bool("renegotiation", renegotiation).Msg("call answered")
	s.observer.CallStateChanged(port.CallStateChange{InCall: true, Role: role, State: domain.StateConnected})
	return nil
}

// handleAnswer applies the remote answer to the in-flight offer, then
// replays queued candidates. Valid only while calling; an answer with no
// matching offer is an inconsistency that is reported and otherwise
// ignored.
func (s *CallService) handleAnswer(ctx context.Context, msg domain.SignalingMessage) error {
	if msg.SDP == nil {
		return domain.NewCallError(domain.CodeInvalidState, "handle answer", domain.ErrMissingSDP)
	}

	s.mu.Lock()
	if s.sess == nil || s.engine == nil || s.sess.Role != domain.RoleCaller ||
		s.sess.State != domain.StateCalling || s.sess.Remote.ID != msg.From {
		s.mu.Unlock()
		log.Warn().Str("from", msg.From.String()).Msg("call answer with no offer in flight, ignoring")
		return domain.NewCallError(domain.CodeNoEngine, "handle answer", domain.ErrNoEngine)
	}
	eng := s.engine
	epoch := s.epoch
	s.mu.Unlock()

	err := eng.SetRemoteDescription(ctx, *msg.SDP)
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return domain.NewCallError(domain.CodeCallSuperseded, "handle answer", domain.ErrCallSuperseded)
	}
	if err != nil {
		remoteID := s.sess.Remote.ID
		s.resetLocked()
		s.mu.Unlock()
		// The offer already went out, so the remote is told the attempt is
		// dead rather than left ringing.
		if serr := s.gateway.Send(ctx, domain.NewCallEnd(remoteID)); serr != nil {
			log.Warn().Err(serr).Msg("could not notify remote of failed negotiation")
		}
		s.notifyIdle()
		return domain.NewCallError(domain.CodeRemoteDescriptionFailed, "handle answer", err)
	}
	s.drainQueueLocked(eng)
	s.remoteReady = true
	s.sess.State = domain.StateConnected
	s.mu.Unlock()

	log.Info().Str("from", msg.From.String()).Msg("call connected")
	s.observer.CallStateChanged(port.CallStateChange{InCall: true, Role: domain.RoleCaller, State: domain.StateConnected})
	return nil
}

// handleCandidate is the apply-or-queue procedure. Candidates for a session
// that no longer exists are an expected aftermath of teardown and are
// dropped silently.
func (s *CallService) handleCandidate(msg domain.SignalingMessage) error {
	if msg.Candidate == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil || s.sess.Remote.ID != msg.From {
		if s.pendingOffer != nil && s.pendingOffer.From == msg.From && s.pendingQueue != nil {
			s.pendingQueue.Push(*msg.Candidate)
			return nil
		}
		log.Debug().Str("from", msg.From.String()).Msg("discarding stale candidate")
		return nil
	}
	if s.engine == nil || !s.remoteReady {
		s.queue.Push(*msg.Candidate)
		return nil
	}
	s.applyCandidateLocked(s.engine, *msg.Candidate)
	return nil
}

// handleEnd processes a hang-up from the remote. The teardown is never
// echoed back: the sender already knows. A call_end from a peer other than
// the session's only withdraws that peer's pending offer.
func (s *CallService) handleEnd(ctx context.Context, msg domain.SignalingMessage) error {
	s.mu.Lock()
	if s.sess != nil && !msg.From.IsZero() && s.sess.Remote.ID != msg.From {
		if s.pendingOffer != nil && s.pendingOffer.From == msg.From {
			s.pendingOffer = nil
			s.pendingQueue = nil
			log.Info().Str("from", msg.From.String()).Msg("pending offer withdrawn")
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.EndCall(ctx, false)
}

func (s *CallService) applyCandidateLocked(eng port.NegotiationEngine, cand domain.IceCandidate) {
	if !cand.Valid() {
		log.Warn().Str("code", domain.CodeCandidateRejected.String()).Msg("discarding empty ice candidate")
		return
	}
	if err := eng.AddCandidate(cand); err != nil {
		// One rejected candidate never aborts the session; connectivity may
		// still succeed through the others.
		log.Warn().Err(err).Str("code", domain.CodeCandidateRejected.String()).Msg("ice candidate rejected")
	}
}

func (s *CallService) drainQueueLocked(eng port.NegotiationEngine) {
	if s.queue == nil {
		return
	}
	cands := s.queue.Drain()
	if len(cands) == 0 {
		return
	}
	log.Debug().Int("count", len(cands)).Msg("replaying queued candidates")
	for _, cand := range cands {
		s.applyCandidateLocked(eng, cand)
	}
}
