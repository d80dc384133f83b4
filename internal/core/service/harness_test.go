package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/dyadchat/dyad/internal/core/domain"
	"github.com/dyadchat/dyad/internal/core/port"
	"github.com/dyadchat/dyad/internal/core/service"
)

type gatewayMock struct {
	mu   sync.Mutex
	sent []domain.SignalingMessage
	fail func(domain.SignalingMessage) error
}

func (g *gatewayMock) Send(_ context.Context, msg domain.SignalingMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		if err := g.fail(msg); err != nil {
			return err
		}
	}
	g.sent = append(g.sent, msg)
	return nil
}

func (g *gatewayMock) messages() []domain.SignalingMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.SignalingMessage(nil), g.sent...)
}

func (g *gatewayMock) ofType(t domain.SignalType) []domain.SignalingMessage {
	var out []domain.SignalingMessage
	for _, m := range g.messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type streamMock struct {
	stopped int
	audio   []bool
	video   []bool
}

func (s *streamMock) SetAudioEnabled(enabled bool) { s.audio = append(s.audio, enabled) }
func (s *streamMock) SetVideoEnabled(enabled bool) { s.video = append(s.video, enabled) }
func (s *streamMock) Stop()                        { s.stopped++ }

type mediaMock struct {
	err      error
	acquired []domain.CallMode
	streams  []*streamMock
}

func (m *mediaMock) Acquire(_ context.Context, mode domain.CallMode) (port.LocalStream, error) {
	m.acquired = append(m.acquired, mode)
	if m.err != nil {
		return nil, m.err
	}
	st := &streamMock{}
	m.streams = append(m.streams, st)
	return st, nil
}

// engineMock records every call in ops so tests can assert ordering across
// operations, e.g. that queued candidates are applied before the answer is
// created.
type engineMock struct {
	events port.EngineEvents

	offerErr     error
	answerErr    error
	setRemoteErr error
	candidateErr func(domain.IceCandidate) error
	statusErr    error

	ops         []string
	remoteDescs []domain.SessionDescription
	candidates  []domain.IceCandidate
	attached    []port.LocalStream
	statuses    []domain.StatusMessage
	closed      bool
}

func (e *engineMock) CreateOffer(context.Context) (domain.SessionDescription, error) {
	e.ops = append(e.ops, "create_offer")
	if e.offerErr != nil {
		return domain.SessionDescription{}, e.offerErr
	}
	return domain.SessionDescription{Type: "offer", SDP: "local-offer"}, nil
}

func (e *engineMock) CreateAnswer(context.Context) (domain.SessionDescription, error) {
	e.ops = append(e.ops, "create_answer")
	if e.answerErr != nil {
		return domain.SessionDescription{}, e.answerErr
	}
	return domain.SessionDescription{Type: "answer", SDP: "local-answer"}, nil
}

func (e *engineMock) SetLocalDescription(_ context.Context, desc domain.SessionDescription) error {
	e.ops = append(e.ops, "set_local")
	return nil
}

func (e *engineMock) SetRemoteDescription(_ context.Context, desc domain.SessionDescription) error {
	e.ops = append(e.ops, "set_remote")
	if e.setRemoteErr != nil {
		return e.setRemoteErr
	}
	e.remoteDescs = append(e.remoteDescs, desc)
	return nil
}

func (e *engineMock) AddCandidate(cand domain.IceCandidate) error {
	e.ops = append(e.ops, "candidate:"+cand.Candidate)
	if e.candidateErr != nil {
		if err := e.candidateErr(cand); err != nil {
			return err
		}
	}
	e.candidates = append(e.candidates, cand)
	return nil
}

func (e *engineMock) AttachLocalStream(stream port.LocalStream) error {
	e.ops = append(e.ops, "attach")
	e.attached = append(e.attached, stream)
	return nil
}

func (e *engineMock) SendStatus(msg domain.StatusMessage) error {
	if e.statusErr != nil {
		return e.statusErr
	}
	e.statuses = append(e.statuses, msg)
	return nil
}

func (e *engineMock) Close() error {
	e.closed = true
	return nil
}

type factoryMock struct {
	err     error
	engines []*engineMock
}

func (f *factoryMock) New(events port.EngineEvents) (port.NegotiationEngine, error) {
	if f.err != nil {
		return nil, f.err
	}
	e := &engineMock{events: events}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *factoryMock) last() *engineMock {
	return f.engines[len(f.engines)-1]
}

type observerMock struct {
	mu       sync.Mutex
	incoming []port.IncomingCall
	states   []port.CallStateChange
	tracks   []port.RemoteTrack
	statuses []domain.MuteVideoState
}

func (o *observerMock) IncomingCall(call port.IncomingCall) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.incoming = append(o.incoming, call)
}

func (o *observerMock) CallStateChanged(change port.CallStateChange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, change)
}

func (o *observerMock) RemoteTrack(track port.RemoteTrack) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tracks = append(o.tracks, track)
}

func (o *observerMock) RemoteStatusChanged(state domain.MuteVideoState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, state)
}

func (o *observerMock) lastState(t *testing.T) port.CallStateChange {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.states) == 0 {
		t.Fatal("no call state changes observed")
	}
	return o.states[len(o.states)-1]
}

type fixture struct {
	svc      *service.CallService
	gateway  *gatewayMock
	media    *mediaMock
	factory  *factoryMock
	observer *observerMock
	local    domain.Participant
	remote   domain.Participant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gateway:  &gatewayMock{},
		media:    &mediaMock{},
		factory:  &factoryMock{},
		observer: &observerMock{},
		local:    domain.Participant{ID: domain.NewUserID(), Username: "alice"},
		remote:   domain.Participant{ID: domain.NewUserID(), Username: "bob"},
	}
	f.svc = service.NewCallService(f.local, f.gateway, f.media, f.factory, f.observer)
	return f
}

func (f *fixture) answerFrom(from domain.UserID) domain.SignalingMessage {
	return domain.SignalingMessage{
		Type: domain.SignalCallAnswer,
		From: from,
		To:   f.local.ID,
		SDP:  &domain.SessionDescription{Type: "answer", SDP: "remote-answer"},
	}
}

func (f *fixture) offerFrom(from domain.UserID, mode domain.CallMode) domain.SignalingMessage {
	return domain.SignalingMessage{
		Type: domain.SignalCallOffer,
		From: from,
		To:   f.local.ID,
		Mode: mode,
		SDP:  &domain.SessionDescription{Type: "offer", SDP: "remote-offer"},
	}
}

func (f *fixture) candidateFrom(from domain.UserID, c string) domain.SignalingMessage {
	return domain.SignalingMessage{
		Type:      domain.SignalIceCandidate,
		From:      from,
		To:        f.local.ID,
		Candidate: &domain.IceCandidate{Candidate: c},
	}
}

func (f *fixture) endFrom(from domain.UserID) domain.SignalingMessage {
	return domain.SignalingMessage{Type: domain.SignalCallEnd, From: from, To: f.local.ID}
}

// connectAsCaller establishes a connected session with f.remote by placing
// a call and feeding the remote answer.
func (f *fixture) connectAsCaller(t *testing.T) {
	t.Helper()
	if err := f.svc.StartCall(context.Background(), f.remote, domain.ModeVideo); err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if err := f.svc.HandleSignal(context.Background(), f.answerFrom(f.remote.ID)); err != nil {
		t.Fatalf("HandleSignal(answer): %v", err)
	}
}

// connectAsCallee establishes a connected session with f.remote by
// receiving an offer and accepting it.
func (f *fixture) connectAsCallee(t *testing.T, mode domain.CallMode) {
	t.Helper()
	if err := f.svc.HandleSignal(context.Background(), f.offerFrom(f.remote.ID, mode)); err != nil {
		t.Fatalf("HandleSignal(offer): %v", err)
	}
	if len(f.observer.incoming) == 0 {
		t.Fatal("no incoming call surfaced")
	}
	if err := f.observer.incoming[len(f.observer.incoming)-1].Accept(); err != nil {
		t.Fatalf("Accept: %v", err)
	}
}
