package pion

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dyadchat/dyad/internal/core/domain"
	"github.com/dyadchat/dyad/internal/core/port"
)

// trackBundle is what the engine expects from a local stream so its tracks
// can be added to the peer connection. The capture provider's streams
// satisfy it.
type trackBundle interface {
	Tracks() []webrtc.TrackLocal
}

// Engine adapts one webrtc.PeerConnection to a single negotiation round.
// The status side channel is a pre-negotiated data channel with a fixed ID,
// so both peers create it symmetrically without extra SDP round-trips.
type Engine struct {
	pc     *webrtc.PeerConnection
	status *webrtc.DataChannel
}

func newEngine(api *webrtc.API, cfg webrtc.Configuration, events port.EngineEvents) (*Engine, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}
	e := &Engine{pc: pc}

	negotiated := true
	statusID := uint16(0)
	status, err := pc.CreateDataChannel("status", &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &statusID,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("creating status channel: %w", err)
	}
	e.status = status

	status.OnMessage(func(msg webrtc.DataChannelMessage) {
		sm, err := domain.DecodeStatusMessage(msg.Data)
		if err != nil {
			log.Debug().Err(err).Msg("malformed status message, dropped")
			return
		}
		if events.OnStatus != nil {
			events.OnStatus(sm)
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// Gathering finished.
			return
		}
		if events.OnCandidate == nil {
			return
		}
		init := c.ToJSON()
		events.OnCandidate(domain.IceCandidate{
			Candidate:     init.Candidate,
			SDPMLineIndex: init.SDPMLineIndex,
			SDPMid:        init.SDPMid,
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if events.OnRemoteTrack != nil {
			events.OnRemoteTrack(&remoteTrack{track: track})
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if events.OnStateChange != nil {
			events.OnStateChange(linkState(state))
		}
	})

	return e, nil
}

func (e *Engine) CreateOffer(ctx context.Context) (domain.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionDescription{}, err
	}
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("creating offer: %w", err)
	}
	return domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (e *Engine) CreateAnswer(ctx context.Context) (domain.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionDescription{}, err
	}
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("creating answer: %w", err)
	}
	return domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (e *Engine) SetLocalDescription(ctx context.Context, desc domain.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.pc.SetLocalDescription(toSessionDescription(desc)); err != nil {
		return fmt.Errorf("applying local description: %w", err)
	}
	return nil
}

func (e *Engine) SetRemoteDescription(ctx context.Context, desc domain.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.pc.SetRemoteDescription(toSessionDescription(desc)); err != nil {
		return fmt.Errorf("applying remote description: %w", err)
	}
	return nil
}

func (e *Engine) AddCandidate(cand domain.IceCandidate) error {
	return e.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMLineIndex: cand.SDPMLineIndex,
		SDPMid:        cand.SDPMid,
	})
}

// AttachLocalStream adds the stream's tracks to the connection. Each
// sender's RTCP stream is drained so the interceptors keep running.
func (e *Engine) AttachLocalStream(stream port.LocalStream) error {
	bundle, ok := stream.(trackBundle)
	if !ok {
		return errors.New("local stream carries no sendable tracks")
	}
	for _, track := range bundle.Tracks() {
		sender, err := e.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("adding local track %q: %w", track.ID(), err)
		}
		go drainRTCP(sender)
	}
	return nil
}

func (e *Engine) SendStatus(msg domain.StatusMessage) error {
	if e.status == nil || e.status.ReadyState() != webrtc.DataChannelStateOpen {
		return domain.ErrStatusChannelClosed
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return e.status.Send(data)
}

func (e *Engine) Close() error {
	return e.pc.Close()
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func toSessionDescription(desc domain.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	}
}

func linkState(state webrtc.PeerConnectionState) domain.LinkState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return domain.LinkNew
	case webrtc.PeerConnectionStateConnecting:
		return domain.LinkConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.LinkConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.LinkDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.LinkFailed
	default:
		return domain.LinkClosed
	}
}

// remoteTrack hands the raw pion track to the rendering layer while keeping
// the core decoupled from the webrtc types.
type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (t *remoteTrack) ID() string   { return t.track.ID() }
func (t *remoteTrack) Kind() string { return t.track.Kind().String() }

// Track exposes the underlying pion track for consumers that read RTP.
func (t *remoteTrack) Track() *webrtc.TrackRemote { return t.track }
