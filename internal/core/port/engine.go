package port

import (
	"context"

	"github.com/dyadchat/dyad/internal/core/domain"
)

// RemoteTrack is a media track delivered by the remote peer, handed to the
// UI layer for rendering.
type RemoteTrack interface {
	ID() string
	Kind() string
}

// EngineEvents carries the notifications one negotiation engine emits back
// into the core. Callbacks may fire from engine-owned goroutines; nil
// callbacks are skipped.
type EngineEvents struct {
	OnCandidate   func(cand domain.IceCandidate)
	OnRemoteTrack func(track RemoteTrack)
	OnStateChange func(state domain.LinkState)
	OnStatus      func(msg domain.StatusMessage)
}

// NegotiationEngine wraps one negotiation round of the external ICE/DTLS
// engine: SDP offer/answer creation, description application, candidate
// application and the low-latency status side channel. An engine is bound
// to a single round; renegotiation replaces it.
type NegotiationEngine interface {
	CreateOffer(ctx context.Context) (domain.SessionDescription, error)
	CreateAnswer(ctx context.Context) (domain.SessionDescription, error)
	SetLocalDescription(ctx context.Context, desc domain.SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc domain.SessionDescription) error

	// AddCandidate applies one remote candidate. A rejection (including a
	// credential mismatch with the current remote description) is returned
	// as an error; it is never fatal to the call.
	AddCandidate(cand domain.IceCandidate) error

	AttachLocalStream(stream LocalStream) error

	// SendStatus mirrors mute/camera state over the side channel.
	// Fire-and-forget: returns ErrStatusChannelClosed when the channel is
	// not open yet.
	SendStatus(msg domain.StatusMessage) error

	Close() error
}

// EngineFactory creates a fresh engine per negotiation round.
type EngineFactory interface {
	New(events EngineEvents) (NegotiationEngine, error)
}
