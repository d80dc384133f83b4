package domain

import (
	"encoding/json"
	"fmt"
)

// SignalType discriminates the messages exchanged over the signaling
// gateway.
type SignalType string

const (
	SignalCallOffer    SignalType = "call_offer"
	SignalCallAnswer   SignalType = "call_answer"
	SignalIceCandidate SignalType = "ice_candidate"
	SignalCallEnd      SignalType = "call_end"
)

func (t SignalType) IsValid() bool {
	switch t {
	case SignalCallOffer, SignalCallAnswer, SignalIceCandidate, SignalCallEnd:
		return true
	}
	return false
}

// SessionDescription is an opaque SDP blob plus its offer/answer kind, as
// produced and consumed by the negotiation engine.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// SignalingMessage is one message on the signaling channel. From is stamped
// by the gateway on delivery, never chosen by the sender.
type SignalingMessage struct {
	Type      SignalType          `json:"type"`
	From      UserID              `json:"fromUserId,omitempty"`
	To        UserID              `json:"toUserId"`
	Mode      CallMode            `json:"callMode,omitempty"`
	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate *IceCandidate       `json:"candidate,omitempty"`
}

func NewOffer(to UserID, mode CallMode, sdp SessionDescription) SignalingMessage {
	return SignalingMessage{Type: SignalCallOffer, To: to, Mode: mode, SDP: &sdp}
}

func NewAnswer(to UserID, sdp SessionDescription) SignalingMessage {
	return SignalingMessage{Type: SignalCallAnswer, To: to, SDP: &sdp}
}

func NewCandidateSignal(to UserID, cand IceCandidate) SignalingMessage {
	return SignalingMessage{Type: SignalIceCandidate, To: to, Candidate: &cand}
}

func NewCallEnd(to UserID) SignalingMessage {
	return SignalingMessage{Type: SignalCallEnd, To: to}
}

// Validate checks that the message carries the payload its type requires.
func (m SignalingMessage) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, string(m.Type))
	}
	if m.To.IsZero() {
		return ErrNoDestination
	}
	switch m.Type {
	case SignalCallOffer:
		if m.SDP == nil || m.SDP.SDP == "" {
			return fmt.Errorf("call_offer: %w", ErrMissingSDP)
		}
		if !m.Mode.IsValid() {
			return fmt.Errorf("call_offer: invalid mode %q", string(m.Mode))
		}
	case SignalCallAnswer:
		if m.SDP == nil || m.SDP.SDP == "" {
			return fmt.Errorf("call_answer: %w", ErrMissingSDP)
		}
	case SignalIceCandidate:
		if m.Candidate == nil {
			return fmt.Errorf("ice_candidate: %w", ErrMissingCandidate)
		}
	}
	return nil
}

func (m SignalingMessage) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func DecodeSignalingMessage(data []byte) (SignalingMessage, error) {
	var m SignalingMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return SignalingMessage{}, fmt.Errorf("decoding signaling message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return SignalingMessage{}, err
	}
	return m, nil
}

// StatusKind discriminates the side-channel status messages that mirror
// local mute/camera state to the remote peer.
type StatusKind string

const (
	StatusMic   StatusKind = "mic_status"
	StatusVideo StatusKind = "video_status"
)

// StatusMessage is one fire-and-forget side-channel message. Muted applies
// to mic_status, Off to video_status.
type StatusMessage struct {
	Kind  StatusKind `json:"kind"`
	Muted bool       `json:"muted,omitempty"`
	Off   bool       `json:"off,omitempty"`
}

func (m StatusMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func DecodeStatusMessage(data []byte) (StatusMessage, error) {
	var m StatusMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return StatusMessage{}, fmt.Errorf("decoding status message: %w", err)
	}
	if m.Kind != StatusMic && m.Kind != StatusVideo {
		return StatusMessage{}, fmt.Errorf("%w: %q", ErrUnknownSignal, string(m.Kind))
	}
	return m, nil
}
