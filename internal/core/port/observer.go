package port

import (
	"github.com/dyadchat/dyad/internal/core/domain"
)

// IncomingCall is a pending invitation surfaced to the UI layer. Exactly
// one of Accept/Reject should be invoked; both are safe to call after the
// offer has been superseded (they become no-ops).
type IncomingCall struct {
	From   domain.UserID
	Mode   domain.CallMode
	Accept func() error
	Reject func()
}

// CallStateChange notifies the UI layer of a session lifecycle transition.
type CallStateChange struct {
	InCall bool
	Role   domain.CallRole
	State  domain.CallState
}

// CallObserver is the outbound UI boundary. Implementations must not call
// back into the call service synchronously from CallStateChanged or
// RemoteStatusChanged; IncomingCall.Accept/Reject are safe from anywhere.
type CallObserver interface {
	IncomingCall(call IncomingCall)
	CallStateChanged(change CallStateChange)
	RemoteTrack(track RemoteTrack)
	RemoteStatusChanged(state domain.MuteVideoState)
}
