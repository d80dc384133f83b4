package domain

// CallMode is the kind of media a call carries.
type CallMode string

const (
	ModeAudio  CallMode = "audio"
	ModeVideo  CallMode = "video"
	ModeScreen CallMode = "screen"
)

func (m CallMode) IsValid() bool {
	switch m {
	case ModeAudio, ModeVideo, ModeScreen:
		return true
	}
	return false
}

// AnswerMode is the mode the callee captures local media in when answering
// an offer of mode m. Screen-share offers are answered audio-only: the
// callee is a viewer, not a second screen-sharer.
func (m CallMode) AnswerMode() CallMode {
	if m == ModeScreen {
		return ModeAudio
	}
	return m
}

type CallRole string

const (
	RoleCaller CallRole = "caller"
	RoleCallee CallRole = "callee"
)

// CallState is the lifecycle state of the single active call session.
//
//	Idle → Calling (caller) → Connected
//	Idle → Ringing (callee, pending user decision) → Connected
//	Connected → Renegotiating → Connected (same remote, new mode)
//	any → Idle on hang-up, remote call_end, or negotiation failure
type CallState int

const (
	StateIdle CallState = iota
	StateCalling
	StateRinging
	StateConnected
	StateRenegotiating
)

func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateRinging:
		return "ringing"
	case StateConnected:
		return "connected"
	case StateRenegotiating:
		return "renegotiating"
	default:
		return "unknown"
	}
}

// Participant identifies one side of a call. The remote participant may be
// known only by ID until negotiation completes.
type Participant struct {
	ID       UserID
	Username string
}

// CallSession is the single active or pending call. At most one exists per
// local participant at any time; it is owned exclusively by the call
// service and reset to nil on teardown.
type CallSession struct {
	Local  Participant
	Remote Participant
	Mode   CallMode
	Role   CallRole
	State  CallState
}

// MuteVideoState mirrors local mic/camera toggles and the remote peer's
// mirrored indicators. Ephemeral: reset to defaults on every new session.
type MuteVideoState struct {
	MicMuted        bool
	CameraOff       bool
	RemoteMicMuted  bool
	RemoteCameraOff bool
}

// LinkState is the negotiation engine's transport-level connection state.
type LinkState string

const (
	LinkNew          LinkState = "new"
	LinkConnecting   LinkState = "connecting"
	LinkConnected    LinkState = "connected"
	LinkDisconnected LinkState = "disconnected"
	LinkFailed       LinkState = "failed"
	LinkClosed       LinkState = "closed"
)
