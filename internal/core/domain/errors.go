package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies call failures for logging and for deciding what the
// user should see. Initialization and media codes carry actionable
// messages; connectivity codes surface only as the call ending.
type ErrorCode uint8

const (
	CodeUnknown ErrorCode = iota

	// Initialization
	CodeNoDestination
	CodeEngineCreateFailed

	// Media
	CodeMediaPermissionDenied
	CodeMediaDeviceNotFound
	CodeMediaCaptureFailed

	// Signaling
	CodeOfferFailed
	CodeAnswerFailed
	CodeRemoteDescriptionFailed

	// Connectivity
	CodeCandidateRejected
	CodeConnectionFailed

	// Transport
	CodeGatewayClosed
	CodeSendFailed

	// State
	CodeInvalidState
	CodeNoEngine
	CodeCallSuperseded
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNoDestination:
		return "NoDestination"
	case CodeEngineCreateFailed:
		return "EngineCreateFailed"
	case CodeMediaPermissionDenied:
		return "MediaPermissionDenied"
	case CodeMediaDeviceNotFound:
		return "MediaDeviceNotFound"
	case CodeMediaCaptureFailed:
		return "MediaCaptureFailed"
	case CodeOfferFailed:
		return "OfferFailed"
	case CodeAnswerFailed:
		return "AnswerFailed"
	case CodeRemoteDescriptionFailed:
		return "RemoteDescriptionFailed"
	case CodeCandidateRejected:
		return "CandidateRejected"
	case CodeConnectionFailed:
		return "ConnectionFailed"
	case CodeGatewayClosed:
		return "GatewayClosed"
	case CodeSendFailed:
		return "SendFailed"
	case CodeInvalidState:
		return "InvalidState"
	case CodeNoEngine:
		return "NoEngine"
	case CodeCallSuperseded:
		return "CallSuperseded"
	default:
		return "Unknown"
	}
}

// CallError wraps a failure with its taxonomy code and the operation that
// produced it.
type CallError struct {
	Code ErrorCode
	Op   string
	Err  error
}

func NewCallError(code ErrorCode, op string, err error) *CallError {
	return &CallError{Code: code, Op: op, Err: err}
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown if err carries
// none.
func CodeOf(err error) ErrorCode {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

// Sentinel errors shared between the core and its adapters.
var (
	// Media provider failures, per acquisition mode.
	ErrPermissionDenied = errors.New("media: permission denied")
	ErrDeviceNotFound   = errors.New("media: device not found")
	ErrCaptureFailed    = errors.New("media: capture failed")

	// Gateway transport.
	ErrGatewayClosed = errors.New("gateway: not connected")

	// Engine side channel.
	ErrStatusChannelClosed = errors.New("engine: status channel not open")

	// Message validation.
	ErrUnknownSignal    = errors.New("signal: unknown type")
	ErrNoDestination    = errors.New("signal: no destination")
	ErrMissingSDP       = errors.New("signal: missing session description")
	ErrMissingCandidate = errors.New("signal: missing candidate")

	// State machine.
	ErrNoEngine        = errors.New("call: no negotiation engine")
	ErrNoPendingOffer  = errors.New("call: no pending offer")
	ErrCallSuperseded  = errors.New("call: superseded by a newer session")
	ErrUnsupportedMode = errors.New("call: unsupported mode")
)

// MediaErrorCode maps a media provider error to its taxonomy code.
func MediaErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return CodeMediaPermissionDenied
	case errors.Is(err, ErrDeviceNotFound):
		return CodeMediaDeviceNotFound
	default:
		return CodeMediaCaptureFailed
	}
}
