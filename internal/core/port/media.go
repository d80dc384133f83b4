package port

import (
	"context"

	"github.com/dyadchat/dyad/internal/core/domain"
)

// LocalStream is a bundle of captured local media tracks. Enable toggles
// flip the track's live state without stopping capture; Stop releases the
// devices and is safe to call more than once.
type LocalStream interface {
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
	Stop()
}

// MediaProvider acquires local media for a call mode. Failures are typed
// with the domain media sentinels (ErrPermissionDenied, ErrDeviceNotFound,
// ErrCaptureFailed) so the core can distinguish fatal from recoverable
// acquisition errors.
type MediaProvider interface {
	Acquire(ctx context.Context, mode domain.CallMode) (LocalStream, error)
}
