package capture

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Stream bundles the captured local tracks for one call. The enable toggles
// are advisory: the capture stack keeps encoding, and the remote hides the
// corresponding tile based on the mirrored status message. Stop releases
// the devices and is safe to call repeatedly.
type Stream struct {
	once   sync.Once
	tracks []webrtc.TrackLocal
	closer func()
}

func newStream(tracks []webrtc.TrackLocal, closer func()) *Stream {
	return &Stream{tracks: tracks, closer: closer}
}

// Tracks exposes the sendable tracks to the negotiation engine.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	return s.tracks
}

func (s *Stream) SetAudioEnabled(enabled bool) {
	log.Debug().Bool("enabled", enabled).Msg("local audio toggled")
}

func (s *Stream) SetVideoEnabled(enabled bool) {
	log.Debug().Bool("enabled", enabled).Msg("local video toggled")
}

func (s *Stream) Stop() {
	s.once.Do(func() {
		if s.closer != nil {
			s.closer()
		}
	})
}
