//go:build linux && cgo

package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"

	"github.com/dyadchat/dyad/internal/core/domain"
	"github.com/dyadchat/dyad/internal/core/port"
)

// Provider captures local audio, camera and screen media through the
// platform drivers, encoding with VP8 and Opus.
type Provider struct {
	selector *mediadevices.CodecSelector
}

func NewProvider() (*Provider, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("initializing vp8 encoder: %w", err)
	}
	vpxParams.BitRate = 500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("initializing opus encoder: %w", err)
	}

	return &Provider{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

// Populate registers the capture codecs on the negotiation engine's media
// engine so the encoded tracks are always negotiable.
func (p *Provider) Populate(engine *webrtc.MediaEngine) {
	p.selector.Populate(engine)
}

func (p *Provider) Acquire(ctx context.Context, mode domain.CallMode) (port.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch mode {
	case domain.ModeAudio:
		return p.userMedia(false)
	case domain.ModeVideo:
		return p.userMedia(true)
	case domain.ModeScreen:
		return p.displayMedia()
	default:
		return nil, domain.ErrUnsupportedMode
	}
}

func (p *Provider) userMedia(withVideo bool) (port.LocalStream, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: p.selector,
	}
	if withVideo {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(640)
			c.Height = prop.Int(480)
		}
	}
	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, wrapAcquireErr(err)
	}
	return bundle(ms), nil
}

// displayMedia captures the screen, plus the microphone on a best-effort
// basis: a screen share without narration audio is still a useful call.
func (p *Provider) displayMedia() (port.LocalStream, error) {
	screen, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: p.selector,
	})
	if err != nil {
		return nil, wrapAcquireErr(err)
	}

	mic, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: p.selector,
	})
	if err != nil {
		log.Warn().Err(err).Msg("sharing screen without microphone")
		return bundle(screen), nil
	}
	return bundle(screen, mic), nil
}

func bundle(streams ...mediadevices.MediaStream) *Stream {
	var tracks []webrtc.TrackLocal
	var captured []mediadevices.Track
	for _, ms := range streams {
		for _, t := range ms.GetTracks() {
			captured = append(captured, t)
			tracks = append(tracks, t)
		}
	}
	return newStream(tracks, func() {
		for _, t := range captured {
			if err := t.Close(); err != nil {
				log.Debug().Err(err).Str("track_id", t.ID()).Msg("closing capture track")
			}
		}
	})
}

// wrapAcquireErr types driver failures with the domain sentinels. The
// mediadevices driver errors are unexported, so the no-device case is
// matched on its message.
func wrapAcquireErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "failed to find") || strings.Contains(msg, "no driver") {
		return fmt.Errorf("%w: %v", domain.ErrDeviceNotFound, err)
	}
	if strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)
}
