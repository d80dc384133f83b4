package pion

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/dyadchat/dyad/internal/config"
	"github.com/dyadchat/dyad/internal/core/port"
)

// CodecPopulator registers additional codecs on the media engine. The
// capture provider's codec selector implements it, so the codecs the local
// tracks are encoded with are always negotiable.
type CodecPopulator interface {
	Populate(*webrtc.MediaEngine)
}

// Factory builds one peer connection per negotiation round, all sharing a
// single API instance and ICE server set.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func NewFactory(servers []config.ICEServer, populator CodecPopulator) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	if populator != nil {
		populator.Populate(mediaEngine)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}

	cfg := webrtc.Configuration{}
	for _, s := range servers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return &Factory{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(registry),
		),
		cfg: cfg,
	}, nil
}

func (f *Factory) New(events port.EngineEvents) (port.NegotiationEngine, error) {
	return newEngine(f.api, f.cfg, events)
}
