package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dyadchat/dyad/internal/adapter/driven/engine/pion"
	gw "github.com/dyadchat/dyad/internal/adapter/driven/gateway/ws"
	"github.com/dyadchat/dyad/internal/adapter/driven/media/capture"
	"github.com/dyadchat/dyad/internal/config"
	"github.com/dyadchat/dyad/internal/core/domain"
	"github.com/dyadchat/dyad/internal/core/port"
	"github.com/dyadchat/dyad/internal/core/service"
)

// Headless demo peer: connects to the relay, answers incoming calls
// automatically and optionally places one outbound call.
func main() {
	userFlag := flag.String("user", "", "local user id (uuid, generated when empty)")
	callFlag := flag.String("call", "", "user id to call on startup")
	modeFlag := flag.String("mode", "audio", "call mode: audio, video or screen")
	username := flag.String("name", "peer", "display name")
	flag.Parse()

	w := zerolog.ConsoleWriter{Out: os.Stdout}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	cfg := config.Load()

	local := domain.Participant{ID: domain.NewUserID(), Username: *username}
	if *userFlag != "" {
		id, err := domain.ParseUserID(*userFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -user")
		}
		local.ID = id
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, err := gw.Dial(ctx, cfg.ServerURL, local.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("could not reach signaling server")
	}
	defer gateway.Close()

	media, err := capture.NewProvider()
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize media capture")
	}

	engines, err := pion.NewFactory(cfg.ICEServers, media)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize negotiation engine")
	}

	calls := service.NewCallService(local, gateway, media, engines, &autoObserver{})

	go func() {
		if err := gateway.Listen(ctx, func(ctx context.Context, msg domain.SignalingMessage) {
			if err := calls.HandleSignal(ctx, msg); err != nil {
				log.Warn().Err(err).Str("type", string(msg.Type)).Msg("signal not handled")
			}
		}); err != nil {
			log.Error().Err(err).Msg("signaling connection lost")
		}
		cancel()
	}()

	if *callFlag != "" {
		remote, err := domain.ParseUserID(*callFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -call")
		}
		mode := domain.CallMode(*modeFlag)
		if err := calls.StartCall(ctx, domain.Participant{ID: remote}, mode); err != nil {
			log.Fatal().Err(err).Msg("call failed")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	calls.EndCall(context.Background(), true)
	log.Info().Msg("peer exited")
}

// autoObserver accepts every incoming call and logs session events.
type autoObserver struct{}

func (o *autoObserver) IncomingCall(call port.IncomingCall) {
	log.Info().Str("from", call.From.String()).Str("mode", string(call.Mode)).Msg("incoming call, auto-accepting")
	if err := call.Accept(); err != nil {
		log.Error().Err(err).Msg("accept failed")
	}
}

func (o *autoObserver) CallStateChanged(change port.CallStateChange) {
	log.Info().Bool("in_call", change.InCall).Str("state", change.State.String()).Msg("call state changed")
}

func (o *autoObserver) RemoteTrack(track port.RemoteTrack) {
	log.Info().Str("kind", track.Kind()).Str("track_id", track.ID()).Msg("remote media flowing")
	if rt, ok := track.(interface{ Track() *webrtc.TrackRemote }); ok {
		go drainTrack(rt.Track())
	}
}

func (o *autoObserver) RemoteStatusChanged(state domain.MuteVideoState) {
	log.Info().Bool("remote_mic_muted", state.RemoteMicMuted).Bool("remote_camera_off", state.RemoteCameraOff).Msg("remote status changed")
}

// drainTrack keeps the RTP stream moving; a renderer would decode here.
func drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
