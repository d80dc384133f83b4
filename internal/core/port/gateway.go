package port

import (
	"context"

	"github.com/dyadchat/dyad/internal/core/domain"
)

// SignalGateway is the already-authenticated, ordered, reliable signaling
// channel to the remote side. The gateway stamps fromUserId on delivery;
// inbound messages reach the core through CallService.HandleSignal, invoked
// by the gateway adapter in arrival order.
type SignalGateway interface {
	Send(ctx context.Context, msg domain.SignalingMessage) error
}
