package http

import (
	"testing"
	"time"

	"github.com/dyadchat/dyad/internal/core/domain"
)

func TestStoppedHubDoesNotBlockHandlers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		client := &wsClient{id: domain.NewUserID(), done: make(chan struct{})}
		// A peer disconnecting during shutdown runs exactly this path.
		hub.Unregister(client)
		hub.Forward(domain.SignalingMessage{Type: domain.SignalCallEnd, To: domain.NewUserID()})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub call blocked after Stop")
	}
}
