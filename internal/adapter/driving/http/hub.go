package http

import (
	"github.com/rs/zerolog/log"

	"github.com/dyadchat/dyad/internal/core/domain"
)

// Hub routes signaling messages between connected peers by recipient ID.
// All routing state is owned by the Run goroutine; the exported methods
// only push onto its channels.
type Hub struct {
	clients    map[domain.UserID]*wsClient
	register   chan *wsClient
	unregister chan *wsClient
	forward    chan domain.SignalingMessage
	quit       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[domain.UserID]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		forward:    make(chan domain.SignalingMessage, 64),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			return

		case client := <-h.register:
			// A reconnect under the same identity replaces the old
			// connection.
			if old, ok := h.clients[client.id]; ok {
				old.close()
			}
			h.clients[client.id] = client
			log.Info().Str("user_id", client.id.String()).Msg("peer registered")

		case client := <-h.unregister:
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				client.close()
				log.Info().Str("user_id", client.id.String()).Msg("peer unregistered")
			}

		case msg := <-h.forward:
			h.deliver(msg)
		}
	}
}

// deliver hands msg to its recipient's write queue. An offline recipient or
// a full queue drops the message; signaling has no store-and-forward.
func (h *Hub) deliver(msg domain.SignalingMessage) {
	recipient, ok := h.clients[msg.To]
	if !ok {
		log.Debug().Str("to", msg.To.String()).Str("type", string(msg.Type)).Msg("recipient offline, dropping signal")
		return
	}
	data, err := msg.Encode()
	if err != nil {
		log.Warn().Err(err).Msg("unroutable signal dropped")
		return
	}
	select {
	case recipient.send <- data:
	default:
		log.Warn().Str("to", msg.To.String()).Msg("recipient write queue full, disconnecting")
		delete(h.clients, recipient.id)
		recipient.close()
	}
}

// Register, Unregister and Forward give up once the hub has stopped, so a
// peer disconnecting during shutdown never strands its handler goroutine.
func (h *Hub) Register(c *wsClient) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

func (h *Hub) Unregister(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Forward(msg domain.SignalingMessage) {
	select {
	case h.forward <- msg:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}
