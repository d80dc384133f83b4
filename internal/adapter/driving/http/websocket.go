package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dyadchat/dyad/internal/core/domain"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 32
)

// wsClient is one connected peer. Reads happen on the ServeWS goroutine,
// writes on the writePump goroutine fed by the hub.
type wsClient struct {
	id   domain.UserID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func (c *wsClient) writePump() {
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("user_id", c.id.String()).Msg("write failed, closing peer connection")
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// close is only called from the hub's Run goroutine.
func (c *wsClient) close() {
	close(c.done)
	c.conn.Close()
}

// ServeWS upgrades the connection, registers the peer under its identity
// and relays its messages until it disconnects. The sender identity on
// every forwarded message is stamped server-side; whatever the client put
// in the from field is overwritten.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	id, err := domain.ParseUserID(r.URL.Query().Get("user_id"))
	if err != nil {
		id = domain.NewUserID()
	}

	client := &wsClient{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}

	l := log.With().Str("user_id", id.String()).Logger()
	l.Info().Msg("peer connected")

	h.hub.Register(client)
	go client.writePump()

	defer func() {
		h.hub.Unregister(client)
		l.Info().Msg("peer disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		msg, err := domain.DecodeSignalingMessage(data)
		if err != nil {
			l.Warn().Err(err).Msg("dropping malformed signal")
			continue
		}
		msg.From = client.id
		h.hub.Forward(msg)
	}
}
