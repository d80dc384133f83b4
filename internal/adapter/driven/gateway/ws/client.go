package ws

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dyadchat/dyad/internal/core/domain"
)

const writeWait = 10 * time.Second

// Gateway is a signaling client over one websocket connection to the relay
// server. Writes are serialized; reads happen on the Listen goroutine only,
// which preserves server delivery order.
type Gateway struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

// Dial connects to the relay, identifying as self via the user_id query
// parameter. The relay stamps that identity onto every forwarded message.
func Dial(ctx context.Context, serverURL string, self domain.UserID) (*Gateway, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", self.String())
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing signaling server (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dialing signaling server: %w", err)
	}
	log.Info().Str("server", serverURL).Str("user_id", self.String()).Msg("connected to signaling server")
	return &Gateway{conn: conn}, nil
}

// Send validates and writes one message. A failed write marks the gateway
// closed; subsequent sends fail fast with ErrGatewayClosed.
func (g *Gateway) Send(ctx context.Context, msg domain.SignalingMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.closed {
		return domain.ErrGatewayClosed
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	g.conn.SetWriteDeadline(deadline)
	if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		g.closed = true
		return fmt.Errorf("%w: %v", domain.ErrGatewayClosed, err)
	}
	return nil
}

// Listen reads messages until the connection closes and delivers each one
// to handle on the calling goroutine, in arrival order. Malformed messages
// are logged and skipped. Returns nil on a clean close.
func (g *Gateway) Listen(ctx context.Context, handle func(context.Context, domain.SignalingMessage)) error {
	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			g.writeMu.Lock()
			g.closed = true
			g.writeMu.Unlock()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", domain.ErrGatewayClosed, err)
		}
		msg, err := domain.DecodeSignalingMessage(data)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed signaling message")
			continue
		}
		handle(ctx, msg)
	}
}

func (g *Gateway) Close() error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return g.conn.Close()
}
