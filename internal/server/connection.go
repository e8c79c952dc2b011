package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lox/partybets/internal/engine"
	"github.com/lox/partybets/internal/game"
	"github.com/lox/partybets/internal/protocol"
	"github.com/lox/partybets/internal/room"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	errNotJoined     = errors.New("join the room first")
	errAlreadyJoined = errors.New("already joined")
)

// Connection is one WebSocket client watching a room. It becomes a player
// once join or reconnect succeeds; until then it only receives events.
type Connection struct {
	conn   *websocket.Conn
	server *Server
	sess   *engine.Session
	roomID string
	send   chan []byte
	done   chan struct{}
	logger zerolog.Logger

	mu       sync.RWMutex
	playerID string
	seatConn uint64

	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, s *Server, sess *engine.Session) *Connection {
	return &Connection{
		conn:   conn,
		server: s,
		sess:   sess,
		roomID: sess.ID(),
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: s.logger.With().Str("component", "conn").Str("room", sess.ID()).Logger(),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection. It is safe to call from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Send queues a frame without blocking. A client whose buffer is full is
// disconnected.
func (c *Connection) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn().Str("player_id", c.PlayerID()).Msg("Connection send buffer full, closing connection")
		c.Close()
		return false
	}
}

// PlayerID returns the player this connection plays as, if any.
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// seat returns the player and the connection generation this connection
// claimed.
func (c *Connection) seat() (string, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID, c.seatConn
}

func (c *Connection) setPlayer(id string, conn uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = id
	c.seatConn = conn
}

// readPump handles incoming commands until the client goes away, then
// releases the player's seat unless another connection has reclaimed it.
func (c *Connection) readPump() {
	defer func() {
		c.Close()
		c.server.unregister(c)
		if id, conn := c.seat(); id != "" {
			ctx, cancel := context.WithTimeout(context.Background(), c.server.commandTimeout)
			defer cancel()
			if err := c.sess.Disconnect(ctx, id, conn); err != nil && !errors.Is(err, engine.ErrSessionStopped) {
				c.logger.Warn().Err(err).Str("player_id", id).Msg("Failed to mark player disconnected")
			}
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("Unexpected WebSocket close error")
			}
			return
		}

		typ, payload, err := protocol.DecodeCommand(data)
		if err != nil {
			c.reply(protocol.TypeError, errorPayload(err))
			continue
		}
		if err := c.handle(typ, payload); err != nil {
			c.logger.Debug().Err(err).Str("type", typ).Str("player_id", c.PlayerID()).Msg("Command rejected")
			c.reply(protocol.TypeError, errorPayload(err))
		}
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// reply sends a message to this client only.
func (c *Connection) reply(typ string, payload any) {
	data, err := protocol.Marshal(typ, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("type", typ).Msg("Failed to encode reply")
		return
	}
	c.Send(data)
}

// handle forwards one decoded command to the room.
func (c *Connection) handle(typ string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.server.commandTimeout)
	defer cancel()

	switch typ {
	case protocol.TypeJoin:
		if c.PlayerID() != "" {
			return errAlreadyJoined
		}
		msg := payload.(*protocol.Join)
		p, snap, err := c.sess.Join(ctx, msg.Name, msg.BuyIn)
		if err != nil {
			return err
		}
		c.joined(p, snap)
		return nil

	case protocol.TypeReconnect:
		if c.PlayerID() != "" {
			return errAlreadyJoined
		}
		p, snap, err := c.sess.Reconnect(ctx, payload.(*protocol.Reconnect).Token)
		if err != nil {
			return err
		}
		c.joined(p, snap)
		return nil

	case protocol.TypeAddBots:
		_, err := c.sess.AddBots(ctx, payload.(*protocol.BotCount).Count)
		return err

	case protocol.TypeRemoveBots:
		_, err := c.sess.RemoveBots(ctx, payload.(*protocol.BotCount).Count)
		return err

	case protocol.TypePlayAgain:
		return c.sess.PlayAgain(ctx)
	}

	id := c.PlayerID()
	if id == "" {
		return errNotJoined
	}
	switch typ {
	case protocol.TypeSetReady:
		return c.sess.SetReady(ctx, id, payload.(*protocol.SetReady).Ready)
	case protocol.TypeSubmitBet:
		msg := payload.(*protocol.SubmitBet)
		return c.sess.SubmitBet(ctx, id, game.Bet{OptionID: msg.OptionID, Amount: msg.Amount, ChoiceID: msg.ChoiceID})
	case protocol.TypeSubmitBid:
		return c.sess.SubmitBid(ctx, id, payload.(*protocol.SubmitBid).Amount)
	case protocol.TypeRoundReady:
		return c.sess.RoundReady(ctx, id)
	}
	return protocol.ErrUnknownMessageType
}

func (c *Connection) joined(p game.Player, snap room.Snapshot) {
	c.setPlayer(p.ID, p.Conn)
	c.logger.Info().Str("player_id", p.ID).Str("player", p.Name).Msg("Connection joined as player")
	c.reply(protocol.TypeJoined, protocol.Joined{PlayerID: p.ID, Token: p.Token, Room: snap})
}
