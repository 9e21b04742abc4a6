// Package server manages individual WebSocket connections, handling the
// read/write pumps and lifecycle for each client.
package server

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Client is one live transport connection. Its id is assigned at accept time
// and identifies the connection for the process lifetime, independent of
// whether anyone is logged in on it.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	addr   string
	closed bool
	log    zerolog.Logger
}

// NewClient wraps an accepted WebSocket connection with a fresh connection id
// and a buffered send channel. The caller hands the client to the hub's
// register channel; the hub starts the pumps.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	id := uuid.NewString()
	if conn != nil {
		conn.SetReadLimit(hub.cfg.MaxMessageSize)
	}

	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, 256),
		hub:  hub,
		addr: addr,
		log:  hub.log.With().Str("conn", id).Str("addr", addr).Logger(),
	}
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the read failure appropriately and reports whether
// the read loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.hub.cfg.MaxMessageSize).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Info().Err(err).Msg("connection closed")
	default:
		c.log.Warn().Err(err).Msg("websocket read error")
	}
	return true
}

// readPump reads frames off the wire and hands each one to the router in
// arrival order. No two frames from the same connection are ever in flight
// at once; the pump does not read the next frame until routing returns.
func (c *Client) readPump() {
	defer func() {
		// During hub shutdown nobody drains the unregister channel; the hub
		// is already tearing every connection down.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("closing connection in read pump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if c.handleReadError(err) {
			break
		}

		c.hub.route(c.id, raw)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("closing connection in write pump")
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !c.writeFrame(payload, ok) {
				return
			}
		case <-ticker.C:
			if !c.ping() {
				return
			}
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// writeFrame writes one outbound frame as its own websocket message, then
// drains any frames queued behind it the same way. One JSON object per
// transport frame is a protocol guarantee, so frames are never coalesced.
// Returns false when the pump should stop.
func (c *Client) writeFrame(payload []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("setting write deadline")
		return false
	}

	if !ok {
		// The hub closed the send channel.
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn().Err(err).Msg("writing frame")
		return false
	}

	queued := len(c.send)
	for i := 0; i < queued; i++ {
		if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
			c.log.Warn().Err(err).Msg("writing queued frame")
			return false
		}
	}
	return true
}

func (c *Client) ping() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn().Err(err).Msg("writing ping")
		return false
	}
	return true
}
