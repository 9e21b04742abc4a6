// Package server coordinates connection registration, session cleanup, and
// best-effort frame delivery through the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-chat/parley/internal/store"
)

// Hub is the connection registry. It owns every live client, serializes
// register/unregister through its event loop, and guarantees that a
// connection's session binding is cleared before the connection itself is
// dropped.
type Hub struct {
	cfg      Config
	clients  map[string]*Client
	sessions *sessionRegistry
	router   *Router

	register   chan *Client
	unregister chan *Client

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger
}

// NewHub wires a hub to the given credential store. The returned hub is
// inert until Run is called.
func NewHub(cfg Config, credentials store.Store, log zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg,
		clients:    make(map[string]*Client),
		sessions:   newSessionRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log.With().Str("component", "hub").Logger(),
	}
	h.router = newRouter(h.sessions, credentials, h, log)
	return h
}

// Run starts the hub's event loop. It should be called in its own goroutine
// and runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn().Msg("nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Info().Str("conn", client.id).Str("addr", client.addr).Int("total", count).Msg("connection registered")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.dropClient(client)
		}
	}
}

// dropClient removes a connection and, first, any session bound to it. The
// ordering is what keeps the registries consistent: a session never outlives
// the connection it points at.
func (h *Hub) dropClient(client *Client) {
	h.sessions.OnDisconnect(client.id)

	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	count := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	h.log.Info().Str("conn", client.id).Str("addr", client.addr).Int("total", count).Msg("connection unregistered")
}

// Send marshals msg and delivers it to connID. Delivery is best-effort:
// unknown ids (disconnect races) and full send buffers drop the frame
// silently, which is not a failure.
func (h *Hub) Send(connID string, msg Outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Str("conn", connID).Err(err).Msg("marshal outbound frame")
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, ok := h.clients[connID]
	if !ok || client.closed {
		return
	}

	select {
	case client.send <- payload:
	default:
		h.log.Warn().Str("conn", connID).Msg("send buffer full; dropping frame")
	}
}

// route hands one inbound frame to the protocol state machine. Frames from a
// single connection arrive here serially via its read pump.
func (h *Hub) route(connID string, raw []byte) {
	h.router.Handle(connID, raw)
}

// shutdownClients closes every active client connection.
func (h *Hub) shutdownClients() {
	h.log.Info().Msg("closing all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn().Str("conn", client.id).Err(err).Msg("closing client connection")
			}
		}
	}

	h.log.Info().Int("count", len(clients)).Msg("client connections closed")
}

// Shutdown stops the event loop and waits for client goroutines to finish,
// or for the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("hub shutting down")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info().Msg("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
