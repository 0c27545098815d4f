// Package hub serializes all protocol dispatch onto one goroutine. Every
// socket event runs to completion before the next starts, which is the
// system's core consistency property: registry mutations inside a handler
// are atomic with respect to every other socket event.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"liveclass/internal/router"
	"liveclass/internal/ws"
	"liveclass/pkg/types"
)

// Buffer sizes cover classroom-scale bursts: a full class submitting
// homework at the bell fits in the event buffer without blocking readers.
const (
	eventBuffer      = 1000
	disconnectBuffer = 100
)

type inboundEvent struct {
	conn     *ws.Connection
	envelope types.Envelope
	received time.Time
}

// Hub pumps inbound events and disconnect notices into the router.
type Hub struct {
	events      chan inboundEvent
	disconnects chan *ws.Connection
	shutdown    chan struct{}

	router *router.Router
	log    zerolog.Logger

	running bool
	mu      sync.RWMutex
}

func New(rt *router.Router, log zerolog.Logger) *Hub {
	return &Hub{
		events:      make(chan inboundEvent, eventBuffer),
		disconnects: make(chan *ws.Connection, disconnectBuffer),
		shutdown:    make(chan struct{}),
		router:      rt,
		log:         log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.log.Info().Msg("hub started")
	go h.run(ctx)
	return nil
}

func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrNotRunning
	}
	h.running = false

	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	return nil
}

// Submit queues a client event for dispatch. A full buffer drops the event
// rather than blocking the connection's read loop.
func (h *Hub) Submit(conn *ws.Connection, env types.Envelope) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.events <- inboundEvent{conn: conn, envelope: env, received: time.Now()}:
		return nil
	default:
		return ErrEventChannelFull
	}
}

// Disconnect queues a connection-loss notice.
func (h *Hub) Disconnect(conn *ws.Connection) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	select {
	case h.disconnects <- conn:
	default:
		// Buffer full under shutdown pressure; presence will simply go
		// stale until the next register_user.
		h.log.Warn().Str("user", conn.UserID()).Msg("disconnect notice dropped")
	}
}

func (h *Hub) run(ctx context.Context) {
	defer h.log.Info().Msg("hub stopped")

	for {
		select {
		case ev := <-h.events:
			h.router.Dispatch(ev.conn, ev.envelope)
		case conn := <-h.disconnects:
			h.router.HandleDisconnect(conn)
		case <-h.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}
