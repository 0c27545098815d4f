package ws

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"liveclass/pkg/types"
)

// Conn is the contract the registry and router need from a connection.
// *Connection satisfies it; tests substitute in-process fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
	SetIdentity(userID, role string)
	UserID() string
	Role() string
	Identified() bool
}

// Registry tracks identified connections and their room memberships. Rooms
// are broadcast groups: one per class (keyed by class ID) plus an implicit
// private room per user reached through Unicast.
//
// Delivery is best-effort and at-most-once: no acknowledgement, no retry.
// Ordering is preserved per connection by the single ordered write channel;
// nothing is guaranteed across rooms.
type Registry struct {
	mu    sync.RWMutex
	log   zerolog.Logger
	conns map[string]Conn
	rooms map[string]map[string]struct{}
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:   log.With().Str("component", "ws").Logger(),
		conns: make(map[string]Conn),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Register tracks an identified connection. A second connection for the same
// user replaces the first; the stale one is closed asynchronously so a
// reconnecting tab does not deadlock its own registration.
func (r *Registry) Register(conn Conn) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.Identified() {
		return ErrNoIdentity
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[userID]; ok && old != conn {
		go func() {
			if err := old.Close(); err != nil {
				r.log.Debug().Err(err).Str("user", userID).Msg("closing replaced connection")
			}
		}()
	}
	r.conns[userID] = conn
	return nil
}

// Unregister removes a connection and all of its room memberships. It is
// idempotent, and it refuses to remove a newer connection registered under
// the same user.
func (r *Registry) Unregister(conn Conn) {
	if conn == nil {
		return
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return
	}
	delete(r.conns, userID)
	for roomID, members := range r.rooms {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

func (r *Registry) Join(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]struct{})
	}
	r.rooms[roomID][userID] = struct{}{}
}

func (r *Registry) Leave(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// Broadcast delivers an event to every connection currently in a room and
// returns the number of deliveries attempted. An empty room is a silent
// no-op. Failed writes are logged and skipped; remaining members still
// receive the event.
func (r *Registry) Broadcast(roomID, event string, data any) int {
	frame := types.ServerEvent{Event: event, Data: data, Timestamp: time.Now()}

	r.mu.RLock()
	members := r.rooms[roomID]
	targets := make([]Conn, 0, len(members))
	for userID := range members {
		if conn, ok := r.conns[userID]; ok {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteJSON(frame); err != nil {
			r.log.Warn().Err(err).Str("user", conn.UserID()).Str("event", event).Msg("broadcast delivery failed")
		}
	}
	return len(targets)
}

// Unicast delivers an event to a single user's private room. It reports
// whether the user had a live connection.
func (r *Registry) Unicast(userID, event string, data any) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	frame := types.ServerEvent{Event: event, Data: data, Timestamp: time.Now()}
	if err := conn.WriteJSON(frame); err != nil {
		r.log.Warn().Err(err).Str("user", userID).Str("event", event).Msg("unicast delivery failed")
		return false
	}
	return true
}

// Connection returns the live connection for a user.
func (r *Registry) Connection(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// RoomSize returns the number of members in a room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// OnlineCount returns the number of identified connections.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
