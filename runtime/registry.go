// Package runtime handles connection tracking, event fan-out and the chat
// ceremony around joins, messages and departures. It orchestrates the system
// without containing storage or transport concerns.
package runtime

import (
	"sync"
	"sync/atomic"

	"styx-chat/contract"
	"styx-chat/domain/chat"
)

// Connection lifecycle states.
const (
	StateConnecting int32 = iota
	StateConnected
	StateDisconnected
)

// Connection binds one authenticated user to one room and one outbound sink.
// A user has at most one live connection; reconnecting evicts the old one.
type Connection struct {
	UserID   string
	Username string
	RoomID   string
	Sink     contract.EventSink

	state atomic.Int32
}

func NewConnection(identity chat.Identity, roomID string, sink contract.EventSink) *Connection {
	return &Connection{
		UserID:   identity.UserID,
		Username: identity.Username,
		RoomID:   roomID,
		Sink:     sink,
	}
}

func (c *Connection) MarkConnected() bool {
	return c.state.CompareAndSwap(StateConnecting, StateConnected)
}

// MarkDisconnected flips the connection to its terminal state. It reports
// whether this call performed the transition, so disconnect side effects
// run exactly once no matter how many paths race into it.
func (c *Connection) MarkDisconnected() bool {
	return c.state.Swap(StateDisconnected) != StateDisconnected
}

func (c *Connection) Live() bool {
	return c.state.Load() == StateConnected
}

// Registry is the in-memory directory of live connections. The lock guards
// only map mutation and snapshotting; no I/O ever happens under it.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Connection
	rooms  map[string]map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Connection),
		rooms:  make(map[string]map[string]*Connection),
	}
}

// Add registers a connection. If the same user already holds a connection,
// that one is dropped from the directory and returned so the caller can
// close it; the newcomer wins.
func (r *Registry) Add(conn *Connection) (evicted *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.byUser[conn.UserID]; ok {
		r.dropLocked(previous)
		evicted = previous
	}
	r.byUser[conn.UserID] = conn
	if _, ok := r.rooms[conn.RoomID]; !ok {
		r.rooms[conn.RoomID] = make(map[string]*Connection)
	}
	r.rooms[conn.RoomID][conn.UserID] = conn
	return evicted
}

// Remove drops a connection from the directory. It only removes the exact
// connection passed in, so a stale disconnect cannot unregister a fresh
// reconnect of the same user. Reports whether anything was removed.
func (r *Registry) Remove(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byUser[conn.UserID]
	if !ok || current != conn {
		return false
	}
	r.dropLocked(conn)
	return true
}

func (r *Registry) dropLocked(conn *Connection) {
	delete(r.byUser, conn.UserID)
	if members, ok := r.rooms[conn.RoomID]; ok {
		delete(members, conn.UserID)
		if len(members) == 0 {
			delete(r.rooms, conn.RoomID)
		}
	}
}

func (r *Registry) Get(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[userID]
	return conn, ok
}

// SnapshotRoom copies the room's current connections so callers can iterate
// and perform delivery without holding the registry lock.
func (r *Registry) SnapshotRoom(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	snapshot := make([]*Connection, 0, len(members))
	for _, conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// Humans lists the human participants of a room, unordered. Presentation
// ordering is chat.OrderActiveUsers' job.
func (r *Registry) Humans(roomID string) []chat.ActiveUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	humans := make([]chat.ActiveUser, 0, len(members))
	for _, conn := range members {
		humans = append(humans, chat.ActiveUser{UserID: conn.UserID, Username: conn.Username})
	}
	return humans
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *Registry) RoomCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
