package runtime

import (
	"context"
	"log/slog"
	"time"

	"styx-chat/domain/event"
)

// Broadcaster fans events out to room members.
//
// It provides best-effort delivery with no guarantees regarding ordering
// across rooms, durability, or retries. Delivery happens over a snapshot of
// the room's connections, never under the registry lock. A sink that cannot
// absorb an event within the delivery budget is reported through the
// failure callback so the owning connection gets torn down.
type Broadcaster struct {
	log             *slog.Logger
	registry        *Registry
	deliveryTimeout time.Duration
	onSendFailure   func(conn *Connection)
}

func NewBroadcaster(log *slog.Logger, registry *Registry, deliveryTimeout time.Duration) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, deliveryTimeout: deliveryTimeout}
}

// OnSendFailure installs the callback fired when delivery to a connection
// fails. Set once during wiring, before any traffic flows.
func (b *Broadcaster) OnSendFailure(fn func(conn *Connection)) {
	b.onSendFailure = fn
}

// BroadcastToRoom delivers an event to every live member of a room except
// the excluded user. Pass an empty excludeUserID to reach everyone.
func (b *Broadcaster) BroadcastToRoom(ctx context.Context, roomID string, e event.Envelope, excludeUserID string) {
	for _, conn := range b.registry.SnapshotRoom(roomID) {
		if conn.UserID == excludeUserID || !conn.Live() {
			continue
		}
		b.deliver(ctx, conn, e)
	}
}

// SendToUser delivers an event to a single user if they are connected.
// Unknown users are a silent no-op.
func (b *Broadcaster) SendToUser(ctx context.Context, userID string, e event.Envelope) {
	conn, ok := b.registry.Get(userID)
	if !ok || !conn.Live() {
		return
	}
	b.deliver(ctx, conn, e)
}

func (b *Broadcaster) deliver(ctx context.Context, conn *Connection, e event.Envelope) {
	deliveryCtx, cancel := context.WithTimeout(ctx, b.deliveryTimeout)
	defer cancel()

	if err := conn.Sink.Consume(deliveryCtx, e); err != nil {
		b.log.Warn("event delivery failed, dropping connection",
			"user_id", conn.UserID, "room_id", conn.RoomID, "event", e.EventType(), "error", err)
		if b.onSendFailure != nil {
			b.onSendFailure(conn)
		}
	}
}
