package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"styx-chat/contract"
	"styx-chat/domain/chat"
	"styx-chat/domain/event"
)

const helpText = `Styx Chat Help

Basic commands:
- Type naturally to chat with other users
- Use !help to see this help message

AI assistant (Styx):
- Trigger Styx by mentioning @ai, @bot, @styx, hey ai, hey bot or hey styx
- Styx answers questions and joins conversations
- Example: "Hey Styx, what's the weather like?"

Tips:
- @username mentions specific users
- Typing indicators and message history are live for everyone in the room`

// Orchestrator runs the chat ceremony: joins, message relay, the AI
// collaborator and departures. It never holds a lock across delivery;
// fan-out goes through the Broadcaster over registry snapshots.
type Orchestrator struct {
	log         *slog.Logger
	registry    *Registry
	broadcaster *Broadcaster
	messages    contract.MessageStore
	rooms       contract.RoomStore
	generator   contract.Generator
	trigger     contract.TriggerDetector
	censor      contract.Censor

	search   contract.SearchIndex
	presence contract.PresenceMirror
	stats    contract.StatsRecorder

	historyReplay int
	aiContext     int
}

func NewOrchestrator(log *slog.Logger, registry *Registry, broadcaster *Broadcaster,
	messages contract.MessageStore, rooms contract.RoomStore,
	generator contract.Generator, trigger contract.TriggerDetector, censor contract.Censor,
	historyReplay, aiContext int) *Orchestrator {
	o := &Orchestrator{
		log:           log,
		registry:      registry,
		broadcaster:   broadcaster,
		messages:      messages,
		rooms:         rooms,
		generator:     generator,
		trigger:       trigger,
		censor:        censor,
		historyReplay: historyReplay,
		aiContext:     aiContext,
	}
	broadcaster.OnSendFailure(func(conn *Connection) {
		if o.stats != nil {
			o.stats.SendFailure()
		}
		o.Disconnect(context.WithoutCancel(context.Background()), conn)
	})
	return o
}

// WithSearch attaches the optional full-text index.
func (o *Orchestrator) WithSearch(index contract.SearchIndex) *Orchestrator {
	o.search = index
	return o
}

// WithPresence attaches the optional shared presence mirror.
func (o *Orchestrator) WithPresence(mirror contract.PresenceMirror) *Orchestrator {
	o.presence = mirror
	return o
}

// WithStats attaches the optional telemetry recorder.
func (o *Orchestrator) WithStats(stats contract.StatsRecorder) *Orchestrator {
	o.stats = stats
	return o
}

// Connect runs the join ceremony for an authenticated user: register the
// connection (evicting any previous one of the same user), announce the
// join to the room, greet the newcomer with the presence list and recent
// history, then refresh everyone's user list.
func (o *Orchestrator) Connect(ctx context.Context, identity chat.Identity, roomID string, sink contract.EventSink) (*Connection, error) {
	conn := NewConnection(identity, roomID, sink)
	if evicted := o.registry.Add(conn); evicted != nil {
		// Same user reconnecting; the old connection dies quietly.
		evicted.MarkDisconnected()
		evicted.Sink.Close()
		o.log.Debug("evicted stale connection", "user_id", evicted.UserID, "room_id", evicted.RoomID)
	}
	conn.MarkConnected()

	o.broadcaster.BroadcastToRoom(ctx, roomID, event.UserJoined{
		UserID:    conn.UserID,
		Username:  conn.Username,
		Timestamp: time.Now().UTC(),
	}, conn.UserID)

	o.broadcaster.SendToUser(ctx, conn.UserID, event.ConnectionEstablished{
		UserID:      conn.UserID,
		RoomID:      roomID,
		ActiveUsers: chat.OrderActiveUsers(o.registry.Humans(roomID)),
	})

	history, err := o.messages.Recent(ctx, roomID, o.historyReplay)
	if err != nil {
		o.log.Warn("history replay failed", "room_id", roomID, "error", err)
	}
	for _, m := range history {
		o.broadcaster.SendToUser(ctx, conn.UserID, event.MessageHistory{MessagePayload: event.FromMessage(m)})
	}

	o.broadcastUserList(ctx, roomID)
	o.mirrorPresence(ctx, conn, true)

	o.log.Info("user connected", "user_id", conn.UserID, "username", conn.Username, "room_id", roomID)
	return conn, nil
}

// Disconnect tears a connection down. Safe to call from multiple paths
// concurrently; only the first call emits the departure events.
func (o *Orchestrator) Disconnect(ctx context.Context, conn *Connection) {
	if !conn.MarkDisconnected() {
		return
	}
	removed := o.registry.Remove(conn)
	conn.Sink.Close()
	if !removed {
		// Already evicted by a reconnect; the user is still in the room.
		return
	}

	o.broadcaster.BroadcastToRoom(ctx, conn.RoomID, event.UserLeft{
		UserID:    conn.UserID,
		Username:  conn.Username,
		Timestamp: time.Now().UTC(),
	}, conn.UserID)
	o.broadcastUserList(ctx, conn.RoomID)
	o.mirrorPresence(ctx, conn, false)

	o.log.Info("user disconnected", "user_id", conn.UserID, "room_id", conn.RoomID)
}

// DisconnectRoom sweeps every live connection out of a room, notifying each
// client first. Used when a room is deleted.
func (o *Orchestrator) DisconnectRoom(ctx context.Context, roomID, reason string) {
	for _, conn := range o.registry.SnapshotRoom(roomID) {
		o.broadcaster.SendToUser(ctx, conn.UserID, event.Error{Message: reason})
		o.Disconnect(ctx, conn)
	}
}

// HandleInbound dispatches one decoded client frame. Frames arriving on a
// connection that has already been evicted or disconnected are dropped:
// the socket may still be readable for a moment after a same-user
// reconnect, and its traffic must not leak into the room.
func (o *Orchestrator) HandleInbound(ctx context.Context, conn *Connection, e event.Envelope) error {
	if !conn.Live() {
		o.log.Debug("dropping frame from dead connection",
			"user_id", conn.UserID, "room_id", conn.RoomID, "event", e.EventType())
		return nil
	}
	switch payload := e.(type) {
	case event.SendMessage:
		return o.handleSendMessage(ctx, conn, payload.Content)
	case event.Typing:
		o.broadcaster.BroadcastToRoom(ctx, conn.RoomID, event.UserTyping{
			UserID:   conn.UserID,
			Username: conn.Username,
			Typing:   payload.Typing,
		}, conn.UserID)
		return nil
	default:
		return fmt.Errorf("unsupported inbound event %q", e.EventType())
	}
}

func (o *Orchestrator) handleSendMessage(ctx context.Context, conn *Connection, content string) error {
	content = strings.TrimSpace(content)
	if chat.IsBlank(content) {
		return nil
	}
	if strings.EqualFold(content, "!help") {
		help := chat.NewSystemMessage(conn.RoomID, helpText)
		o.broadcaster.SendToUser(ctx, conn.UserID, event.MessageReceived{MessagePayload: event.FromMessage(help)})
		return nil
	}

	room, err := o.rooms.Get(ctx, conn.RoomID)
	if err != nil {
		o.broadcaster.SendToUser(ctx, conn.UserID, event.Error{Message: "failed to process message"})
		return err
	}

	content = o.censor.Censor(content)
	message := chat.NewUserMessage(room.ID, conn.UserID, conn.Username, content)
	tagLanguage(&message)

	stored, err := o.messages.Store(ctx, message)
	if err != nil {
		o.broadcaster.SendToUser(ctx, conn.UserID, event.Error{Message: "failed to process message"})
		return fmt.Errorf("store message: %w", err)
	}
	o.indexMessage(stored)

	o.broadcaster.BroadcastToRoom(ctx, room.ID, event.MessageReceived{MessagePayload: event.FromMessage(stored)}, "")
	if o.stats != nil {
		o.stats.MessageRelayed()
	}

	if room.AIEnabled && o.trigger.ShouldTrigger(content) {
		// Detached so a slow model never stalls the sender's read loop.
		go o.respondAsAI(context.WithoutCancel(ctx), room, stored)
	}
	return nil
}

// respondAsAI generates and relays one AI reply. The typing indicator is
// cleared on every path out.
func (o *Orchestrator) respondAsAI(ctx context.Context, room chat.Room, triggering chat.Message) {
	o.broadcaster.BroadcastToRoom(ctx, room.ID, event.AITyping{Typing: true}, "")
	defer o.broadcaster.BroadcastToRoom(ctx, room.ID, event.AITyping{Typing: false}, "")

	history, err := o.messages.Recent(ctx, room.ID, o.aiContext)
	if err != nil {
		o.log.Warn("ai history fetch failed", "room_id", room.ID, "error", err)
		history = nil
	}
	// The triggering message is passed separately; drop it from the tail
	// of the context window so the model does not see it twice.
	if n := len(history); n > 0 && history[n-1].ID == triggering.ID {
		history = history[:n-1]
	}

	reply, err := o.generator.Generate(ctx, contract.GenerationRequest{
		Content:        triggering.Content,
		Username:       triggering.SenderName,
		History:        history,
		PromptOverride: room.AISystemPrompt,
		ModelOverride:  room.AIModel,
	})
	if err != nil {
		o.log.Error("ai generation failed", "room_id", room.ID, "error", err)
		if o.stats != nil {
			o.stats.AIFailure()
		}
		return
	}
	if chat.IsBlank(reply) {
		return
	}

	aiMessage := chat.NewAIMessage(room.ID, reply)
	stored, err := o.messages.Store(ctx, aiMessage)
	if err != nil {
		o.log.Error("storing ai reply failed", "room_id", room.ID, "error", err)
		return
	}
	o.indexMessage(stored)
	o.broadcaster.BroadcastToRoom(ctx, room.ID, event.MessageReceived{MessagePayload: event.FromMessage(stored)}, "")
	if o.stats != nil {
		o.stats.AIReply()
	}
}

func (o *Orchestrator) broadcastUserList(ctx context.Context, roomID string) {
	o.broadcaster.BroadcastToRoom(ctx, roomID, event.UserListUpdated{
		ActiveUsers: chat.OrderActiveUsers(o.registry.Humans(roomID)),
	}, "")
}

func (o *Orchestrator) indexMessage(m chat.Message) {
	if o.search == nil {
		return
	}
	if err := o.search.Index(m); err != nil {
		o.log.Warn("search indexing failed", "message_id", m.ID, "error", err)
	}
}

func (o *Orchestrator) mirrorPresence(ctx context.Context, conn *Connection, joined bool) {
	if o.presence == nil {
		return
	}
	var err error
	if joined {
		err = o.presence.UserJoined(ctx, conn.UserID, conn.RoomID)
	} else {
		err = o.presence.UserLeft(ctx, conn.UserID, conn.RoomID)
	}
	if err != nil {
		o.log.Warn("presence mirror update failed", "user_id", conn.UserID, "error", err)
	}
}

// tagLanguage annotates a message with the detected language when the
// detector is confident enough to be useful.
func tagLanguage(m *chat.Message) {
	info := whatlanggo.Detect(m.Content)
	if !info.IsReliable() {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata["lang"] = info.Lang.Iso6391()
}
