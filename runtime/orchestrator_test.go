package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"styx-chat/contract"
	"styx-chat/domain/chat"
	"styx-chat/domain/event"
	"styx-chat/errors"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.Envelope
	closed bool
	fail   bool
}

func (s *recordingSink) Consume(_ context.Context, e event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.ErrSendBufferFull
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) Types() []event.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]event.Type, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.EventType())
	}
	return types
}

func (s *recordingSink) CountType(t event.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.events {
		if e.EventType() == t {
			count++
		}
	}
	return count
}

func (s *recordingSink) LastOfType(t event.Type) (event.Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EventType() == t {
			return s.events[i], true
		}
	}
	return nil, false
}

type memoryMessages struct {
	mu     sync.Mutex
	seq    uint64
	byRoom map[string][]chat.Message
}

func newMemoryMessages() *memoryMessages {
	return &memoryMessages{byRoom: make(map[string][]chat.Message)}
}

func (m *memoryMessages) Store(_ context.Context, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg.Seq = m.seq
	m.byRoom[msg.RoomID] = append(m.byRoom[msg.RoomID], msg)
	return msg, nil
}

func (m *memoryMessages) Recent(_ context.Context, roomID string, limit int) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.byRoom[roomID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]chat.Message, len(all))
	copy(out, all)
	return out, nil
}

func (m *memoryMessages) ByID(_ context.Context, id uuid.UUID) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msgs := range m.byRoom {
		for _, msg := range msgs {
			if msg.ID == id {
				return msg, nil
			}
		}
	}
	return chat.Message{}, errors.ErrMessageNotFound
}

func (m *memoryMessages) Delete(_ context.Context, id uuid.UUID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.byRoom[roomID]
	for i, msg := range msgs {
		if msg.ID == id {
			m.byRoom[roomID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return errors.ErrMessageNotFound
}

func (m *memoryMessages) DeleteRoom(_ context.Context, roomID string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, msg := range m.byRoom[roomID] {
		ids = append(ids, msg.ID)
	}
	delete(m.byRoom, roomID)
	return ids, nil
}

type memoryRooms struct {
	mu    sync.Mutex
	rooms map[string]chat.Room
}

func newMemoryRooms(rooms ...chat.Room) *memoryRooms {
	m := &memoryRooms{rooms: make(map[string]chat.Room)}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memoryRooms) Create(_ context.Context, room chat.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return errors.ErrRoomExists
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *memoryRooms) Get(_ context.Context, id string) (chat.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return chat.Room{}, errors.ErrRoomNotFound
	}
	return room, nil
}

func (m *memoryRooms) Update(_ context.Context, room chat.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return errors.ErrRoomNotFound
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *memoryRooms) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return errors.ErrRoomNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *memoryRooms) List(_ context.Context) ([]chat.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Room
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out, nil
}

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	last  contract.GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req contract.GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = req
	return g.reply, g.err
}

func (g *stubGenerator) LastRequest() contract.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

type stubTrigger struct{ triggered bool }

func (t stubTrigger) ShouldTrigger(string) bool { return t.triggered }

type passthroughCensor struct{}

func (passthroughCensor) Censor(content string) string { return content }

type testHarness struct {
	registry     *Registry
	orchestrator *Orchestrator
	messages     *memoryMessages
	rooms        *memoryRooms
	generator    *stubGenerator
}

func newHarness(t *testing.T, trigger contract.TriggerDetector, rooms ...chat.Room) *testHarness {
	t.Helper()
	if len(rooms) == 0 {
		rooms = []chat.Room{{ID: "general", Name: "General", AIEnabled: true, CreatedAt: time.Now().UTC()}}
	}
	registry := NewRegistry()
	messages := newMemoryMessages()
	roomStore := newMemoryRooms(rooms...)
	generator := &stubGenerator{reply: "hello from styx"}
	broadcaster := NewBroadcaster(slog.Default(), registry, time.Second)
	orchestrator := NewOrchestrator(slog.Default(), registry, broadcaster,
		messages, roomStore, generator, trigger, passthroughCensor{}, 50, 10)
	return &testHarness{
		registry:     registry,
		orchestrator: orchestrator,
		messages:     messages,
		rooms:        roomStore,
		generator:    generator,
	}
}

func (h *testHarness) connect(t *testing.T, userID, username string) (*Connection, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	conn, err := h.orchestrator.Connect(context.Background(),
		chat.Identity{UserID: userID, Username: username, Role: chat.RoleUser}, "general", sink)
	require.NoError(t, err)
	return conn, sink
}

func Test_Connect_Ceremony(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	_, aliceSink := h.connect(t, "alice", "Alice")
	req.Equal([]event.Type{event.TypeConnectionEstablished, event.TypeUserListUpdated}, aliceSink.Types())

	_, bobSink := h.connect(t, "bob", "Bob")

	// The existing member sees the join announcement, the joiner does not.
	req.Equal(1, aliceSink.CountType(event.TypeUserJoined))
	req.Equal(0, bobSink.CountType(event.TypeUserJoined))

	established, ok := bobSink.LastOfType(event.TypeConnectionEstablished)
	req.True(ok)
	payload := established.(event.ConnectionEstablished)
	req.Equal("bob", payload.UserID)
	req.Equal("general", payload.RoomID)
	// AI leads, humans follow alphabetically.
	req.Equal(chat.AIUserID, payload.ActiveUsers[0].UserID)
	req.Equal("Alice", payload.ActiveUsers[1].Username)
	req.Equal("Bob", payload.ActiveUsers[2].Username)
}

func Test_Connect_Replays_Recent_History(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	for i := 0; i < 3; i++ {
		_, err := h.messages.Store(context.Background(),
			chat.NewUserMessage("general", "alice", "Alice", fmt.Sprintf("old %d", i)))
		req.NoError(err)
	}

	_, sink := h.connect(t, "bob", "Bob")
	req.Equal(3, sink.CountType(event.TypeMessageHistory))
}

func Test_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	conn, _ := h.connect(t, "alice", "Alice")
	_, bobSink := h.connect(t, "bob", "Bob")

	h.orchestrator.Disconnect(context.Background(), conn)
	h.orchestrator.Disconnect(context.Background(), conn)

	req.Equal(1, bobSink.CountType(event.TypeUserLeft))
	req.Equal(1, h.registry.Count())
}

func Test_Reconnect_Evicts_Silently(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	_, firstSink := h.connect(t, "alice", "Alice")
	_, watcherSink := h.connect(t, "bob", "Bob")

	first, ok := h.registry.Get("alice")
	req.True(ok)
	_, _ = h.connect(t, "alice", "Alice")

	req.True(firstSink.Closed())
	req.Equal(0, watcherSink.CountType(event.TypeUserLeft))
	req.Equal(2, h.registry.Count())

	// A late disconnect of the evicted connection must not unregister
	// the fresh one or announce a departure.
	h.orchestrator.Disconnect(context.Background(), first)
	req.Equal(0, watcherSink.CountType(event.TypeUserLeft))
	req.Equal(2, h.registry.Count())
}

func Test_Evicted_Connection_Frames_Are_Dropped(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	_, _ = h.connect(t, "alice", "Alice")
	stale, ok := h.registry.Get("alice")
	req.True(ok)
	_, freshSink := h.connect(t, "alice", "Alice")
	_, watcherSink := h.connect(t, "bob", "Bob")

	recent, err := h.messages.Recent(context.Background(), "general", 0)
	req.NoError(err)
	stored := len(recent)
	freshCount := freshSink.CountType(event.TypeMessageReceived)

	// The old socket can still emit frames for a moment after eviction.
	// Nothing it says may be persisted or relayed.
	req.NoError(h.orchestrator.HandleInbound(context.Background(), stale,
		event.SendMessage{Content: "ghost message"}))
	req.NoError(h.orchestrator.HandleInbound(context.Background(), stale,
		event.Typing{Typing: true}))

	recent, err = h.messages.Recent(context.Background(), "general", 0)
	req.NoError(err)
	req.Len(recent, stored)
	req.Equal(freshCount, freshSink.CountType(event.TypeMessageReceived))
	req.Equal(0, watcherSink.CountType(event.TypeMessageReceived))
	req.Equal(0, watcherSink.CountType(event.TypeUserTyping))
}

func Test_SendMessage_Reaches_Everyone_Including_Sender(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	aliceConn, aliceSink := h.connect(t, "alice", "Alice")
	_, bobSink := h.connect(t, "bob", "Bob")

	err := h.orchestrator.HandleInbound(context.Background(), aliceConn, event.SendMessage{Content: "hello room"})
	req.NoError(err)

	req.Equal(1, aliceSink.CountType(event.TypeMessageReceived))
	req.Equal(1, bobSink.CountType(event.TypeMessageReceived))

	stored, err := h.messages.Recent(context.Background(), "general", 0)
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("hello room", stored[0].Content)
}

func Test_Blank_Message_Is_Ignored(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	conn, sink := h.connect(t, "alice", "Alice")
	req.NoError(h.orchestrator.HandleInbound(context.Background(), conn, event.SendMessage{Content: "   \n\t "}))

	req.Equal(0, sink.CountType(event.TypeMessageReceived))
	stored, _ := h.messages.Recent(context.Background(), "general", 0)
	req.Empty(stored)
}

func Test_Help_Command_Goes_To_Sender_Only(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	aliceConn, aliceSink := h.connect(t, "alice", "Alice")
	_, bobSink := h.connect(t, "bob", "Bob")

	req.NoError(h.orchestrator.HandleInbound(context.Background(), aliceConn, event.SendMessage{Content: "!help"}))

	req.Equal(1, aliceSink.CountType(event.TypeMessageReceived))
	req.Equal(0, bobSink.CountType(event.TypeMessageReceived))

	received, ok := aliceSink.LastOfType(event.TypeMessageReceived)
	req.True(ok)
	payload := received.(event.MessageReceived)
	req.Equal(chat.SystemUserID, payload.SenderID)

	stored, _ := h.messages.Recent(context.Background(), "general", 0)
	req.Empty(stored)
}

func Test_Typing_Relay_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	aliceConn, aliceSink := h.connect(t, "alice", "Alice")
	_, bobSink := h.connect(t, "bob", "Bob")

	req.NoError(h.orchestrator.HandleInbound(context.Background(), aliceConn, event.Typing{Typing: true}))

	req.Equal(0, aliceSink.CountType(event.TypeUserTyping))
	req.Equal(1, bobSink.CountType(event.TypeUserTyping))

	typing, ok := bobSink.LastOfType(event.TypeUserTyping)
	req.True(ok)
	req.Equal("Alice", typing.(event.UserTyping).Username)
	req.True(typing.(event.UserTyping).Typing)
}

func Test_AI_Responds_When_Triggered(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{triggered: true})

	conn, sink := h.connect(t, "alice", "Alice")
	req.NoError(h.orchestrator.HandleInbound(context.Background(), conn, event.SendMessage{Content: "@styx hello"}))

	req.Eventually(func() bool {
		return sink.CountType(event.TypeMessageReceived) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Typing indicator turned on and back off.
	req.Eventually(func() bool {
		return sink.CountType(event.TypeAITyping) == 2
	}, 2*time.Second, 10*time.Millisecond)

	received, ok := sink.LastOfType(event.TypeMessageReceived)
	req.True(ok)
	payload := received.(event.MessageReceived)
	req.Equal(chat.AIUserID, payload.SenderID)
	req.Equal(chat.AIUsername, payload.SenderName)
	req.Equal("hello from styx", payload.Content)

	stored, _ := h.messages.Recent(context.Background(), "general", 0)
	req.Len(stored, 2)
	req.Equal(chat.MessageTypeAI, stored[1].Type)
}

func Test_AI_Context_Excludes_Triggering_Message(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{triggered: true})

	conn, sink := h.connect(t, "alice", "Alice")
	_, err := h.messages.Store(context.Background(), chat.NewUserMessage("general", "bob", "Bob", "earlier chatter"))
	req.NoError(err)

	req.NoError(h.orchestrator.HandleInbound(context.Background(), conn, event.SendMessage{Content: "@styx summarize"}))
	req.Eventually(func() bool {
		return sink.CountType(event.TypeAITyping) == 2
	}, 2*time.Second, 10*time.Millisecond)

	last := h.generator.LastRequest()
	req.Equal("@styx summarize", last.Content)
	req.Equal("Alice", last.Username)
	req.Len(last.History, 1)
	req.Equal("earlier chatter", last.History[0].Content)
}

func Test_AI_Failure_Clears_Typing_And_Posts_Nothing(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{triggered: true})
	h.generator.err = errors.ErrGeneration
	h.generator.reply = ""

	conn, sink := h.connect(t, "alice", "Alice")
	req.NoError(h.orchestrator.HandleInbound(context.Background(), conn, event.SendMessage{Content: "@styx hello"}))

	req.Eventually(func() bool {
		return sink.CountType(event.TypeAITyping) == 2
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal(1, sink.CountType(event.TypeMessageReceived))

	stored, _ := h.messages.Recent(context.Background(), "general", 0)
	req.Len(stored, 1)
}

func Test_AI_Ignored_When_Room_Disables_It(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{triggered: true},
		chat.Room{ID: "general", Name: "General", AIEnabled: false, CreatedAt: time.Now().UTC()})

	conn, sink := h.connect(t, "alice", "Alice")
	req.NoError(h.orchestrator.HandleInbound(context.Background(), conn, event.SendMessage{Content: "@styx hello"}))

	time.Sleep(50 * time.Millisecond)
	req.Equal(0, sink.CountType(event.TypeAITyping))
	req.Equal(1, sink.CountType(event.TypeMessageReceived))
}

func Test_Send_Failure_Disconnects_The_Slow_Client(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	aliceConn, _ := h.connect(t, "alice", "Alice")

	bobSink := &recordingSink{}
	_, err := h.orchestrator.Connect(context.Background(),
		chat.Identity{UserID: "bob", Username: "Bob", Role: chat.RoleUser}, "general", bobSink)
	req.NoError(err)
	bobSink.mu.Lock()
	bobSink.fail = true
	bobSink.mu.Unlock()

	req.NoError(h.orchestrator.HandleInbound(context.Background(), aliceConn, event.SendMessage{Content: "hello"}))

	req.Eventually(func() bool {
		return h.registry.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)
	req.True(bobSink.Closed())
}

func Test_DisconnectRoom_Sweeps_Members(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, stubTrigger{})

	_, aliceSink := h.connect(t, "alice", "Alice")
	_, bobSink := h.connect(t, "bob", "Bob")

	h.orchestrator.DisconnectRoom(context.Background(), "general", "room deleted")

	req.Equal(0, h.registry.Count())
	req.True(aliceSink.Closed())
	req.True(bobSink.Closed())
	req.Equal(1, aliceSink.CountType(event.TypeError))
}
