package sink

import (
	"context"
	"sync"

	"styx-chat/domain/event"
)

// Timeline accumulates the messages a client would have rendered. Handy as
// a fake client in tests and tooling.
type Timeline struct {
	mu       sync.Mutex
	Messages []event.MessagePayload
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

func (t *Timeline) Consume(_ context.Context, e event.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch evt := e.(type) {
	case event.MessageReceived:
		t.Messages = append(t.Messages, evt.MessagePayload)
	case event.MessageHistory:
		t.Messages = append(t.Messages, evt.MessagePayload)
	}
	return nil
}

func (t *Timeline) Close() {}

// Contents returns a copy of the rendered messages.
func (t *Timeline) Contents() []event.MessagePayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]event.MessagePayload, len(t.Messages))
	copy(out, t.Messages)
	return out
}
