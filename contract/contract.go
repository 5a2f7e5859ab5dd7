// Package contract holds the interfaces stitching the relay together.
// Implementations live next to their infrastructure; the orchestrator only
// ever sees these.
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"styx-chat/domain/chat"
	"styx-chat/domain/event"
)

// EventSink is one client's outbound channel. Consume must not block the
// caller beyond its delivery budget; a sink that cannot keep up returns an
// error and will be disconnected by the caller.
type EventSink interface {
	Consume(ctx context.Context, e event.Envelope) error
	Close()
}

// Worker doesn't protect itself. Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision purposes, avoiding the need for manual
// naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageStore is the ordered, capped per-room history. Store assigns the
// tie-breaking sequence number and returns the message as persisted.
type MessageStore interface {
	Store(ctx context.Context, msg chat.Message) (chat.Message, error)
	Recent(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
	ByID(ctx context.Context, id uuid.UUID) (chat.Message, error)
	Delete(ctx context.Context, id uuid.UUID, roomID string) error
	// DeleteRoom removes every message of a room and returns the ids that
	// were dropped, so secondary indexes can be purged.
	DeleteRoom(ctx context.Context, roomID string) ([]uuid.UUID, error)
}

// RoomStore persists room records; the relay reads and writes them but
// does not own their durability.
type RoomStore interface {
	Create(ctx context.Context, room chat.Room) error
	Get(ctx context.Context, id string) (chat.Room, error)
	Update(ctx context.Context, room chat.Room) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]chat.Room, error)
}

// PresenceMirror reflects live membership into shared storage so that
// out-of-process consumers can query who is online. Strictly best-effort:
// the in-memory registry stays the source of truth.
type PresenceMirror interface {
	UserJoined(ctx context.Context, userID, roomID string) error
	UserLeft(ctx context.Context, userID, roomID string) error
}

// GenerationRequest carries everything the AI collaborator needs for one
// reply. History excludes the triggering message itself.
type GenerationRequest struct {
	Content        string
	Username       string
	History        []chat.Message
	PromptOverride string
	ModelOverride  string
}

// Generator is the AI collaborator. It enforces its own timeout budget;
// callers treat any error purely as a generation failure.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// TriggerDetector decides whether message content addresses the AI.
type TriggerDetector interface {
	ShouldTrigger(content string) bool
}

// Censor rewrites disallowed fragments of user content before it is
// persisted or relayed.
type Censor interface {
	Censor(content string) string
}

// StatsRecorder receives runtime counters. Implementations must be cheap;
// the orchestrator calls these on the relay hot path.
type StatsRecorder interface {
	MessageRelayed()
	AIReply()
	AIFailure()
	SendFailure()
}

// SearchIndex is the optional full-text index over stored messages.
type SearchIndex interface {
	Index(msg chat.Message) error
	Remove(ids []uuid.UUID) error
	Search(ctx context.Context, roomID, query string, limit int) ([]uuid.UUID, error)
}
