// Package chat contains core concepts of the relay: messages, rooms,
// participants and the room access rules. No runtime, network, or UI
// logic should be added here.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType discriminates who authored a message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeAI     MessageType = "ai"
	MessageTypeSystem MessageType = "system"
)

// Identity of the embedded AI participant. The AI is never registered in
// the connection registry; it only exists as a sender and as the synthetic
// head of the presence list.
const (
	AIUserID   = "ai_styx"
	AIUsername = "Styx"
)

const (
	SystemUserID   = "system"
	SystemUsername = "System"
)

// Message represents an immutable chat event. Once built it is persisted
// and broadcast as-is; nothing mutates it afterwards.
type Message struct {
	ID         uuid.UUID
	RoomID     string
	SenderID   string
	SenderName string
	Content    string
	Type       MessageType
	CreatedAt  time.Time
	// Seq is assigned by the store and breaks ordering ties between
	// messages carrying the same timestamp.
	Seq      uint64
	Metadata map[string]string
}

func NewUserMessage(roomID, senderID, senderName, content string) Message {
	return newMessage(roomID, senderID, senderName, content, MessageTypeUser)
}

func NewAIMessage(roomID, content string) Message {
	return newMessage(roomID, AIUserID, AIUsername, content, MessageTypeAI)
}

func NewSystemMessage(roomID, content string) Message {
	return newMessage(roomID, SystemUserID, SystemUsername, content, MessageTypeSystem)
}

func newMessage(roomID, senderID, senderName, content string, t MessageType) Message {
	return Message{
		ID:         uuid.New(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Type:       t,
		CreatedAt:  time.Now().UTC(),
		Metadata:   map[string]string{},
	}
}

// IsBlank reports whether a raw inbound content carries nothing to relay.
func IsBlank(content string) bool {
	return strings.TrimSpace(content) == ""
}
