// Package event defines the closed set of envelopes exchanged with
// connected clients. Inbound frames are decoded once at the transport
// boundary into these types; nothing downstream ever touches raw JSON.
package event

import (
	"time"

	"styx-chat/domain/chat"
)

// Type is the wire discriminator of an envelope.
type Type string

// Client to server.
const (
	TypeSendMessage Type = "send_message"
	TypeTyping      Type = "typing"
)

// Server to client.
const (
	TypeMessageReceived       Type = "message_received"
	TypeMessageHistory        Type = "message_history"
	TypeUserJoined            Type = "user_joined"
	TypeUserLeft              Type = "user_left"
	TypeUserListUpdated       Type = "user_list_updated"
	TypeUserTyping            Type = "user_typing"
	TypeAITyping              Type = "ai_typing"
	TypeConnectionEstablished Type = "connection_established"
	TypeError                 Type = "error"
)

// Envelope is implemented by every payload, inbound and outbound.
type Envelope interface {
	EventType() Type
}

// MessagePayload is the wire shape of a persisted message.
type MessagePayload struct {
	MessageID  string            `json:"message_id"`
	RoomID     string            `json:"room_id"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	Content    string            `json:"content"`
	Type       string            `json:"message_type"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func FromMessage(m chat.Message) MessagePayload {
	return MessagePayload{
		MessageID:  m.ID.String(),
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Type:       string(m.Type),
		Timestamp:  m.CreatedAt,
		Metadata:   m.Metadata,
	}
}

type SendMessage struct {
	Content string `json:"content"`
}

func (SendMessage) EventType() Type { return TypeSendMessage }

type Typing struct {
	Typing bool `json:"typing"`
}

func (Typing) EventType() Type { return TypeTyping }

type MessageReceived struct {
	MessagePayload
}

func (MessageReceived) EventType() Type { return TypeMessageReceived }

type MessageHistory struct {
	MessagePayload
}

func (MessageHistory) EventType() Type { return TypeMessageHistory }

type UserJoined struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

func (UserJoined) EventType() Type { return TypeUserJoined }

type UserLeft struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

func (UserLeft) EventType() Type { return TypeUserLeft }

type UserListUpdated struct {
	ActiveUsers []chat.ActiveUser `json:"active_users"`
}

func (UserListUpdated) EventType() Type { return TypeUserListUpdated }

type UserTyping struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

func (UserTyping) EventType() Type { return TypeUserTyping }

type AITyping struct {
	Typing bool `json:"typing"`
}

func (AITyping) EventType() Type { return TypeAITyping }

type ConnectionEstablished struct {
	UserID      string            `json:"user_id"`
	RoomID      string            `json:"room_id"`
	ActiveUsers []chat.ActiveUser `json:"active_users"`
}

func (ConnectionEstablished) EventType() Type { return TypeConnectionEstablished }

type Error struct {
	Message string `json:"error"`
}

func (Error) EventType() Type { return TypeError }
