package api

import (
	"time"

	"styx-chat/domain/chat"
	"styx-chat/domain/event"
	"styx-chat/observability"
	"styx-chat/services"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string                   `json:"status"`
	Stats  observability.RelayStats `json:"stats"`
}

type CreateRoomRequest struct {
	Name           string   `json:"name" validate:"required,min=1,max=100"`
	Description    string   `json:"description" validate:"max=500"`
	AISystemPrompt string   `json:"ai_system_prompt" validate:"max=2000"`
	AIModel        string   `json:"ai_model" validate:"max=200"`
	VoiceReadback  bool     `json:"voice_readback"`
	VoiceID        string   `json:"voice_id" validate:"max=100"`
	Private        bool     `json:"private"`
	AssignedUsers  []string `json:"assigned_users"`
}

type UpdateRoomRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description    *string `json:"description" validate:"omitempty,max=500"`
	AISystemPrompt *string `json:"ai_system_prompt" validate:"omitempty,max=2000"`
	AIModel        *string `json:"ai_model" validate:"omitempty,max=200"`
	VoiceReadback  *bool   `json:"voice_readback"`
	VoiceID        *string `json:"voice_id" validate:"omitempty,max=100"`
}

type AssignUsersRequest struct {
	Add    []string `json:"add" validate:"dive,required"`
	Remove []string `json:"remove" validate:"dive,required"`
}

type RoomResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	AIEnabled      bool       `json:"ai_enabled"`
	AISystemPrompt string     `json:"ai_system_prompt,omitempty"`
	AIModel        string     `json:"ai_model,omitempty"`
	VoiceReadback  bool       `json:"voice_readback"`
	VoiceID        string     `json:"voice_id"`
	Private        bool       `json:"private"`
	AssignedUsers  []string   `json:"assigned_users,omitempty"`
	LastActivity   *time.Time `json:"last_activity,omitempty"`
}

type AccessCheckResponse struct {
	RoomID    string `json:"room_id"`
	HasAccess bool   `json:"has_access"`
}

func toRoomResponse(room chat.Room) RoomResponse {
	return RoomResponse{
		ID:             room.ID,
		Name:           room.Name,
		Description:    room.Description,
		CreatedAt:      room.CreatedAt,
		CreatedBy:      room.CreatedBy,
		AIEnabled:      room.AIEnabled,
		AISystemPrompt: room.AISystemPrompt,
		AIModel:        room.AIModel,
		VoiceReadback:  room.VoiceReadback,
		VoiceID:        room.VoiceID,
		Private:        room.Private,
		AssignedUsers:  room.AssignedUsers,
	}
}

func toPayload(m chat.Message, _ int) event.MessagePayload {
	return event.FromMessage(m)
}

func toRoomSummaryResponse(summary services.RoomSummary) RoomResponse {
	resp := toRoomResponse(summary.Room)
	last := summary.LastActivity
	resp.LastActivity = &last
	return resp
}
