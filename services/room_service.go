// Package services carries the application-level operations behind the HTTP
// API: room lifecycle, history access and search.
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"styx-chat/contract"
	"styx-chat/domain/chat"
	"styx-chat/errors"
)

const (
	defaultVoiceID    = "N2lVS1w4EtoT3dr4eOWO"
	deleteSweepReason = "room deleted"
)

// RoomSweeper disconnects every live member of a room. Implemented by the
// runtime orchestrator.
type RoomSweeper interface {
	DisconnectRoom(ctx context.Context, roomID, reason string)
}

// RoomSummary decorates a room record with its last activity for listings.
type RoomSummary struct {
	chat.Room
	LastActivity time.Time
}

// CreateRoomParams is the validated input of room creation.
type CreateRoomParams struct {
	Name           string
	Description    string
	AISystemPrompt string
	AIModel        string
	VoiceReadback  bool
	VoiceID        string
	Private        bool
	AssignedUsers  []string
}

// RoomUpdate carries partial updates; nil fields stay untouched.
type RoomUpdate struct {
	Name           *string
	Description    *string
	AISystemPrompt *string
	AIModel        *string
	VoiceReadback  *bool
	VoiceID        *string
}

type RoomService struct {
	log           *slog.Logger
	rooms         contract.RoomStore
	messages      contract.MessageStore
	search        contract.SearchIndex
	sweeper       RoomSweeper
	defaultRoomID string
}

func NewRoomService(log *slog.Logger, rooms contract.RoomStore, messages contract.MessageStore,
	sweeper RoomSweeper, defaultRoomID string) *RoomService {
	return &RoomService{
		log:           log,
		rooms:         rooms,
		messages:      messages,
		sweeper:       sweeper,
		defaultRoomID: defaultRoomID,
	}
}

// WithSearch attaches the optional full-text index.
func (s *RoomService) WithSearch(index contract.SearchIndex) *RoomService {
	s.search = index
	return s
}

// EnsureDefaultRoom creates the deletion-protected default room if it does
// not exist yet. Called once at startup.
func (s *RoomService) EnsureDefaultRoom(ctx context.Context, name string) error {
	room := chat.Room{
		ID:            s.defaultRoomID,
		Name:          name,
		Description:   "The place everyone starts in",
		CreatedAt:     time.Now().UTC(),
		AIEnabled:     true,
		CreatedBy:     chat.SystemUserID,
		VoiceReadback: true,
		VoiceID:       defaultVoiceID,
	}
	err := s.rooms.Create(ctx, room)
	if stderrors.Is(err, errors.ErrRoomExists) {
		return nil
	}
	if err == nil {
		s.log.Info("default room created", "room_id", room.ID)
	}
	return err
}

// Accessible lists the rooms visible to an identity, decorated with last
// activity and ordered most recently active first.
func (s *RoomService) Accessible(ctx context.Context, id chat.Identity) ([]RoomSummary, error) {
	all, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := chat.AccessibleRooms(all, id, s.defaultRoomID)
	summaries := make([]RoomSummary, 0, len(visible))
	for _, room := range visible {
		summary := RoomSummary{Room: room, LastActivity: room.CreatedAt}
		recent, err := s.messages.Recent(ctx, room.ID, 1)
		if err != nil {
			s.log.Warn("last activity lookup failed", "room_id", room.ID, "error", err)
		} else if len(recent) > 0 {
			summary.LastActivity = recent[0].CreatedAt
		}
		summaries = append(summaries, summary)
	}
	// Most recently active first; AccessibleRooms already sorted by
	// creation so ties stay stable.
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries, nil
}

// Create makes a new room. Restricted accounts may not create rooms and
// only admins may create private ones. The id is a URL-safe slug of the
// name, suffixed with a timestamp on collision.
func (s *RoomService) Create(ctx context.Context, id chat.Identity, params CreateRoomParams) (chat.Room, error) {
	if id.Restricted {
		return chat.Room{}, fmt.Errorf("restricted accounts cannot create rooms: %w", errors.ErrRoomForbidden)
	}
	if params.Private && id.Role != chat.RoleAdmin {
		return chat.Room{}, fmt.Errorf("only admins can create private rooms: %w", errors.ErrRoomForbidden)
	}

	roomID := chat.Slug(params.Name)
	if roomID == "" {
		roomID = uuid.NewString()
	}
	if _, err := s.rooms.Get(ctx, roomID); err == nil {
		roomID = fmt.Sprintf("%s-%d", roomID, time.Now().Unix())
	}

	voiceID := params.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	room := chat.Room{
		ID:             roomID,
		Name:           params.Name,
		Description:    params.Description,
		CreatedAt:      time.Now().UTC(),
		AIEnabled:      true,
		AISystemPrompt: params.AISystemPrompt,
		AIModel:        params.AIModel,
		CreatedBy:      id.UserID,
		VoiceReadback:  params.VoiceReadback,
		VoiceID:        voiceID,
		Private:        params.Private,
		AssignedUsers:  params.AssignedUsers,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return chat.Room{}, err
	}
	s.log.Info("room created", "room_id", room.ID, "created_by", id.UserID, "private", room.Private)
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, roomID string) (chat.Room, error) {
	return s.rooms.Get(ctx, roomID)
}

// Update applies a partial update. Only admins and the room creator may
// change a room.
func (s *RoomService) Update(ctx context.Context, id chat.Identity, roomID string, update RoomUpdate) (chat.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return chat.Room{}, err
	}
	if id.Role != chat.RoleAdmin && room.CreatedBy != id.UserID {
		return chat.Room{}, fmt.Errorf("only admin or room creator can update room settings: %w", errors.ErrRoomForbidden)
	}

	if update.Name != nil {
		room.Name = *update.Name
	}
	if update.Description != nil {
		room.Description = *update.Description
	}
	if update.AISystemPrompt != nil {
		room.AISystemPrompt = *update.AISystemPrompt
	}
	if update.AIModel != nil {
		room.AIModel = *update.AIModel
	}
	if update.VoiceReadback != nil {
		room.VoiceReadback = *update.VoiceReadback
	}
	if update.VoiceID != nil {
		room.VoiceID = *update.VoiceID
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

// Delete removes a room: admin only, default room protected. Live members
// are swept off first, then messages, index entries and the record itself.
func (s *RoomService) Delete(ctx context.Context, id chat.Identity, roomID string) error {
	if id.Role != chat.RoleAdmin {
		return fmt.Errorf("only admin can delete rooms: %w", errors.ErrRoomForbidden)
	}
	if roomID == s.defaultRoomID {
		return fmt.Errorf("room %s: %w", roomID, errors.ErrDefaultRoom)
	}
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return err
	}

	s.sweeper.DisconnectRoom(ctx, roomID, deleteSweepReason)

	ids, err := s.messages.DeleteRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("delete room messages: %w", err)
	}
	s.purgeIndex(ids)
	if err := s.rooms.Delete(ctx, roomID); err != nil {
		return err
	}
	s.log.Info("room deleted", "room_id", roomID, "messages_dropped", len(ids))
	return nil
}

// Messages returns recent room history, oldest first.
func (s *RoomService) Messages(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return nil, err
	}
	return s.messages.Recent(ctx, roomID, limit)
}

// ClearMessages wipes a room's history (admin only). The room itself and
// its members are untouched.
func (s *RoomService) ClearMessages(ctx context.Context, id chat.Identity, roomID string) error {
	if id.Role != chat.RoleAdmin {
		return fmt.Errorf("only admin can clear room messages: %w", errors.ErrRoomForbidden)
	}
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return err
	}
	ids, err := s.messages.DeleteRoom(ctx, roomID)
	if err != nil {
		return err
	}
	s.purgeIndex(ids)
	s.log.Info("room messages cleared", "room_id", roomID, "count", len(ids))
	return nil
}

// Search resolves a full-text query into messages, most relevant first.
func (s *RoomService) Search(ctx context.Context, roomID, query string, limit int) ([]chat.Message, error) {
	if s.search == nil {
		return nil, nil
	}
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return nil, err
	}
	ids, err := s.search.Search(ctx, roomID, query, limit)
	if err != nil {
		return nil, err
	}
	matches := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.messages.ByID(ctx, id)
		if err != nil {
			// Index lags behind deletions; skip the hole.
			continue
		}
		matches = append(matches, message)
	}
	return matches, nil
}

// AssignUsers grants and revokes explicit room assignments (admin only).
func (s *RoomService) AssignUsers(ctx context.Context, id chat.Identity, roomID string, add, remove []string) (chat.Room, error) {
	if id.Role != chat.RoleAdmin {
		return chat.Room{}, fmt.Errorf("only admin can assign users: %w", errors.ErrRoomForbidden)
	}
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return chat.Room{}, err
	}
	for _, userID := range add {
		room.Assign(userID)
	}
	for _, userID := range remove {
		room.Unassign(userID)
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

// CheckAccess reports whether an identity may enter a room.
func (s *RoomService) CheckAccess(ctx context.Context, id chat.Identity, roomID string) (bool, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return false, err
	}
	return chat.CanAccess(room, id, s.defaultRoomID), nil
}

func (s *RoomService) purgeIndex(ids []uuid.UUID) {
	if s.search == nil || len(ids) == 0 {
		return
	}
	if err := s.search.Remove(ids); err != nil {
		s.log.Warn("search purge failed", "count", len(ids), "error", err)
	}
}
