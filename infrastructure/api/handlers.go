// Package api exposes the room management REST surface. Real-time traffic
// goes over the websocket handler; everything here is request/response.
package api

import (
	stderrors "errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"styx-chat/auth"
	"styx-chat/errors"
	"styx-chat/observability"
	"styx-chat/services"
)

const defaultMessageLimit = 50

type Handlers struct {
	log      *slog.Logger
	rooms    *services.RoomService
	stats    *observability.StatsManager
	verifier *auth.Verifier
	validate *validator.Validate
}

func NewHandlers(log *slog.Logger, rooms *services.RoomService, stats *observability.StatsManager,
	verifier *auth.Verifier) *Handlers {
	return &Handlers{
		log:      log,
		rooms:    rooms,
		stats:    stats,
		verifier: verifier,
		validate: validator.New(),
	}
}

// Register mounts the routes. /health stays open; everything under /rooms
// requires a valid token.
func (h *Handlers) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	rooms := app.Group("/rooms", AuthMiddleware(h.verifier))
	rooms.Get("/", h.ListRooms)
	rooms.Post("/", h.CreateRoom)
	rooms.Get("/:room_id", h.GetRoom)
	rooms.Put("/:room_id", h.UpdateRoom)
	rooms.Delete("/:room_id", h.DeleteRoom)
	rooms.Get("/:room_id/messages", h.Messages)
	rooms.Delete("/:room_id/messages", h.ClearMessages)
	rooms.Get("/:room_id/messages/search", h.SearchMessages)
	rooms.Post("/:room_id/assign-users", h.AssignUsers)
	rooms.Get("/:room_id/access-check", h.CheckAccess)
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok", Stats: h.stats.Snapshot()})
}

func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	summaries, err := h.rooms.Accessible(c.UserContext(), identity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lo.Map(summaries, func(summary services.RoomSummary, _ int) RoomResponse {
		return toRoomSummaryResponse(summary)
	}))
}

func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	room, err := h.rooms.Create(c.UserContext(), identity, services.CreateRoomParams{
		Name:           req.Name,
		Description:    req.Description,
		AISystemPrompt: req.AISystemPrompt,
		AIModel:        req.AIModel,
		VoiceReadback:  req.VoiceReadback,
		VoiceID:        req.VoiceID,
		Private:        req.Private,
		AssignedUsers:  req.AssignedUsers,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toRoomResponse(room))
}

func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	roomID := c.Params("room_id")
	allowed, err := h.rooms.CheckAccess(c.UserContext(), identity, roomID)
	if err != nil {
		return h.fail(c, err)
	}
	if !allowed {
		return forbidden(c, "Access denied to this room")
	}
	room, err := h.rooms.Get(c.UserContext(), roomID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toRoomResponse(room))
}

func (h *Handlers) UpdateRoom(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req UpdateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	room, err := h.rooms.Update(c.UserContext(), identity, c.Params("room_id"), services.RoomUpdate{
		Name:           req.Name,
		Description:    req.Description,
		AISystemPrompt: req.AISystemPrompt,
		AIModel:        req.AIModel,
		VoiceReadback:  req.VoiceReadback,
		VoiceID:        req.VoiceID,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toRoomResponse(room))
}

func (h *Handlers) DeleteRoom(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.rooms.Delete(c.UserContext(), identity, c.Params("room_id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) Messages(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	roomID := c.Params("room_id")
	allowed, err := h.rooms.CheckAccess(c.UserContext(), identity, roomID)
	if err != nil {
		return h.fail(c, err)
	}
	if !allowed {
		return forbidden(c, "Access denied to this room")
	}

	limit := c.QueryInt("limit", defaultMessageLimit)
	messages, err := h.rooms.Messages(c.UserContext(), roomID, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lo.Map(messages, toPayload))
}

func (h *Handlers) ClearMessages(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.rooms.ClearMessages(c.UserContext(), identity, c.Params("room_id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) SearchMessages(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	query := c.Query("q")
	if query == "" {
		return badRequest(c, "Query parameter q is required")
	}
	roomID := c.Params("room_id")
	allowed, err := h.rooms.CheckAccess(c.UserContext(), identity, roomID)
	if err != nil {
		return h.fail(c, err)
	}
	if !allowed {
		return forbidden(c, "Access denied to this room")
	}

	limit := c.QueryInt("limit", defaultMessageLimit)
	matches, err := h.rooms.Search(c.UserContext(), roomID, query, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lo.Map(matches, toPayload))
}

func (h *Handlers) AssignUsers(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req AssignUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	room, err := h.rooms.AssignUsers(c.UserContext(), identity, c.Params("room_id"), req.Add, req.Remove)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toRoomResponse(room))
}

func (h *Handlers) CheckAccess(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c)
	}
	roomID := c.Params("room_id")
	allowed, err := h.rooms.CheckAccess(c.UserContext(), identity, roomID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(AccessCheckResponse{RoomID: roomID, HasAccess: allowed})
}

// fail maps service errors onto HTTP statuses. Anything unrecognized is
// logged and hidden behind a 500.
func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	case stderrors.Is(err, errors.ErrRoomForbidden):
		return forbidden(c, "Operation not allowed for this account")
	case stderrors.Is(err, errors.ErrDefaultRoom):
		return badRequest(c, "The default room cannot be deleted")
	case stderrors.Is(err, errors.ErrRoomExists):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "Room already exists",
		})
	default:
		h.log.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "bad_request", Message: message})
}

func forbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{Error: "forbidden", Message: message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "User not authenticated",
	})
}
