package ws

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"styx-chat/auth"
	"styx-chat/contract"
	"styx-chat/domain/chat"
	"styx-chat/domain/event"
	"styx-chat/errors"
	"styx-chat/runtime"
	"styx-chat/sink"
)

const closeWriteTimeout = time.Second

// Handler upgrades /ws/:room_id, authenticates the token, enforces room
// access and then runs the connection's read loop. Authentication and
// access failures are reported to the client through application close
// codes before the socket is shut.
type Handler struct {
	log           *slog.Logger
	verifier      *auth.Verifier
	rooms         contract.RoomStore
	orchestrator  *runtime.Orchestrator
	defaultRoomID string
	sendBuffer    int
}

func NewHandler(log *slog.Logger, verifier *auth.Verifier, rooms contract.RoomStore,
	orchestrator *runtime.Orchestrator, defaultRoomID string, sendBuffer int) *Handler {
	return &Handler{
		log:           log,
		verifier:      verifier,
		rooms:         rooms,
		orchestrator:  orchestrator,
		defaultRoomID: defaultRoomID,
		sendBuffer:    sendBuffer,
	}
}

func (h *Handler) Register(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:room_id", websocket.New(h.serve))
}

func (h *Handler) serve(c *websocket.Conn) {
	ctx := context.Background()
	roomID := c.Params("room_id")

	identity, err := h.verifier.Verify(c.Query("token"))
	if err != nil {
		h.closeWith(c, err, "Authentication failed")
		return
	}

	room, err := h.rooms.Get(ctx, roomID)
	if err != nil {
		if stderrors.Is(err, errors.ErrRoomNotFound) {
			h.closeWith(c, err, "Room not found")
		} else {
			h.log.Error("room lookup failed", "room_id", roomID, "error", err)
			h.closeWith(c, errors.ErrPermissionCheck, "Permission check failed")
		}
		return
	}
	if !chat.CanAccess(room, identity, h.defaultRoomID) {
		h.closeWith(c, errors.ErrAccessDenied, "Access denied to this room")
		return
	}

	outbound := sink.NewBuffered(h.log, func(e event.Envelope) error {
		raw, err := Encode(e)
		if err != nil {
			return err
		}
		return c.WriteMessage(websocket.TextMessage, raw)
	}, h.sendBuffer)

	conn, err := h.orchestrator.Connect(ctx, identity, roomID, outbound)
	if err != nil {
		h.log.Error("connect ceremony failed", "user_id", identity.UserID, "error", err)
		outbound.Close()
		return
	}
	defer h.orchestrator.Disconnect(ctx, conn)

	// The sink shuts down when the connection is evicted by a same-user
	// reconnect or when a write fails. Close the socket so the read loop
	// below unblocks instead of keeping the dead connection readable.
	go func() {
		<-outbound.Done()
		_ = c.Close()
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("read failed", "user_id", identity.UserID, "error", err)
			}
			return
		}
		envelope, err := DecodeInbound(raw)
		if err != nil {
			h.log.Debug("dropping frame", "user_id", identity.UserID, "error", err)
			replyCtx, cancel := context.WithTimeout(ctx, time.Second)
			_ = outbound.Consume(replyCtx, event.Error{Message: "invalid message format"})
			cancel()
			continue
		}
		if err := h.orchestrator.HandleInbound(ctx, conn, envelope); err != nil {
			h.log.Warn("inbound handling failed",
				"user_id", identity.UserID, "event", envelope.EventType(), "error", err)
		}
	}
}

// closeWith sends an application close frame carrying the error's close
// code, then drops the socket.
func (h *Handler) closeWith(c *websocket.Conn, err error, reason string) {
	code := errors.CloseCode(err)
	h.log.Info(fmt.Sprintf("Rejecting websocket : %s", reason), "code", code)
	message := websocket.FormatCloseMessage(code, reason)
	_ = c.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeWriteTimeout))
	_ = c.Close()
}
