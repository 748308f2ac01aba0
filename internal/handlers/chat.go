package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-api/internal/chat"
	"github.com/skillswap/skillswap-api/internal/realtime"
	"github.com/skillswap/skillswap-api/internal/store"
	"github.com/skillswap/skillswap-api/internal/utils"
)

type ChatHandler struct {
	Svc       *chat.Service
	Hub       *realtime.Hub
	Bus       store.Bus
	RDB       *redis.Client
	JWTSecret string
	Log       zerolog.Logger
}

func NewChatHandler(svc *chat.Service, hub *realtime.Hub, bus store.Bus, rdb *redis.Client, jwtSecret string, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{Svc: svc, Hub: hub, Bus: bus, RDB: rdb, JWTSecret: jwtSecret, Log: log}
}

// GetConversations returns the user's derived conversation list.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	convs, err := h.Svc.Conversations(c.Context(), userUUID)
	if err != nil {
		if errors.Is(err, chat.ErrAuthRequired) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
		}
		h.Log.Error().Err(err).Msg("conversation derivation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversations"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    convs,
		"count":   len(convs),
	})
}

type createConversationReq struct {
	UserID         string  `json:"user_id"`
	OfferedSkillID *string `json:"offered_skill_id"`
}

// CreateOrGetConversation finds or creates the barter request that acts as
// the conversation container with another user.
func (h *ChatHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req createConversationReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	otherUUID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid user ID"})
	}

	var offered *uuid.UUID
	if req.OfferedSkillID != nil && *req.OfferedSkillID != "" {
		id, err := uuid.Parse(*req.OfferedSkillID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid skill ID"})
		}
		offered = &id
	}

	requestID, created, err := h.Svc.GetOrCreate(c.Context(), userUUID, otherUUID, offered)
	if err != nil {
		var ve *chat.ValidationError
		if errors.As(err, &ve) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": ve.Reason})
		}
		h.Log.Error().Err(err).Msg("conversation bootstrap failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to open conversation"})
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"created": created,
		"data":    fiber.Map{"request_id": requestID},
	})
}

// GetMessages returns a thread's history, oldest first.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	requestID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	requester, owner, err := h.Svc.Participants(c.Context(), requestID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Conversation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversation"})
	}
	if userUUID != requester && userUUID != owner {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	msgs, err := h.Svc.History(c.Context(), requestID)
	if err != nil {
		h.Log.Error().Err(err).Msg("history fetch failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch messages"})
	}

	return c.JSON(fiber.Map{"success": true, "data": msgs})
}

type sendMessageReq struct {
	Content string `json:"content"`
}

// SendMessage appends a message to a thread, hands it straight to both
// participants' live sessions and publishes a notification.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	requestID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	requester, owner, err := h.Svc.Participants(c.Context(), requestID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Conversation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversation"})
	}
	if userUUID != requester && userUUID != owner {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	msg, err := h.Svc.Append(c.Context(), requestID, userUUID, req.Content)
	if err != nil {
		var ve *chat.ValidationError
		if errors.As(err, &ve) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": ve.Reason})
		}
		h.Log.Error().Err(err).Msg("message append failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to send message"})
	}

	// local fast path; the bus event for the same id is deduplicated
	h.Hub.DeliverMessage(requester, owner, *msg)

	recipientID := requester
	if userUUID == requester {
		recipientID = owner
	}
	notif := map[string]interface{}{
		"type":       "chat_message",
		"request_id": requestID.String(),
		"sender_id":  userUUID.String(),
	}
	payload, _ := json.Marshal(notif)
	h.RDB.Publish(context.Background(), "notifications:"+recipientID.String(), payload)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": msg})
}

type wsCommand struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

// WebSocketHandler binds one live sync session to the connection and
// streams its updates. Commands from the client: refresh, load_thread,
// pong.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	claims, err := utils.ParseJWT(h.JWTSecret, c.Query("token"))
	if err != nil {
		h.Log.Warn().Err(err).Msg("ws: rejected connection with invalid token")
		c.Close()
		return
	}
	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := chat.NewSession(userUUID, h.Svc, h.Bus, h.Log)
	go sess.Run(ctx)

	client := &realtime.Client{ID: uuid.NewString(), Session: sess}
	h.Hub.RegisterClient(client)
	defer h.Hub.UnregisterClient(client)

	// single writer: everything the client sees flows through the
	// session's update channel
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for upd := range sess.Updates() {
			if err := c.WriteJSON(upd); err != nil {
				h.Log.Debug().Err(err).Msg("ws: write failed")
				cancel()
				return
			}
		}
	}()

	for {
		var cmd wsCommand
		if err := c.ReadJSON(&cmd); err != nil {
			break
		}
		switch cmd.Type {
		case "refresh":
			sess.Refresh()
		case "load_thread":
			requestID, err := uuid.Parse(cmd.RequestID)
			if err != nil {
				continue
			}
			loadCtx, done := context.WithTimeout(ctx, 10*time.Second)
			if _, err := sess.LoadThread(loadCtx, requestID); err != nil {
				h.Log.Warn().Err(err).Str("request_id", cmd.RequestID).Msg("ws: thread load failed")
			}
			done()
		case "pong":
			// keepalive
		}
	}

	cancel()
	<-writeDone
}
