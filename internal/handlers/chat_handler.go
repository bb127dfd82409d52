package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	fastws "github.com/fasthttp/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/aaspace/community-server/internal/models"
	"github.com/aaspace/community-server/internal/services"
	chatws "github.com/aaspace/community-server/internal/websocket"
)

const wsPathLocal = "ws_path"

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID int64) ([]models.ConversationSummary, error)
	CreateDirectConversation(ctx context.Context, actorID int64, otherUserID int64) (*models.Conversation, error)
	CreateGroupConversation(ctx context.Context, actorID int64, name string, participantIDs []int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID int64, conversationID int64, page int, limit int) ([]models.ChatMessage, int, error)
	SendMessage(ctx context.Context, actorID int64, conversationID int64, content string) (*models.ChatMessagePayload, error)
	MarkConversationRead(ctx context.Context, actorID int64, conversationID int64) ([]int64, error)
}

type ChatHandler struct {
	service  chatApplicationService
	registry *chatws.Registry
}

func NewChatHandler(service chatApplicationService, registry *chatws.Registry) *ChatHandler {
	return &ChatHandler{
		service:  service,
		registry: registry,
	}
}

type createConversationRequest struct {
	UserID         int64   `json:"userId"`
	Name           string  `json:"name"`
	ParticipantIDs []int64 `json:"participantIds"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), actorID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var conversation *models.Conversation
	if req.Name != "" || len(req.ParticipantIDs) > 0 {
		conversation, err = h.service.CreateGroupConversation(c.Context(), actorID, req.Name, req.ParticipantIDs)
	} else {
		conversation, err = h.service.CreateDirectConversation(c.Context(), actorID, req.UserID)
	}
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), actorID, conversationID, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

// SendMessage persists a message and lets the service broadcast it to live
// connections once persistence succeeded.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	chatMessage, err := h.service.SendMessage(c.Context(), actorID, conversationID, req.Content)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Message sent",
		"chatMessage": chatMessage,
	})
}

// MarkAsRead batch-advances the other participants' messages to read.
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	updatedIDs, err := h.service.MarkConversationRead(c.Context(), actorID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	if len(updatedIDs) == 0 {
		return c.JSON(fiber.Map{"message": "No new messages to mark as read"})
	}

	encoded := make([]string, 0, len(updatedIDs))
	for _, id := range updatedIDs {
		encoded = append(encoded, strconv.FormatInt(id, 10))
	}

	return c.JSON(fiber.Map{
		"message":           "Messages marked as read",
		"updatedMessageIds": encoded,
	})
}

// WebSocketUpgrade gates the realtime route behind a proper upgrade
// request and records the request path for validation after the upgrade.
func (h *ChatHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	c.Locals(wsPathLocal, c.Path())
	return c.Next()
}

// HandleWebSocket validates the /ws/chat/{id} address, registers the
// connection for its conversation, and pumps until it closes. A malformed
// address is rejected with a policy-violation close frame and the
// connection is never registered. The conversation is not checked for
// existence or membership here.
func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	path, _ := conn.Locals(wsPathLocal).(string)
	conversationID, err := chatws.ParseConversationPath(path)
	if err != nil {
		closePolicyViolation(conn, err.Error())
		return
	}

	client := chatws.NewClient(h.registry, conn, conversationID)
	h.registry.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	frame := fastws.FormatCloseMessage(fastws.ClosePolicyViolation, reason)
	_ = conn.WriteControl(fastws.CloseMessage, frame, time.Now().Add(time.Second))
	_ = conn.Close()
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to process chat request",
			"details": err.Error(),
		})
	}
}
