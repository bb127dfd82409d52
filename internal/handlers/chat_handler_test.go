package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aaspace/community-server/internal/models"
	"github.com/aaspace/community-server/internal/services"
	chatws "github.com/aaspace/community-server/internal/websocket"
)

type stubChatService struct {
	conversationsResult []models.ConversationSummary
	conversationsErr    error
	directResult        *models.Conversation
	directErr           error
	groupResult         *models.Conversation
	groupErr            error
	messagesResult      []models.ChatMessage
	messagesTotal       int
	messagesErr         error
	sendResult          *models.ChatMessagePayload
	sendErr             error
	markResult          []int64
	markErr             error

	lastActorID        int64
	lastOtherUserID    int64
	lastGroupName      string
	lastConversationID int64
	lastContent        string
	markCalls          int
}

func (s *stubChatService) ListConversations(_ context.Context, actorID int64) ([]models.ConversationSummary, error) {
	s.lastActorID = actorID
	return s.conversationsResult, s.conversationsErr
}

func (s *stubChatService) CreateDirectConversation(_ context.Context, actorID int64, otherUserID int64) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastOtherUserID = otherUserID
	return s.directResult, s.directErr
}

func (s *stubChatService) CreateGroupConversation(_ context.Context, actorID int64, name string, _ []int64) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastGroupName = name
	return s.groupResult, s.groupErr
}

func (s *stubChatService) ListMessages(_ context.Context, actorID int64, conversationID int64, _ int, _ int) ([]models.ChatMessage, int, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	return s.messagesResult, s.messagesTotal, s.messagesErr
}

func (s *stubChatService) SendMessage(_ context.Context, actorID int64, conversationID int64, content string) (*models.ChatMessagePayload, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastContent = content
	return s.sendResult, s.sendErr
}

func (s *stubChatService) MarkConversationRead(_ context.Context, actorID int64, conversationID int64) ([]int64, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.markCalls++
	return s.markResult, s.markErr
}

func newChatTestApp(service *stubChatService, actorID string) *fiber.App {
	handler := NewChatHandler(service, chatws.NewRegistry())

	app := fiber.New()
	if actorID != "" {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", actorID)
			return c.Next()
		})
	}
	app.Get("/conversations", handler.ListConversations)
	app.Post("/conversations", handler.CreateConversation)
	app.Get("/conversations/:id/messages", handler.GetMessages)
	app.Post("/conversations/:id/messages", handler.SendMessage)
	app.Post("/conversations/:id/messages/mark-as-read", handler.MarkAsRead)
	return app
}

func TestSendMessageReturnsCreatedChatMessage(t *testing.T) {
	service := &stubChatService{
		sendResult: &models.ChatMessagePayload{
			ID:         41,
			Content:    "hi",
			SenderID:   42,
			SenderName: "ana",
			Timestamp:  time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
			Status:     models.MessageStatusDelivered,
		},
	}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 || service.lastConversationID != 5 || service.lastContent != "hi" {
		t.Fatalf("unexpected forwarded call: actor=%d conversation=%d content=%q",
			service.lastActorID, service.lastConversationID, service.lastContent)
	}

	var body struct {
		Message     string                    `json:"message"`
		ChatMessage models.ChatMessagePayload `json:"chatMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.ChatMessage.ID != 41 || body.ChatMessage.Status != models.MessageStatusDelivered {
		t.Fatalf("unexpected chat message: %+v", body.ChatMessage)
	}
}

func TestSendMessageBlankContentReturnsBadRequest(t *testing.T) {
	service := &stubChatService{sendErr: services.ErrInvalidInput}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", strings.NewReader(`{"content":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSendMessageWithoutIdentityReturnsUnauthorized(t *testing.T) {
	app := newChatTestApp(&stubChatService{}, "")

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSendMessageNonParticipantReturnsForbidden(t *testing.T) {
	service := &stubChatService{sendErr: services.ErrForbidden}
	app := newChatTestApp(service, "99")

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSendMessageUnknownConversationReturnsNotFound(t *testing.T) {
	service := &stubChatService{sendErr: services.ErrConversationNotFound}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations/404/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSendMessagePersistenceFailureReturnsServerError(t *testing.T) {
	service := &stubChatService{sendErr: errors.New("insert failed")}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Details != "insert failed" {
		t.Fatalf("expected error detail, got %+v", body)
	}
}

func TestMarkAsReadNothingToUpdate(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages/mark-as-read", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Message           string   `json:"message"`
		UpdatedMessageIDs []string `json:"updatedMessageIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Message != "No new messages to mark as read" {
		t.Fatalf("unexpected message: %q", body.Message)
	}
	if body.UpdatedMessageIDs != nil {
		t.Fatalf("expected no updated ids, got %v", body.UpdatedMessageIDs)
	}
}

func TestMarkAsReadReturnsStringEncodedIDs(t *testing.T) {
	service := &stubChatService{markResult: []int64{3, 11}}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations/7/messages/mark-as-read", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastConversationID != 7 || service.lastActorID != 42 {
		t.Fatalf("unexpected forwarded call: %+v", service)
	}

	var body struct {
		Message           string   `json:"message"`
		UpdatedMessageIDs []string `json:"updatedMessageIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.UpdatedMessageIDs) != 2 || body.UpdatedMessageIDs[0] != "3" || body.UpdatedMessageIDs[1] != "11" {
		t.Fatalf("expected string-encoded ids, got %v", body.UpdatedMessageIDs)
	}
}

func TestMarkAsReadInvalidConversationID(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations/abc/messages/mark-as-read", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if service.markCalls != 0 {
		t.Fatal("expected no service call for invalid id")
	}
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{ID: 17},
				LastMessage: &models.ChatMessage{
					ID:             3,
					ConversationID: 17,
					SenderID:       8,
					Content:        "See you tomorrow",
					Status:         models.MessageStatusDelivered,
					CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				UnreadCount: 2,
			},
		},
	}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("unexpected actor id: %d", service.lastActorID)
	}

	var body struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected response: %+v", body.Conversations)
	}
}

func TestCreateDirectConversation(t *testing.T) {
	service := &stubChatService{
		directResult: &models.Conversation{ID: 9},
	}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations", strings.NewReader(`{"userId":7}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastOtherUserID != 7 {
		t.Fatalf("expected other user 7, got %d", service.lastOtherUserID)
	}
}

func TestCreateGroupConversation(t *testing.T) {
	name := "book club"
	service := &stubChatService{
		groupResult: &models.Conversation{ID: 10, Name: &name, IsGroup: true},
	}
	app := newChatTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/conversations",
		strings.NewReader(`{"name":"book club","participantIds":[7,8]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastGroupName != "book club" {
		t.Fatalf("expected group name forwarded, got %q", service.lastGroupName)
	}
}

func TestGetMessagesReturnsPagination(t *testing.T) {
	service := &stubChatService{
		messagesResult: []models.ChatMessage{
			{ID: 5, ConversationID: 11, SenderID: 7, Content: "Hi", Status: models.MessageStatusRead, CreatedAt: time.Now().UTC()},
		},
		messagesTotal: 45,
	}
	app := newChatTestApp(service, "7")

	req := httptest.NewRequest(http.MethodGet, "/conversations/11/messages?page=2&limit=20", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Messages   []models.ChatMessage  `json:"messages"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Messages) != 1 || body.Pagination.Total != 45 || body.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected response body: %+v %+v", body.Messages, body.Pagination)
	}
}
