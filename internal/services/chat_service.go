package services

import (
	"context"
	"errors"
	"strings"

	"github.com/aaspace/community-server/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUserNotFound         = errors.New("user not found")
)

type conversationStore interface {
	Create(ctx context.Context, name *string, isGroup bool) (*models.Conversation, error)
	AddParticipant(ctx context.Context, conversationID int64, userID int64, isAdmin bool) error
	GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error)
	FindDirect(ctx context.Context, userID int64, otherUserID int64) (*models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error)
	ListForParticipant(ctx context.Context, participantID int64) ([]models.ConversationSummary, error)
	Touch(ctx context.Context, conversationID int64) error
}

type messageStore interface {
	Create(ctx context.Context, conversationID int64, senderID int64, content string) (*models.ChatMessage, error)
	MarkDelivered(ctx context.Context, messageID int64) error
	MarkConversationRead(ctx context.Context, conversationID int64, readerID int64) ([]int64, error)
	ListByConversation(ctx context.Context, conversationID int64, limit int, offset int) ([]models.ChatMessage, int, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type broadcaster interface {
	BroadcastMessage(conversationID int64, payload *models.ChatMessagePayload)
	BroadcastStatusUpdate(conversationID int64, readerUserID int64, status models.MessageStatus, messageIDs []int64)
}

// ChatService orchestrates message persistence, the delivery status state
// machine, and the realtime fan-out. Broadcasts happen strictly after
// successful persistence; a persistence failure surfaces to the caller and
// produces no socket traffic.
type ChatService struct {
	conversations conversationStore
	messages      messageStore
	users         userReader
	dispatcher    broadcaster
}

func NewChatService(
	conversations conversationStore,
	messages messageStore,
	users userReader,
	dispatcher broadcaster,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		dispatcher:    dispatcher,
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
) ([]models.ConversationSummary, error) {
	return s.conversations.ListForParticipant(ctx, actorID)
}

// CreateDirectConversation returns the existing direct conversation
// between the two users, creating it on first contact.
func (s *ChatService) CreateDirectConversation(
	ctx context.Context,
	actorID int64,
	otherUserID int64,
) (*models.Conversation, error) {
	if otherUserID <= 0 || otherUserID == actorID {
		return nil, ErrInvalidInput
	}

	if _, err := s.users.GetByID(ctx, otherUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	existing, err := s.conversations.FindDirect(ctx, actorID, otherUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	conversation, err := s.conversations.Create(ctx, nil, false)
	if err != nil {
		return nil, err
	}
	if err := s.conversations.AddParticipant(ctx, conversation.ID, actorID, false); err != nil {
		return nil, err
	}
	if err := s.conversations.AddParticipant(ctx, conversation.ID, otherUserID, false); err != nil {
		return nil, err
	}

	return conversation, nil
}

// CreateGroupConversation creates a named group with the caller as its
// admin.
func (s *ChatService) CreateGroupConversation(
	ctx context.Context,
	actorID int64,
	name string,
	participantIDs []int64,
) (*models.Conversation, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(participantIDs) == 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversations.Create(ctx, &trimmed, true)
	if err != nil {
		return nil, err
	}
	if err := s.conversations.AddParticipant(ctx, conversation.ID, actorID, true); err != nil {
		return nil, err
	}

	seen := map[int64]struct{}{actorID: {}}
	for _, participantID := range participantIDs {
		if participantID <= 0 {
			return nil, ErrInvalidInput
		}
		if _, dup := seen[participantID]; dup {
			continue
		}
		seen[participantID] = struct{}{}
		if err := s.conversations.AddParticipant(ctx, conversation.ID, participantID, false); err != nil {
			return nil, err
		}
	}

	return conversation, nil
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if conversationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	if err := s.requireParticipant(ctx, conversationID, actorID); err != nil {
		return nil, 0, err
	}

	return s.messages.ListByConversation(ctx, conversationID, limit, (page-1)*limit)
}

// SendMessage persists the message in status 'sent', advances it to
// 'delivered' (asserted optimistically at persistence time, there is no
// client acknowledgment), bumps the conversation, and only then broadcasts
// the formatted payload to live connections.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	content string,
) (*models.ChatMessagePayload, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	if err := s.requireParticipant(ctx, conversationID, actorID); err != nil {
		return nil, err
	}

	sender, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	message, err := s.messages.Create(ctx, conversationID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := s.messages.MarkDelivered(ctx, message.ID); err != nil {
		return nil, err
	}
	message.Status = models.MessageStatusDelivered

	if err := s.conversations.Touch(ctx, conversationID); err != nil {
		return nil, err
	}

	payload := &models.ChatMessagePayload{
		ID:                 message.ID,
		Content:            message.Content,
		SenderID:           sender.ID,
		SenderName:         sender.Username,
		SenderProfileImage: sender.ProfileImage,
		Timestamp:          message.CreatedAt,
		Read:               message.IsRead,
		Status:             message.Status,
	}

	s.dispatcher.BroadcastMessage(conversationID, payload)

	return payload, nil
}

// MarkConversationRead batch-advances every sent/delivered message in the
// conversation authored by someone other than the reader to 'read'. When
// nothing matched it returns an empty slice and broadcasts nothing.
func (s *ChatService) MarkConversationRead(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) ([]int64, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	if err := s.requireParticipant(ctx, conversationID, actorID); err != nil {
		return nil, err
	}

	updatedIDs, err := s.messages.MarkConversationRead(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}

	if len(updatedIDs) > 0 {
		s.dispatcher.BroadcastStatusUpdate(conversationID, actorID, models.MessageStatusRead, updatedIDs)
	}

	return updatedIDs, nil
}

func (s *ChatService) requireParticipant(ctx context.Context, conversationID, actorID int64) error {
	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConversationNotFound
		}
		return err
	}

	ok, err := s.conversations.IsParticipant(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
