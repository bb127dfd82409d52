package models

import "time"

// MessageStatus is the sender-perspective delivery status of a message.
// It only ever moves forward: sent -> delivered -> read. A message may
// jump straight from sent to read when the recipient reads it before the
// delivered transition is observed.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead:
		return true
	}
	return false
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition. Nothing transitions out of read.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	switch s {
	case MessageStatusSent:
		return next == MessageStatusDelivered || next == MessageStatusRead
	case MessageStatusDelivered:
		return next == MessageStatusRead
	default:
		return false
	}
}

type Conversation struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Participant struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	IsAdmin        bool  `json:"is_admin"`
}

type ChatMessage struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversation_id"`
	SenderID       int64         `json:"sender_id"`
	Content        string        `json:"content"`
	IsRead         bool          `json:"is_read"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ChatMessagePayload is the frame pushed to live connections for a new
// message. Field names match what the web client expects; it carries no
// type discriminator (status updates do).
type ChatMessagePayload struct {
	ID                 int64         `json:"id"`
	Content            string        `json:"content"`
	SenderID           int64         `json:"senderId"`
	SenderName         string        `json:"senderName"`
	SenderProfileImage *string       `json:"senderProfileImage"`
	Timestamp          time.Time     `json:"timestamp"`
	Read               bool          `json:"read"`
	Status             MessageStatus `json:"status"`
}

type ConversationSummary struct {
	Conversation
	LastMessage *ChatMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}
