package chatws

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/aaspace/community-server/internal/metrics"
	"github.com/aaspace/community-server/internal/models"
)

// Dispatcher pushes serialized JSON frames to every live connection of a
// conversation. Delivery is best effort: the persisted record is the
// durable source of truth and a connection that is not registered at
// broadcast time simply misses the event.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// statusUpdateEvent is the envelope for status broadcasts. The type field
// distinguishes it from new-message frames, which carry none.
type statusUpdateEvent struct {
	Type         string               `json:"type"`
	ChatID       int64                `json:"chatId"`
	ReaderUserID int64                `json:"readerUserId"`
	Status       models.MessageStatus `json:"status"`
	MessageIDs   []string             `json:"messageIds"`
}

// BroadcastMessage pushes a new-message frame to every connection
// registered for the conversation. Broadcasting to a conversation with no
// listeners is a normal no-op.
func (d *Dispatcher) BroadcastMessage(conversationID int64, payload *models.ChatMessagePayload) {
	metrics.BroadcastsTotal.WithLabelValues("message").Inc()
	d.broadcast(conversationID, payload)
}

// BroadcastStatusUpdate pushes a messageStatusUpdate frame carrying the
// reader, the new status, and the affected message ids (string encoded).
func (d *Dispatcher) BroadcastStatusUpdate(
	conversationID int64,
	readerUserID int64,
	status models.MessageStatus,
	messageIDs []int64,
) {
	metrics.BroadcastsTotal.WithLabelValues("status_update").Inc()

	encoded := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		encoded = append(encoded, strconv.FormatInt(id, 10))
	}

	d.broadcast(conversationID, statusUpdateEvent{
		Type:         "messageStatusUpdate",
		ChatID:       conversationID,
		ReaderUserID: readerUserID,
		Status:       status,
		MessageIDs:   encoded,
	})
}

// broadcast serializes the payload once and hands the same bytes to every
// registered connection. A marshal failure aborts the whole call; a
// failed hand-off to one connection only increments the skip count.
func (d *Dispatcher) broadcast(conversationID int64, payload any) {
	frame, err := json.Marshal(payload)
	if err != nil {
		log.Printf("chat dispatcher: encode payload for conversation %d: %v", conversationID, err)
		return
	}

	var delivered, skipped int
	d.registry.each(conversationID, func(client *Client) {
		if client.deliver(frame) {
			delivered++
		} else {
			skipped++
		}
	})

	metrics.DeliveriesTotal.Add(float64(delivered))
	metrics.SkippedDeliveriesTotal.Add(float64(skipped))
	if skipped > 0 {
		log.Printf("chat dispatcher: conversation %d: delivered %d, skipped %d stale connections",
			conversationID, delivered, skipped)
	}
}
