package chatws

import (
	"log"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
)

const sendBufferSize = 32

// Client is one live duplex connection bound to a single conversation for
// its whole lifetime. Frames to push are queued on send and drained by
// WritePump; a closed done channel marks the client as no longer open.
type Client struct {
	registry       *Registry
	conn           *websocket.Conn
	conversationID int64

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(registry *Registry, conn *websocket.Conn, conversationID int64) *Client {
	return &Client{
		registry:       registry,
		conn:           conn,
		conversationID: conversationID,
		send:           make(chan []byte, sendBufferSize),
		done:           make(chan struct{}),
	}
}

func (c *Client) ConversationID() int64 {
	return c.conversationID
}

// deliver queues a frame for the write pump without blocking. It reports
// false when the client is closed or its queue is full; the caller treats
// that as a skipped delivery, never as a reason to deregister.
func (c *Client) deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// ReadPump consumes inbound frames until the connection closes or errors,
// then deregisters the client. No inbound command protocol exists on this
// channel; client-to-server frames are logged and dropped (all mutations
// go through the HTTP endpoints).
func (c *Client) ReadPump() {
	defer c.registry.Deregister(c)

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		log.Printf("chat ws: ignoring inbound frame (type=%d, %d bytes) on conversation %d",
			messageType, len(payload), c.conversationID)
	}
}

// WritePump serializes all writes to the underlying connection.
func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
