package chatws

import (
	"sync"

	"github.com/aaspace/community-server/internal/metrics"
)

// Registry maps a conversation id to the set of live connections currently
// subscribed to it. It is the single source of truth for who is listening;
// it holds nothing persistent and starts empty on every process start.
//
// A conversation id is present as a key only while its set is non-empty:
// Deregister deletes the entry the moment the last client leaves.
type Registry struct {
	mu            sync.RWMutex
	conversations map[int64]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[int64]map[*Client]struct{}),
	}
}

// Register adds the client to its conversation's set. Adding the same
// client twice is a no-op.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conversations[client.conversationID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conversations[client.conversationID] = set
		metrics.ActiveConversations.Inc()
	}
	if _, exists := set[client]; exists {
		return
	}
	set[client] = struct{}{}
	metrics.ActiveConnections.Inc()
}

// Deregister removes the client from its conversation's set and closes the
// client so it can never receive another broadcast. The conversation entry
// is deleted if the set becomes empty.
func (r *Registry) Deregister(client *Client) {
	r.mu.Lock()
	set, ok := r.conversations[client.conversationID]
	if ok {
		if _, exists := set[client]; exists {
			delete(set, client)
			metrics.ActiveConnections.Dec()
		}
		if len(set) == 0 {
			delete(r.conversations, client.conversationID)
			metrics.ActiveConversations.Dec()
		}
	}
	r.mu.Unlock()

	client.close()
}

// Count reports how many connections are registered for the conversation.
func (r *Registry) Count(conversationID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations[conversationID])
}

// each invokes fn for every client registered for the conversation while
// holding the read lock, so no register/deregister can interleave with a
// broadcast iteration. An absent conversation id is simply zero calls.
func (r *Registry) each(conversationID int64, fn func(*Client)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.conversations[conversationID] {
		fn(client)
	}
}
