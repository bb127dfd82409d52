package chatws

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidChatPath = errors.New("path must be /ws/chat/{conversation id}")

// ParseConversationPath validates a websocket request path against the
// required /ws/chat/{id} shape: exactly three non-empty segments, the
// literals ws and chat, and a non-negative integer id. Anything else is a
// protocol violation and the connection must be rejected.
func ParseConversationPath(path string) (int64, error) {
	trimmed := strings.TrimPrefix(path, "/")
	segments := strings.Split(trimmed, "/")
	if len(segments) != 3 || segments[0] != "ws" || segments[1] != "chat" || segments[2] == "" {
		return 0, ErrInvalidChatPath
	}

	conversationID, err := strconv.ParseInt(segments[2], 10, 64)
	if err != nil || conversationID < 0 {
		return 0, ErrInvalidChatPath
	}

	return conversationID, nil
}
