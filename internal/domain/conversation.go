package domain

import (
	"context"
	"time"
)

// Origin records who authored a persisted message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginOperator  Origin = "operator"
	OriginAssistant Origin = "assistant"
)

// Conversation is one end user's ongoing exchange, keyed by the stable
// chat-platform identifier.
type Conversation struct {
	ID        string
	CreatedAt time.Time
}

// MessageRecord is an immutable entry on a conversation's log. Seq is the
// insertion order assigned by the store.
type MessageRecord struct {
	Seq            int64
	ConversationID string
	Origin         Origin
	Content        string
	CreatedAt      time.Time
}

// DialogueStore is the durable conversation/message log. It is authoritative
// for history; routing state lives in the ModeCache.
type DialogueStore interface {
	// GetOrCreateConversation is idempotent: concurrent first contact from
	// the same identifier yields exactly one conversation.
	GetOrCreateConversation(ctx context.Context, id string) (Conversation, error)
	AppendMessage(ctx context.Context, convID string, origin Origin, content string) (MessageRecord, error)
	Messages(ctx context.Context, convID string, limit int) ([]MessageRecord, error)
	Close() error
}
