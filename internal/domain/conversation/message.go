package conversation

import (
	"context"
	"time"

	"chathistory-server/internal/domain/query"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
	MessageRoleTool      MessageRole = "tool"
)

// Valid reports whether the role is one of the known values.
func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem, MessageRoleTool:
		return true
	}
	return false
}

// Message is an immutable entry in a conversation's history. Token and
// latency fields are nil when the producing pipeline did not report them.
type Message struct {
	ID               uint        `json:"-"`
	PublicID         string      `json:"id"`
	ConversationID   uint        `json:"-"`
	Role             MessageRole `json:"role"`
	Content          string      `json:"content"`
	Provider         *string     `json:"provider,omitempty"`
	Model            *string     `json:"model,omitempty"`
	PromptTokens     *int        `json:"prompt_tokens,omitempty"`
	CompletionTokens *int        `json:"completion_tokens,omitempty"`
	TotalTokens      *int        `json:"total_tokens,omitempty"`
	LatencyMs        *int64      `json:"latency_ms,omitempty"`
	ParentMessageID  *uint       `json:"-"`
	ParentPublicID   *string     `json:"parent_message_id,omitempty"`
	Metadata         *string     `json:"metadata,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	ProcessedAt      *time.Time  `json:"processed_at,omitempty"`
}

// MessageStats aggregates a conversation's message stream.
type MessageStats struct {
	TotalMessages     int64   `json:"total_messages"`
	UserMessages      int64   `json:"user_messages"`
	AssistantMessages int64   `json:"assistant_messages"`
	TotalTokens       int64   `json:"total_tokens"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
}

type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	// FindByConversation returns the full stream in chronological order.
	FindByConversation(ctx context.Context, conversationID uint) ([]*Message, error)
	FindByConversationPaged(ctx context.Context, conversationID uint, pagination query.Pagination) ([]*Message, error)
	// FindRecent returns up to limit messages, newest first.
	FindRecent(ctx context.Context, conversationID uint, limit int) ([]*Message, error)
	// FindLast returns the newest message, or (nil, nil) when the
	// conversation has none.
	FindLast(ctx context.Context, conversationID uint) (*Message, error)
	FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error)
	FindByRole(ctx context.Context, conversationID uint, role MessageRole) ([]*Message, error)
	FindByParent(ctx context.Context, conversationID uint, parentID uint) ([]*Message, error)
	SearchContent(ctx context.Context, conversationID uint, keyword string) ([]*Message, error)
	FindSince(ctx context.Context, conversationID uint, since time.Time) ([]*Message, error)
	Delete(ctx context.Context, id uint) error
	// DeleteByConversation removes the whole stream and returns the number
	// of rows removed.
	DeleteByConversation(ctx context.Context, conversationID uint) (int64, error)
	Count(ctx context.Context, conversationID uint) (int64, error)
	CountByRole(ctx context.Context, conversationID uint, role MessageRole) (int64, error)
	SumTotalTokens(ctx context.Context, conversationID uint) (int64, error)
	AverageLatency(ctx context.Context, conversationID uint, role MessageRole) (float64, error)
}
