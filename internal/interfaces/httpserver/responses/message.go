package responses

import (
	"encoding/json"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/functional"
)

// MessageResponse is the client-facing message representation.
type MessageResponse struct {
	ID               string          `json:"id"`
	Object           string          `json:"object"`
	Role             string          `json:"role"`
	Content          string          `json:"content"`
	Provider         *string         `json:"provider,omitempty"`
	Model            *string         `json:"model,omitempty"`
	PromptTokens     *int            `json:"prompt_tokens,omitempty"`
	CompletionTokens *int            `json:"completion_tokens,omitempty"`
	TotalTokens      *int            `json:"total_tokens,omitempty"`
	LatencyMs        *int64          `json:"latency_ms,omitempty"`
	ParentID         *string         `json:"parent_id,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        int64           `json:"created_at"`
	ProcessedAt      *int64          `json:"processed_at,omitempty"`
}

// MessageListResponse is an unpaged list of messages.
type MessageListResponse struct {
	Object string            `json:"object"`
	Data   []MessageResponse `json:"data"`
	Total  int               `json:"total"`
}

// MessagePageResponse is a paged list of messages.
type MessagePageResponse struct {
	Object     string            `json:"object"`
	Data       []MessageResponse `json:"data"`
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	TotalItems int64             `json:"total_items"`
	TotalPages int               `json:"total_pages"`
	HasMore    bool              `json:"has_more"`
}

// MessageDeletedResponse confirms deletion of a single message.
type MessageDeletedResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// MessagesClearedResponse confirms deletion of a conversation's messages.
type MessagesClearedResponse struct {
	ConversationID string `json:"conversation_id"`
	Object         string `json:"object"`
	Deleted        int64  `json:"deleted"`
}

// MessageStatsResponse reports aggregates over a conversation's messages.
type MessageStatsResponse struct {
	ConversationID    string  `json:"conversation_id"`
	Object            string  `json:"object"`
	TotalMessages     int64   `json:"total_messages"`
	UserMessages      int64   `json:"user_messages"`
	AssistantMessages int64   `json:"assistant_messages"`
	TotalTokens       int64   `json:"total_tokens"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
}

// NewMessageResponse maps a domain message to its response form.
func NewMessageResponse(msg *conversation.Message) *MessageResponse {
	response := &MessageResponse{
		ID:               msg.PublicID,
		Object:           "conversation.message",
		Role:             string(msg.Role),
		Content:          msg.Content,
		Provider:         msg.Provider,
		Model:            msg.Model,
		PromptTokens:     msg.PromptTokens,
		CompletionTokens: msg.CompletionTokens,
		TotalTokens:      msg.TotalTokens,
		LatencyMs:        msg.LatencyMs,
		ParentID:         msg.ParentPublicID,
		Metadata:         rawMetadata(msg.Metadata),
		CreatedAt:        msg.CreatedAt.Unix(),
	}
	if msg.ProcessedAt != nil {
		processed := msg.ProcessedAt.Unix()
		response.ProcessedAt = &processed
	}
	return response
}

// NewMessageListResponse maps an unpaged message list.
func NewMessageListResponse(msgs []*conversation.Message) *MessageListResponse {
	return &MessageListResponse{
		Object: "list",
		Data:   mapMessages(msgs),
		Total:  len(msgs),
	}
}

// NewMessagePageResponse maps a page of messages.
func NewMessagePageResponse(page query.Page[*conversation.Message]) *MessagePageResponse {
	return &MessagePageResponse{
		Object:     "list",
		Data:       mapMessages(page.Items),
		Page:       page.Page,
		Size:       page.Size,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
		HasMore:    page.Page+1 < page.TotalPages,
	}
}

// NewMessageDeletedResponse confirms deletion of publicID.
func NewMessageDeletedResponse(publicID string) *MessageDeletedResponse {
	return &MessageDeletedResponse{
		ID:      publicID,
		Object:  "conversation.message.deleted",
		Deleted: true,
	}
}

// NewMessagesClearedResponse confirms a bulk delete.
func NewMessagesClearedResponse(conversationID string, deleted int64) *MessagesClearedResponse {
	return &MessagesClearedResponse{
		ConversationID: conversationID,
		Object:         "conversation.messages.cleared",
		Deleted:        deleted,
	}
}

// NewMessageStatsResponse maps message stream aggregates.
func NewMessageStatsResponse(conversationID string, stats *conversation.MessageStats) *MessageStatsResponse {
	return &MessageStatsResponse{
		ConversationID:    conversationID,
		Object:            "conversation.message_stats",
		TotalMessages:     stats.TotalMessages,
		UserMessages:      stats.UserMessages,
		AssistantMessages: stats.AssistantMessages,
		TotalTokens:       stats.TotalTokens,
		AverageLatencyMs:  stats.AverageLatencyMs,
	}
}

func mapMessages(msgs []*conversation.Message) []MessageResponse {
	return functional.Map(msgs, func(msg *conversation.Message) MessageResponse {
		return *NewMessageResponse(msg)
	})
}
