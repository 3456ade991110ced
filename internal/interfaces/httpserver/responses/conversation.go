package responses

import (
	"encoding/json"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/functional"
)

// ConversationResponse is the client-facing conversation representation.
type ConversationResponse struct {
	ID           string            `json:"id"`
	Object       string            `json:"object"`
	Title        string            `json:"title"`
	Status       string            `json:"status"`
	Summary      *string           `json:"summary,omitempty"`
	TokenCount   int64             `json:"token_count"`
	MessageCount int64             `json:"message_count"`
	Metadata     json.RawMessage   `json:"metadata,omitempty"`
	LastMessage  *MessageResponse  `json:"last_message,omitempty"`
	Messages     []MessageResponse `json:"messages,omitempty"`
	CreatedAt    int64             `json:"created_at"`
	UpdatedAt    int64             `json:"updated_at"`
	ArchivedAt   *int64            `json:"archived_at,omitempty"`
}

// ConversationListResponse is a page of conversations.
type ConversationListResponse struct {
	Object     string                 `json:"object"`
	Data       []ConversationResponse `json:"data"`
	Page       int                    `json:"page"`
	Size       int                    `json:"size"`
	TotalItems int64                  `json:"total_items"`
	TotalPages int                    `json:"total_pages"`
	HasMore    bool                   `json:"has_more"`
}

// ConversationDeletedResponse confirms a hard delete.
type ConversationDeletedResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// NewConversationResponse maps a conversation view to its response form.
func NewConversationResponse(view *conversation.View) *ConversationResponse {
	conv := view.Conversation
	response := &ConversationResponse{
		ID:           conv.PublicID,
		Object:       "conversation",
		Title:        conv.Title,
		Status:       string(conv.Status),
		Summary:      conv.Summary,
		TokenCount:   conv.TokenCount,
		MessageCount: view.MessageCount,
		Metadata:     rawMetadata(conv.Metadata),
		CreatedAt:    conv.CreatedAt.Unix(),
		UpdatedAt:    conv.UpdatedAt.Unix(),
	}
	if conv.ArchivedAt != nil {
		archived := conv.ArchivedAt.Unix()
		response.ArchivedAt = &archived
	}
	if view.LastMessage != nil {
		response.LastMessage = NewMessageResponse(view.LastMessage)
	}
	if len(view.Messages) > 0 {
		response.Messages = functional.Map(view.Messages, func(msg *conversation.Message) MessageResponse {
			return *NewMessageResponse(msg)
		})
	}
	return response
}

// NewConversationListResponse maps a page of conversation views.
func NewConversationListResponse(page query.Page[*conversation.View]) *ConversationListResponse {
	return &ConversationListResponse{
		Object: "list",
		Data: functional.Map(page.Items, func(view *conversation.View) ConversationResponse {
			return *NewConversationResponse(view)
		}),
		Page:       page.Page,
		Size:       page.Size,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
		HasMore:    page.Page+1 < page.TotalPages,
	}
}

// NewConversationDeletedResponse confirms deletion of publicID.
func NewConversationDeletedResponse(publicID string) *ConversationDeletedResponse {
	return &ConversationDeletedResponse{
		ID:      publicID,
		Object:  "conversation.deleted",
		Deleted: true,
	}
}

func rawMetadata(metadata *string) json.RawMessage {
	if metadata == nil {
		return nil
	}
	return json.RawMessage(*metadata)
}
