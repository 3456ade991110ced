package requests

import (
	"encoding/json"
)

// CreateConversationRequest is the body for creating a conversation.
type CreateConversationRequest struct {
	Title    *string          `json:"title" binding:"omitempty,max=255"`
	Metadata *json.RawMessage `json:"metadata"`
}

// ListConversationsQueryParams filters the conversation listing.
type ListConversationsQueryParams struct {
	Status *string `form:"status" binding:"omitempty,conversationstatus"`
}

// SearchConversationsQueryParams drives title keyword search.
type SearchConversationsQueryParams struct {
	Q string `form:"q" binding:"required"`
}

// GetConversationQueryParams toggles message inclusion on reads.
type GetConversationQueryParams struct {
	IncludeMessages bool `form:"include_messages"`
}
