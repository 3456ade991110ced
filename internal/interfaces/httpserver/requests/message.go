package requests

import (
	"encoding/json"
	"time"
)

// CreateMessageRequest is the body for appending a message to a conversation.
type CreateMessageRequest struct {
	Role             string           `json:"role" binding:"required,messagerole"`
	Content          string           `json:"content" binding:"required"`
	Provider         *string          `json:"provider" binding:"omitempty,max=100"`
	Model            *string          `json:"model" binding:"omitempty,max=100"`
	PromptTokens     *int             `json:"prompt_tokens" binding:"omitempty,min=0"`
	CompletionTokens *int             `json:"completion_tokens" binding:"omitempty,min=0"`
	TotalTokens      *int             `json:"total_tokens" binding:"omitempty,min=0"`
	LatencyMs        *int64           `json:"latency_ms" binding:"omitempty,min=0"`
	ParentID         *string          `json:"parent_id"`
	Metadata         *json.RawMessage `json:"metadata"`
}

// RecentMessagesQueryParams bounds the recent-message listing.
type RecentMessagesQueryParams struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// MessagesSinceQueryParams selects messages created strictly after a point in time.
type MessagesSinceQueryParams struct {
	Since time.Time `form:"since" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// SearchMessagesQueryParams drives content search within a conversation.
type SearchMessagesQueryParams struct {
	Q string `form:"q" binding:"required"`
}

// RawMessageString converts an optional raw JSON document into the string
// form the domain layer stores.
func RawMessageString(raw *json.RawMessage) *string {
	if raw == nil || len(*raw) == 0 {
		return nil
	}
	s := string(*raw)
	return &s
}
