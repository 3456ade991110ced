// Package messagehandler adapts message operations for transport.
package messagehandler

import (
	"context"
	"time"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/infrastructure/metrics"
	"chathistory-server/internal/interfaces/httpserver/requests"
	"chathistory-server/internal/interfaces/httpserver/responses"
	"chathistory-server/internal/utils/platformerrors"
)

// MessageHandler handles message-related HTTP requests.
type MessageHandler struct {
	messageService *conversation.MessageService
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messageService *conversation.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// AppendMessage appends a message to a conversation.
func (h *MessageHandler) AppendMessage(
	ctx context.Context,
	userID uint,
	conversationID string,
	req requests.CreateMessageRequest,
) (*responses.MessageResponse, error) {
	input := conversation.AppendMessageInput{
		Role:             conversation.MessageRole(req.Role),
		Content:          req.Content,
		Provider:         req.Provider,
		Model:            req.Model,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      req.TotalTokens,
		LatencyMs:        req.LatencyMs,
		ParentPublicID:   req.ParentID,
		Metadata:         requests.RawMessageString(req.Metadata),
	}

	msg, err := h.messageService.AppendMessage(ctx, userID, conversationID, input)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to append message")
	}

	tokens := 0
	if msg.TotalTokens != nil {
		tokens = *msg.TotalTokens
	}
	metrics.RecordMessageAppended(string(msg.Role), tokens)

	return responses.NewMessageResponse(msg), nil
}

// GetMessage retrieves a single message within a conversation.
func (h *MessageHandler) GetMessage(
	ctx context.Context,
	userID uint,
	conversationID, messageID string,
) (*responses.MessageResponse, error) {
	msg, err := h.messageService.GetMessage(ctx, userID, conversationID, messageID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get message")
	}

	return responses.NewMessageResponse(msg), nil
}

// ListMessages lists a conversation's messages in chronological order.
func (h *MessageHandler) ListMessages(
	ctx context.Context,
	userID uint,
	conversationID string,
) (*responses.MessageListResponse, error) {
	msgs, err := h.messageService.ListMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list messages")
	}

	return responses.NewMessageListResponse(msgs), nil
}

// ListMessagesPaged lists a conversation's messages a page at a time.
func (h *MessageHandler) ListMessagesPaged(
	ctx context.Context,
	userID uint,
	conversationID string,
	pagination query.Pagination,
) (*responses.MessagePageResponse, error) {
	page, err := h.messageService.ListMessagesPaged(ctx, userID, conversationID, pagination)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list messages")
	}

	return responses.NewMessagePageResponse(page), nil
}

// ListRecentMessages lists the newest messages first, bounded by limit.
func (h *MessageHandler) ListRecentMessages(
	ctx context.Context,
	userID uint,
	conversationID string,
	limit int,
) (*responses.MessageListResponse, error) {
	msgs, err := h.messageService.ListRecentMessages(ctx, userID, conversationID, limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list recent messages")
	}

	return responses.NewMessageListResponse(msgs), nil
}

// LastMessage returns the newest message in a conversation. A conversation
// without messages yields a nil response, rendered as a null body.
func (h *MessageHandler) LastMessage(
	ctx context.Context,
	userID uint,
	conversationID string,
) (*responses.MessageResponse, error) {
	msg, err := h.messageService.LastMessage(ctx, userID, conversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get last message")
	}
	if msg == nil {
		return nil, nil
	}

	return responses.NewMessageResponse(msg), nil
}

// ListMessagesByRole lists a conversation's messages for one role.
func (h *MessageHandler) ListMessagesByRole(
	ctx context.Context,
	userID uint,
	conversationID string,
	role conversation.MessageRole,
) (*responses.MessageListResponse, error) {
	msgs, err := h.messageService.ListMessagesByRole(ctx, userID, conversationID, role)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list messages by role")
	}

	return responses.NewMessageListResponse(msgs), nil
}

// ListReplies lists the direct replies to a message.
func (h *MessageHandler) ListReplies(
	ctx context.Context,
	userID uint,
	conversationID, parentID string,
) (*responses.MessageListResponse, error) {
	msgs, err := h.messageService.ListReplies(ctx, userID, conversationID, parentID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list replies")
	}

	return responses.NewMessageListResponse(msgs), nil
}

// SearchMessages finds messages by content keyword within a conversation.
func (h *MessageHandler) SearchMessages(
	ctx context.Context,
	userID uint,
	conversationID, keyword string,
) (*responses.MessageListResponse, error) {
	msgs, err := h.messageService.SearchMessages(ctx, userID, conversationID, keyword)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to search messages")
	}

	return responses.NewMessageListResponse(msgs), nil
}

// ListMessagesSince lists messages created at or after the given time.
func (h *MessageHandler) ListMessagesSince(
	ctx context.Context,
	userID uint,
	conversationID string,
	since time.Time,
) (*responses.MessageListResponse, error) {
	msgs, err := h.messageService.ListMessagesSince(ctx, userID, conversationID, since)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list messages since")
	}

	return responses.NewMessageListResponse(msgs), nil
}

// DeleteMessage removes one message and returns its tokens to the conversation total.
func (h *MessageHandler) DeleteMessage(
	ctx context.Context,
	userID uint,
	conversationID, messageID string,
) (*responses.MessageDeletedResponse, error) {
	if err := h.messageService.DeleteMessage(ctx, userID, conversationID, messageID); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to delete message")
	}

	return responses.NewMessageDeletedResponse(messageID), nil
}

// DeleteAllMessages clears a conversation's message stream.
func (h *MessageHandler) DeleteAllMessages(
	ctx context.Context,
	userID uint,
	conversationID string,
) (*responses.MessagesClearedResponse, error) {
	deleted, err := h.messageService.DeleteAllMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to delete messages")
	}

	return responses.NewMessagesClearedResponse(conversationID, deleted), nil
}

// Stats aggregates a conversation's message stream.
func (h *MessageHandler) Stats(
	ctx context.Context,
	userID uint,
	conversationID string,
) (*responses.MessageStatsResponse, error) {
	stats, err := h.messageService.Stats(ctx, userID, conversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get message stats")
	}

	return responses.NewMessageStatsResponse(conversationID, stats), nil
}
