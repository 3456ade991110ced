// Package conversationhandler adapts conversation operations for transport.
package conversationhandler

import (
	"context"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/infrastructure/metrics"
	"chathistory-server/internal/interfaces/httpserver/requests"
	"chathistory-server/internal/interfaces/httpserver/responses"
	"chathistory-server/internal/utils/platformerrors"
)

// ConversationHandler handles conversation-related HTTP requests.
type ConversationHandler struct {
	conversationService *conversation.ConversationService
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(conversationService *conversation.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// CreateConversation creates a new conversation owned by userID.
func (h *ConversationHandler) CreateConversation(
	ctx context.Context,
	userID uint,
	req requests.CreateConversationRequest,
) (*responses.ConversationResponse, error) {
	input := conversation.CreateConversationInput{
		UserID:   userID,
		Title:    req.Title,
		Metadata: requests.RawMessageString(req.Metadata),
	}

	view, err := h.conversationService.CreateConversation(ctx, input)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to create conversation")
	}

	metrics.ConversationsCreatedTotal.Inc()
	return responses.NewConversationResponse(view), nil
}

// GetConversation retrieves a conversation, optionally with its messages.
func (h *ConversationHandler) GetConversation(
	ctx context.Context,
	userID uint,
	conversationID string,
	includeMessages bool,
) (*responses.ConversationResponse, error) {
	view, err := h.conversationService.GetConversation(ctx, userID, conversationID, includeMessages)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}

	return responses.NewConversationResponse(view), nil
}

// ListConversations lists the user's conversations with optional status filtering.
func (h *ConversationHandler) ListConversations(
	ctx context.Context,
	userID uint,
	status *conversation.ConversationStatus,
	pagination query.Pagination,
	sort query.Sort,
) (*responses.ConversationListResponse, error) {
	page, err := h.conversationService.ListConversations(ctx, userID, status, pagination, sort)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list conversations")
	}

	return responses.NewConversationListResponse(page), nil
}

// SearchConversations finds the user's conversations by title keyword.
func (h *ConversationHandler) SearchConversations(
	ctx context.Context,
	userID uint,
	keyword string,
) ([]responses.ConversationResponse, error) {
	views, err := h.conversationService.SearchConversations(ctx, userID, keyword)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to search conversations")
	}

	results := make([]responses.ConversationResponse, 0, len(views))
	for _, view := range views {
		results = append(results, *responses.NewConversationResponse(view))
	}
	return results, nil
}

// UpdateConversation applies a partial update to a conversation.
func (h *ConversationHandler) UpdateConversation(
	ctx context.Context,
	userID uint,
	conversationID string,
	patch conversation.UpdatePatch,
) (*responses.ConversationResponse, error) {
	view, err := h.conversationService.UpdateConversation(ctx, userID, conversationID, patch)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to update conversation")
	}

	return responses.NewConversationResponse(view), nil
}

// ArchiveConversation archives a conversation, idempotently.
func (h *ConversationHandler) ArchiveConversation(
	ctx context.Context,
	userID uint,
	conversationID string,
) (*responses.ConversationResponse, error) {
	view, err := h.conversationService.ArchiveConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to archive conversation")
	}

	return responses.NewConversationResponse(view), nil
}

// DeleteConversation deletes a conversation together with its messages.
func (h *ConversationHandler) DeleteConversation(
	ctx context.Context,
	userID uint,
	conversationID string,
) (*responses.ConversationDeletedResponse, error) {
	if err := h.conversationService.DeleteConversation(ctx, userID, conversationID); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to delete conversation")
	}

	return responses.NewConversationDeletedResponse(conversationID), nil
}
