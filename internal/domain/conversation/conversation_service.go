package conversation

import (
	"context"
	"time"

	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/idgen"
	"chathistory-server/internal/utils/platformerrors"
)

// maxIDAttempts bounds public ID regeneration on unique collisions.
const maxIDAttempts = 3

// ConversationService coordinates conversation records with their message
// streams. Every owner-facing lookup is scoped to the owner, so a foreign
// conversation is indistinguishable from a missing one.
type ConversationService struct {
	conversations ConversationRepository
	messages      MessageRepository
	tx            TxRunner
	validator     *Validator
}

// NewConversationService creates a conversation service.
func NewConversationService(
	conversations ConversationRepository,
	messages MessageRepository,
	tx TxRunner,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		tx:            tx,
		validator:     NewValidator(nil),
	}
}

// CreateConversationInput represents the input for creating a conversation.
type CreateConversationInput struct {
	UserID   uint
	Title    *string
	Metadata *string
}

// CreateConversation creates a conversation for the owner, generating its
// public ID. On an ID collision the insert is retried with a fresh ID.
func (s *ConversationService) CreateConversation(ctx context.Context, input CreateConversationInput) (*View, error) {
	if input.Title != nil {
		if err := s.validator.ValidateTitle(*input.Title); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation title", err)
		}
	}
	if input.Metadata != nil {
		if err := s.validator.ValidateMetadata([]byte(*input.Metadata)); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation metadata", err)
		}
	}

	var conv *Conversation
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		publicID, err := idgen.NewConversationID()
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation ID")
		}

		conv = NewConversation(publicID, input.UserID, input.Title, input.Metadata)
		err = s.conversations.Create(ctx, conv)
		if err == nil {
			return &View{Conversation: conv}, nil
		}
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
		}
	}

	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "exhausted conversation ID generation attempts", nil)
}

// GetConversation returns the owner's conversation as a view. With
// includeMessages the full chronological stream is attached.
func (s *ConversationService) GetConversation(ctx context.Context, userID uint, publicID string, includeMessages bool) (*View, error) {
	conv, err := s.getOwned(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, conv, includeMessages)
}

// ListConversations pages through the owner's conversations, optionally
// filtered by status, each joined with message count and last message.
func (s *ConversationService) ListConversations(ctx context.Context, userID uint, status *ConversationStatus, pagination query.Pagination, sort query.Sort) (query.Page[*View], error) {
	var empty query.Page[*View]

	if status != nil {
		if err := s.validator.ValidateStatus(*status); err != nil {
			return empty, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid status filter", err)
		}
	}

	filter := ConversationFilter{UserID: &userID, Status: status}

	convs, err := s.conversations.FindByFilter(ctx, filter, &pagination, &sort)
	if err != nil {
		return empty, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	total, err := s.conversations.Count(ctx, filter)
	if err != nil {
		return empty, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count conversations")
	}

	views := make([]*View, 0, len(convs))
	for _, conv := range convs {
		view, err := s.buildView(ctx, conv, false)
		if err != nil {
			return empty, err
		}
		views = append(views, view)
	}

	return query.NewPage(views, total, pagination), nil
}

// SearchConversations matches the owner's conversations by title keyword,
// case-insensitively.
func (s *ConversationService) SearchConversations(ctx context.Context, userID uint, keyword string) ([]*View, error) {
	filter := ConversationFilter{UserID: &userID, TitleKeyword: &keyword}

	convs, err := s.conversations.FindByFilter(ctx, filter, nil, nil)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to search conversations")
	}

	views := make([]*View, 0, len(convs))
	for _, conv := range convs {
		view, err := s.buildView(ctx, conv, false)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// CountConversations counts the owner's conversations, optionally by status.
func (s *ConversationService) CountConversations(ctx context.Context, userID uint, status *ConversationStatus) (int64, error) {
	if status != nil {
		if err := s.validator.ValidateStatus(*status); err != nil {
			return 0, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid status filter", err)
		}
	}

	total, err := s.conversations.Count(ctx, ConversationFilter{UserID: &userID, Status: status})
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count conversations")
	}
	return total, nil
}

// UpdateConversation applies a partial update. Absent keys leave fields
// untouched; explicit nulls clear the title to its default and optional
// fields to nothing. Derived fields are not patchable. Every update, even an
// empty patch, advances updatedAt.
func (s *ConversationService) UpdateConversation(ctx context.Context, userID uint, publicID string, patch UpdatePatch) (*View, error) {
	conv, err := s.getOwned(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}

	if patch.Title.Set {
		title := DefaultTitle
		if !patch.Title.Null && patch.Title.Value != "" {
			if err := s.validator.ValidateTitle(patch.Title.Value); err != nil {
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation title", err)
			}
			title = patch.Title.Value
		}
		conv.Title = title
	}

	if patch.Status.Set {
		if patch.Status.Null {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "status cannot be null", nil)
		}
		if err := s.validator.ValidateStatus(patch.Status.Value); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation status", err)
		}
		if patch.Status.Value == ConversationStatusDeleted {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "conversations are deleted through the delete operation, not a status update", nil)
		}

		if conv.Status != patch.Status.Value {
			conv.Status = patch.Status.Value
			switch conv.Status {
			case ConversationStatusArchived:
				now := time.Now().UTC()
				conv.ArchivedAt = &now
			case ConversationStatusActive:
				conv.ArchivedAt = nil
			}
		}
	}

	if patch.Summary.Set {
		if patch.Summary.Null {
			conv.Summary = nil
		} else {
			if err := s.validator.ValidateSummary(patch.Summary.Value); err != nil {
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation summary", err)
			}
			summary := patch.Summary.Value
			conv.Summary = &summary
		}
	}

	if patch.Metadata.Set {
		if patch.Metadata.Null {
			conv.Metadata = nil
		} else {
			if err := s.validator.ValidateMetadata(patch.Metadata.Value); err != nil {
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation metadata", err)
			}
			metadata := string(patch.Metadata.Value)
			conv.Metadata = &metadata
		}
	}

	conv.UpdatedAt = time.Now().UTC()
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}

	return s.buildView(ctx, conv, false)
}

// ArchiveConversation marks the conversation archived. Archiving an already
// archived conversation is a no-op.
func (s *ConversationService) ArchiveConversation(ctx context.Context, userID uint, publicID string) (*View, error) {
	conv, err := s.getOwned(ctx, userID, publicID)
	if err != nil {
		return nil, err
	}

	if conv.Status != ConversationStatusArchived {
		now := time.Now().UTC()
		if err := s.conversations.Archive(ctx, conv.ID, now); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to archive conversation")
		}
		conv.Status = ConversationStatusArchived
		conv.ArchivedAt = &now
		conv.UpdatedAt = now
	}

	return s.buildView(ctx, conv, false)
}

// DeleteConversation removes the conversation and its whole message stream
// in one transaction.
func (s *ConversationService) DeleteConversation(ctx context.Context, userID uint, publicID string) error {
	conv, err := s.getOwned(ctx, userID, publicID)
	if err != nil {
		return err
	}

	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.messages.DeleteByConversation(txCtx, conv.ID); err != nil {
			return err
		}
		return s.conversations.Delete(txCtx, conv.ID)
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}
	return nil
}

// UpdateSummary replaces the conversation summary. This is an internal
// pipeline operation keyed by public ID without owner scoping; it is not
// exposed on the HTTP surface.
func (s *ConversationService) UpdateSummary(ctx context.Context, publicID, summary string) (*Conversation, error) {
	if err := s.validator.ValidateConversationID(publicID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation ID", err)
	}
	if err := s.validator.ValidateSummary(summary); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation summary", err)
	}

	conv, err := s.conversations.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to find conversation")
	}
	if conv == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "conversation not found", nil)
	}

	if err := s.conversations.UpdateSummary(ctx, conv.ID, summary); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation summary")
	}

	conv.Summary = &summary
	conv.UpdatedAt = time.Now().UTC()
	return conv, nil
}

// ReconcileTokenCounts repairs conversations whose stored token count has
// drifted from the sum over their messages, returning how many were fixed.
func (s *ConversationService) ReconcileTokenCounts(ctx context.Context) (int, error) {
	drifts, err := s.conversations.FindTokenDrift(ctx)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to detect token count drift")
	}

	repaired := 0
	for _, drift := range drifts {
		if err := s.conversations.RepairTokenCount(ctx, drift.ConversationID); err != nil {
			return repaired, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to repair token count")
		}
		repaired++
	}
	return repaired, nil
}

// getOwned resolves the owner's conversation, mapping both a bad ID and any
// non-owned or missing row to the same not-found shape.
func (s *ConversationService) getOwned(ctx context.Context, userID uint, publicID string) (*Conversation, error) {
	return findOwned(ctx, s.conversations, s.validator, userID, publicID)
}

// buildView joins the conversation with its derived message data.
func (s *ConversationService) buildView(ctx context.Context, conv *Conversation, includeMessages bool) (*View, error) {
	count, err := s.messages.Count(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count messages")
	}

	view := &View{Conversation: conv, MessageCount: count}

	if includeMessages {
		msgs, err := s.messages.FindByConversation(ctx, conv.ID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load messages")
		}
		view.Messages = msgs
		if len(msgs) > 0 {
			view.LastMessage = msgs[len(msgs)-1]
		}
		return view, nil
	}

	last, err := s.messages.FindLast(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load last message")
	}
	view.LastMessage = last
	return view, nil
}
