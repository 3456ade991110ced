package conversation

import (
	"context"
	"time"

	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/utils/idgen"
	"chathistory-server/internal/utils/platformerrors"
)

// MessageService handles the message stream of a conversation. Appends and
// removals keep the parent conversation's token count and updated_at in step
// within a single transaction.
type MessageService struct {
	messages      MessageRepository
	conversations ConversationRepository
	tx            TxRunner
	validator     *Validator
}

// NewMessageService creates a message service.
func NewMessageService(
	messages MessageRepository,
	conversations ConversationRepository,
	tx TxRunner,
) *MessageService {
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		tx:            tx,
		validator:     NewValidator(nil),
	}
}

// AppendMessageInput represents the input for appending a message.
type AppendMessageInput struct {
	Role             MessageRole
	Content          string
	Provider         *string
	Model            *string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	LatencyMs        *int64
	ParentPublicID   *string
	Metadata         *string
}

// AppendMessage appends a message to the owner's conversation. The insert
// and the token accumulation commit together, so a failed append leaves the
// conversation untouched. A missing total token count accumulates zero; the
// parent's updated_at still advances.
func (s *MessageService) AppendMessage(ctx context.Context, userID uint, conversationPublicID string, input AppendMessageInput) (*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ConversationID:   conv.ID,
		Role:             input.Role,
		Content:          input.Content,
		Provider:         input.Provider,
		Model:            input.Model,
		PromptTokens:     input.PromptTokens,
		CompletionTokens: input.CompletionTokens,
		TotalTokens:      input.TotalTokens,
		LatencyMs:        input.LatencyMs,
		Metadata:         input.Metadata,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.validator.ValidateMessage(msg); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message validation failed", err)
	}

	if input.ParentPublicID != nil {
		if err := s.validator.ValidateMessageID(*input.ParentPublicID); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid parent message ID", err)
		}
		parent, err := s.messages.FindByPublicID(ctx, conv.ID, *input.ParentPublicID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to find parent message")
		}
		if parent == nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "parent message not found", nil)
		}
		msg.ParentMessageID = &parent.ID
		msg.ParentPublicID = &parent.PublicID
	}

	// A latency reading marks the message as processed; token counts alone
	// keep it a placeholder.
	if input.LatencyMs != nil {
		processedAt := time.Now().UTC()
		msg.ProcessedAt = &processedAt
	}

	var delta int64
	if input.TotalTokens != nil {
		delta = int64(*input.TotalTokens)
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		publicID, err := idgen.NewMessageID()
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ID")
		}
		msg.PublicID = publicID

		err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
			if err := s.messages.Create(txCtx, msg); err != nil {
				return err
			}
			return s.conversations.AccumulateTokens(txCtx, conv.ID, delta)
		})
		if err == nil {
			return msg, nil
		}
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append message")
		}
	}

	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "exhausted message ID generation attempts", nil)
}

// GetMessage returns one message of the owner's conversation.
func (s *MessageService) GetMessage(ctx context.Context, userID uint, conversationPublicID, messagePublicID string) (*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}
	return s.getMessage(ctx, conv.ID, messagePublicID)
}

// ListMessages returns the full stream in chronological order.
func (s *MessageService) ListMessages(ctx context.Context, userID uint, conversationPublicID string) ([]*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindByConversation(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return msgs, nil
}

// ListMessagesPaged pages through the stream in chronological order.
func (s *MessageService) ListMessagesPaged(ctx context.Context, userID uint, conversationPublicID string, pagination query.Pagination) (query.Page[*Message], error) {
	var empty query.Page[*Message]

	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return empty, err
	}

	msgs, err := s.messages.FindByConversationPaged(ctx, conv.ID, pagination)
	if err != nil {
		return empty, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	total, err := s.messages.Count(ctx, conv.ID)
	if err != nil {
		return empty, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count messages")
	}

	return query.NewPage(msgs, total, pagination), nil
}

// ListRecentMessages returns up to limit messages, newest first. The limit
// is clamped the same way page sizes are.
func (s *MessageService) ListRecentMessages(ctx context.Context, userID uint, conversationPublicID string, limit int) ([]*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = query.DefaultPageSize
	}
	if limit > query.MaxPageSize {
		limit = query.MaxPageSize
	}

	msgs, err := s.messages.FindRecent(ctx, conv.ID, limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list recent messages")
	}
	return msgs, nil
}

// LastMessage returns the newest message of the owner's conversation, or nil
// when the conversation has none yet.
func (s *MessageService) LastMessage(ctx context.Context, userID uint, conversationPublicID string) (*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.FindLast(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load last message")
	}
	return msg, nil
}

// ListMessagesByRole filters the stream by role, in chronological order.
func (s *MessageService) ListMessagesByRole(ctx context.Context, userID uint, conversationPublicID string, role MessageRole) ([]*Message, error) {
	if !role.Valid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message role", nil)
	}

	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindByRole(ctx, conv.ID, role)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages by role")
	}
	return msgs, nil
}

// ListReplies returns the direct children of a message within the owner's
// conversation.
func (s *MessageService) ListReplies(ctx context.Context, userID uint, conversationPublicID, parentPublicID string) ([]*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	parent, err := s.getMessage(ctx, conv.ID, parentPublicID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindByParent(ctx, conv.ID, parent.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list replies")
	}
	return msgs, nil
}

// SearchMessages matches message content by keyword, case-insensitively.
func (s *MessageService) SearchMessages(ctx context.Context, userID uint, conversationPublicID, keyword string) ([]*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.SearchContent(ctx, conv.ID, keyword)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to search messages")
	}
	return msgs, nil
}

// ListMessagesSince returns messages created strictly after the given time,
// in chronological order.
func (s *MessageService) ListMessagesSince(ctx context.Context, userID uint, conversationPublicID string, since time.Time) ([]*Message, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindSince(ctx, conv.ID, since)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages since")
	}
	return msgs, nil
}

// DeleteMessage removes one message. The conversation's token count gives
// back the message's contribution in the same transaction.
func (s *MessageService) DeleteMessage(ctx context.Context, userID uint, conversationPublicID, messagePublicID string) error {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return err
	}

	msg, err := s.getMessage(ctx, conv.ID, messagePublicID)
	if err != nil {
		return err
	}

	var delta int64
	if msg.TotalTokens != nil {
		delta = -int64(*msg.TotalTokens)
	}

	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.messages.Delete(txCtx, msg.ID); err != nil {
			return err
		}
		return s.conversations.AccumulateTokens(txCtx, conv.ID, delta)
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete message")
	}
	return nil
}

// DeleteAllMessages clears the whole stream and resets the token count,
// returning the number of messages removed. The conversation itself stays.
func (s *MessageService) DeleteAllMessages(ctx context.Context, userID uint, conversationPublicID string) (int64, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return 0, err
	}

	var deleted int64
	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		sum, err := s.messages.SumTotalTokens(txCtx, conv.ID)
		if err != nil {
			return err
		}
		deleted, err = s.messages.DeleteByConversation(txCtx, conv.ID)
		if err != nil {
			return err
		}
		return s.conversations.AccumulateTokens(txCtx, conv.ID, -sum)
	})
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete messages")
	}
	return deleted, nil
}

// Stats aggregates the conversation's message stream.
func (s *MessageService) Stats(ctx context.Context, userID uint, conversationPublicID string) (*MessageStats, error) {
	conv, err := findOwned(ctx, s.conversations, s.validator, userID, conversationPublicID)
	if err != nil {
		return nil, err
	}

	total, err := s.messages.Count(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count messages")
	}
	userCount, err := s.messages.CountByRole(ctx, conv.ID, MessageRoleUser)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count user messages")
	}
	assistantCount, err := s.messages.CountByRole(ctx, conv.ID, MessageRoleAssistant)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count assistant messages")
	}
	tokens, err := s.messages.SumTotalTokens(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to sum message tokens")
	}
	latency, err := s.messages.AverageLatency(ctx, conv.ID, MessageRoleAssistant)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to average message latency")
	}

	return &MessageStats{
		TotalMessages:     total,
		UserMessages:      userCount,
		AssistantMessages: assistantCount,
		TotalTokens:       tokens,
		AverageLatencyMs:  latency,
	}, nil
}

// getMessage resolves a message by public ID within a known conversation.
func (s *MessageService) getMessage(ctx context.Context, conversationID uint, messagePublicID string) (*Message, error) {
	if err := s.validator.ValidateMessageID(messagePublicID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message ID", err)
	}

	msg, err := s.messages.FindByPublicID(ctx, conversationID, messagePublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to find message")
	}
	if msg == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "message not found", nil)
	}
	return msg, nil
}

// findOwned resolves the owner's conversation. Both a non-owned and a
// missing conversation come back as the same not-found error, so ownership
// is never disclosed.
func findOwned(ctx context.Context, repo ConversationRepository, v *Validator, userID uint, publicID string) (*Conversation, error) {
	if err := v.ValidateConversationID(publicID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation ID", err)
	}

	conv, err := repo.FindByOwnerAndPublicID(ctx, userID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to find conversation")
	}
	if conv == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "conversation not found", nil)
	}
	return conv, nil
}
