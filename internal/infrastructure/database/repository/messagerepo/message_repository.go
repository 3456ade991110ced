package messagerepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/infrastructure/database/dbschema"
	"chathistory-server/internal/infrastructure/database/transaction"
	"chathistory-server/internal/utils/functional"
	"chathistory-server/internal/utils/platformerrors"
)

// orderChronological keeps equal-timestamp rows deterministic via the id.
const (
	orderChronological = "created_at ASC, id ASC"
	orderNewestFirst   = "created_at DESC, id DESC"
)

type MessageGormRepository struct {
	db *transaction.Database
}

var _ conversation.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) conversation.MessageRepository {
	return &MessageGormRepository{db}
}

// Create implements conversation.MessageRepository. A public ID collision
// surfaces as a conflict so the caller can regenerate.
func (repo *MessageGormRepository) Create(ctx context.Context, msg *conversation.Message) error {
	model := dbschema.NewSchemaMessage(msg)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "message public ID already exists", err)
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create message", err)
	}
	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	return nil
}

// FindByConversation implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindByConversation(ctx context.Context, conversationID uint) ([]*conversation.Message, error) {
	return repo.findOrdered(ctx, conversationID, orderChronological, func(tx *gorm.DB) *gorm.DB {
		return tx
	})
}

// FindByConversationPaged implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindByConversationPaged(ctx context.Context, conversationID uint, pagination query.Pagination) ([]*conversation.Message, error) {
	return repo.findOrdered(ctx, conversationID, orderChronological, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(pagination.Offset()).Limit(pagination.Size)
	})
}

// FindRecent implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindRecent(ctx context.Context, conversationID uint, limit int) ([]*conversation.Message, error) {
	return repo.findOrdered(ctx, conversationID, orderNewestFirst, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
}

// FindLast implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindLast(ctx context.Context, conversationID uint) (*conversation.Message, error) {
	var entity dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order(orderNewestFirst).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find last message", err)
	}
	return repo.toDomain(ctx, &entity)
}

// FindByPublicID implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*conversation.Message, error) {
	var entity dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ? AND public_id = ?", conversationID, publicID).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find message by public ID", err)
	}
	return repo.toDomain(ctx, &entity)
}

// FindByRole implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindByRole(ctx context.Context, conversationID uint, role conversation.MessageRole) ([]*conversation.Message, error) {
	return repo.findOrdered(ctx, conversationID, orderChronological, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("role = ?", string(role))
	})
}

// FindByParent implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindByParent(ctx context.Context, conversationID uint, parentID uint) ([]*conversation.Message, error) {
	return repo.findOrdered(ctx, conversationID, orderChronological, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("parent_message_id = ?", parentID)
	})
}

// SearchContent implements conversation.MessageRepository.
func (repo *MessageGormRepository) SearchContent(ctx context.Context, conversationID uint, keyword string) ([]*conversation.Message, error) {
	return repo.findOrdered(ctx, conversationID, orderChronological, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("content ILIKE ?", "%"+keyword+"%")
	})
}

// FindSince implements conversation.MessageRepository.
func (repo *MessageGormRepository) FindSince(ctx context.Context, conversationID uint, since time.Time) ([]*conversation.Message, error) {
	return repo.findOrdered(ctx, conversationID, orderChronological, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_at > ?", since)
	})
}

// Delete implements conversation.MessageRepository.
func (repo *MessageGormRepository) Delete(ctx context.Context, id uint) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&dbschema.Message{}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete message", err)
	}
	return nil
}

// DeleteByConversation implements conversation.MessageRepository.
func (repo *MessageGormRepository) DeleteByConversation(ctx context.Context, conversationID uint) (int64, error) {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&dbschema.Message{})
	if result.Error != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete conversation messages", result.Error)
	}
	return result.RowsAffected, nil
}

// Count implements conversation.MessageRepository.
func (repo *MessageGormRepository) Count(ctx context.Context, conversationID uint) (int64, error) {
	var total int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to count messages", err)
	}
	return total, nil
}

// CountByRole implements conversation.MessageRepository.
func (repo *MessageGormRepository) CountByRole(ctx context.Context, conversationID uint, role conversation.MessageRole) (int64, error) {
	var total int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ? AND role = ?", conversationID, string(role)).
		Count(&total).Error
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to count messages by role", err)
	}
	return total, nil
}

// SumTotalTokens implements conversation.MessageRepository.
func (repo *MessageGormRepository) SumTotalTokens(ctx context.Context, conversationID uint) (int64, error) {
	var sum int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ?", conversationID).
		Select("COALESCE(SUM(total_tokens), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to sum message tokens", err)
	}
	return sum, nil
}

// AverageLatency implements conversation.MessageRepository. Messages without
// a recorded latency are left out of the average.
func (repo *MessageGormRepository) AverageLatency(ctx context.Context, conversationID uint, role conversation.MessageRole) (float64, error) {
	var avg float64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ? AND role = ? AND latency_ms IS NOT NULL", conversationID, string(role)).
		Select("COALESCE(AVG(latency_ms), 0)").
		Scan(&avg).Error
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to average message latency", err)
	}
	return avg, nil
}

func (repo *MessageGormRepository) findOrdered(ctx context.Context, conversationID uint, order string, refine func(*gorm.DB) *gorm.DB) ([]*conversation.Message, error) {
	tx := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ?", conversationID)
	tx = refine(tx).Order(order)

	var rows []*dbschema.Message
	if err := tx.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find messages", err)
	}

	msgs := functional.Map(rows, func(item *dbschema.Message) *conversation.Message {
		return item.EtoD()
	})
	return msgs, repo.resolveParents(ctx, msgs)
}

// toDomain converts one row, resolving its parent public ID.
func (repo *MessageGormRepository) toDomain(ctx context.Context, entity *dbschema.Message) (*conversation.Message, error) {
	msg := entity.EtoD()
	if err := repo.resolveParents(ctx, []*conversation.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// resolveParents fills ParentPublicID for messages that reference a parent.
func (repo *MessageGormRepository) resolveParents(ctx context.Context, msgs []*conversation.Message) error {
	var parentIDs []uint
	for _, msg := range msgs {
		if msg.ParentMessageID != nil {
			parentIDs = append(parentIDs, *msg.ParentMessageID)
		}
	}
	if len(parentIDs) == 0 {
		return nil
	}

	type row struct {
		ID       uint
		PublicID string
	}
	var rows []row
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("id IN ?", parentIDs).
		Select("id", "public_id").
		Scan(&rows).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to resolve parent messages", err)
	}

	byID := make(map[uint]string, len(rows))
	for _, r := range rows {
		byID[r.ID] = r.PublicID
	}
	for _, msg := range msgs {
		if msg.ParentMessageID != nil {
			if publicID, ok := byID[*msg.ParentMessageID]; ok {
				msg.ParentPublicID = &publicID
			}
		}
	}
	return nil
}
