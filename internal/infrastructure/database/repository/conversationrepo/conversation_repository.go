package conversationrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/domain/query"
	"chathistory-server/internal/infrastructure/database"
	"chathistory-server/internal/infrastructure/database/dbschema"
	"chathistory-server/internal/infrastructure/database/transaction"
	"chathistory-server/internal/utils/functional"
	"chathistory-server/internal/utils/platformerrors"
)

type ConversationGormRepository struct {
	db *transaction.Database
}

var _ conversation.ConversationRepository = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database) conversation.ConversationRepository {
	return &ConversationGormRepository{db}
}

// Create implements conversation.ConversationRepository. A public ID
// collision surfaces as a conflict so the caller can regenerate.
func (repo *ConversationGormRepository) Create(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "conversation public ID already exists", err)
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create conversation", err)
	}
	conv.ID = model.ID
	conv.CreatedAt = model.CreatedAt
	conv.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByFilter implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) FindByFilter(ctx context.Context, filter conversation.ConversationFilter, pagination *query.Pagination, sort *query.Sort) ([]*conversation.Conversation, error) {
	tx := repo.applyFilter(repo.db.GetTx(ctx).WithContext(ctx), filter)

	s := query.DefaultSort()
	if sort != nil {
		s = *sort
	}
	tx = tx.Order(s.OrderClause())

	if pagination != nil {
		tx = tx.Offset(pagination.Offset()).Limit(pagination.Size)
	}

	var rows []*dbschema.Conversation
	if err := tx.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find conversations", err)
	}

	return functional.Map(rows, func(item *dbschema.Conversation) *conversation.Conversation {
		return item.EtoD()
	}), nil
}

// Count implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) Count(ctx context.Context, filter conversation.ConversationFilter) (int64, error) {
	var total int64
	tx := repo.applyFilter(repo.db.GetTx(ctx).WithContext(ctx).Model(&dbschema.Conversation{}), filter)
	if err := tx.Count(&total).Error; err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to count conversations", err)
	}
	return total, nil
}

// FindByID implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) FindByID(ctx context.Context, id uint) (*conversation.Conversation, error) {
	return repo.findOne(ctx, conversation.ConversationFilter{ID: &id}, "failed to find conversation by ID")
}

// FindByPublicID implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) FindByPublicID(ctx context.Context, publicID string) (*conversation.Conversation, error) {
	return repo.findOne(ctx, conversation.ConversationFilter{PublicID: &publicID}, "failed to find conversation by public ID")
}

// FindByOwnerAndPublicID implements conversation.ConversationRepository. The
// owner is part of the predicate, so a foreign conversation never comes back.
func (repo *ConversationGormRepository) FindByOwnerAndPublicID(ctx context.Context, userID uint, publicID string) (*conversation.Conversation, error) {
	return repo.findOne(ctx, conversation.ConversationFilter{UserID: &userID, PublicID: &publicID}, "failed to find conversation by owner")
}

// Update implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) Update(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]any{
			"title":       model.Title,
			"status":      model.Status,
			"summary":     model.Summary,
			"metadata":    model.Metadata,
			"archived_at": model.ArchivedAt,
			"updated_at":  model.UpdatedAt,
		}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update conversation", err)
	}
	return nil
}

// UpdateSummary implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) UpdateSummary(ctx context.Context, id uint, summary string) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"summary":    summary,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update conversation summary", err)
	}
	return nil
}

// Archive implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) Archive(ctx context.Context, id uint, archivedAt time.Time) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      conversation.ConversationStatusArchived,
			"archived_at": archivedAt,
			"updated_at":  archivedAt,
		}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to archive conversation", err)
	}
	return nil
}

// Delete implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) Delete(ctx context.Context, id uint) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&dbschema.Conversation{}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete conversation", err)
	}
	return nil
}

// AccumulateTokens implements conversation.ConversationRepository. The
// increment happens inside the database, so concurrent appenders never lose
// an update.
func (repo *ConversationGormRepository) AccumulateTokens(ctx context.Context, id uint, delta int64) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"token_count": gorm.Expr("token_count + ?", delta),
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to accumulate conversation tokens", err)
	}
	return nil
}

// RepairTokenCount implements conversation.ConversationRepository. The fresh
// aggregate is computed inside the same statement, never from a stale read.
func (repo *ConversationGormRepository) RepairTokenCount(ctx context.Context, id uint) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).Exec(`
		UPDATE `+database.SchemaName+`.conversations c
		SET token_count = (
			SELECT COALESCE(SUM(m.total_tokens), 0)
			FROM `+database.SchemaName+`.messages m
			WHERE m.conversation_id = c.id
		)
		WHERE c.id = ?`, id).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to repair conversation token count", err)
	}
	return nil
}

// FindTokenDrift implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) FindTokenDrift(ctx context.Context) ([]conversation.TokenDrift, error) {
	var drifts []conversation.TokenDrift
	err := repo.db.GetTx(ctx).WithContext(ctx).Raw(`
		SELECT c.id AS conversation_id,
		       c.token_count AS token_count,
		       COALESCE(SUM(m.total_tokens), 0) AS message_tokens
		FROM `+database.SchemaName+`.conversations c
		LEFT JOIN `+database.SchemaName+`.messages m ON m.conversation_id = c.id
		GROUP BY c.id, c.token_count
		HAVING c.token_count <> COALESCE(SUM(m.total_tokens), 0)`).
		Scan(&drifts).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to detect token count drift", err)
	}
	return drifts, nil
}

func (repo *ConversationGormRepository) findOne(ctx context.Context, filter conversation.ConversationFilter, failure string) (*conversation.Conversation, error) {
	var entity dbschema.Conversation
	err := repo.applyFilter(repo.db.GetTx(ctx).WithContext(ctx), filter).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, failure, err)
	}
	return entity.EtoD(), nil
}

func (repo *ConversationGormRepository) applyFilter(tx *gorm.DB, filter conversation.ConversationFilter) *gorm.DB {
	if filter.ID != nil {
		tx = tx.Where("id = ?", *filter.ID)
	}
	if filter.PublicID != nil {
		tx = tx.Where("public_id = ?", *filter.PublicID)
	}
	if filter.UserID != nil {
		tx = tx.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		tx = tx.Where("status = ?", *filter.Status)
	}
	if filter.TitleKeyword != nil {
		tx = tx.Where("title ILIKE ?", "%"+*filter.TitleKeyword+"%")
	}
	return tx
}
