package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
}

// Conversation represents the database schema for conversations.
type Conversation struct {
	BaseModel
	PublicID   string                          `gorm:"type:varchar(50);uniqueIndex:ux_conversations_public_id;not null"`
	Title      string                          `gorm:"type:varchar(255);not null;default:'New Conversation'"`
	UserID     uint                            `gorm:"index:idx_conversation_user_status;not null"`
	User       User                            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Status     conversation.ConversationStatus `gorm:"type:varchar(20);index:idx_conversation_user_status;not null;default:'active'"`
	Summary    *string                         `gorm:"type:text"`
	TokenCount int64                           `gorm:"not null;default:0"`
	Metadata   datatypes.JSON                  `gorm:"type:jsonb"`
	ArchivedAt *time.Time                      `gorm:"type:timestamptz"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// NewSchemaConversation creates a database schema from a domain conversation.
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	entity := &Conversation{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		PublicID:   c.PublicID,
		Title:      c.Title,
		UserID:     c.UserID,
		Status:     c.Status,
		Summary:    c.Summary,
		TokenCount: c.TokenCount,
		ArchivedAt: c.ArchivedAt,
	}
	if c.Metadata != nil {
		entity.Metadata = datatypes.JSON([]byte(*c.Metadata))
	}
	return entity
}

// EtoD converts the database schema to a domain conversation.
func (c *Conversation) EtoD() *conversation.Conversation {
	conv := &conversation.Conversation{
		ID:         c.ID,
		PublicID:   c.PublicID,
		Title:      c.Title,
		UserID:     c.UserID,
		Status:     c.Status,
		Summary:    c.Summary,
		TokenCount: c.TokenCount,
		ArchivedAt: c.ArchivedAt,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if len(c.Metadata) > 0 {
		metadata := string(c.Metadata)
		conv.Metadata = &metadata
	}
	return conv
}
