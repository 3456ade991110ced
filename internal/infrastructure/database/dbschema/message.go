package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"chathistory-server/internal/domain/conversation"
	"chathistory-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Message represents the database schema for conversation messages. Rows are
// append-only; there is no updated_at column.
type Message struct {
	ID               uint         `gorm:"primarykey"`
	PublicID         string       `gorm:"type:varchar(50);uniqueIndex:ux_messages_public_id;not null"`
	ConversationID   uint         `gorm:"index:idx_message_conversation_created,priority:1;index:idx_message_conversation_role;not null"`
	Conversation     Conversation `gorm:"foreignKey:ConversationID"`
	Role             string       `gorm:"type:varchar(20);index:idx_message_conversation_role;not null"`
	Content          string       `gorm:"type:text;not null"`
	Provider         *string      `gorm:"type:varchar(100)"`
	Model            *string      `gorm:"type:varchar(100)"`
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	LatencyMs        *int64
	ParentMessageID  *uint          `gorm:"index:idx_message_parent"`
	Metadata         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"index:idx_message_conversation_created,priority:2"`
	ProcessedAt      *time.Time     `gorm:"type:timestamptz"`
}

// NewSchemaMessage creates a database schema from a domain message.
func NewSchemaMessage(m *conversation.Message) *Message {
	entity := &Message{
		ID:               m.ID,
		PublicID:         m.PublicID,
		ConversationID:   m.ConversationID,
		Role:             string(m.Role),
		Content:          m.Content,
		Provider:         m.Provider,
		Model:            m.Model,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		TotalTokens:      m.TotalTokens,
		LatencyMs:        m.LatencyMs,
		ParentMessageID:  m.ParentMessageID,
		CreatedAt:        m.CreatedAt,
		ProcessedAt:      m.ProcessedAt,
	}
	if m.Metadata != nil {
		entity.Metadata = datatypes.JSON([]byte(*m.Metadata))
	}
	return entity
}

// EtoD converts the database schema to a domain message. The parent public
// ID is resolved by the repository when needed.
func (m *Message) EtoD() *conversation.Message {
	msg := &conversation.Message{
		ID:               m.ID,
		PublicID:         m.PublicID,
		ConversationID:   m.ConversationID,
		Role:             conversation.MessageRole(m.Role),
		Content:          m.Content,
		Provider:         m.Provider,
		Model:            m.Model,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		TotalTokens:      m.TotalTokens,
		LatencyMs:        m.LatencyMs,
		ParentMessageID:  m.ParentMessageID,
		CreatedAt:        m.CreatedAt,
		ProcessedAt:      m.ProcessedAt,
	}
	if len(m.Metadata) > 0 {
		metadata := string(m.Metadata)
		msg.Metadata = &metadata
	}
	return msg
}
