// Package conversation holds the conversation aggregate: conversations,
// their messages, and the services coordinating both.
package conversation

import (
	"context"
	"time"

	"chathistory-server/internal/domain/query"
)

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusArchived ConversationStatus = "archived"
	ConversationStatusDeleted  ConversationStatus = "deleted"
)

// DefaultTitle is assigned when a conversation is created without one.
const DefaultTitle = "New Conversation"

// Valid reports whether the status is one of the known values.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusActive, ConversationStatusArchived, ConversationStatusDeleted:
		return true
	}
	return false
}

// Conversation is the aggregate root. TokenCount and UpdatedAt are derived
// from the message stream and maintained by the services, never set by
// callers directly.
type Conversation struct {
	ID         uint               `json:"-"`
	PublicID   string             `json:"id"`
	Title      string             `json:"title"`
	UserID     uint               `json:"-"`
	Status     ConversationStatus `json:"status"`
	Summary    *string            `json:"summary,omitempty"`
	TokenCount int64              `json:"token_count"`
	Metadata   *string            `json:"metadata,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	ArchivedAt *time.Time         `json:"archived_at,omitempty"`
}

// NewConversation creates an active conversation owned by userID. A nil or
// blank title falls back to DefaultTitle.
func NewConversation(publicID string, userID uint, title *string, metadata *string) *Conversation {
	now := time.Now().UTC()

	resolved := DefaultTitle
	if title != nil && *title != "" {
		resolved = *title
	}

	return &Conversation{
		PublicID:  publicID,
		Title:     resolved,
		UserID:    userID,
		Status:    ConversationStatusActive,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// View joins a conversation with derived message data for responses.
type View struct {
	Conversation *Conversation
	MessageCount int64
	LastMessage  *Message
	Messages     []*Message
}

// ConversationFilter narrows conversation lookups. Nil fields are ignored.
type ConversationFilter struct {
	ID           *uint
	PublicID     *string
	UserID       *uint
	Status       *ConversationStatus
	TitleKeyword *string
}

// TokenDrift reports a conversation whose stored token count disagrees with
// the sum over its messages.
type TokenDrift struct {
	ConversationID uint
	TokenCount     int64
	MessageTokens  int64
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *Conversation) error
	FindByFilter(ctx context.Context, filter ConversationFilter, pagination *query.Pagination, sort *query.Sort) ([]*Conversation, error)
	Count(ctx context.Context, filter ConversationFilter) (int64, error)
	FindByID(ctx context.Context, id uint) (*Conversation, error)
	FindByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	// FindByOwnerAndPublicID scopes the lookup to the owner inside the
	// predicate. Returns (nil, nil) when no row matches.
	FindByOwnerAndPublicID(ctx context.Context, userID uint, publicID string) (*Conversation, error)
	Update(ctx context.Context, conversation *Conversation) error
	UpdateSummary(ctx context.Context, id uint, summary string) error
	Archive(ctx context.Context, id uint, archivedAt time.Time) error
	Delete(ctx context.Context, id uint) error
	// AccumulateTokens adds delta to the stored token count and bumps
	// updated_at in a single statement.
	AccumulateTokens(ctx context.Context, id uint, delta int64) error
	// RepairTokenCount recomputes the token count from the message stream
	// inside one statement.
	RepairTokenCount(ctx context.Context, id uint) error
	FindTokenDrift(ctx context.Context) ([]TokenDrift, error)
}

// TxRunner executes fn inside a storage transaction; repository calls made
// with the ctx passed to fn join that transaction.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
