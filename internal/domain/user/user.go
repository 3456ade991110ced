// Package user provides user domain models and behaviors.
package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

// User models an application user resolved from an external identity provider.
type User struct {
	ID          uint
	Email       string
	Name        *string
	Enabled     bool
	Locked      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// Identity encapsulates the externally provided identity attributes.
type Identity struct {
	Subject string
	Email   string
	Name    *string
}

// Repository defines storage operations for users.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	Upsert(ctx context.Context, user *User) (*User, error)
}

// ErrInvalidIdentity indicates a missing email on the identity payload.
var ErrInvalidIdentity = errors.New("invalid identity: email is required")

// Service persists and resolves users from external identities.
type Service struct {
	repo Repository
}

// NewService constructs a Service with required dependencies.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureUser persists the given identity and returns the internal user
// record, recording the login time.
func (s *Service) EnsureUser(ctx context.Context, identity Identity) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, ErrInvalidIdentity
	}

	now := time.Now().UTC()
	usr := &User{
		Email:       email,
		Name:        identity.Name,
		Enabled:     true,
		LastLoginAt: &now,
	}

	return s.repo.Upsert(ctx, usr)
}

// FindByID resolves a user by internal id. Returns nil when absent.
func (s *Service) FindByID(ctx context.Context, id uint) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByEmail resolves a user by normalised email. Returns nil when absent.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}
