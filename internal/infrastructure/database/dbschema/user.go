package dbschema

import (
	"time"

	"chathistory-server/internal/domain/user"
	"chathistory-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(User{})
}

// User represents the persisted user schema tied to an external identity provider.
type User struct {
	BaseModel
	Email       string     `gorm:"type:varchar(320);not null;uniqueIndex:ux_users_email"`
	Name        *string    `gorm:"type:varchar(255)"`
	Enabled     bool       `gorm:"not null;default:true"`
	Locked      bool       `gorm:"not null;default:false"`
	LastLoginAt *time.Time `gorm:"type:timestamptz"`
}

// NewSchemaUser converts a domain user into a schema instance.
func NewSchemaUser(u *user.User) *User {
	if u == nil {
		return nil
	}

	return &User{
		BaseModel: BaseModel{
			ID:        u.ID,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		},
		Email:       u.Email,
		Name:        u.Name,
		Enabled:     u.Enabled,
		Locked:      u.Locked,
		LastLoginAt: u.LastLoginAt,
	}
}

// EtoD converts a schema user back to the domain representation.
func (u *User) EtoD() *user.User {
	if u == nil {
		return nil
	}

	return &user.User{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Enabled:     u.Enabled,
		Locked:      u.Locked,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
