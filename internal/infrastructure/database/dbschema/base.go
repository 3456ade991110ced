// Package dbschema defines the persisted entities and their conversions to
// and from the domain types.
package dbschema

import "time"

// BaseModel carries the shared primary key and timestamp columns.
type BaseModel struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
