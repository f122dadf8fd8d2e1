package models

import "time"

// Category groups listings under a unique name. Categories are created
// implicitly by listing writes (get-or-create) or explicitly by admins.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
