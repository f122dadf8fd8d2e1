package models

import "time"

// Profile holds contact details for an identity. Identities themselves are
// issued by the external identity provider; only the profile row lives here.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	PhoneNumber string    `gorm:"size:20" json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
