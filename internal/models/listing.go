// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Listing moderation statuses. Every listing holds exactly one of these.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// ValidStatus reports whether s is one of the three moderation statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Listing is a classifieds advertisement record.
//
// AuthorID is set once at creation from the acting identity and never
// changes. ThumbnailKey is derived from ImageKey by the image pipeline and
// is never written directly by a caller.
type Listing struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Title       string  `gorm:"size:200;not null" json:"title"`
	Description string  `gorm:"type:text;not null" json:"description"`
	Price       float64 `gorm:"type:decimal(10,2);not null" json:"price"`
	Status      string  `gorm:"size:10;not null;default:'PENDING';index" json:"status"`

	AuthorID   uint      `gorm:"not null;index" json:"author_id"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Tags       []Tag     `gorm:"many2many:listing_tags;constraint:OnDelete:CASCADE" json:"tags"`

	// Blob storage keys for the uploaded image and its derived thumbnail.
	ImageKey     string `gorm:"size:512" json:"image_key,omitempty"`
	ThumbnailKey string `gorm:"size:512" json:"thumbnail_key,omitempty"`

	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	Favorites []Favorite `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
}

// Favorite marks a listing as favorited by an identity.
type Favorite struct {
	ListingID uint      `gorm:"primaryKey" json:"listing_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TagNames returns the listing's tag names in storage order.
func (l *Listing) TagNames() []string {
	names := make([]string, 0, len(l.Tags))
	for _, t := range l.Tags {
		names = append(names, t.Name)
	}
	return names
}
