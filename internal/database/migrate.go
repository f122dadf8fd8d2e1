package database

import (
	"bazaar/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Category{},
		&models.Tag{},
		&models.Profile{},
		&models.Listing{},
		&models.Favorite{},
	}
}

// Migrate applies the schema for all persistent models. The uniqueness
// constraints on category and tag names are part of this schema; the
// get-or-create retry path depends on them.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}
