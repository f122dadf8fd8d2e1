package repository

import (
	"context"
	"errors"
	"strings"

	"bazaar/internal/models"
	"bazaar/internal/observability"

	"gorm.io/gorm"
)

// getOrCreateAttempts bounds the retry loop for get-or-create races. Two
// concurrent creators of the same name collide at most once in practice;
// three attempts is generous.
const getOrCreateAttempts = 3

// IsDuplicateKeyError reports whether err is a uniqueness-constraint
// violation. GORM's TranslateError covers postgres; the string checks cover
// the sqlite test driver.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// CategoryRepository defines storage operations for categories.
type CategoryRepository interface {
	// GetOrCreate resolves a category by unique name, inserting it when
	// absent. Race-safe: concurrent callers converge on a single row.
	GetOrCreate(ctx context.Context, name string) (*models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	GetByName(ctx context.Context, name string) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	// Delete removes the category and nulls the category reference on its
	// listings; no listing is deleted.
	Delete(ctx context.Context, id uint) error
}

// TagRepository defines storage operations for tags.
type TagRepository interface {
	GetOrCreate(ctx context.Context, name string) (*models.Tag, error)
	GetByID(ctx context.Context, id uint) (*models.Tag, error)
	GetByName(ctx context.Context, name string) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id uint) error
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository returns a GORM-backed category repository.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetOrCreate(ctx context.Context, name string) (*models.Category, error) {
	var lastErr error
	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		var category models.Category
		err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error
		if err == nil {
			return &category, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		category = models.Category{Name: name}
		err = r.db.WithContext(ctx).Create(&category).Error
		if err == nil {
			return &category, nil
		}
		if !IsDuplicateKeyError(err) {
			return nil, err
		}
		// Lost the insert race; re-fetch the surviving row.
		observability.GetOrCreateRetries.WithLabelValues("category").Inc()
		lastErr = err
	}
	return nil, models.NewConflictError("could not resolve category name: " + name + ": " + lastErr.Error())
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *categoryRepository) Update(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *categoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit SET NULL keeps behavior identical across drivers
		// regardless of whether FK enforcement is on.
		if err := tx.Model(&models.Listing{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, id).Error
	})
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a GORM-backed tag repository.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) GetOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	var lastErr error
	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		var tag models.Tag
		err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
		if err == nil {
			return &tag, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		tag = models.Tag{Name: name}
		err = r.db.WithContext(ctx).Create(&tag).Error
		if err == nil {
			return &tag, nil
		}
		if !IsDuplicateKeyError(err) {
			return nil, err
		}
		observability.GetOrCreateRetries.WithLabelValues("tag").Inc()
		lastErr = err
	}
	return nil, models.NewConflictError("could not resolve tag name: " + name + ": " + lastErr.Error())
}

func (r *tagRepository) GetByID(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepository) Update(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).Save(tag).Error
}

func (r *tagRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM listing_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tag{}, id).Error
	})
}
