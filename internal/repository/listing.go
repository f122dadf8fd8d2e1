// Package repository implements durable storage access for the domain models.
package repository

import (
	"context"
	"fmt"
	"strings"

	"bazaar/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPageSize is the page size used when the caller does not supply one.
const DefaultPageSize = 20

// MaxPageSize caps the page size a caller may request.
const MaxPageSize = 100

// ListingFilter narrows and orders a listing query. Zero values mean
// "no filter". Filters are conjunctive.
type ListingFilter struct {
	Status   string
	Category string
	Tag      string
	AuthorID uint
	// Search matches case-insensitively against title and description.
	Search string
	// Ordering is a whitelisted field name, optionally prefixed with '-'
	// for descending. Empty means newest-created first.
	Ordering string
	Page     int
	PageSize int
}

// ListingRepository defines storage operations for listings.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id uint) (*models.Listing, error)
	// Update persists the listing's scalar fields. When replaceTags is
	// non-nil the listing's tag set is replaced wholesale in the same
	// transaction.
	Update(ctx context.Context, listing *models.Listing, replaceTags []models.Tag) error
	// Delete removes the listing row together with its tag associations and
	// favorites in one transaction.
	Delete(ctx context.Context, listing *models.Listing) error
	// List returns one page of matching listings plus the total match count.
	List(ctx context.Context, filter ListingFilter) ([]*models.Listing, int64, error)
	ToggleFavorite(ctx context.Context, listingID, userID uint) (favorited bool, err error)
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository returns a GORM-backed listing repository.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	// One transaction covers the listing row and its tag join rows; a
	// failure partway must leave nothing visible.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(listing).Error
	})
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Tags").
		First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) Update(ctx context.Context, listing *models.Listing, replaceTags []models.Tag) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Save scalar columns only; associations are managed explicitly below.
		if err := tx.Omit(clause.Associations).Save(listing).Error; err != nil {
			return err
		}
		if replaceTags != nil {
			if err := tx.Model(listing).Association("Tags").Replace(replaceTags); err != nil {
				return err
			}
			listing.Tags = replaceTags
		}
		return nil
	})
}

func (r *listingRepository) Delete(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(listing).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", listing.ID).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Listing{}, listing.ID).Error
	})
}

// orderableFields whitelists the fields a caller may order by.
var orderableFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"price":      "price",
	"title":      "title",
}

func buildOrdering(ordering string) (string, error) {
	if ordering == "" {
		return "created_at DESC", nil
	}
	field := ordering
	desc := false
	if strings.HasPrefix(ordering, "-") {
		field = ordering[1:]
		desc = true
	}
	column, ok := orderableFields[field]
	if !ok {
		return "", fmt.Errorf("unknown ordering field %q", field)
	}
	if desc {
		return column + " DESC", nil
	}
	return column + " ASC", nil
}

// escapeLike neutralizes LIKE metacharacters so search text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *listingRepository) List(ctx context.Context, filter ListingFilter) ([]*models.Listing, int64, error) {
	order, err := buildOrdering(filter.Ordering)
	if err != nil {
		return nil, 0, models.NewValidationError(err.Error())
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	applyFilter := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("listings.status = ?", filter.Status)
		}
		if filter.AuthorID != 0 {
			q = q.Where("listings.author_id = ?", filter.AuthorID)
		}
		if filter.Category != "" {
			q = q.Joins("JOIN categories ON categories.id = listings.category_id").
				Where("categories.name = ?", filter.Category)
		}
		if filter.Tag != "" {
			q = q.Joins("JOIN listing_tags ON listing_tags.listing_id = listings.id").
				Joins("JOIN tags ON tags.id = listing_tags.tag_id").
				Where("tags.name = ?", filter.Tag)
		}
		if filter.Search != "" {
			pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
			q = q.Where("LOWER(listings.title) LIKE ? ESCAPE '\\' OR LOWER(listings.description) LIKE ? ESCAPE '\\'", pattern, pattern)
		}
		return q
	}

	var total int64
	countQ := applyFilter(r.db.WithContext(ctx).Model(&models.Listing{}))
	if err := countQ.Distinct("listings.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []*models.Listing
	err = applyFilter(r.db.WithContext(ctx).Model(&models.Listing{})).
		Preload("Category").
		Preload("Tags").
		Order("listings." + order).
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&listings).Error
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func (r *listingRepository) ToggleFavorite(ctx context.Context, listingID, userID uint) (bool, error) {
	var favorited bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("listing_id = ? AND user_id = ?", listingID, userID).Delete(&models.Favorite{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			favorited = false
			return nil
		}
		favorited = true
		return tx.Create(&models.Favorite{ListingID: listingID, UserID: userID}).Error
	})
	return favorited, err
}
