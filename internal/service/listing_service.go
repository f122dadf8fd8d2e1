package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bazaar/internal/auth"
	"bazaar/internal/cache"
	"bazaar/internal/models"
	"bazaar/internal/observability"
	"bazaar/internal/repository"

	"gorm.io/gorm"
)

const MaxTitleLength = 200

type CreateListingInput struct {
	Title        string
	Description  string
	Price        float64
	CategoryName string
	TagNames     []string
	ExpiresAt    *time.Time
	Image        *ImageUpload
}

// UpdateListingInput is a patch: nil fields keep their stored values.
// TagNames replaces the whole tag set when present, including with an
// empty slice to clear it.
type UpdateListingInput struct {
	Title        *string
	Description  *string
	Price        *float64
	Status       *string
	CategoryName *string
	TagNames     *[]string
	ExpiresAt    *time.Time
	Image        *ImageUpload
}

type ListingService struct {
	listings   repository.ListingRepository
	categories repository.CategoryRepository
	tags       repository.TagRepository
	images     *ImageService
}

func NewListingService(
	listings repository.ListingRepository,
	categories repository.CategoryRepository,
	tags repository.TagRepository,
	images *ImageService,
) *ListingService {
	return &ListingService{
		listings:   listings,
		categories: categories,
		tags:       tags,
		images:     images,
	}
}

// Create stores a new listing for the authenticated identity. The listing
// always enters the queue as pending regardless of who created it.
func (s *ListingService) Create(ctx context.Context, identity *auth.Identity, in CreateListingInput) (*models.Listing, error) {
	if identity == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	category, err := s.categories.GetOrCreate(ctx, strings.TrimSpace(in.CategoryName))
	if err != nil {
		observability.ListingMutations.WithLabelValues("create", "error").Inc()
		return nil, models.NewInternalError(err)
	}
	tags, err := s.resolveTags(ctx, in.TagNames)
	if err != nil {
		observability.ListingMutations.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	listing := &models.Listing{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		Status:      models.StatusPending,
		AuthorID:    identity.UserID,
		CategoryID:  &category.ID,
		Tags:        tags,
		ExpiresAt:   in.ExpiresAt,
	}

	if in.Image != nil {
		artifacts, err := s.images.StoreListingImage(ctx, *in.Image)
		if err != nil {
			observability.ListingMutations.WithLabelValues("create", "error").Inc()
			return nil, err
		}
		listing.ImageKey = artifacts.ImageKey
		listing.ThumbnailKey = artifacts.ThumbnailKey
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		if listing.ImageKey != "" {
			s.images.PurgeArtifacts(ctx, listing.ImageKey, listing.ThumbnailKey)
		}
		observability.ListingMutations.WithLabelValues("create", "error").Inc()
		return nil, models.NewInternalError(err)
	}

	cache.InvalidateListing(ctx, listing.ID)
	observability.ListingMutations.WithLabelValues("create", "success").Inc()
	slog.InfoContext(ctx, "listing created", "listing_id", listing.ID, "author_id", identity.UserID)
	return s.reload(ctx, listing.ID)
}

func (s *ListingService) Get(ctx context.Context, id uint) (*models.Listing, error) {
	var listing models.Listing
	err := cache.Aside(ctx, cache.ListingKey(id), &listing, cache.ListingTTL, func() error {
		got, err := s.listings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		listing = *got
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Listing", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &listing, nil
}

type ListingPage struct {
	Listings []*models.Listing `json:"listings"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func (s *ListingService) List(ctx context.Context, filter repository.ListingFilter) (*ListingPage, error) {
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, models.NewValidationError(fmt.Sprintf("Invalid status %q", filter.Status))
	}
	key := cache.ListKey(ctx, filterFingerprint(filter))
	var page ListingPage
	err := cache.Aside(ctx, key, &page, cache.ListTTL, func() error {
		listings, total, err := s.listings.List(ctx, filter)
		if err != nil {
			return err
		}
		page = ListingPage{
			Listings: listings,
			Total:    total,
			Page:     filter.Page,
			PageSize: filter.PageSize,
		}
		return nil
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &page, nil
}

// Update applies a partial update. Only the author, staff, or a moderator
// may modify a listing; everyone in that set may also change its status.
func (s *ListingService) Update(ctx context.Context, identity *auth.Identity, id uint, in UpdateListingInput) (*models.Listing, error) {
	if identity == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	listing, err := s.loadForWrite(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, models.NewValidationError("Title must not be empty")
		}
		if len(title) > MaxTitleLength {
			return nil, models.NewValidationError(fmt.Sprintf("Title must be at most %d characters", MaxTitleLength))
		}
		listing.Title = title
	}
	if in.Description != nil {
		listing.Description = *in.Description
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, models.NewValidationError("Price must not be negative")
		}
		listing.Price = *in.Price
	}
	if in.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*in.Status))
		if !models.ValidStatus(status) {
			return nil, models.NewValidationError(fmt.Sprintf("Invalid status %q", *in.Status))
		}
		listing.Status = status
	}
	if in.ExpiresAt != nil {
		listing.ExpiresAt = in.ExpiresAt
	}
	if in.CategoryName != nil {
		name := strings.TrimSpace(*in.CategoryName)
		if name == "" {
			return nil, models.NewValidationError("Category name must not be empty")
		}
		category, err := s.categories.GetOrCreate(ctx, name)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		listing.CategoryID = &category.ID
	}

	var replaceTags []models.Tag
	if in.TagNames != nil {
		replaceTags, err = s.resolveTags(ctx, *in.TagNames)
		if err != nil {
			return nil, err
		}
		if replaceTags == nil {
			replaceTags = []models.Tag{}
		}
	}

	if in.Image != nil {
		artifacts, err := s.images.ReplaceArtifacts(ctx, listing.ImageKey, listing.ThumbnailKey, *in.Image)
		if err != nil {
			observability.ListingMutations.WithLabelValues("update", "error").Inc()
			return nil, err
		}
		listing.ImageKey = artifacts.ImageKey
		listing.ThumbnailKey = artifacts.ThumbnailKey
	}

	if err := s.listings.Update(ctx, listing, replaceTags); err != nil {
		observability.ListingMutations.WithLabelValues("update", "error").Inc()
		return nil, models.NewInternalError(err)
	}

	cache.InvalidateListing(ctx, listing.ID)
	observability.ListingMutations.WithLabelValues("update", "success").Inc()
	slog.InfoContext(ctx, "listing updated", "listing_id", listing.ID)
	return s.reload(ctx, listing.ID)
}

// Delete removes the listing row, its associations, and its stored image
// artifacts. Artifact removal happens after the transaction commits.
func (s *ListingService) Delete(ctx context.Context, identity *auth.Identity, id uint) error {
	if identity == nil {
		return models.NewUnauthorizedError("Authentication required")
	}
	listing, err := s.loadForWrite(ctx, identity, id)
	if err != nil {
		return err
	}

	if err := s.listings.Delete(ctx, listing); err != nil {
		observability.ListingMutations.WithLabelValues("delete", "error").Inc()
		return models.NewInternalError(err)
	}

	if listing.ImageKey != "" || listing.ThumbnailKey != "" {
		s.images.PurgeArtifacts(ctx, listing.ImageKey, listing.ThumbnailKey)
	}
	cache.InvalidateListing(ctx, listing.ID)
	observability.ListingMutations.WithLabelValues("delete", "success").Inc()
	slog.InfoContext(ctx, "listing deleted", "listing_id", listing.ID)
	return nil
}

func (s *ListingService) ToggleFavorite(ctx context.Context, identity *auth.Identity, id uint) (bool, error) {
	if identity == nil {
		return false, models.NewUnauthorizedError("Authentication required")
	}
	if _, err := s.listings.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, models.NewNotFoundError("Listing", id)
		}
		return false, models.NewInternalError(err)
	}
	favorited, err := s.listings.ToggleFavorite(ctx, id, identity.UserID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	cache.InvalidateListing(ctx, id)
	return favorited, nil
}

func (s *ListingService) loadForWrite(ctx context.Context, identity *auth.Identity, id uint) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Listing", id)
		}
		return nil, models.NewInternalError(err)
	}
	if !auth.CanModifyListing(identity, listing) {
		return nil, models.NewForbiddenError("You do not have permission to modify this listing")
	}
	return listing, nil
}

func (s *ListingService) reload(ctx context.Context, id uint) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return listing, nil
}

func (s *ListingService) resolveTags(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(names))
	tags := make([]models.Tag, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tag, err := s.tags.GetOrCreate(ctx, name)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func validateCreateInput(in CreateListingInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if len(title) > MaxTitleLength {
		return models.NewValidationError(fmt.Sprintf("Title must be at most %d characters", MaxTitleLength))
	}
	if in.Price < 0 {
		return models.NewValidationError("Price must not be negative")
	}
	if strings.TrimSpace(in.CategoryName) == "" {
		return models.NewValidationError("Category name is required")
	}
	return nil
}

func filterFingerprint(f repository.ListingFilter) string {
	return fmt.Sprintf("s=%s:c=%s:t=%s:a=%d:q=%s:o=%s:p=%d:n=%d",
		f.Status, f.Category, f.Tag, f.AuthorID, f.Search, f.Ordering, f.Page, f.PageSize)
}
