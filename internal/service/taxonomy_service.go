package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bazaar/internal/auth"
	"bazaar/internal/cache"
	"bazaar/internal/models"
	"bazaar/internal/repository"

	"gorm.io/gorm"
)

const (
	MaxCategoryNameLength = 100
	MaxTagNameLength      = 50
)

// TaxonomyService covers the staff-only management surface for categories
// and tags. Unlike the get-or-create path used by listing writes, explicit
// creation of an existing name is a conflict here.
type TaxonomyService struct {
	categories repository.CategoryRepository
	tags       repository.TagRepository
}

func NewTaxonomyService(categories repository.CategoryRepository, tags repository.TagRepository) *TaxonomyService {
	return &TaxonomyService{categories: categories, tags: tags}
}

func (s *TaxonomyService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return categories, nil
}

func (s *TaxonomyService) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Category", id)
		}
		return nil, models.NewInternalError(err)
	}
	return category, nil
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, identity *auth.Identity, name string) (*models.Category, error) {
	if err := requireTaxonomyAdmin(identity); err != nil {
		return nil, err
	}
	name, err := validTaxonomyName(name, MaxCategoryNameLength)
	if err != nil {
		return nil, err
	}
	category := &models.Category{Name: name}
	if err := s.categories.Create(ctx, category); err != nil {
		if repository.IsDuplicateKeyError(err) {
			return nil, models.NewConflictError(fmt.Sprintf("Category %q already exists", name))
		}
		return nil, models.NewInternalError(err)
	}
	return category, nil
}

func (s *TaxonomyService) RenameCategory(ctx context.Context, identity *auth.Identity, id uint, name string) (*models.Category, error) {
	if err := requireTaxonomyAdmin(identity); err != nil {
		return nil, err
	}
	name, err := validTaxonomyName(name, MaxCategoryNameLength)
	if err != nil {
		return nil, err
	}
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = name
	if err := s.categories.Update(ctx, category); err != nil {
		if repository.IsDuplicateKeyError(err) {
			return nil, models.NewConflictError(fmt.Sprintf("Category %q already exists", name))
		}
		return nil, models.NewInternalError(err)
	}
	// Cached listings embed the category name.
	cache.InvalidateLists(ctx)
	return category, nil
}

// DeleteCategory removes the category; listings referencing it are left in
// place with no category.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, identity *auth.Identity, id uint) error {
	if err := requireTaxonomyAdmin(identity); err != nil {
		return err
	}
	if _, err := s.GetCategory(ctx, id); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateLists(ctx)
	return nil
}

func (s *TaxonomyService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

func (s *TaxonomyService) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	tag, err := s.tags.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Tag", id)
		}
		return nil, models.NewInternalError(err)
	}
	return tag, nil
}

func (s *TaxonomyService) CreateTag(ctx context.Context, identity *auth.Identity, name string) (*models.Tag, error) {
	if err := requireTaxonomyAdmin(identity); err != nil {
		return nil, err
	}
	name, err := validTaxonomyName(name, MaxTagNameLength)
	if err != nil {
		return nil, err
	}
	tag := &models.Tag{Name: name}
	if err := s.tags.Create(ctx, tag); err != nil {
		if repository.IsDuplicateKeyError(err) {
			return nil, models.NewConflictError(fmt.Sprintf("Tag %q already exists", name))
		}
		return nil, models.NewInternalError(err)
	}
	return tag, nil
}

func (s *TaxonomyService) RenameTag(ctx context.Context, identity *auth.Identity, id uint, name string) (*models.Tag, error) {
	if err := requireTaxonomyAdmin(identity); err != nil {
		return nil, err
	}
	name, err := validTaxonomyName(name, MaxTagNameLength)
	if err != nil {
		return nil, err
	}
	tag, err := s.GetTag(ctx, id)
	if err != nil {
		return nil, err
	}
	tag.Name = name
	if err := s.tags.Update(ctx, tag); err != nil {
		if repository.IsDuplicateKeyError(err) {
			return nil, models.NewConflictError(fmt.Sprintf("Tag %q already exists", name))
		}
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateLists(ctx)
	return tag, nil
}

// DeleteTag removes the tag and detaches it from every listing.
func (s *TaxonomyService) DeleteTag(ctx context.Context, identity *auth.Identity, id uint) error {
	if err := requireTaxonomyAdmin(identity); err != nil {
		return err
	}
	if _, err := s.GetTag(ctx, id); err != nil {
		return err
	}
	if err := s.tags.Delete(ctx, id); err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateLists(ctx)
	return nil
}

func requireTaxonomyAdmin(identity *auth.Identity) error {
	if identity == nil {
		return models.NewUnauthorizedError("Authentication required")
	}
	if !auth.CanManageTaxonomy(identity) {
		return models.NewForbiddenError("Staff access required")
	}
	return nil
}

func validTaxonomyName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.NewValidationError("Name is required")
	}
	if len(name) > maxLen {
		return "", models.NewValidationError(fmt.Sprintf("Name must be at most %d characters", maxLen))
	}
	return name, nil
}
