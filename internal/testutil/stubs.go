// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sort"
	"time"

	"bazaar/internal/models"
	"bazaar/internal/repository"

	"gorm.io/gorm"
)

// ListingRepoStub is an in-memory listing repository for service tests.
type ListingRepoStub struct {
	items     map[uint]*models.Listing
	favorites map[string]bool
	nextID    uint

	// CreateErr, when set, is returned from Create to simulate storage failure.
	CreateErr error
}

func NewListingRepoStub() *ListingRepoStub {
	return &ListingRepoStub{
		items:     make(map[uint]*models.Listing),
		favorites: make(map[string]bool),
		nextID:    1,
	}
}

func (s *ListingRepoStub) Create(_ context.Context, listing *models.Listing) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if listing.ID == 0 {
		listing.ID = s.nextID
		s.nextID++
	}
	now := time.Now().UTC()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now
	stored := *listing
	s.items[listing.ID] = &stored
	return nil
}

func (s *ListingRepoStub) GetByID(_ context.Context, id uint) (*models.Listing, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *ListingRepoStub) Update(_ context.Context, listing *models.Listing, replaceTags []models.Tag) error {
	if _, ok := s.items[listing.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	listing.UpdatedAt = time.Now().UTC()
	stored := *listing
	if replaceTags != nil {
		stored.Tags = replaceTags
		listing.Tags = replaceTags
	}
	s.items[listing.ID] = &stored
	return nil
}

func (s *ListingRepoStub) Delete(_ context.Context, listing *models.Listing) error {
	if _, ok := s.items[listing.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.items, listing.ID)
	return nil
}

func (s *ListingRepoStub) List(_ context.Context, filter repository.ListingFilter) ([]*models.Listing, int64, error) {
	var matched []*models.Listing
	for _, item := range s.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.AuthorID != 0 && item.AuthorID != filter.AuthorID {
			continue
		}
		copied := *item
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, int64(len(matched)), nil
}

func (s *ListingRepoStub) ToggleFavorite(_ context.Context, listingID, userID uint) (bool, error) {
	key := fmt.Sprintf("%d:%d", listingID, userID)
	if s.favorites[key] {
		delete(s.favorites, key)
		return false, nil
	}
	s.favorites[key] = true
	return true, nil
}

// CategoryRepoStub is an in-memory category repository keyed by name.
type CategoryRepoStub struct {
	items  map[string]*models.Category
	nextID uint
}

func NewCategoryRepoStub() *CategoryRepoStub {
	return &CategoryRepoStub{items: make(map[string]*models.Category), nextID: 1}
}

func (s *CategoryRepoStub) GetOrCreate(_ context.Context, name string) (*models.Category, error) {
	if item, ok := s.items[name]; ok {
		copied := *item
		return &copied, nil
	}
	item := &models.Category{ID: s.nextID, Name: name}
	s.nextID++
	s.items[name] = item
	copied := *item
	return &copied, nil
}

func (s *CategoryRepoStub) GetByID(_ context.Context, id uint) (*models.Category, error) {
	for _, item := range s.items {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *CategoryRepoStub) GetByName(_ context.Context, name string) (*models.Category, error) {
	item, ok := s.items[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *CategoryRepoStub) List(_ context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CategoryRepoStub) Create(_ context.Context, category *models.Category) error {
	if _, ok := s.items[category.Name]; ok {
		return gorm.ErrDuplicatedKey
	}
	category.ID = s.nextID
	s.nextID++
	stored := *category
	s.items[category.Name] = &stored
	return nil
}

func (s *CategoryRepoStub) Update(_ context.Context, category *models.Category) error {
	for name, item := range s.items {
		if item.ID != category.ID && name == category.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	for name, item := range s.items {
		if item.ID == category.ID {
			delete(s.items, name)
			stored := *category
			s.items[category.Name] = &stored
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *CategoryRepoStub) Delete(_ context.Context, id uint) error {
	for name, item := range s.items {
		if item.ID == id {
			delete(s.items, name)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// TagRepoStub is an in-memory tag repository keyed by name.
type TagRepoStub struct {
	items  map[string]*models.Tag
	nextID uint
}

func NewTagRepoStub() *TagRepoStub {
	return &TagRepoStub{items: make(map[string]*models.Tag), nextID: 1}
}

func (s *TagRepoStub) GetOrCreate(_ context.Context, name string) (*models.Tag, error) {
	if item, ok := s.items[name]; ok {
		copied := *item
		return &copied, nil
	}
	item := &models.Tag{ID: s.nextID, Name: name}
	s.nextID++
	s.items[name] = item
	copied := *item
	return &copied, nil
}

func (s *TagRepoStub) GetByID(_ context.Context, id uint) (*models.Tag, error) {
	for _, item := range s.items {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *TagRepoStub) GetByName(_ context.Context, name string) (*models.Tag, error) {
	item, ok := s.items[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *TagRepoStub) List(_ context.Context) ([]models.Tag, error) {
	out := make([]models.Tag, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *TagRepoStub) Create(_ context.Context, tag *models.Tag) error {
	if _, ok := s.items[tag.Name]; ok {
		return gorm.ErrDuplicatedKey
	}
	tag.ID = s.nextID
	s.nextID++
	stored := *tag
	s.items[tag.Name] = &stored
	return nil
}

func (s *TagRepoStub) Update(_ context.Context, tag *models.Tag) error {
	for name, item := range s.items {
		if item.ID != tag.ID && name == tag.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	for name, item := range s.items {
		if item.ID == tag.ID {
			delete(s.items, name)
			stored := *tag
			s.items[tag.Name] = &stored
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *TagRepoStub) Delete(_ context.Context, id uint) error {
	for name, item := range s.items {
		if item.ID == id {
			delete(s.items, name)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ProfileRepoStub is an in-memory profile repository keyed by user id.
type ProfileRepoStub struct {
	items  map[uint]*models.Profile
	nextID uint
}

func NewProfileRepoStub() *ProfileRepoStub {
	return &ProfileRepoStub{items: make(map[uint]*models.Profile), nextID: 1}
}

func (s *ProfileRepoStub) GetByUserID(_ context.Context, userID uint) (*models.Profile, error) {
	item, ok := s.items[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *ProfileRepoStub) Create(_ context.Context, profile *models.Profile) error {
	if profile.ID == 0 {
		profile.ID = s.nextID
		s.nextID++
	}
	stored := *profile
	s.items[profile.UserID] = &stored
	return nil
}

func (s *ProfileRepoStub) Update(_ context.Context, profile *models.Profile) error {
	if _, ok := s.items[profile.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *profile
	s.items[profile.UserID] = &stored
	return nil
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// TinyJPEG returns an in-memory JPEG byte slice with the requested dimensions.
func TinyJPEG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}
