// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"bazaar/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumAuthors  int
	NumListings int
	ShouldClean bool
}

var categoryNames = []string{
	"Vehicles", "Electronics", "Furniture", "Kitchen", "Garden",
	"Sports", "Music", "Books", "Clothing", "Toys", "Tools", "Pets",
}

var tagPool = []string{
	"vintage", "like-new", "handmade", "rare", "bundle", "negotiable",
	"pickup-only", "delivery", "refurbished", "collectible", "sealed",
	"broken", "spare-parts", "limited-edition",
}

var statusWeights = []struct {
	status string
	weight int
}{
	{models.StatusApproved, 6},
	{models.StatusPending, 3},
	{models.StatusRejected, 1},
}

// Seeder populates the database with plausible marketplace data.
type Seeder struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded rows. Join tables go first so foreign keys
// never block the truncation.
func (s *Seeder) ClearAll() error {
	tables := []string{"favorites", "listing_tags", "listings", "tags", "categories", "profiles"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Seed runs the full pipeline: taxonomy, profiles, listings, favorites.
func (s *Seeder) Seed(opts Options) error {
	log.Printf("Seeding %d authors and %d listings...", opts.NumAuthors, opts.NumListings)

	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
	}

	categories, err := s.seedCategories()
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	log.Printf("✓ %d categories", len(categories))

	tags, err := s.seedTags()
	if err != nil {
		return fmt.Errorf("seed tags: %w", err)
	}
	log.Printf("✓ %d tags", len(tags))

	authorIDs, err := s.seedProfiles(opts.NumAuthors)
	if err != nil {
		return fmt.Errorf("seed profiles: %w", err)
	}
	log.Printf("✓ %d profiles", len(authorIDs))

	listings, err := s.seedListings(opts.NumListings, authorIDs, categories, tags)
	if err != nil {
		return fmt.Errorf("seed listings: %w", err)
	}
	log.Printf("✓ %d listings", len(listings))

	favorites, err := s.seedFavorites(listings, authorIDs)
	if err != nil {
		return fmt.Errorf("seed favorites: %w", err)
	}
	log.Printf("✓ %d favorites", favorites)

	return nil
}

func (s *Seeder) seedCategories() ([]models.Category, error) {
	categories := make([]models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		category := models.Category{Name: name}
		if err := s.db.Where("name = ?", name).FirstOrCreate(&category).Error; err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func (s *Seeder) seedTags() ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(tagPool))
	for _, name := range tagPool {
		tag := models.Tag{Name: name}
		if err := s.db.Where("name = ?", name).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// seedProfiles creates contact rows for synthetic identities. User IDs start
// at 1000 to stay clear of identities minted by the auth provider in dev.
func (s *Seeder) seedProfiles(count int) ([]uint, error) {
	ids := make([]uint, 0, count)
	for i := 0; i < count; i++ {
		userID := uint(1000 + i)
		profile := models.Profile{
			UserID:      userID,
			PhoneNumber: gofakeit.Numerify("555-0###"),
		}
		if err := s.db.Where("user_id = ?", userID).FirstOrCreate(&profile).Error; err != nil {
			return nil, err
		}
		ids = append(ids, userID)
	}
	return ids, nil
}

func (s *Seeder) seedListings(count int, authorIDs []uint, categories []models.Category, tags []models.Tag) ([]models.Listing, error) {
	if len(authorIDs) == 0 {
		return nil, fmt.Errorf("no authors to attribute listings to")
	}

	listings := make([]models.Listing, 0, count)
	for i := 0; i < count; i++ {
		listing := s.buildListing(authorIDs, categories)
		listing.Tags = s.pickTags(tags)
		if err := s.db.Create(&listing).Error; err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// buildListing constructs an unsaved listing with a realistic created_at
// spread over the past 90 days.
func (s *Seeder) buildListing(authorIDs []uint, categories []models.Category) models.Listing {
	product := gofakeit.Product()
	category := categories[s.rand.Intn(len(categories))]

	daysBack := s.rand.Intn(90)
	hoursBack := s.rand.Intn(24)
	createdAt := time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)

	listing := models.Listing{
		Title:       truncate(product.Name, 200),
		Description: product.Description,
		Price:       float64(int(product.Price*100)) / 100,
		Status:      s.pickStatus(),
		AuthorID:    authorIDs[s.rand.Intn(len(authorIDs))],
		CategoryID:  &category.ID,
		CreatedAt:   createdAt,
	}

	// roughly one in five listings carries an expiry
	if s.rand.Intn(5) == 0 {
		expires := createdAt.Add(time.Duration(30+s.rand.Intn(60)) * 24 * time.Hour)
		listing.ExpiresAt = &expires
	}
	return listing
}

func (s *Seeder) pickStatus() string {
	total := 0
	for _, w := range statusWeights {
		total += w.weight
	}
	n := s.rand.Intn(total)
	for _, w := range statusWeights {
		if n < w.weight {
			return w.status
		}
		n -= w.weight
	}
	return models.StatusPending
}

func (s *Seeder) pickTags(tags []models.Tag) []models.Tag {
	count := s.rand.Intn(4)
	if count == 0 || len(tags) == 0 {
		return nil
	}
	picked := make([]models.Tag, 0, count)
	seen := make(map[uint]bool)
	for len(picked) < count {
		tag := tags[s.rand.Intn(len(tags))]
		if seen[tag.ID] {
			continue
		}
		seen[tag.ID] = true
		picked = append(picked, tag)
	}
	return picked
}

// seedFavorites sprinkles favorites across approved listings.
func (s *Seeder) seedFavorites(listings []models.Listing, authorIDs []uint) (int, error) {
	count := 0
	for _, listing := range listings {
		if listing.Status != models.StatusApproved {
			continue
		}
		for _, userID := range authorIDs {
			if s.rand.Intn(6) != 0 {
				continue
			}
			favorite := models.Favorite{ListingID: listing.ID, UserID: userID}
			if err := s.db.Where("listing_id = ? AND user_id = ?", listing.ID, userID).
				FirstOrCreate(&favorite).Error; err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
