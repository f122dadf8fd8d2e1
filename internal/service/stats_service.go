package service

import (
	"context"

	"bazaar/internal/cache"
	"bazaar/internal/models"

	"gorm.io/gorm"
)

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type ListingStats struct {
	TotalListings int64            `json:"total_listings"`
	AveragePrice  float64          `json:"average_price"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByCategory    []CategoryCount  `json:"by_category"`
}

// StatsService computes aggregate projections over the listing table.
// Results are cached briefly; staleness up to cache.StatsTTL is acceptable.
type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

func (s *StatsService) Overview(ctx context.Context) (*ListingStats, error) {
	var stats ListingStats
	err := cache.Aside(ctx, cache.StatsKey(), &stats, cache.StatsTTL, func() error {
		computed, err := s.compute(ctx)
		if err != nil {
			return err
		}
		stats = *computed
		return nil
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &stats, nil
}

func (s *StatsService) compute(ctx context.Context) (*ListingStats, error) {
	stats := &ListingStats{ByStatus: make(map[string]int64)}

	if err := s.db.WithContext(ctx).Model(&models.Listing{}).Count(&stats.TotalListings).Error; err != nil {
		return nil, err
	}

	if stats.TotalListings > 0 {
		var avg *float64
		err := s.db.WithContext(ctx).Model(&models.Listing{}).
			Select("AVG(price)").Scan(&avg).Error
		if err != nil {
			return nil, err
		}
		if avg != nil {
			stats.AveragePrice = *avg
		}
	}

	var statusRows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Listing{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&statusRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
	}

	var categoryRows []struct {
		Category string
		Count    int64
	}
	err = s.db.WithContext(ctx).Model(&models.Listing{}).
		Select("categories.name AS category, COUNT(*) AS count").
		Joins("JOIN categories ON categories.id = listings.category_id").
		Group("categories.name").
		Order("count DESC").
		Scan(&categoryRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range categoryRows {
		stats.ByCategory = append(stats.ByCategory, CategoryCount{Category: row.Category, Count: row.Count})
	}

	return stats, nil
}
