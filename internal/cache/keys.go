package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	listingKeyPrefix = "listing:%d"
	// listingsVersionKey versions the listing collection; bumping it
	// invalidates every cached list result at once.
	listingsVersionKey = "listings:version"
)

const (
	// ListingTTL bounds staleness of a single cached listing.
	ListingTTL = 5 * time.Minute
	// ListTTL bounds staleness of cached list pages.
	ListTTL = time.Minute
	// StatsTTL bounds staleness of the cached statistics projection.
	StatsTTL = time.Minute
)

// ListingKey returns the cache key for one listing.
func ListingKey(id uint) string {
	return fmt.Sprintf(listingKeyPrefix, id)
}

// StatsKey returns the cache key for the statistics projection.
func StatsKey() string {
	return "listings:stats"
}

// ListKey returns a versioned cache key for a list query. The fingerprint
// should be a stable rendering of the filter parameters.
func ListKey(ctx context.Context, fingerprint string) string {
	version := "0"
	if client != nil {
		if v, err := client.Get(ctx, listingsVersionKey).Result(); err == nil {
			version = v
		}
	}
	return fmt.Sprintf("listings:v%s:%s", version, fingerprint)
}

// Invalidate removes a single key.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateLists bumps the collection version and drops the stats
// projection. Used when a change outside a single listing (a category or
// tag rename/delete) makes cached list pages stale.
func InvalidateLists(ctx context.Context) {
	if client == nil {
		return
	}
	client.Del(ctx, StatsKey())
	client.Incr(ctx, listingsVersionKey)
}

// InvalidateListing drops the cached listing and bumps the collection
// version so stale list pages are no longer served.
func InvalidateListing(ctx context.Context, id uint) {
	if client == nil {
		return
	}
	client.Del(ctx, ListingKey(id), StatsKey())
	client.Incr(ctx, listingsVersionKey)
}
