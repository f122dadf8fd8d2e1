// Package observability provides Prometheus metrics for the application.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListingMutations counts listing lifecycle mutations by operation and outcome.
	ListingMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_listing_mutations_total",
		Help: "Total number of listing create/update/delete operations",
	}, []string{"operation", "outcome"})

	// ThumbnailDerivations counts thumbnail derivation attempts by outcome.
	// Derivation failures are non-fatal for the listing write, so this counter
	// is the main signal that the pipeline is degrading.
	ThumbnailDerivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_thumbnail_derivations_total",
		Help: "Total number of thumbnail derivation attempts",
	}, []string{"outcome"})

	// ArtifactOperations counts blob store writes and removals by operation and outcome.
	ArtifactOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_artifact_operations_total",
		Help: "Total number of blob storage operations for listing artifacts",
	}, []string{"operation", "outcome"})

	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// GetOrCreateRetries counts taxonomy get-or-create conflict retries by entity.
	GetOrCreateRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_get_or_create_retries_total",
		Help: "Total number of get-or-create uniqueness-conflict retries",
	}, []string{"entity"})
)
