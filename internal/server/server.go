// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"bazaar/internal/cache"
	"bazaar/internal/config"
	"bazaar/internal/database"
	"bazaar/internal/middleware"
	"bazaar/internal/models"
	"bazaar/internal/repository"
	"bazaar/internal/service"
	"bazaar/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus

	listingRepo repository.ListingRepository
	profileRepo repository.ProfileRepository

	imageService   *service.ImageService
	listingService *service.ListingService
	taxonomy       *service.TaxonomyService
	profileService *service.ProfileService
	statsService   *service.StatsService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage init failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.GetClient(), blobs)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis/storage.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, blobs storage.BlobStore) (*Server, error) {
	middleware.InitMiddleware(cfg)

	listingRepo := repository.NewListingRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	prom := middleware.InitMetrics("bazaar-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		listingRepo:    listingRepo,
		profileRepo:    profileRepo,
	}
	server.imageService = service.NewImageService(blobs, cfg)
	server.listingService = service.NewListingService(listingRepo, categoryRepo, tagRepo, server.imageService)
	server.taxonomy = service.NewTaxonomyService(categoryRepo, tagRepo)
	server.profileService = service.NewProfileService(profileRepo)
	server.statsService = service.NewStatsService(db)

	return server, nil
}

func newBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.MediaBackend {
	case "minio":
		return storage.NewMinioStore(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioUseSSL,
			slog.Default(),
		)
	default:
		return storage.NewDiskStore(cfg.MediaDir)
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Bearer tokens are optional on public reads; resolve when present so
	// handlers can see who is asking.
	app.Use(middleware.ResolveIdentity)
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Graph query/mutation envelope
	api.Post("/graph", s.GraphHandler)

	// Listing routes. Specific /:id/:resource and static paths come
	// before the generic /:id route.
	listings := api.Group("/listings")
	listings.Get("/", s.GetListings)
	listings.Get("/stats", middleware.AuthRequired, s.GetListingStats)
	listings.Post("/", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_listing"), s.CreateListing)
	listings.Post("/:id/favorite", middleware.AuthRequired, s.ToggleFavorite)
	listings.Get("/:id", s.GetListing)
	listings.Patch("/:id", middleware.AuthRequired, s.UpdateListing)
	listings.Put("/:id", middleware.AuthRequired, s.UpdateListing)
	listings.Delete("/:id", middleware.AuthRequired, s.DeleteListing)

	// Media artifacts (uploaded images and derived thumbnails)
	api.Get("/media/*", s.GetMedia)

	// Taxonomy routes: reads are public, writes are staff-only (enforced
	// in the service layer).
	categories := api.Group("/categories")
	categories.Get("/", s.GetCategories)
	categories.Post("/", middleware.AuthRequired, s.CreateCategory)
	categories.Get("/:id", s.GetCategory)
	categories.Put("/:id", middleware.AuthRequired, s.RenameCategory)
	categories.Delete("/:id", middleware.AuthRequired, s.DeleteCategory)

	tags := api.Group("/tags")
	tags.Get("/", s.GetTags)
	tags.Post("/", middleware.AuthRequired, s.CreateTag)
	tags.Get("/:id", s.GetTag)
	tags.Put("/:id", middleware.AuthRequired, s.RenameTag)
	tags.Delete("/:id", middleware.AuthRequired, s.DeleteTag)

	// Profile routes
	profiles := api.Group("/profiles")
	profiles.Get("/me", middleware.AuthRequired, s.GetMyProfile)
	profiles.Put("/me", middleware.AuthRequired, s.UpdateMyProfile)
	profiles.Get("/:userId", s.GetProfile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is a cache here, not a dependency readiness gates on.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "Bazaar API",
		BodyLimit: (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
