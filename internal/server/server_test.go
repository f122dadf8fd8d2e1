package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"bazaar/internal/auth"
	"bazaar/internal/config"
	"bazaar/internal/database"
	"bazaar/internal/middleware"
	"bazaar/internal/repository"
	"bazaar/internal/service"
	"bazaar/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "handler-test-secret"

// newTestServer wires a Server against an in-memory sqlite database and a
// temp-dir blob store, and returns a Fiber app with all routes mounted.
// The Prometheus middleware is left nil so repeated test setups do not
// re-register collectors.
func newTestServer(t *testing.T) (*fiber.App, *Server, *gorm.DB, string) {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:            testJWTSecret,
		Env:                  "test",
		MediaBackend:         "disk",
		MediaDir:             t.TempDir(),
		ImageMaxUploadSizeMB: 5,
	}
	middleware.InitMiddleware(cfg)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	blobs, err := storage.NewDiskStore(cfg.MediaDir)
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}

	listingRepo := repository.NewListingRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	s := &Server{
		config:      cfg,
		db:          db,
		listingRepo: listingRepo,
		profileRepo: profileRepo,
	}
	s.imageService = service.NewImageService(blobs, cfg)
	s.listingService = service.NewListingService(listingRepo, categoryRepo, tagRepo, s.imageService)
	s.taxonomy = service.NewTaxonomyService(categoryRepo, tagRepo)
	s.profileService = service.NewProfileService(profileRepo)
	s.statsService = service.NewStatsService(db)

	app := fiber.New()
	app.Use(middleware.ResolveIdentity)
	s.SetupRoutes(app)
	return app, s, db, cfg.MediaDir
}

// mintToken issues a short-lived HMAC token the auth middleware accepts.
func mintToken(t *testing.T, identity *auth.Identity) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(identity.UserID), 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if identity.Elevated {
		claims["staff"] = true
	}
	if len(identity.Groups) > 0 {
		groups := make([]any, 0, len(identity.Groups))
		for _, g := range identity.Groups {
			groups = append(groups, g)
		}
		claims["groups"] = groups
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// multipartListing builds a multipart form body for listing create/update.
func multipartListing(t *testing.T, fields map[string]string, imageName string, imageContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if imageName != "" {
		fw, err := w.CreateFormFile("image", imageName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(imageContent); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf, w.FormDataContentType()
}

func doMultipart(t *testing.T, app *fiber.App, method, path, token string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}
