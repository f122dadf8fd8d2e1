package server

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"bazaar/internal/models"
	"bazaar/internal/repository"
	"bazaar/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// respondError maps the error's kind to an HTTP status and writes the
// standard error body.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseListingFilter builds a repository filter from query parameters.
func parseListingFilter(c *fiber.Ctx) repository.ListingFilter {
	pageSize := c.QueryInt("page_size", repository.DefaultPageSize)
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	page := c.QueryInt("page", 1)
	if page <= 0 {
		page = 1
	}

	return repository.ListingFilter{
		Status:   strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		AuthorID: uint(c.QueryInt("author", 0)),
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
		Page:     page,
		PageSize: pageSize,
	}
}

// readImageUpload extracts the optional "image" multipart file. A request
// without the file (or without a multipart body at all) returns nil.
func readImageUpload(c *fiber.Ctx) (*service.ImageUpload, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, nil
	}
	return imageUploadFromHeader(fileHeader)
}

func imageUploadFromHeader(fileHeader *multipart.FileHeader) (*service.ImageUpload, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	return &service.ImageUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// splitTags parses a comma-separated tag list form value.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}
