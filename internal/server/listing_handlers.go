package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bazaar/internal/middleware"
	"bazaar/internal/models"
	"bazaar/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetListings handles GET /api/listings
func (s *Server) GetListings(c *fiber.Ctx) error {
	page, err := s.listingService.List(c.Context(), parseListingFilter(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetListing handles GET /api/listings/:id
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.listingService.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listing)
}

// CreateListing handles POST /api/listings. The body is either JSON or
// multipart form data; an image can only travel in the multipart form.
func (s *Server) CreateListing(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	in, err := parseListingForm(c)
	if err != nil {
		return respondError(c, err)
	}

	listing, err := s.listingService.Create(c.Context(), identity, *in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// UpdateListing handles PATCH and PUT /api/listings/:id
func (s *Server) UpdateListing(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	in, err := parseListingPatch(c)
	if err != nil {
		return respondError(c, err)
	}

	listing, err := s.listingService.Update(c.Context(), identity, id, *in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listing)
}

// DeleteListing handles DELETE /api/listings/:id
func (s *Server) DeleteListing(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.listingService.Delete(c.Context(), identity, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleFavorite handles POST /api/listings/:id/favorite
func (s *Server) ToggleFavorite(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	favorited, err := s.listingService.ToggleFavorite(c.Context(), identity, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"listing_id": id, "favorited": favorited})
}

// GetListingStats handles GET /api/listings/stats
func (s *Server) GetListingStats(c *fiber.Ctx) error {
	stats, err := s.statsService.Overview(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetMedia handles GET /api/media/* and serves stored image artifacts.
func (s *Server) GetMedia(c *fiber.Ctx) error {
	key := strings.TrimPrefix(c.Params("*"), "/")
	if key == "" {
		return respondError(c, models.NewValidationError("Missing media key"))
	}
	data, err := s.imageService.Fetch(c.Context(), key)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, http.DetectContentType(data))
	return c.Send(data)
}

func isJSONRequest(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}

type listingJSONBody struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price"`
	Status       *string  `json:"status"`
	CategoryName *string  `json:"category_name"`
	TagNames     []string `json:"tags"`
	ExpiresAt    *string  `json:"expires_at"`
}

func parseListingForm(c *fiber.Ctx) (*service.CreateListingInput, error) {
	if isJSONRequest(c) {
		var body listingJSONBody
		if err := c.BodyParser(&body); err != nil {
			return nil, models.NewValidationError("Invalid request body")
		}
		in := &service.CreateListingInput{TagNames: body.TagNames}
		if body.Title != nil {
			in.Title = *body.Title
		}
		if body.Description != nil {
			in.Description = *body.Description
		}
		if body.Price != nil {
			in.Price = *body.Price
		}
		if body.CategoryName != nil {
			in.CategoryName = *body.CategoryName
		}
		expires, err := parseExpiresAt(body.ExpiresAt)
		if err != nil {
			return nil, err
		}
		in.ExpiresAt = expires
		return in, nil
	}

	in := &service.CreateListingInput{
		Title:        c.FormValue("title"),
		Description:  c.FormValue("description"),
		CategoryName: c.FormValue("category_name"),
		TagNames:     splitTags(c.FormValue("tags")),
	}
	if raw := c.FormValue("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, models.NewValidationError("Invalid price")
		}
		in.Price = price
	}
	if raw := c.FormValue("expires_at"); raw != "" {
		expires, err := parseExpiresAt(&raw)
		if err != nil {
			return nil, err
		}
		in.ExpiresAt = expires
	}
	image, err := readImageUpload(c)
	if err != nil {
		return nil, err
	}
	in.Image = image
	return in, nil
}

func parseListingPatch(c *fiber.Ctx) (*service.UpdateListingInput, error) {
	if isJSONRequest(c) {
		// Distinguish absent fields from present ones: unmarshal into a
		// raw map alongside the typed body.
		var body listingJSONBody
		if err := c.BodyParser(&body); err != nil {
			return nil, models.NewValidationError("Invalid request body")
		}
		in := &service.UpdateListingInput{
			Title:        body.Title,
			Description:  body.Description,
			Price:        body.Price,
			Status:       body.Status,
			CategoryName: body.CategoryName,
		}
		if hasJSONField(c, "tags") {
			tags := body.TagNames
			if tags == nil {
				tags = []string{}
			}
			in.TagNames = &tags
		}
		if body.ExpiresAt != nil {
			expires, err := parseExpiresAt(body.ExpiresAt)
			if err != nil {
				return nil, err
			}
			in.ExpiresAt = expires
		}
		return in, nil
	}

	in := &service.UpdateListingInput{}
	if v := c.FormValue("title"); v != "" {
		in.Title = &v
	}
	if v := c.FormValue("description"); v != "" {
		in.Description = &v
	}
	if v := c.FormValue("status"); v != "" {
		in.Status = &v
	}
	if v := c.FormValue("category_name"); v != "" {
		in.CategoryName = &v
	}
	if raw := c.FormValue("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, models.NewValidationError("Invalid price")
		}
		in.Price = &price
	}
	if raw := c.FormValue("tags"); raw != "" {
		tags := splitTags(raw)
		in.TagNames = &tags
	}
	if raw := c.FormValue("expires_at"); raw != "" {
		expires, err := parseExpiresAt(&raw)
		if err != nil {
			return nil, err
		}
		in.ExpiresAt = expires
	}
	image, err := readImageUpload(c)
	if err != nil {
		return nil, err
	}
	in.Image = image
	return in, nil
}

// hasJSONField reports whether the raw JSON body contains the given
// top-level key, so patches can tell "set to empty" apart from "unchanged".
func hasJSONField(c *fiber.Ctx, field string) bool {
	var raw map[string]any
	if err := c.App().Config().JSONDecoder(c.Body(), &raw); err != nil {
		return false
	}
	_, ok := raw[field]
	return ok
}

func parseExpiresAt(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, models.NewValidationError("Invalid expires_at, want RFC 3339")
	}
	return &t, nil
}
